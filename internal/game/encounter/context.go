// Package encounter resolves the originating context of a fight: which action
// spawned it, which locale of the sector it was fought over, and whether an
// adjacent sector shares the win.
package encounter

import (
	"strings"

	"github.com/cory-johannsen/fightloop/internal/game/world"
)

// Base action ids with special locale handling.
const (
	ActionFightGang     = "fight_gang"
	ActionScoutLocaleI  = "scout_locale_i"
	ActionScoutLocaleU  = "scout_locale_u"
	ActionClearWorkshop = "clear_workshop"
	ActionClearWasteT   = "clear_waste_t"
	ActionClearWasteR   = "clear_waste_r"
)

// prefixed lists base actions whose action string carries a trailing parameter.
var prefixed = []string{ActionFightGang, ActionScoutLocaleI, ActionScoutLocaleU}

// Context is the originating context of a fight, e.g. "fight_gang_north".
type Context struct {
	Action string
}

// param returns the trailing parameter of the action after base, if any.
func (c Context) param(base string) string {
	return strings.TrimPrefix(strings.TrimPrefix(c.Action, base), "_")
}

// Resolver derives base action ids, locale ids and related directions.
type Resolver struct{}

// NewResolver returns a Resolver.
func NewResolver() *Resolver { return &Resolver{} }

// BaseActionID strips the trailing parameter from parameterized actions.
// Other actions are their own base id.
func (r *Resolver) BaseActionID(ctx Context) string {
	for _, base := range prefixed {
		if strings.HasPrefix(ctx.Action, base+"_") {
			return base
		}
	}
	return ctx.Action
}

// LocaleID returns the locale a win is recorded against. When related is true
// the id of the mirrored locale in the adjacent sector is returned instead.
func (r *Resolver) LocaleID(base string, ctx Context, related bool) string {
	switch base {
	case ActionFightGang:
		dir := world.Direction(ctx.param(base))
		if related {
			dir = dir.Opposite()
		}
		return "gang_" + string(dir)
	case ActionScoutLocaleI, ActionScoutLocaleU:
		return "locale_" + ctx.param(base)
	case ActionClearWorkshop:
		return "workshop"
	case ActionClearWasteT, ActionClearWasteR:
		return "waste_" + strings.TrimPrefix(base, "clear_waste_")
	default:
		return ctx.Action
	}
}

// RelatedDirection returns the direction of the adjacent sector that shares the
// win, or world.None.
func (r *Resolver) RelatedDirection(base string, ctx Context) world.Direction {
	if base != ActionFightGang {
		return world.None
	}
	dir := world.Direction(ctx.param(base))
	if !dir.IsStandard() {
		return world.None
	}
	return dir
}
