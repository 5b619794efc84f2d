package fight

import (
	"github.com/cory-johannsen/fightloop/internal/game/encounter"
	"github.com/cory-johannsen/fightloop/internal/game/reward"
	"github.com/cory-johannsen/fightloop/internal/game/world"
)

// Formulas computes damage and attack intervals. Implementations are pure.
type Formulas interface {
	// EnemyAttackInterval is the seconds between the enemy's attacks.
	EnemyAttackInterval(e *Enemy) float64
	// PlayerAttackInterval is the seconds between the player's attacks.
	PlayerAttackInterval(p *Player) float64
	// PlayerDamage is the base damage the enemy deals to the player per attack.
	PlayerDamage(e *Enemy, p *Player) float64
	// PlayerRandomDamage is the randomized extra damage the enemy deals to the player.
	PlayerRandomDamage(e *Enemy, p *Player) float64
	// EnemyDamage is the damage the player deals to the enemy per attack.
	EnemyDamage(e *Enemy, p *Player) float64
}

// ContextResolver derives where a win is recorded from an encounter's context.
type ContextResolver interface {
	BaseActionID(ctx encounter.Context) string
	LocaleID(base string, ctx encounter.Context, related bool) string
	RelatedDirection(base string, ctx encounter.Context) world.Direction
}

// Sectors resolves sector control state by position.
type Sectors interface {
	Control(pos world.Position) (*world.Control, bool)
}

// Rewards produces the reward record of a finished fight.
type Rewards interface {
	FightRewards(won bool) *reward.Result
}

// Inbox receives reward records for later presentation to the player.
type Inbox interface {
	Deliver(r *reward.Result)
}

// Notifier is told when a frame changed either combatant's hp.
type Notifier interface {
	FightUpdated()
}

// NotifierFunc adapts a plain function to Notifier.
type NotifierFunc func()

// FightUpdated calls f.
func (f NotifierFunc) FightUpdated() { f() }

// Active exposes the current encounter, if any.
type Active interface {
	Current() (*Encounter, bool)
}
