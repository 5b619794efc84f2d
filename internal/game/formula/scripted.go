package formula

import (
	"math"

	"github.com/cory-johannsen/fightloop/internal/game/fight"
	"github.com/cory-johannsen/fightloop/internal/scripting"
)

// Hook names looked up in the enemy kind's scripts.
const (
	HookEnemyDamage          = "enemy_damage"
	HookPlayerDamage         = "player_damage"
	HookPlayerRandomDamage   = "player_random_damage"
	HookEnemyAttackInterval  = "enemy_attack_interval"
	HookPlayerAttackInterval = "player_attack_interval"
)

// NumberHooks calls a numeric Lua hook; *scripting.Manager implements it.
type NumberHooks interface {
	CallNumberHook(kind, hook string, base float64, tables ...scripting.Fields) (float64, bool)
}

// Scripted lets Lua hooks override the formulas of a base fight.Formulas.
// Each hook receives the enemy table, the player table and the base value;
// a numeric return replaces the base value. Results are clamped like the
// base formulas: damage at 0 and intervals at the base provider's floor.
// NaN and infinite returns are discarded by the hooks and keep the base value.
type Scripted struct {
	base        fight.Formulas
	hooks       NumberHooks
	minInterval float64
}

var _ fight.Formulas = (*Scripted)(nil)

// NewScripted wraps base.
//
// Precondition: base and hooks must be non-nil; minInterval > 0.
func NewScripted(base fight.Formulas, hooks NumberHooks, minInterval float64) *Scripted {
	if base == nil || hooks == nil {
		panic("formula.NewScripted: base and hooks must not be nil")
	}
	if minInterval <= 0 {
		panic("formula.NewScripted: minInterval must be > 0")
	}
	return &Scripted{base: base, hooks: hooks, minInterval: minInterval}
}

func enemyFields(e *fight.Enemy) scripting.Fields {
	return scripting.Fields{
		"level":   float64(e.Level),
		"attack":  e.Attack,
		"defence": e.Defence,
		"speed":   e.Speed,
		"hp":      e.HP,
	}
}

func playerFields(p *fight.Player) scripting.Fields {
	return scripting.Fields{
		"hp":      p.HP,
		"attack":  p.Equipment.Attack,
		"defence": p.Equipment.Defence,
		"speed":   p.Equipment.Speed,
	}
}

func (s *Scripted) damage(hook string, e *fight.Enemy, p *fight.Player, base float64) float64 {
	v, ok := s.hooks.CallNumberHook(e.Kind, hook, base, enemyFields(e), playerFields(p))
	if !ok {
		return base
	}
	return math.Max(v, 0)
}

func (s *Scripted) interval(v float64, ok bool, base float64) float64 {
	if !ok {
		return base
	}
	return math.Max(v, s.minInterval)
}

// EnemyAttackInterval implements fight.Formulas.
func (s *Scripted) EnemyAttackInterval(e *fight.Enemy) float64 {
	base := s.base.EnemyAttackInterval(e)
	v, ok := s.hooks.CallNumberHook(e.Kind, HookEnemyAttackInterval, base, enemyFields(e))
	return s.interval(v, ok, base)
}

// PlayerAttackInterval implements fight.Formulas. The hook runs in the
// global scripts since the player has no enemy kind.
func (s *Scripted) PlayerAttackInterval(p *fight.Player) float64 {
	base := s.base.PlayerAttackInterval(p)
	v, ok := s.hooks.CallNumberHook("", HookPlayerAttackInterval, base, playerFields(p))
	return s.interval(v, ok, base)
}

// EnemyDamage implements fight.Formulas.
func (s *Scripted) EnemyDamage(e *fight.Enemy, p *fight.Player) float64 {
	return s.damage(HookEnemyDamage, e, p, s.base.EnemyDamage(e, p))
}

// PlayerDamage implements fight.Formulas.
func (s *Scripted) PlayerDamage(e *fight.Enemy, p *fight.Player) float64 {
	return s.damage(HookPlayerDamage, e, p, s.base.PlayerDamage(e, p))
}

// PlayerRandomDamage implements fight.Formulas.
func (s *Scripted) PlayerRandomDamage(e *fight.Enemy, p *fight.Player) float64 {
	return s.damage(HookPlayerRandomDamage, e, p, s.base.PlayerRandomDamage(e, p))
}
