// Package fight implements the real-time fight engine: one active encounter
// between the player and a single enemy, advanced once per frame by a Stepper
// that runs both attack timers, applies item effects, and resolves the outcome.
package fight

import (
	"github.com/google/uuid"

	"github.com/cory-johannsen/fightloop/internal/game/encounter"
	"github.com/cory-johannsen/fightloop/internal/game/reward"
	"github.com/cory-johannsen/fightloop/internal/game/world"
)

// FullHP is the hp both combatants are reset to when a fight finishes.
const FullHP = 100.0

// MaxStep caps the seconds of simulation a single frame may advance.
const MaxStep = 1.0

// Enemy is the opponent of an encounter. HP is signed and may go negative.
type Enemy struct {
	ID      string
	Name    string
	Kind    string
	Level   int
	Attack  float64
	Defence float64
	Speed   float64
	HP      float64
}

// Equipment summarises the combat bonuses of the player's equipped items.
type Equipment struct {
	Attack  float64
	Defence float64
	Speed   float64
}

// Player is the player's combat record. HP is signed and may go negative.
type Player struct {
	ID        string
	HP        float64
	Equipment Equipment
}

// ItemEffects holds the item-driven modifiers of an encounter.
type ItemEffects struct {
	// EnemyStunnedSeconds pauses the enemy's attack timer while positive. Never negative.
	EnemyStunnedSeconds float64
	// Damage is a pending one-shot burst against the enemy; cleared the tick it is applied.
	Damage float64
	// Fled requests withdrawal from the fight.
	Fled bool
}

// Encounter is the live state of one fight.
type Encounter struct {
	ID       string
	Position world.Position
	Context  encounter.Context

	Enemy       *Enemy
	Player      *Player
	ItemEffects ItemEffects

	// NextTurnEnemy and NextTurnPlayer count down the seconds until each side attacks.
	NextTurnEnemy     float64
	NextTurnPlayer    float64
	TimersInitialized bool

	Fled     bool
	Finished bool
	// Won is only meaningful once Finished is true.
	Won bool
	// Result is set when the fight finishes; never on flee.
	Result *reward.Result
}

// NewEncounter returns an in-progress encounter with uninitialized timers.
//
// Precondition: enemy and player must be non-nil.
func NewEncounter(pos world.Position, ctx encounter.Context, enemy *Enemy, player *Player) *Encounter {
	return &Encounter{
		ID:       uuid.NewString(),
		Position: pos,
		Context:  ctx,
		Enemy:    enemy,
		Player:   player,
	}
}

// Terminal reports whether the encounter has fled or finished.
func (e *Encounter) Terminal() bool {
	return e.Fled || e.Finished
}
