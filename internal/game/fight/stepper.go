package fight

import (
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/cory-johannsen/fightloop/internal/game/dice"
	"github.com/cory-johannsen/fightloop/internal/game/world"
)

// ErrSectorNotFound is returned when a win cannot be recorded because a sector
// does not resolve. It means the world and the encounter context disagree.
var ErrSectorNotFound = errors.New("sector not found")

// Collaborators bundles everything a Stepper depends on.
type Collaborators struct {
	Active   Active
	Formulas Formulas
	Contexts ContextResolver
	Sectors  Sectors
	Rewards  Rewards
	Inbox    Inbox
	Notifier Notifier
	// Source draws the initial timer phases.
	Source dice.Source
	Logger *zap.Logger
}

// Stepper advances the active encounter once per frame.
//
// A Stepper is not safe for concurrent use; the caller serialises Update with
// any other writes to the active encounter.
type Stepper struct {
	c Collaborators
}

// NewStepper returns a Stepper.
//
// Precondition: every field of c must be non-nil.
func NewStepper(c Collaborators) *Stepper {
	if c.Active == nil || c.Formulas == nil || c.Contexts == nil || c.Sectors == nil ||
		c.Rewards == nil || c.Inbox == nil || c.Notifier == nil || c.Source == nil || c.Logger == nil {
		panic("fight.NewStepper: all collaborators must be non-nil")
	}
	return &Stepper{c: c}
}

// Update advances the active encounter by elapsed seconds.
//
// The frame runs in a fixed order: initialize timers on first sight, skip
// terminal encounters, flee if requested, end the fight if either hp read at
// the start of the frame is below zero, then run the simulation step. The step
// runs even on the frame that flees or ends the fight; the next frame is the
// first one that is skipped.
//
// Precondition: elapsed >= 0.
// Postcondition: Returns a non-nil error only when the fight ended with a win
// whose sector could not be resolved; no win was recorded in that case.
func (s *Stepper) Update(elapsed float64) error {
	enc, ok := s.c.Active.Current()
	if !ok {
		return nil
	}
	if !enc.TimersInitialized {
		s.initialize(enc)
	}
	if enc.Finished || enc.Fled {
		return nil
	}

	enemyHP := enc.Enemy.HP
	playerHP := enc.Player.HP
	fleeRequested := enc.ItemEffects.Fled

	if fleeRequested {
		s.flee(enc)
	}

	var err error
	if enemyHP < 0 || playerHP < 0 {
		err = s.end(enc, playerHP, enemyHP)
	}

	s.step(enc, elapsed)
	return err
}

// initialize randomizes the phase of both attack timers so separate
// encounters do not open in lockstep.
func (s *Stepper) initialize(enc *Encounter) {
	enc.NextTurnEnemy = s.c.Formulas.EnemyAttackInterval(enc.Enemy) * s.c.Source.Float64()
	enc.NextTurnPlayer = s.c.Formulas.PlayerAttackInterval(enc.Player) * s.c.Source.Float64()
	enc.TimersInitialized = true
	s.c.Logger.Debug("fight timers initialized",
		zap.String("encounter", enc.ID),
		zap.Float64("next_turn_enemy", enc.NextTurnEnemy),
		zap.Float64("next_turn_player", enc.NextTurnPlayer),
	)
}

// step runs one tick of the simulation.
func (s *Stepper) step(enc *Encounter, elapsed float64) {
	dt := math.Min(elapsed, MaxStep)
	fx := &enc.ItemEffects

	fx.EnemyStunnedSeconds = math.Max(fx.EnemyStunnedSeconds-dt, 0)

	// Enemy turn. A stunned enemy's timer does not advance.
	var playerDamage, playerRandomDamage float64
	if fx.EnemyStunnedSeconds <= 0 {
		enc.NextTurnEnemy -= dt
		if enc.NextTurnEnemy <= 0 {
			playerDamage = s.c.Formulas.PlayerDamage(enc.Enemy, enc.Player)
			playerRandomDamage = s.c.Formulas.PlayerRandomDamage(enc.Enemy, enc.Player)
			enc.NextTurnEnemy = s.c.Formulas.EnemyAttackInterval(enc.Enemy)
		}
	}

	// Player turn.
	var enemyDamage float64
	enc.NextTurnPlayer -= dt
	if enc.NextTurnPlayer <= 0 {
		enemyDamage = s.c.Formulas.EnemyDamage(enc.Enemy, enc.Player)
		enc.NextTurnPlayer = s.c.Formulas.PlayerAttackInterval(enc.Player)
	}

	var burst float64
	if fx.Damage > 0 {
		burst = fx.Damage
		fx.Damage = 0
	}

	enemyChange := enemyDamage + burst
	playerChange := playerDamage + playerRandomDamage
	enc.Enemy.HP -= enemyChange
	enc.Player.HP -= playerChange

	if enemyChange != 0 || playerChange != 0 {
		s.c.Logger.Debug("fight update",
			zap.String("encounter", enc.ID),
			zap.Float64("enemy_change", enemyChange),
			zap.Float64("player_change", playerChange),
		)
		s.c.Notifier.FightUpdated()
	}
}

// flee marks the encounter as exited by withdrawal.
func (s *Stepper) flee(enc *Encounter) {
	enc.Fled = true
	s.c.Logger.Info("fled fight", zap.String("encounter", enc.ID))
}

// end resolves the outcome from the hp values read at the start of the frame.
// A tie is a loss.
func (s *Stepper) end(enc *Encounter, playerHP, enemyHP float64) error {
	won := playerHP > enemyHP

	if won {
		if err := s.recordWin(enc); err != nil {
			return err
		}
	}

	enc.Result = s.c.Rewards.FightRewards(won)
	s.c.Inbox.Deliver(enc.Result)

	enc.Enemy.HP = FullHP
	enc.Player.HP = FullHP
	enc.Won = won
	enc.Finished = true

	s.c.Logger.Info("fight finished",
		zap.String("encounter", enc.ID),
		zap.Bool("won", won),
		zap.Float64("player_hp", playerHP),
		zap.Float64("enemy_hp", enemyHP),
		zap.String("result", enc.Result.ID),
	)
	return nil
}

// recordWin adds the win to the encounter's sector and, when the context names
// a related direction, to the adjacent sector. Both sectors are resolved before
// either win is recorded.
func (s *Stepper) recordWin(enc *Encounter) error {
	base := s.c.Contexts.BaseActionID(enc.Context)

	control, ok := s.c.Sectors.Control(enc.Position)
	if !ok {
		return fmt.Errorf("recording win at %s: %w", enc.Position, ErrSectorNotFound)
	}

	var relatedControl *world.Control
	relatedDir := s.c.Contexts.RelatedDirection(base, enc.Context)
	if relatedDir != world.None {
		relatedPos := enc.Position.Step(relatedDir, 1)
		relatedControl, ok = s.c.Sectors.Control(relatedPos)
		if !ok {
			return fmt.Errorf("recording related win at %s (%s of %s): %w",
				relatedPos, relatedDir, enc.Position, ErrSectorNotFound)
		}
	}

	control.AddWin(s.c.Contexts.LocaleID(base, enc.Context, false))
	if relatedControl != nil {
		relatedControl.AddWin(s.c.Contexts.LocaleID(base, enc.Context, true))
	}
	return nil
}
