package gameserver

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/cory-johannsen/fightloop/internal/game/dice"
	"github.com/cory-johannsen/fightloop/internal/game/encounter"
	"github.com/cory-johannsen/fightloop/internal/game/fight"
	"github.com/cory-johannsen/fightloop/internal/game/npc"
	"github.com/cory-johannsen/fightloop/internal/game/reward"
	"github.com/cory-johannsen/fightloop/internal/game/world"
)

var (
	// ErrUnknownTemplate is returned when starting a fight against an unknown enemy template.
	ErrUnknownTemplate = errors.New("unknown enemy template")
	// ErrUnknownSector is returned when starting a fight at a position with no sector.
	ErrUnknownSector = errors.New("unknown sector")
	// ErrFightOver is returned when an item effect targets a fled or finished encounter.
	ErrFightOver = errors.New("fight is over")
	// ErrFightInProgress is returned when ending an encounter that is still running.
	ErrFightInProgress = errors.New("fight is still in progress")
)

// FightServiceDeps holds the collaborators of a FightService.
type FightServiceDeps struct {
	Player    *fight.Player
	Templates *npc.Registry
	World     *world.Manager
	Formulas  fight.Formulas
	// Loot is the loot table of templates without their own.
	Loot   reward.LootTable
	Inbox  *reward.Inbox
	Source dice.Source
	Logger *zap.Logger
	// OnUpdate, if set, is called on every frame that changed an hp, after
	// the event broadcast and under the service lock. It is never dropped.
	OnUpdate fight.Notifier
}

// Snapshot is a copy of the active encounter's observable state.
type Snapshot struct {
	EncounterID         string
	Position            world.Position
	Action              string
	EnemyName           string
	EnemyHP             float64
	PlayerHP            float64
	EnemyStunnedSeconds float64
	NextTurnEnemy       float64
	NextTurnPlayer      float64
	Fled                bool
	Finished            bool
	Won                 bool
	Result              *reward.Result
}

// FightService owns the single active encounter and serializes every access
// to it: frame ticks, item effects and start/end requests all run under one
// mutex.
type FightService struct {
	mu         sync.Mutex
	slot       *fight.Slot
	stepper    *fight.Stepper
	events     *FightEvents
	player     *fight.Player
	templates  *npc.Registry
	world      *world.Manager
	loot       *reward.Generator
	source     dice.Source
	generators map[string]*reward.Generator
	current    *npc.Template
	logger     *zap.Logger
}

// NewFightService wires a Slot, a Stepper and a FightEvents broadcaster.
//
// Precondition: every field of deps except OnUpdate must be non-nil.
func NewFightService(deps FightServiceDeps) *FightService {
	if deps.Player == nil || deps.Templates == nil || deps.World == nil || deps.Formulas == nil ||
		deps.Inbox == nil || deps.Source == nil || deps.Logger == nil {
		panic("gameserver.NewFightService: all dependencies must be non-nil")
	}
	slot := fight.NewSlot()
	s := &FightService{
		slot:       slot,
		events:     NewFightEvents(slot),
		player:     deps.Player,
		templates:  deps.Templates,
		world:      deps.World,
		loot:       reward.NewGenerator(deps.Loot, deps.Source),
		source:     deps.Source,
		generators: make(map[string]*reward.Generator),
		logger:     deps.Logger,
	}
	var notifier fight.Notifier = s.events
	if deps.OnUpdate != nil {
		onUpdate := deps.OnUpdate
		notifier = fight.NotifierFunc(func() {
			s.events.FightUpdated()
			onUpdate.FightUpdated()
		})
	}
	s.stepper = fight.NewStepper(fight.Collaborators{
		Active:   slot,
		Formulas: deps.Formulas,
		Contexts: encounter.NewResolver(),
		Sectors:  deps.World,
		Rewards:  s,
		Inbox:    deps.Inbox,
		Notifier: notifier,
		Source:   deps.Source,
		Logger:   deps.Logger,
	})
	return s
}

// Events returns the broadcaster of this service's fight events.
func (s *FightService) Events() *FightEvents { return s.events }

// FightRewards implements fight.Rewards with the loot table of the current
// enemy template, falling back to the default table.
// It is called by the Stepper with s.mu held.
func (s *FightService) FightRewards(won bool) *reward.Result {
	if s.current == nil || s.current.Loot == nil {
		return s.loot.FightRewards(won)
	}
	gen, ok := s.generators[s.current.ID]
	if !ok {
		gen = reward.NewGenerator(*s.current.Loot, s.source)
		s.generators[s.current.ID] = gen
	}
	return gen.FightRewards(won)
}

// StartFight begins an encounter against a new enemy of templateID in the
// sector at pos. action is the originating context, e.g. "fight_gang_north".
//
// Postcondition: Returns fight.ErrEncounterActive if an encounter is already
// active, ErrUnknownSector or ErrUnknownTemplate on bad input.
func (s *FightService) StartFight(pos world.Position, action, templateID string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.world.Control(pos); !ok {
		return Snapshot{}, fmt.Errorf("starting fight at %s: %w", pos, ErrUnknownSector)
	}
	tmpl, ok := s.templates.Get(templateID)
	if !ok {
		return Snapshot{}, fmt.Errorf("starting fight against %q: %w", templateID, ErrUnknownTemplate)
	}

	enc := fight.NewEncounter(pos, encounter.Context{Action: action}, tmpl.Spawn(), s.player)
	if err := s.slot.Start(enc); err != nil {
		return Snapshot{}, err
	}
	s.current = tmpl

	s.logger.Info("fight started",
		zap.String("encounter", enc.ID),
		zap.Stringer("position", pos),
		zap.String("action", action),
		zap.String("enemy", tmpl.ID),
	)
	s.events.Publish(eventOf(EventStarted, enc))
	return snapshotOf(enc), nil
}

// running returns the active encounter if it has neither fled nor finished.
func (s *FightService) running() (*fight.Encounter, error) {
	enc, ok := s.slot.Current()
	if !ok {
		return nil, fight.ErrNoEncounter
	}
	if enc.Terminal() {
		return nil, ErrFightOver
	}
	return enc, nil
}

// Flee requests withdrawal; it takes effect on the next frame.
func (s *FightService) Flee() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	enc, err := s.running()
	if err != nil {
		return err
	}
	enc.ItemEffects.Fled = true
	return nil
}

// Stun adds seconds to the enemy's stun.
//
// Precondition: seconds > 0.
func (s *FightService) Stun(seconds float64) error {
	if seconds <= 0 {
		return fmt.Errorf("stun seconds must be > 0, got %g", seconds)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	enc, err := s.running()
	if err != nil {
		return err
	}
	enc.ItemEffects.EnemyStunnedSeconds += seconds
	return nil
}

// Burst queues damage against the enemy, applied on the next frame.
//
// Precondition: damage > 0.
func (s *FightService) Burst(damage float64) error {
	if damage <= 0 {
		return fmt.Errorf("burst damage must be > 0, got %g", damage)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	enc, err := s.running()
	if err != nil {
		return err
	}
	enc.ItemEffects.Damage += damage
	return nil
}

// Snapshot returns the state of the active encounter.
//
// Postcondition: Returns fight.ErrNoEncounter if none is active.
func (s *FightService) Snapshot() (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	enc, ok := s.slot.Current()
	if !ok {
		return Snapshot{}, fight.ErrNoEncounter
	}
	return snapshotOf(enc), nil
}

// EndFight removes a fled or finished encounter from the slot.
//
// Postcondition: Returns ErrFightInProgress if the encounter is still running.
func (s *FightService) EndFight() (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	enc, ok := s.slot.Current()
	if !ok {
		return Snapshot{}, fight.ErrNoEncounter
	}
	if !enc.Terminal() {
		return Snapshot{}, ErrFightInProgress
	}
	if _, err := s.slot.Clear(); err != nil {
		return Snapshot{}, err
	}
	s.current = nil
	s.events.Publish(eventOf(EventEnded, enc))
	return snapshotOf(enc), nil
}

// Tick advances the active encounter by elapsed seconds.
//
// Postcondition: Returns a non-nil error only when a win could not be
// recorded; the caller must treat it as fatal.
func (s *FightService) Tick(elapsed float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	enc, ok := s.slot.Current()
	wasFled, wasFinished := ok && enc.Fled, ok && enc.Finished

	if err := s.stepper.Update(elapsed); err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if enc.Fled && !wasFled {
		s.events.Publish(eventOf(EventFled, enc))
	}
	if enc.Finished && !wasFinished {
		s.events.Publish(eventOf(EventFinished, enc))
	}
	return nil
}

func snapshotOf(enc *fight.Encounter) Snapshot {
	return Snapshot{
		EncounterID:         enc.ID,
		Position:            enc.Position,
		Action:              enc.Context.Action,
		EnemyName:           enc.Enemy.Name,
		EnemyHP:             enc.Enemy.HP,
		PlayerHP:            enc.Player.HP,
		EnemyStunnedSeconds: enc.ItemEffects.EnemyStunnedSeconds,
		NextTurnEnemy:       enc.NextTurnEnemy,
		NextTurnPlayer:      enc.NextTurnPlayer,
		Fled:                enc.Fled,
		Finished:            enc.Finished,
		Won:                 enc.Won,
		Result:              enc.Result,
	}
}
