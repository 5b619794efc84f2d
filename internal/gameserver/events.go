package gameserver

import (
	"sync"

	"github.com/cory-johannsen/fightloop/internal/game/fight"
)

// EventKind classifies a FightEvent.
type EventKind string

const (
	EventStarted  EventKind = "started"
	EventUpdated  EventKind = "updated"
	EventFled     EventKind = "fled"
	EventFinished EventKind = "finished"
	EventEnded    EventKind = "ended"
)

// FightEvent is a point-in-time view of the active fight sent to subscribers.
type FightEvent struct {
	Kind        EventKind
	EncounterID string
	EnemyHP     float64
	PlayerHP    float64
	// Won is only meaningful for EventFinished.
	Won bool
}

// FightEvents broadcasts fight events to subscribers and implements
// fight.Notifier for the frame updates.
type FightEvents struct {
	active      fight.Active
	mu          sync.Mutex
	subscribers map[chan<- FightEvent]struct{}
}

// NewFightEvents returns a broadcaster reading update events from active.
//
// Precondition: active must be non-nil.
func NewFightEvents(active fight.Active) *FightEvents {
	if active == nil {
		panic("gameserver.NewFightEvents: active must not be nil")
	}
	return &FightEvents{
		active:      active,
		subscribers: make(map[chan<- FightEvent]struct{}),
	}
}

// Subscribe registers ch to receive every event.
// If ch is full, the event is dropped for that subscriber (non-blocking).
//
// Precondition: ch must not be nil.
func (e *FightEvents) Subscribe(ch chan<- FightEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.subscribers[ch] = struct{}{}
}

// Unsubscribe removes ch from the subscriber list.
func (e *FightEvents) Unsubscribe(ch chan<- FightEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.subscribers, ch)
}

// FightUpdated publishes an EventUpdated for the active encounter.
func (e *FightEvents) FightUpdated() {
	if enc, ok := e.active.Current(); ok {
		e.Publish(eventOf(EventUpdated, enc))
	}
}

// Publish sends ev to every subscriber without blocking.
func (e *FightEvents) Publish(ev FightEvent) {
	e.mu.Lock()
	subs := make([]chan<- FightEvent, 0, len(e.subscribers))
	for ch := range e.subscribers {
		subs = append(subs, ch)
	}
	e.mu.Unlock()
	for _, ch := range subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func eventOf(kind EventKind, enc *fight.Encounter) FightEvent {
	return FightEvent{
		Kind:        kind,
		EncounterID: enc.ID,
		EnemyHP:     enc.Enemy.HP,
		PlayerHP:    enc.Player.HP,
		Won:         enc.Won,
	}
}
