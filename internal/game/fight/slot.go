package fight

import (
	"errors"
	"sync"
)

// ErrEncounterActive is returned when starting an encounter while another is active.
var ErrEncounterActive = errors.New("an encounter is already active")

// ErrNoEncounter is returned when an operation needs an active encounter and there is none.
var ErrNoEncounter = errors.New("no active encounter")

// Slot holds at most one active encounter.
// All methods are safe for concurrent use.
type Slot struct {
	mu  sync.RWMutex
	cur *Encounter
}

// NewSlot returns an empty Slot.
func NewSlot() *Slot {
	return &Slot{}
}

// Start makes enc the active encounter.
//
// Precondition: enc must be non-nil.
// Postcondition: Returns ErrEncounterActive if an encounter is already active.
func (s *Slot) Start(enc *Encounter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur != nil {
		return ErrEncounterActive
	}
	s.cur = enc
	return nil
}

// Current returns the active encounter.
//
// Postcondition: Returns (enc, true) if one is active, or (nil, false) otherwise.
func (s *Slot) Current() (*Encounter, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur, s.cur != nil
}

// Clear removes the active encounter and returns it.
//
// Postcondition: Returns ErrNoEncounter if the slot was empty.
func (s *Slot) Clear() (*Encounter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur == nil {
		return nil, ErrNoEncounter
	}
	enc := s.cur
	s.cur = nil
	return enc, nil
}
