package world

import (
	"fmt"
	"sync"
)

// Manager provides thread-safe lookup of sectors by position across all levels.
type Manager struct {
	mu      sync.RWMutex
	levels  map[int]*Level
	sectors map[Position]*Sector
}

// NewManager creates a Manager from the given levels.
//
// Postcondition: Returns a Manager with every sector indexed by position, or an
// error on duplicate level numbers or sectors.
func NewManager(levels []*Level) (*Manager, error) {
	m := &Manager{
		levels:  make(map[int]*Level, len(levels)),
		sectors: make(map[Position]*Sector),
	}
	for _, l := range levels {
		if _, exists := m.levels[l.Number]; exists {
			return nil, fmt.Errorf("duplicate level number: %d", l.Number)
		}
		m.levels[l.Number] = l
		for _, s := range l.Sectors {
			if _, exists := m.sectors[s.Position]; exists {
				return nil, fmt.Errorf("duplicate sector %s", s.Position)
			}
			if s.Control == nil {
				s.Control = NewControl(s.Position)
			}
			m.sectors[s.Position] = s
		}
	}
	return m, nil
}

// SectorAt returns the sector at (level, x, y).
//
// Postcondition: Returns (sector, true) if found, or (nil, false) otherwise.
func (m *Manager) SectorAt(level, x, y int) (*Sector, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sectors[Position{Level: level, X: x, Y: y}]
	return s, ok
}

// Control returns the control state of the sector at pos.
//
// Postcondition: Returns (control, true) if the sector exists, or (nil, false) otherwise.
func (m *Manager) Control(pos Position) (*Control, bool) {
	s, ok := m.SectorAt(pos.Level, pos.X, pos.Y)
	if !ok {
		return nil, false
	}
	return s.Control, true
}

// OnWin installs h on every sector control. A nil h removes the hook.
func (m *Manager) OnWin(h WinHook) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.sectors {
		s.Control.setHook(h)
	}
}

// SectorCount returns the number of sectors across all levels.
func (m *Manager) SectorCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sectors)
}

// LevelCount returns the number of loaded levels.
func (m *Manager) LevelCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.levels)
}
