// Package world provides the sector grid the fights take place on: levels,
// sectors, directions and the per-sector control state that records wins.
package world

import (
	"fmt"
	"sync"
)

// Direction represents a compass direction, a vertical movement, or none.
type Direction string

const (
	None      Direction = "none"
	North     Direction = "north"
	South     Direction = "south"
	East      Direction = "east"
	West      Direction = "west"
	Northeast Direction = "northeast"
	Northwest Direction = "northwest"
	Southeast Direction = "southeast"
	Southwest Direction = "southwest"
	Up        Direction = "up"
	Down      Direction = "down"
)

// StandardDirections contains every direction except None.
var StandardDirections = []Direction{
	North, South, East, West,
	Northeast, Northwest, Southeast, Southwest,
	Up, Down,
}

// IsStandard reports whether d is one of the ten standard directions.
func (d Direction) IsStandard() bool {
	for _, sd := range StandardDirections {
		if d == sd {
			return true
		}
	}
	return false
}

// Opposite returns the opposite of a standard direction, or None.
func (d Direction) Opposite() Direction {
	switch d {
	case North:
		return South
	case South:
		return North
	case East:
		return West
	case West:
		return East
	case Northeast:
		return Southwest
	case Southwest:
		return Northeast
	case Northwest:
		return Southeast
	case Southeast:
		return Northwest
	case Up:
		return Down
	case Down:
		return Up
	default:
		return None
	}
}

// Position locates a sector by level and grid coordinates.
type Position struct {
	Level int
	X     int
	Y     int
}

// String returns "level:x,y".
func (p Position) String() string {
	return fmt.Sprintf("%d:%d,%d", p.Level, p.X, p.Y)
}

// Step returns the position n sectors away in direction d.
// North decreases Y, east increases X; Up and Down change the level.
// None and unknown directions return p unchanged.
func (p Position) Step(d Direction, n int) Position {
	switch d {
	case North:
		p.Y -= n
	case South:
		p.Y += n
	case East:
		p.X += n
	case West:
		p.X -= n
	case Northeast:
		p.X += n
		p.Y -= n
	case Northwest:
		p.X -= n
		p.Y -= n
	case Southeast:
		p.X += n
		p.Y += n
	case Southwest:
		p.X -= n
		p.Y += n
	case Up:
		p.Level += n
	case Down:
		p.Level -= n
	}
	return p
}

// WinHook observes every win recorded against a sector control.
type WinHook func(pos Position, localeID string, total int)

// Control is the control state of one sector: how many fights have been won
// against each locale of the sector.
// It is safe for concurrent use.
type Control struct {
	pos  Position
	mu   sync.Mutex
	wins map[string]int
	hook WinHook
}

// NewControl returns an empty Control for the sector at pos.
func NewControl(pos Position) *Control {
	return &Control{pos: pos, wins: make(map[string]int)}
}

// AddWin records one win against localeID.
//
// Postcondition: Wins(localeID) is incremented by one and the hook, if any, is called.
func (c *Control) AddWin(localeID string) {
	c.mu.Lock()
	c.wins[localeID]++
	total := c.wins[localeID]
	hook := c.hook
	c.mu.Unlock()
	if hook != nil {
		hook(c.pos, localeID, total)
	}
}

// Wins returns the number of wins recorded against localeID.
func (c *Control) Wins(localeID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.wins[localeID]
}

// Restore sets the recorded win count of localeID, e.g. from persisted state.
// The hook is not called.
func (c *Control) Restore(localeID string, wins int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.wins[localeID] = wins
}

func (c *Control) setHook(h WinHook) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hook = h
}

// Sector is one cell of a level's grid.
type Sector struct {
	Position Position
	Name     string
	Control  *Control
}

// Level groups the sectors that share a level number.
type Level struct {
	Number  int
	Name    string
	Sectors []*Sector
}

// Validate checks level invariants.
//
// Postcondition: Returns nil if valid, or an error describing the first violation.
func (l *Level) Validate() error {
	if l.Name == "" {
		return fmt.Errorf("level %d: name must not be empty", l.Number)
	}
	if len(l.Sectors) == 0 {
		return fmt.Errorf("level %d: must contain at least one sector", l.Number)
	}
	seen := make(map[Position]bool, len(l.Sectors))
	for _, s := range l.Sectors {
		if s.Position.Level != l.Number {
			return fmt.Errorf("level %d: sector %s belongs to another level", l.Number, s.Position)
		}
		if seen[s.Position] {
			return fmt.Errorf("level %d: duplicate sector %s", l.Number, s.Position)
		}
		seen[s.Position] = true
	}
	return nil
}
