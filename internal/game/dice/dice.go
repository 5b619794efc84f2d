// Package dice provides the randomness behind the fight: the Source that
// phases attack timers and rolls loot, and the dice expressions used for
// random damage.
package dice

import (
	"fmt"
	"strings"
)

// Source is the randomness provider of the fight engine.
//
// Implementations MUST be safe for concurrent use.
type Source interface {
	// Intn returns a non-negative random int in [0, n).
	//
	// Precondition: n > 0.
	Intn(n int) int
	// Float64 returns a uniform random float in [0, 1).
	Float64() float64
}

// RollResult is one evaluation of an Expression.
//
// Postcondition: Total() == Sum() + Modifier.
type RollResult struct {
	Expression string
	Dice       []int
	Modifier   int
}

// Sum returns the sum of the dice without the modifier.
func (r RollResult) Sum() int {
	sum := 0
	for _, d := range r.Dice {
		sum += d
	}
	return sum
}

// Total returns the dice sum plus the modifier.
func (r RollResult) Total() int {
	return r.Sum() + r.Modifier
}

// String renders the roll as "1d4-1: 3-1 = 2" or "2d6: 2+5 = 7".
//
// Precondition: r.Expression is non-empty.
func (r RollResult) String() string {
	if r.Expression == "" {
		panic("dice.RollResult.String: Expression must be non-empty")
	}
	parts := make([]string, len(r.Dice))
	for i, d := range r.Dice {
		parts[i] = fmt.Sprint(d)
	}
	terms := strings.Join(parts, "+")
	if r.Modifier != 0 {
		terms += fmt.Sprintf("%+d", r.Modifier)
	}
	return fmt.Sprintf("%s: %s = %d", r.Expression, terms, r.Total())
}

// Roll evaluates expr using src.
//
// Precondition: expr must come from Parse; src must be non-nil.
// Postcondition: len(result.Dice) == expr.Count and every die is in [1, Sides].
func Roll(expr Expression, src Source) RollResult {
	rolled := make([]int, expr.Count)
	for i := range rolled {
		rolled[i] = src.Intn(expr.Sides) + 1
	}
	return RollResult{Expression: expr.Raw, Dice: rolled, Modifier: expr.Modifier}
}
