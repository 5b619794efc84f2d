// Package reward generates fight rewards and holds them in the player's
// result inbox until they are presented.
package reward

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/fightloop/internal/game/dice"
)

// Item is one item instance granted by a fight.
type Item struct {
	ItemID     string `json:"item_id"`
	InstanceID string `json:"instance_id"`
	Quantity   int    `json:"quantity"`
}

// Result is the reward record of a finished fight.
type Result struct {
	ID        string
	Won       bool
	Currency  int
	Items     []Item
	CreatedAt time.Time
}

// CurrencyDrop defines the range of currency granted on a win.
type CurrencyDrop struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

// ItemDrop is one item entry in a loot table with its drop chance.
type ItemDrop struct {
	ItemID string  `yaml:"item"`
	Chance float64 `yaml:"chance"`
	MinQty int     `yaml:"min_qty"`
	MaxQty int     `yaml:"max_qty"`
}

// LootTable defines what a won fight can yield.
type LootTable struct {
	Currency *CurrencyDrop `yaml:"currency"`
	Items    []ItemDrop    `yaml:"items"`
}

// Validate checks that the loot table satisfies its invariants.
// An empty loot table is valid.
func (lt *LootTable) Validate() error {
	if lt.Currency != nil {
		if lt.Currency.Min < 0 {
			return fmt.Errorf("loot table: currency min must be >= 0, got %d", lt.Currency.Min)
		}
		if lt.Currency.Min > lt.Currency.Max {
			return fmt.Errorf("loot table: currency min (%d) must be <= max (%d)", lt.Currency.Min, lt.Currency.Max)
		}
	}
	for i, item := range lt.Items {
		if item.ItemID == "" {
			return fmt.Errorf("loot table: item[%d] must have a non-empty item id", i)
		}
		if item.Chance <= 0 || item.Chance > 1.0 {
			return fmt.Errorf("loot table: item[%d] chance must be in (0, 1.0], got %f", i, item.Chance)
		}
		if item.MinQty < 1 || item.MinQty > item.MaxQty {
			return fmt.Errorf("loot table: item[%d] quantity range [%d, %d] is invalid", i, item.MinQty, item.MaxQty)
		}
	}
	return nil
}

// LoadLootTable reads and validates a loot table YAML file.
func LoadLootTable(path string) (LootTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return LootTable{}, fmt.Errorf("reading loot table %s: %w", path, err)
	}
	var lt LootTable
	if err := yaml.Unmarshal(data, &lt); err != nil {
		return LootTable{}, fmt.Errorf("parsing loot table %s: %w", path, err)
	}
	if err := lt.Validate(); err != nil {
		return LootTable{}, err
	}
	return lt, nil
}

// Generator produces fight reward records.
type Generator struct {
	table LootTable
	src   dice.Source
	now   func() time.Time
}

// NewGenerator returns a Generator rolling table with src.
//
// Precondition: table must have passed Validate; src must be non-nil.
func NewGenerator(table LootTable, src dice.Source) *Generator {
	return &Generator{table: table, src: src, now: time.Now}
}

// FightRewards returns the reward record of a fight. A lost fight yields a
// record with Won=false and nothing granted.
//
// Postcondition: Returns a non-nil Result with a fresh ID.
func (g *Generator) FightRewards(won bool) *Result {
	res := &Result{ID: uuid.NewString(), Won: won, CreatedAt: g.now()}
	if !won {
		return res
	}

	if c := g.table.Currency; c != nil && c.Max > 0 {
		res.Currency = c.Min + g.src.Intn(c.Max-c.Min+1)
	}
	for _, drop := range g.table.Items {
		if g.src.Float64() >= drop.Chance {
			continue
		}
		res.Items = append(res.Items, Item{
			ItemID:     drop.ItemID,
			InstanceID: uuid.NewString(),
			Quantity:   drop.MinQty + g.src.Intn(drop.MaxQty-drop.MinQty+1),
		})
	}
	return res
}
