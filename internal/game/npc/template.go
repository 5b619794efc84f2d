// Package npc provides enemy template definitions loaded from YAML and spawns
// the enemies of new encounters from them.
package npc

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/fightloop/internal/game/fight"
	"github.com/cory-johannsen/fightloop/internal/game/reward"
)

// Template defines a reusable enemy archetype loaded from YAML.
type Template struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	// Kind selects the formula profile and the Lua hooks; empty uses the default.
	Kind    string  `yaml:"kind"`
	Level   int     `yaml:"level"`
	Attack  float64 `yaml:"attack"`
	Defence float64 `yaml:"defence"`
	Speed   float64 `yaml:"speed"`
	// Loot overrides the global loot table for fights against this template.
	Loot *reward.LootTable `yaml:"loot"`
}

// Validate checks that the template satisfies basic invariants.
//
// Precondition: t must not be nil.
// Postcondition: Returns nil iff ID and Name are non-empty, Level >= 1, Attack,
// Defence and Speed are >= 0 and the loot table, if any, is valid.
func (t *Template) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("enemy template: id must not be empty")
	}
	if t.Name == "" {
		return fmt.Errorf("enemy template %q: name must not be empty", t.ID)
	}
	if t.Level < 1 {
		return fmt.Errorf("enemy template %q: level must be >= 1", t.ID)
	}
	if t.Attack < 0 || t.Defence < 0 || t.Speed < 0 {
		return fmt.Errorf("enemy template %q: attack, defence and speed must be >= 0", t.ID)
	}
	if t.Loot != nil {
		if err := t.Loot.Validate(); err != nil {
			return fmt.Errorf("enemy template %q: %w", t.ID, err)
		}
	}
	return nil
}

// Spawn returns a new enemy of this template at full hp.
func (t *Template) Spawn() *fight.Enemy {
	return &fight.Enemy{
		ID:      t.ID + "-" + uuid.NewString(),
		Name:    t.Name,
		Kind:    t.Kind,
		Level:   t.Level,
		Attack:  t.Attack,
		Defence: t.Defence,
		Speed:   t.Speed,
		HP:      fight.FullHP,
	}
}

// LoadTemplateFromBytes parses a single enemy template from raw YAML bytes.
//
// Postcondition: Returns a validated *Template, or an error.
func LoadTemplateFromBytes(data []byte) (*Template, error) {
	var tmpl Template
	if err := yaml.Unmarshal(data, &tmpl); err != nil {
		return nil, fmt.Errorf("parsing template YAML: %w", err)
	}
	if err := tmpl.Validate(); err != nil {
		return nil, err
	}
	return &tmpl, nil
}

// LoadTemplates reads all *.yaml files in dir and returns the parsed templates.
//
// Precondition: dir must be a readable directory.
// Postcondition: Returns all templates or an error on the first parse or validate
// failure; on error, the partial result is discarded.
func LoadTemplates(dir string) ([]*Template, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading enemy dir %q: %w", dir, err)
	}

	var templates []*Template
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", path, err)
		}

		tmpl, err := LoadTemplateFromBytes(data)
		if err != nil {
			return nil, fmt.Errorf("loading %q: %w", path, err)
		}
		templates = append(templates, tmpl)
	}
	return templates, nil
}
