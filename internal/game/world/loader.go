package world

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// yamlLevelFile is the top-level YAML structure of a level file.
type yamlLevelFile struct {
	Level yamlLevel `yaml:"level"`
}

type yamlLevel struct {
	Number  int          `yaml:"number"`
	Name    string       `yaml:"name"`
	Sectors []yamlSector `yaml:"sectors"`
}

type yamlSector struct {
	X    int    `yaml:"x"`
	Y    int    `yaml:"y"`
	Name string `yaml:"name"`
}

// LoadLevelFromBytes parses and validates a level from YAML bytes.
//
// Postcondition: Returns a validated Level or a non-nil error.
func LoadLevelFromBytes(data []byte) (*Level, error) {
	var file yamlLevelFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing level YAML: %w", err)
	}

	level := &Level{Number: file.Level.Number, Name: file.Level.Name}
	for _, ys := range file.Level.Sectors {
		pos := Position{Level: level.Number, X: ys.X, Y: ys.Y}
		level.Sectors = append(level.Sectors, &Sector{
			Position: pos,
			Name:     strings.TrimSpace(ys.Name),
			Control:  NewControl(pos),
		})
	}
	if err := level.Validate(); err != nil {
		return nil, fmt.Errorf("validating level: %w", err)
	}
	return level, nil
}

// LoadLevelsFromDir loads every .yaml/.yml file in dir as a level.
//
// Postcondition: Returns at least one validated level or an error.
func LoadLevelsFromDir(dir string) ([]*Level, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading level directory %s: %w", dir, err)
	}

	var levels []*Level
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || (!strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml")) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("reading level file %s: %w", name, err)
		}
		level, err := LoadLevelFromBytes(data)
		if err != nil {
			return nil, fmt.Errorf("loading level from %s: %w", name, err)
		}
		levels = append(levels, level)
	}

	if len(levels) == 0 {
		return nil, fmt.Errorf("no level files found in %s", dir)
	}
	return levels, nil
}
