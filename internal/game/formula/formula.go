// Package formula computes fight damage and attack intervals from the combat
// stats of the enemy and the player's equipment, tuned per enemy kind.
package formula

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/fightloop/internal/game/dice"
	"github.com/cory-johannsen/fightloop/internal/game/fight"
)

// DefaultKind names the profile used for enemy kinds without their own.
const DefaultKind = "default"

// Profile tunes the formulas for one enemy kind.
type Profile struct {
	// AttackInterval is the enemy's seconds between attacks at speed 1.
	AttackInterval float64 `yaml:"attack_interval"`
	// Vulnerability scales the damage the player deals to this kind.
	Vulnerability float64 `yaml:"vulnerability"`
	// RandomDamage is a dice expression rolled for the enemy's extra damage. Empty means none.
	RandomDamage string `yaml:"random_damage"`

	expr *dice.Expression
}

// Validate checks the profile and parses its dice expression.
func (p *Profile) Validate() error {
	if p.AttackInterval <= 0 {
		return fmt.Errorf("attack_interval must be > 0, got %g", p.AttackInterval)
	}
	if p.Vulnerability < 0 {
		return fmt.Errorf("vulnerability must be >= 0, got %g", p.Vulnerability)
	}
	p.expr = nil
	if p.RandomDamage != "" {
		expr, err := dice.Parse(p.RandomDamage)
		if err != nil {
			return fmt.Errorf("random_damage: %w", err)
		}
		p.expr = &expr
	}
	return nil
}

// Profiles maps enemy kind to profile. It must contain DefaultKind.
type Profiles map[string]*Profile

// Validate checks every profile and the presence of the default.
func (ps Profiles) Validate() error {
	if _, ok := ps[DefaultKind]; !ok {
		return fmt.Errorf("profiles: %q profile is required", DefaultKind)
	}
	for kind, p := range ps {
		if p == nil {
			return fmt.Errorf("profiles: %q is empty", kind)
		}
		if err := p.Validate(); err != nil {
			return fmt.Errorf("profiles: %q: %w", kind, err)
		}
	}
	return nil
}

type profilesFile struct {
	Profiles Profiles `yaml:"profiles"`
}

// LoadProfiles reads and validates a YAML file of the form
//
//	profiles:
//	  default: {attack_interval: 3, vulnerability: 1, random_damage: 1d4-1}
func LoadProfiles(path string) (Profiles, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading profiles %q: %w", path, err)
	}
	var f profilesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing profiles %q: %w", path, err)
	}
	if err := f.Profiles.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f.Profiles, nil
}

// DefaultProfiles returns the built-in profile set used when no file is configured.
func DefaultProfiles() Profiles {
	ps := Profiles{
		DefaultKind: {AttackInterval: 3, Vulnerability: 1, RandomDamage: "1d4-1"},
	}
	if err := ps.Validate(); err != nil {
		panic("formula.DefaultProfiles: " + err.Error())
	}
	return ps
}

// Settings holds the player-side constants of the formulas.
type Settings struct {
	PlayerAttackInterval float64
	PlayerBaseAttack     float64
	MinDamage            float64
	MinAttackInterval    float64
}

// Provider implements fight.Formulas.
type Provider struct {
	settings Settings
	profiles Profiles
	roller   *dice.Roller
}

var _ fight.Formulas = (*Provider)(nil)

// NewProvider returns a Provider.
//
// Precondition: profiles must have passed Validate; roller must be non-nil.
func NewProvider(s Settings, profiles Profiles, roller *dice.Roller) *Provider {
	if roller == nil {
		panic("formula.NewProvider: roller must not be nil")
	}
	if _, ok := profiles[DefaultKind]; !ok {
		panic("formula.NewProvider: profiles must contain the default profile")
	}
	return &Provider{settings: s, profiles: profiles, roller: roller}
}

// Profile returns the profile for kind, falling back to the default.
func (p *Provider) Profile(kind string) *Profile {
	if prof, ok := p.profiles[kind]; ok {
		return prof
	}
	return p.profiles[DefaultKind]
}

// PlayerAttackInterval shortens the base interval by equipment speed.
func (p *Provider) PlayerAttackInterval(pl *fight.Player) float64 {
	interval := p.settings.PlayerAttackInterval / (1 + math.Max(pl.Equipment.Speed, 0))
	return math.Max(p.settings.MinAttackInterval, interval)
}

// EnemyAttackInterval divides the kind's interval by the enemy's speed.
// A speed <= 0 counts as 1.
func (p *Provider) EnemyAttackInterval(e *fight.Enemy) float64 {
	speed := e.Speed
	if speed <= 0 {
		speed = 1
	}
	return math.Max(p.settings.MinAttackInterval, p.Profile(e.Kind).AttackInterval/speed)
}

// EnemyDamage is the damage the player deals to the enemy.
func (p *Provider) EnemyDamage(e *fight.Enemy, pl *fight.Player) float64 {
	attack := (p.settings.PlayerBaseAttack + pl.Equipment.Attack) * p.Profile(e.Kind).Vulnerability
	return math.Max(p.settings.MinDamage, attack-e.Defence/2)
}

// PlayerDamage is the damage the enemy deals to the player.
func (p *Provider) PlayerDamage(e *fight.Enemy, pl *fight.Player) float64 {
	return math.Max(p.settings.MinDamage, e.Attack-pl.Equipment.Defence/2)
}

// PlayerRandomDamage rolls the kind's random damage expression.
func (p *Provider) PlayerRandomDamage(e *fight.Enemy, _ *fight.Player) float64 {
	prof := p.Profile(e.Kind)
	if prof.expr == nil {
		return 0
	}
	return math.Max(0, float64(p.roller.Roll(*prof.expr).Total()))
}
