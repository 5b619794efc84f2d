package gameserver

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/fightloop/internal/config"
	"github.com/cory-johannsen/fightloop/internal/game/dice"
	"github.com/cory-johannsen/fightloop/internal/game/fight"
	"github.com/cory-johannsen/fightloop/internal/game/formula"
	"github.com/cory-johannsen/fightloop/internal/game/npc"
	"github.com/cory-johannsen/fightloop/internal/game/reward"
	"github.com/cory-johannsen/fightloop/internal/game/world"
	"github.com/cory-johannsen/fightloop/internal/scripting"
)

// Content is everything a FightService needs that comes from content files.
type Content struct {
	World     *world.Manager
	Templates *npc.Registry
	Loot      reward.LootTable
	Formulas  fight.Formulas
	// Scripts is nil when scripting is disabled.
	Scripts *scripting.Manager
}

// Close releases the Lua VMs, if any.
func (c *Content) Close() {
	if c.Scripts != nil {
		c.Scripts.Close()
	}
}

// FormulaSettings converts the fight config into formula settings.
func FormulaSettings(f config.FightConfig) formula.Settings {
	return formula.Settings{
		PlayerAttackInterval: f.PlayerAttackInterval,
		PlayerBaseAttack:     f.PlayerBaseAttack,
		MinDamage:            f.MinDamage,
		MinAttackInterval:    f.MinAttackInterval,
	}
}

// LoadContent loads sectors, enemy templates, loot, formula profiles and
// formula scripts as named by cfg.
//
// Precondition: cfg must have passed Validate; roller and logger must be non-nil.
// Postcondition: Returns fully wired Content or a non-nil error.
func LoadContent(cfg config.Config, roller *dice.Roller, logger *zap.Logger) (*Content, error) {
	if roller == nil || logger == nil {
		panic("gameserver.LoadContent: roller and logger must not be nil")
	}

	worldStart := time.Now()
	levels, err := world.LoadLevelsFromDir(cfg.Content.SectorsDir)
	if err != nil {
		return nil, fmt.Errorf("loading sectors: %w", err)
	}
	worldMgr, err := world.NewManager(levels)
	if err != nil {
		return nil, fmt.Errorf("creating world manager: %w", err)
	}
	logger.Info("world loaded",
		zap.Int("levels", worldMgr.LevelCount()),
		zap.Int("sectors", worldMgr.SectorCount()),
		zap.Duration("elapsed", time.Since(worldStart)),
	)

	templates, err := npc.LoadTemplates(cfg.Content.EnemiesDir)
	if err != nil {
		return nil, fmt.Errorf("loading enemy templates: %w", err)
	}
	registry, err := npc.NewRegistry(templates)
	if err != nil {
		return nil, fmt.Errorf("registering enemy templates: %w", err)
	}
	logger.Info("loaded enemy templates", zap.Int("count", registry.Len()))

	var loot reward.LootTable
	if cfg.Content.LootFile != "" {
		loot, err = reward.LoadLootTable(cfg.Content.LootFile)
		if err != nil {
			return nil, err
		}
		logger.Info("loaded loot table",
			zap.String("file", cfg.Content.LootFile),
			zap.Int("items", len(loot.Items)),
		)
	}

	profiles := formula.DefaultProfiles()
	if cfg.Content.ProfilesFile != "" {
		profiles, err = formula.LoadProfiles(cfg.Content.ProfilesFile)
		if err != nil {
			return nil, err
		}
		logger.Info("loaded formula profiles",
			zap.String("file", cfg.Content.ProfilesFile),
			zap.Int("count", len(profiles)),
		)
	}

	c := &Content{World: worldMgr, Templates: registry, Loot: loot}
	provider := formula.NewProvider(FormulaSettings(cfg.Fight), profiles, roller)
	c.Formulas = provider

	if cfg.Content.ScriptDir != "" {
		scriptStart := time.Now()
		scripts := scripting.NewManager(roller, logger)
		if err := scripts.LoadTree(cfg.Content.ScriptDir, cfg.Content.ScriptInstructionLimit); err != nil {
			scripts.Close()
			return nil, fmt.Errorf("loading formula scripts: %w", err)
		}
		c.Scripts = scripts
		c.Formulas = formula.NewScripted(provider, scripts, cfg.Fight.MinAttackInterval)
		logger.Info("scripting engine initialized",
			zap.String("dir", cfg.Content.ScriptDir),
			zap.Duration("elapsed", time.Since(scriptStart)),
		)
	}
	return c, nil
}

// NewPlayer returns a player record at full hp with no equipment.
func NewPlayer(id string) *fight.Player {
	return &fight.Player{ID: id, HP: fight.FullHP}
}
