// Package config provides Viper-based configuration loading for the fight server.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// DSN returns the PostgreSQL connection string.
//
// Precondition: Host, Port, User, and Name must be non-empty.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
	// Service is attached to every log entry as the "service" field.
	Service string `mapstructure:"service"`
	// Output is "stderr", "stdout" or a file path the log is appended to.
	Output string `mapstructure:"output"`
}

// FightConfig holds the tuning of the real-time fight loop.
type FightConfig struct {
	// FrameInterval is how often the frame ticker advances the active fight.
	FrameInterval time.Duration `mapstructure:"frame_interval"`
	// PlayerAttackInterval is the player's base seconds between attacks before equipment speed.
	PlayerAttackInterval float64 `mapstructure:"player_attack_interval"`
	// PlayerBaseAttack is the player's unarmed attack value.
	PlayerBaseAttack float64 `mapstructure:"player_base_attack"`
	// MinDamage is the floor of every deterministic damage formula.
	MinDamage float64 `mapstructure:"min_damage"`
	// MinAttackInterval is the floor of every attack interval.
	MinAttackInterval float64 `mapstructure:"min_attack_interval"`
}

// ContentConfig points at the YAML and Lua content directories.
type ContentConfig struct {
	EnemiesDir string `mapstructure:"enemies_dir"`
	SectorsDir string `mapstructure:"sectors_dir"`
	LootFile   string `mapstructure:"loot_file"`

	// ProfilesFile holds per-kind formula profiles. Empty uses the built-in default.
	ProfilesFile string `mapstructure:"profiles_file"`
	// ScriptDir holds formula override scripts. Empty disables scripting.
	ScriptDir string `mapstructure:"script_dir"`
	// ScriptInstructionLimit caps Lua opcodes per hook call. 0 uses the scripting default.
	ScriptInstructionLimit int `mapstructure:"script_instruction_limit"`
}

// GameServerConfig holds the gRPC listener settings of the game server.
type GameServerConfig struct {
	GRPCHost string `mapstructure:"grpc_host"`
	GRPCPort int    `mapstructure:"grpc_port"`
}

// Addr returns the "host:port" gRPC address.
func (g GameServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", g.GRPCHost, g.GRPCPort)
}

// Config is the top-level application configuration.
type Config struct {
	Database   DatabaseConfig   `mapstructure:"database"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Fight      FightConfig      `mapstructure:"fight"`
	Content    ContentConfig    `mapstructure:"content"`
	GameServer GameServerConfig `mapstructure:"gameserver"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string
	for _, check := range []func() error{
		func() error { return validateDatabase(c.Database) },
		func() error { return validateLogging(c.Logging) },
		func() error { return validateFight(c.Fight) },
		func() error { return validateContent(c.Content) },
		func() error { return validateGameServer(c.GameServer) },
	} {
		if err := check(); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func joinErrs(errs []string) error {
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%s", strings.Join(errs, "; "))
}

func validateDatabase(d DatabaseConfig) error {
	var errs []string
	if d.Host == "" {
		errs = append(errs, "database.host must not be empty")
	}
	if d.Port < 1 || d.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", d.Port))
	}
	if d.User == "" {
		errs = append(errs, "database.user must not be empty")
	}
	if d.Name == "" {
		errs = append(errs, "database.name must not be empty")
	}
	validSSL := map[string]bool{"disable": true, "require": true, "verify-ca": true, "verify-full": true}
	if !validSSL[d.SSLMode] {
		errs = append(errs, fmt.Sprintf("database.sslmode must be one of [disable, require, verify-ca, verify-full], got %q", d.SSLMode))
	}
	if d.MaxConns < 1 {
		errs = append(errs, fmt.Sprintf("database.max_conns must be >= 1, got %d", d.MaxConns))
	}
	if d.MinConns < 0 || d.MinConns > d.MaxConns {
		errs = append(errs, fmt.Sprintf("database.min_conns must be in [0, max_conns], got %d", d.MinConns))
	}
	return joinErrs(errs)
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

func validateFight(f FightConfig) error {
	var errs []string
	if f.FrameInterval <= 0 {
		errs = append(errs, fmt.Sprintf("fight.frame_interval must be > 0, got %s", f.FrameInterval))
	}
	if f.PlayerAttackInterval <= 0 {
		errs = append(errs, fmt.Sprintf("fight.player_attack_interval must be > 0, got %g", f.PlayerAttackInterval))
	}
	if f.PlayerBaseAttack < 0 {
		errs = append(errs, fmt.Sprintf("fight.player_base_attack must be >= 0, got %g", f.PlayerBaseAttack))
	}
	if f.MinDamage < 0 {
		errs = append(errs, fmt.Sprintf("fight.min_damage must be >= 0, got %g", f.MinDamage))
	}
	if f.MinAttackInterval <= 0 {
		errs = append(errs, fmt.Sprintf("fight.min_attack_interval must be > 0, got %g", f.MinAttackInterval))
	}
	return joinErrs(errs)
}

func validateContent(c ContentConfig) error {
	var errs []string
	if c.EnemiesDir == "" {
		errs = append(errs, "content.enemies_dir must not be empty")
	}
	if c.SectorsDir == "" {
		errs = append(errs, "content.sectors_dir must not be empty")
	}
	if c.ScriptInstructionLimit < 0 {
		errs = append(errs, fmt.Sprintf("content.script_instruction_limit must be >= 0, got %d", c.ScriptInstructionLimit))
	}
	return joinErrs(errs)
}

func validateGameServer(g GameServerConfig) error {
	var errs []string
	if g.GRPCHost == "" {
		errs = append(errs, "gameserver.grpc_host must not be empty")
	}
	if g.GRPCPort < 1 || g.GRPCPort > 65535 {
		errs = append(errs, fmt.Sprintf("gameserver.grpc_port must be 1-65535, got %d", g.GRPCPort))
	}
	return joinErrs(errs)
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// FIGHT_FIGHT_FRAME_INTERVAL overrides fight.frame_interval, and so on.
	v.SetEnvPrefix("FIGHT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	return LoadFromViper(v)
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// SetDefaults installs the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "fight")
	v.SetDefault("database.password", "fight")
	v.SetDefault("database.name", "fight")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.service", "fightloop")
	v.SetDefault("logging.output", "stderr")

	v.SetDefault("fight.frame_interval", "100ms")
	v.SetDefault("fight.player_attack_interval", 2.0)
	v.SetDefault("fight.player_base_attack", 5.0)
	v.SetDefault("fight.min_damage", 1.0)
	v.SetDefault("fight.min_attack_interval", 0.25)

	v.SetDefault("content.enemies_dir", "content/enemies")
	v.SetDefault("content.sectors_dir", "content/sectors")
	v.SetDefault("content.loot_file", "content/loot.yaml")
	v.SetDefault("content.profiles_file", "")
	v.SetDefault("content.script_dir", "")
	v.SetDefault("content.script_instruction_limit", 0)

	v.SetDefault("gameserver.grpc_host", "127.0.0.1")
	v.SetDefault("gameserver.grpc_port", 50061)
}
