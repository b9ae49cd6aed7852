// Package config provides Viper-based configuration management for inkpot
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete inkpot configuration
type Config struct {
	Content   ContentConfig   `mapstructure:"content"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Sync      SyncConfig      `mapstructure:"sync"`
	Watch     WatchConfig     `mapstructure:"watch"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
	Migrate   MigrateConfig   `mapstructure:"migrate"`
	Log       LogConfig       `mapstructure:"log"`
}

// ContentConfig locates the content tree
type ContentConfig struct {
	Root string `mapstructure:"root"`
}

// DatabaseConfig contains SQLite settings
type DatabaseConfig struct {
	Path         string        `mapstructure:"path"`
	MaxOpenConns int           `mapstructure:"max_open_conns"`
	BusyTimeout  time.Duration `mapstructure:"busy_timeout"`
}

// SyncConfig contains sync engine settings
type SyncConfig struct {
	Workers int `mapstructure:"workers"`
}

// WatchConfig contains change watcher settings
type WatchConfig struct {
	Debounce    time.Duration `mapstructure:"debounce"`
	InitialSync bool          `mapstructure:"initial_sync"`
}

// DashboardConfig contains dashboard server settings
type DashboardConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
}

// MigrateConfig controls migrations run by other commands
type MigrateConfig struct {
	// Auto runs a migration before sync and watch.
	Auto bool `mapstructure:"auto"`
}

// LogConfig contains log output settings. An empty File logs to stderr only.
type LogConfig struct {
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// Load reads configuration from file and environment variables.
// cfgFile may be empty, in which case inkpot.yaml is searched for in the
// working directory and $HOME/.config/inkpot.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("inkpot")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/inkpot")
	}

	// INKPOT_DATABASE_PATH overrides database.path, and so on.
	v.SetEnvPrefix("INKPOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("content.root", "content")

	v.SetDefault("database.path", ".inkpot/inkpot.db")
	v.SetDefault("database.max_open_conns", 8)
	v.SetDefault("database.busy_timeout", 5*time.Second)

	v.SetDefault("sync.workers", 1)

	v.SetDefault("watch.debounce", 150*time.Millisecond)
	v.SetDefault("watch.initial_sync", true)

	v.SetDefault("dashboard.enabled", false)
	v.SetDefault("dashboard.host", "")
	v.SetDefault("dashboard.port", 8080)

	v.SetDefault("migrate.auto", true)

	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)
	v.SetDefault("log.compress", false)
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.Content.Root == "" {
		return errors.New("content.root must not be empty")
	}
	if c.Database.Path == "" {
		return errors.New("database.path must not be empty")
	}
	if c.Database.MaxOpenConns < 1 {
		return fmt.Errorf("database.max_open_conns must be at least 1, got %d", c.Database.MaxOpenConns)
	}
	if c.Sync.Workers < 1 {
		return fmt.Errorf("sync.workers must be at least 1, got %d", c.Sync.Workers)
	}
	if c.Watch.Debounce <= 0 {
		return fmt.Errorf("watch.debounce must be positive, got %s", c.Watch.Debounce)
	}
	if c.Dashboard.Port < 0 || c.Dashboard.Port > 65535 {
		return fmt.Errorf("dashboard.port out of range: %d", c.Dashboard.Port)
	}
	if c.Log.File != "" && c.Log.MaxSizeMB < 1 {
		return fmt.Errorf("log.max_size_mb must be at least 1, got %d", c.Log.MaxSizeMB)
	}
	return nil
}
