package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds all grove configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Nudges   NudgeConfig    `yaml:"nudges"`
}

type ServerConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// NudgeConfig is the engine's settings surface: the daily budget, the tick
// interval, the global resurfacing pause, and per-category toggles.
type NudgeConfig struct {
	MaxPerDay             int  `yaml:"max_per_day"`
	ScheduleIntervalHours int  `yaml:"schedule_interval_hours"`
	ResurfacingPaused     bool `yaml:"resurfacing_paused"`

	Resurface        bool `yaml:"resurface"`
	StaleInbox       bool `yaml:"stale_inbox"`
	ConnectionPrompt bool `yaml:"connection_prompt"`
	Streak           bool `yaml:"streak"`
	ContinueCourse   bool `yaml:"continue_course"`
}

// Default returns a Config with sensible defaults: all nudge categories
// enabled, three nudges a day, a tick every four hours.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 37780,
		},
		Database: DatabaseConfig{
			Path: "", // resolved at runtime via store.DefaultDBPath()
		},
		Nudges: NudgeConfig{
			MaxPerDay:             3,
			ScheduleIntervalHours: 4,
			Resurface:             true,
			StaleInbox:            true,
			ConnectionPrompt:      true,
			Streak:                true,
			ContinueCourse:        true,
		},
	}
}

// Load reads a YAML config file over the defaults. A missing file is not
// an error: the defaults stand.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.Nudges.MaxPerDay < 0 {
		return cfg, fmt.Errorf("nudges.max_per_day must be >= 0")
	}
	if cfg.Nudges.ScheduleIntervalHours <= 0 {
		return cfg, fmt.Errorf("nudges.schedule_interval_hours must be > 0")
	}
	return cfg, nil
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}
