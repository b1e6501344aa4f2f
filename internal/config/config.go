package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all copperline configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Decay    DecayConfig    `toml:"decay"`
}

type ServerConfig struct {
	Bind string `toml:"bind" env:"COPPERLINE_BIND"`
	Port int    `toml:"port" env:"COPPERLINE_PORT"`
}

type DatabaseConfig struct {
	Path string `toml:"path" env:"COPPERLINE_DB"`
}

type DecayConfig struct {
	// Interval between background decay passes.
	Interval time.Duration `toml:"interval" env:"COPPERLINE_DECAY_INTERVAL"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 37810,
		},
		Database: DatabaseConfig{
			Path: "", // resolved at runtime via store.DefaultDBPath()
		},
		Decay: DecayConfig{
			Interval: 5 * time.Minute,
		},
	}
}

// Load returns the defaults with environment-variable overrides applied.
func Load() (Config, error) {
	cfg := Default()
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}
