package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pelletier/go-toml/v2"
)

// Config holds all tend configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Log      LogConfig      `toml:"log"`
	Sweep    SweepConfig    `toml:"sweep"`
}

type ServerConfig struct {
	Bind string `toml:"bind"`
	Port int    `toml:"port"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type LogConfig struct {
	Level  string `toml:"level"`  // "debug", "info", "warn", "error"
	Format string `toml:"format"` // "text" or "json"
}

type SweepConfig struct {
	IntervalHours int `toml:"interval_hours"` // dormancy sweep cadence
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 37780,
		},
		Database: DatabaseConfig{
			Path: "", // resolved at runtime via store.DefaultDBPath()
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Sweep: SweepConfig{
			IntervalHours: 6,
		},
	}
}

// DefaultPath returns the default config file location: ~/.tend/config.toml
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".tend", "config.toml"), nil
}

// Load reads a TOML config file on top of the defaults. A missing file is
// not an error; defaults apply. Environment overrides run last.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := toml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv overlays TEND_* environment variables onto the config.
func (c *Config) applyEnv() {
	if v := os.Getenv("TEND_BIND"); v != "" {
		c.Server.Bind = v
	}
	if v := os.Getenv("TEND_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("TEND_DB"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("TEND_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("TEND_LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}
