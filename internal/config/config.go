// Package config reads process-level settings from the environment.
// Provider settings live in the settings database, not here.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/rs/zerolog"
)

const appName = "nogologo"

type Config struct {
	ConfigDir   string        `env:"NOGOLOGO_CONFIG_DIR"`
	LibraryDir  string        `env:"NOGOLOGO_LIBRARY_DIR"`
	Album       string        `env:"NOGOLOGO_ALBUM" envDefault:"NoGoLogo"`
	HTTPTimeout time.Duration `env:"NOGOLOGO_HTTP_TIMEOUT" envDefault:"60s"`
	LogLevel    string        `env:"NOGOLOGO_LOG_LEVEL" envDefault:"warn"`
	MetricsFile string        `env:"NOGOLOGO_METRICS_FILE"`
}

// Load parses the process environment.
func Load() (*Config, error) {
	return LoadWithOptions(env.Options{})
}

// LoadWithOptions parses with explicit env options. Tests pass Environment.
func LoadWithOptions(opts env.Options) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if cfg.ConfigDir == "" {
		dir, err := defaultConfigDir(opts.Environment)
		if err != nil {
			return nil, err
		}
		cfg.ConfigDir = dir
	}
	if cfg.LibraryDir == "" {
		cfg.LibraryDir = filepath.Join(cfg.ConfigDir, "library")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("NOGOLOGO_HTTP_TIMEOUT must be positive, got %s", c.HTTPTimeout)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	if strings.TrimSpace(c.Album) == "" {
		return errors.New("NOGOLOGO_ALBUM must not be empty")
	}
	return nil
}

func (c *Config) Level() (zerolog.Level, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("invalid NOGOLOGO_LOG_LEVEL %q: %w", c.LogLevel, err)
	}
	return level, nil
}

func (c *Config) KeysPath() string {
	return filepath.Join(c.ConfigDir, "keys.json")
}

func (c *Config) SettingsDBPath() string {
	return filepath.Join(c.ConfigDir, "settings.db")
}

// defaultConfigDir returns the platform-specific config directory. lookup
// overrides the process environment when non-nil.
func defaultConfigDir(lookup map[string]string) (string, error) {
	getenv := os.Getenv
	if lookup != nil {
		getenv = func(k string) string { return lookup[k] }
	}

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, "Library", "Application Support", appName), nil
	case "windows":
		appData := getenv("APPDATA")
		if appData == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		return filepath.Join(appData, appName), nil
	default: // linux and others
		// Follow XDG Base Directory Specification
		configHome := getenv("XDG_CONFIG_HOME")
		if configHome == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configHome = filepath.Join(home, ".config")
		}
		return filepath.Join(configHome, appName), nil
	}
}
