// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	API       APIConfig       `toml:"api"`
	Dashboard DashboardConfig `toml:"dashboard"`
	Login     LoginConfig     `toml:"login"`
	Log       LogConfig       `toml:"log"`
}

// APIConfig maps backend connection settings.
type APIConfig struct {
	BaseURL *string `toml:"base-url"`
	Timeout *int    `toml:"timeout"`
}

// DashboardConfig maps dashboard defaults.
type DashboardConfig struct {
	ValidateYears *bool `toml:"validate-years"`
}

// LoginConfig maps the login screen settings.
type LoginConfig struct {
	TestCredentials *bool   `toml:"test-credentials"`
	TestUsername    *string `toml:"test-username"`
	TestPassword    *string `toml:"test-password"`
}

// LogConfig maps logging settings.
type LogConfig struct {
	File  *string `toml:"file"`
	Level *string `toml:"level"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return FileConfig{}, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}
	if cfg.API.Timeout != nil && *cfg.API.Timeout < 0 {
		return FileConfig{}, fmt.Errorf("api.timeout must be >= 0")
	}
	return cfg, nil
}
