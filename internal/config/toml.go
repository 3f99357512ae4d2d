// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	API   APIConfig   `toml:"api"`
	Store StoreConfig `toml:"store"`
	Log   LogConfig   `toml:"log"`
	Game  GameConfig  `toml:"game"`
}

// APIConfig maps game service settings.
type APIConfig struct {
	BaseURL *string   `toml:"base_url"`
	Timeout *Duration `toml:"timeout"`
	RPS     *float64  `toml:"rps"`
}

// StoreConfig maps local persistence settings.
type StoreConfig struct {
	Backend   *string `toml:"backend"`
	Path      *string `toml:"path"`
	RedisAddr *string `toml:"redis_addr"`
	RedisDB   *int    `toml:"redis_db"`
}

// LogConfig maps logging settings.
type LogConfig struct {
	Level *string `toml:"level"`
	File  *string `toml:"file"`
}

// GameConfig maps game settings.
type GameConfig struct {
	Timezone *string `toml:"timezone"`
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
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}
