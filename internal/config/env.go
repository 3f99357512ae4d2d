package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment variable read by EnvConfig.
const EnvPrefix = "STOCKLE_"

// EnvConfig holds settings read from the environment. Empty means unset.
type EnvConfig struct {
	APIURL       string `env:"API_URL"`
	StoreBackend string `env:"STORE_BACKEND"`
	RedisAddr    string `env:"REDIS_ADDR"`
	LogLevel     string `env:"LOG_LEVEL"`
	Timezone     string `env:"TIMEZONE"`
}

// LoadEnv loads the given .env files, skipping missing ones, and parses the
// STOCKLE_ variables. Variables already set in the process win over files.
func LoadEnv(dotenvPaths ...string) (EnvConfig, error) {
	for _, path := range dotenvPaths {
		if path == "" {
			continue
		}
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return EnvConfig{}, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	return parseEnv(nil)
}

func parseEnv(environ map[string]string) (EnvConfig, error) {
	opts := env.Options{Prefix: EnvPrefix}
	if environ != nil {
		opts.Environment = environ
	}
	var cfg EnvConfig
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return EnvConfig{}, fmt.Errorf("failed to parse environment: %w", err)
	}
	return cfg, nil
}
