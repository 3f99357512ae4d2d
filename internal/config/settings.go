package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Store backends.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Duration is a time.Duration written as a string such as "10s" in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = v
	return nil
}

// Settings is the resolved configuration.
type Settings struct {
	APIURL     string
	APITimeout time.Duration
	RPS        float64

	StoreBackend string
	StorePath    string
	RedisAddr    string
	RedisDB      int

	LogLevel string
	LogFile  string

	Timezone string
}

// Defaults returns the built-in settings.
func Defaults() Settings {
	return Settings{
		APIURL:       "http://localhost:8080",
		APITimeout:   10 * time.Second,
		RPS:          5,
		StoreBackend: BackendSQLite,
		StorePath:    DefaultDBPath(),
		RedisAddr:    "localhost:6379",
		LogLevel:     "info",
		LogFile:      DefaultLogPath(),
		Timezone:     "Local",
	}
}

// Validate checks the settings. Messages name the matching flag.
func (s Settings) Validate() error {
	u, err := url.Parse(s.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("--api-url must be an http(s) URL, got %q", s.APIURL)
	}
	if s.APITimeout <= 0 {
		return fmt.Errorf("--timeout must be > 0")
	}
	if s.RPS <= 0 {
		return fmt.Errorf("--rps must be > 0")
	}
	switch s.StoreBackend {
	case BackendSQLite:
		if s.StorePath == "" {
			return fmt.Errorf("--db must not be empty")
		}
	case BackendRedis:
		if s.RedisAddr == "" {
			return fmt.Errorf("--redis-addr must not be empty")
		}
		if s.RedisDB < 0 {
			return fmt.Errorf("--redis-db must be >= 0")
		}
	default:
		return fmt.Errorf("--store must be %q or %q, got %q", BackendSQLite, BackendRedis, s.StoreBackend)
	}
	if _, err := s.Location(); err != nil {
		return fmt.Errorf("--timezone: %w", err)
	}
	return nil
}

// Location returns the timezone used to decide the calendar day.
func (s Settings) Location() (*time.Location, error) {
	if s.Timezone == "" || s.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %q: %w", s.Timezone, err)
	}
	return loc, nil
}
