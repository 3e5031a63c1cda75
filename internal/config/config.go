// Package config loads service settings from the environment with
// sane defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// envPrefix namespaces the service's environment variables, e.g.
// XOVER_DATABASE_URL, XOVER_HTTP_ADDR.
const envPrefix = "XOVER_"

// Config holds all service settings.
type Config struct {
	DatabaseURL string
	HTTPAddr    string
	LogLevel    string
	LogFormat   string

	ShutdownTimeout time.Duration
	QueryTimeout    time.Duration

	// CrossoverRangeMeters is the default match distance for crossover
	// searches when the caller does not give one.
	CrossoverRangeMeters float64

	// CrossoverMinDepth restricts crossover reports to deep-water
	// samples; profiles shallower than this carry too much seasonal
	// variability to compare expeditions against each other.
	CrossoverMinDepth float64
}

func defaults() map[string]any {
	return map[string]any{
		"database_url":           "",
		"http_addr":              ":8080",
		"log_level":              "info",
		"log_format":             "json",
		"shutdown_timeout":       "10s",
		"query_timeout":          "60s",
		"crossover_range_meters": 200_000.0,
		"crossover_min_depth":    1000.0,
	}
}

// Load reads configuration from XOVER_-prefixed environment variables,
// applying defaults where unset, and validates the result.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{
		DatabaseURL:          k.String("database_url"),
		HTTPAddr:             k.String("http_addr"),
		LogLevel:             k.String("log_level"),
		LogFormat:            k.String("log_format"),
		ShutdownTimeout:      k.Duration("shutdown_timeout"),
		QueryTimeout:         k.Duration("query_timeout"),
		CrossoverRangeMeters: k.Float64("crossover_range_meters"),
		CrossoverMinDepth:    k.Float64("crossover_min_depth"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return errors.New("XOVER_DATABASE_URL is required")
	}
	if c.HTTPAddr == "" {
		return errors.New("XOVER_HTTP_ADDR must not be empty")
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("XOVER_SHUTDOWN_TIMEOUT must be positive")
	}
	if c.QueryTimeout <= 0 {
		return errors.New("XOVER_QUERY_TIMEOUT must be positive")
	}
	if c.CrossoverRangeMeters <= 0 {
		return errors.New("XOVER_CROSSOVER_RANGE_METERS must be positive")
	}
	if c.CrossoverMinDepth < 0 {
		return errors.New("XOVER_CROSSOVER_MIN_DEPTH must not be negative")
	}
	return nil
}
