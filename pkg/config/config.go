// Package config centralizes the environment variable loading each
// entrypoint used to do inline with a local getEnv helper, so every
// service entrypoint and the saga watchdog share one source of truth
// instead of redefining the same defaults three times.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds every tunable named in spec section 6.
type Config struct {
	PaginationDefaultLimit int
	PaginationMaxLimit     int
	LateFeePerDay          float64
	SagaStepTimeout        time.Duration
	SagaMaxRetries         int
	EventStoreConnString   string
	EventStoreDB           string
}

// Load reads every variable from the environment, falling back to the
// defaults below the same way a local getEnv helper would for PORT and
// the service URLs.
func Load() (Config, error) {
	cfg := Config{
		PaginationDefaultLimit: 10,
		PaginationMaxLimit:     100,
		LateFeePerDay:          0.2,
		SagaStepTimeout:        30 * time.Second,
		SagaMaxRetries:         3,
		EventStoreConnString:   "mongodb://localhost:27017",
		EventStoreDB:           "libranexus",
	}

	var err error
	if cfg.PaginationDefaultLimit, err = getEnvInt("PAGINATION_DEFAULT_LIMIT", cfg.PaginationDefaultLimit); err != nil {
		return Config{}, err
	}
	if cfg.PaginationMaxLimit, err = getEnvInt("PAGINATION_MAX_LIMIT", cfg.PaginationMaxLimit); err != nil {
		return Config{}, err
	}
	if cfg.LateFeePerDay, err = getEnvFloat64("LATE_FEE_PER_DAY", cfg.LateFeePerDay); err != nil {
		return Config{}, err
	}
	if cfg.SagaStepTimeout, err = getEnvDuration("SAGA_STEP_TIMEOUT", cfg.SagaStepTimeout); err != nil {
		return Config{}, err
	}
	if cfg.SagaMaxRetries, err = getEnvInt("SAGA_MAX_RETRIES", cfg.SagaMaxRetries); err != nil {
		return Config{}, err
	}
	cfg.EventStoreConnString = getEnv("EVENT_STORE_CONN_STRING", cfg.EventStoreConnString)
	cfg.EventStoreDB = getEnv("EVENT_STORE_DB", cfg.EventStoreDB)

	if cfg.PaginationDefaultLimit <= 0 || cfg.PaginationMaxLimit <= 0 {
		return Config{}, fmt.Errorf("config: pagination limits must be positive")
	}
	if cfg.PaginationDefaultLimit > cfg.PaginationMaxLimit {
		return Config{}, fmt.Errorf("config: PAGINATION_DEFAULT_LIMIT (%d) exceeds PAGINATION_MAX_LIMIT (%d)", cfg.PaginationDefaultLimit, cfg.PaginationMaxLimit)
	}

	return cfg, nil
}

// Clamp enforces the allow-list pagination bounds a projection query
// must honor (spec section 4.4): a zero or negative limit falls back to
// the default, and any limit above the configured max is capped.
func (c Config) Clamp(limit int) int {
	if limit <= 0 {
		return c.PaginationDefaultLimit
	}
	if limit > c.PaginationMaxLimit {
		return c.PaginationMaxLimit
	}
	return limit
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	raw, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("config: %s must be an integer, got %q: %w", key, raw, err)
	}
	return v, nil
}

func getEnvFloat64(key string, defaultValue float64) (float64, error) {
	raw, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("config: %s must be a number, got %q: %w", key, raw, err)
	}
	return v, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("config: %s must be a duration, got %q: %w", key, raw, err)
	}
	return v, nil
}
