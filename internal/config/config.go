// Package config loads service configuration from the environment, with
// an optional .env file for development.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config is the full service configuration.
type Config struct {
	Port string `env:"PORT" envDefault:"8080"`

	// DatabaseURL selects the PostgreSQL item store; empty falls back to
	// in-memory.
	DatabaseURL string `env:"DATABASE_URL"`

	// RedisURL selects the Redis KV adapter; empty falls back to the
	// in-memory TTL cache.
	RedisURL string `env:"REDIS_URL"`

	// UpstreamURL is the catalog proxy used to seed an empty store and
	// to source the online counter. Optional.
	UpstreamURL string `env:"CATALOG_UPSTREAM_URL"`

	Admin Admin
	Trade Trade
}

// Admin holds the credentials for the admin CRUD surface.
type Admin struct {
	Username string `env:"ADMIN_USERNAME" envDefault:"admin"`
	Password string `env:"ADMIN_PASSWORD,notEmpty"`
	Role     string `env:"ADMIN_ROLE" envDefault:"Full Admin"`
}

// Trade holds the trade engine policy switches.
type Trade struct {
	// MergePolicy is "append" (default) or "merge".
	MergePolicy string `env:"TRADE_MERGE_POLICY" envDefault:"append"`

	// StrictFairBand switches the fair-band comparison from <= to <.
	StrictFairBand bool `env:"TRADE_FAIR_BAND_STRICT" envDefault:"false"`
}

// Load reads configuration from the environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("env.Parse: %w", err)
	}

	if cfg.Trade.MergePolicy != "append" && cfg.Trade.MergePolicy != "merge" {
		return Config{}, fmt.Errorf("config: TRADE_MERGE_POLICY must be append or merge, got %q", cfg.Trade.MergePolicy)
	}
	return cfg, nil
}
