// Package config loads the bridge configuration from the environment. A
// local .env file is honored when present; real deployments supply plain
// environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds everything the bridge needs from the environment.
type Config struct {
	Host string `env:"HOST" envDefault:"0.0.0.0"`
	Port int    `env:"PORT" envDefault:"8080"`

	// OAuth application credentials registered with Patreon.
	PatreonClientID     string `env:"PATREON_CLIENT_ID,required"`
	PatreonClientSecret string `env:"PATREON_CLIENT_SECRET,required"`
	RedirectURI         string `env:"PATREON_REDIRECT_URI,required"`

	// Scopes requested on the authorization URL, space separated.
	Scopes []string `env:"PATREON_SCOPES" envSeparator:" "`

	// RedisURL selects the shared store backend. Empty means the bridge
	// runs on the process-local store only.
	RedisURL string `env:"REDIS_URL"`

	// SessionTTL bounds how long a pending session is pollable.
	SessionTTL time.Duration `env:"SESSION_TTL" envDefault:"15m"`

	// StaleWindow bounds the state-token age accepted on callbacks.
	StaleWindow time.Duration `env:"STATE_STALE_WINDOW" envDefault:"30m"`

	// ProviderTimeout bounds the outbound token-endpoint call.
	ProviderTimeout time.Duration `env:"PROVIDER_TIMEOUT" envDefault:"10s"`

	// CodeFallback enables storing the raw authorization code when the
	// server-side exchange fails.
	CodeFallback bool `env:"CODE_FALLBACK" envDefault:"true"`

	// SweepInterval is the periodic sweep cadence.
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"5m"`

	// AdminSecret signs maintenance tokens.
	AdminSecret string `env:"ADMIN_SECRET" envDefault:"development-secret-change-in-production"`
}

// Load reads the configuration from the environment, honoring a local
// .env file when present.
func Load() (*Config, error) {
	// Missing .env is the normal production case.
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return &cfg, nil
}
