package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("PATREON_CLIENT_ID", "client-id")
	t.Setenv("PATREON_CLIENT_SECRET", "client-secret")
	t.Setenv("PATREON_REDIRECT_URI", "https://bridge.example.com/oauth/callback")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 15*time.Minute, cfg.SessionTTL)
	assert.Equal(t, 30*time.Minute, cfg.StaleWindow)
	assert.Equal(t, 10*time.Second, cfg.ProviderTimeout)
	assert.Equal(t, 5*time.Minute, cfg.SweepInterval)
	assert.True(t, cfg.CodeFallback)
	assert.Empty(t, cfg.RedisURL)
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("PORT", "9090")
	t.Setenv("SESSION_TTL", "5m")
	t.Setenv("CODE_FALLBACK", "false")
	t.Setenv("PATREON_SCOPES", "identity identity.memberships campaigns")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 5*time.Minute, cfg.SessionTTL)
	assert.False(t, cfg.CodeFallback)
	assert.Equal(t, []string{"identity", "identity.memberships", "campaigns"}, cfg.Scopes)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
}

func TestLoad_MissingRequired(t *testing.T) {
	for _, key := range []string{"PATREON_CLIENT_ID", "PATREON_CLIENT_SECRET", "PATREON_REDIRECT_URI"} {
		t.Setenv(key, "x") // register restore
		os.Unsetenv(key)
	}

	_, err := Load()
	assert.Error(t, err)
}
