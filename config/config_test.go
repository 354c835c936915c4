package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/headscale_ui")

	cfg := Load()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "headscale-ui", cfg.Service.Name)
	assert.Equal(t, "development", cfg.Service.Env)
	assert.Equal(t, "8080", cfg.Service.Port)
	assert.False(t, cfg.IsProduction())

	assert.Equal(t, 7*24*time.Hour, cfg.GetSessionTTL())
	assert.Equal(t, time.Hour, cfg.GetSweepInterval())
	assert.Equal(t, bcrypt.DefaultCost, cfg.Auth.BcryptCost)
}

func TestProductionRequiresSecret(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/headscale_ui")
	t.Setenv("ENV", "production")

	cfg := Load()
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")

	t.Setenv("JWT_SECRET", "an-operator-supplied-secret")
	cfg = Load()
	assert.NoError(t, cfg.Validate())
	assert.True(t, cfg.IsProduction())
}

func TestDatabaseURLRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	cfg := Load()
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestHeadscaleProxyNeedsKey(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/headscale_ui")
	t.Setenv("HEADSCALE_URL", "https://headscale.example.com")

	cfg := Load()
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HEADSCALE_API_KEY")

	t.Setenv("HEADSCALE_API_KEY", "hskey-abc")
	cfg = Load()
	assert.NoError(t, cfg.Validate())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/headscale_ui")
	t.Setenv("SESSION_TTL_HOURS", "24")
	t.Setenv("SWEEP_INTERVAL_MINUTES", "5")
	t.Setenv("SHUTDOWN_TIMEOUT_SECONDS", "30")

	cfg := Load()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 24*time.Hour, cfg.GetSessionTTL())
	assert.Equal(t, 5*time.Minute, cfg.GetSweepInterval())
	assert.Equal(t, 30*time.Second, cfg.GetShutdownTimeoutDuration())
}

func TestRejectsNonPositiveDurations(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/headscale_ui")
	t.Setenv("SESSION_TTL_HOURS", "-1")

	cfg := Load()
	assert.Error(t, cfg.Validate())
}
