// Package config loads service configuration from the environment.
//
// A .env file is honored when present (local development); real environments
// are expected to inject variables directly. Load never fails — defaults are
// applied for everything optional — and Validate reports what is actually
// wrong before the service is allowed to start.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

// Config holds all runtime configuration for the admin panel.
type Config struct {
	Service struct {
		Name    string
		Version string
		Env     string
		Port    string
	}
	Logging struct {
		Level string
	}
	Database struct {
		URL string
	}
	Auth struct {
		// JWTSecret signs session tokens. Required in production; in other
		// environments an ephemeral secret is generated at startup.
		JWTSecret string
		// SessionTTLHours bounds both the token expiry claim and the stored
		// session expiry. Default: 168 (7 days).
		SessionTTLHours int
		// BcryptCost is the bcrypt work factor. Tune upward as hardware
		// improves; clamped to the algorithm's valid range.
		BcryptCost int
		// SweepIntervalMinutes controls the expired-session sweep cadence.
		SweepIntervalMinutes int
	}
	Headscale struct {
		// URL of the Headscale management API. The proxy is disabled when empty.
		URL string
		// APIKey is sent as a bearer token on proxied calls. Never accepted
		// from clients.
		APIKey string
	}
	Web struct {
		// StaticDir, when set, is served under /_app for the panel frontend.
		StaticDir string
	}
	Tracing struct {
		Enabled    bool
		Endpoint   string
		SampleRate float64
	}
	Profiling struct {
		Enabled  bool
		Endpoint string
	}
	Shutdown struct {
		TimeoutSeconds            int
		ReadinessDrainDelaySeconds int
	}
}

// Load reads configuration from the environment, applying defaults.
func Load() *Config {
	// Missing .env is fine; env vars may come from the process environment.
	_ = godotenv.Load()

	cfg := &Config{}

	cfg.Service.Name = getEnv("SERVICE_NAME", "headscale-ui")
	cfg.Service.Version = getEnv("SERVICE_VERSION", "dev")
	cfg.Service.Env = getEnv("ENV", "development")
	cfg.Service.Port = getEnv("PORT", "8080")

	cfg.Logging.Level = getEnv("LOG_LEVEL", "info")

	cfg.Database.URL = getEnv("DATABASE_URL", "")

	cfg.Auth.JWTSecret = getEnv("JWT_SECRET", "")
	cfg.Auth.SessionTTLHours = getEnvInt("SESSION_TTL_HOURS", 7*24)
	cfg.Auth.BcryptCost = getEnvInt("BCRYPT_COST", bcrypt.DefaultCost)
	cfg.Auth.SweepIntervalMinutes = getEnvInt("SWEEP_INTERVAL_MINUTES", 60)

	cfg.Headscale.URL = getEnv("HEADSCALE_URL", "")
	cfg.Headscale.APIKey = getEnv("HEADSCALE_API_KEY", "")

	cfg.Web.StaticDir = getEnv("STATIC_DIR", "")

	cfg.Tracing.Enabled = getEnvBool("TRACING_ENABLED", false)
	cfg.Tracing.Endpoint = getEnv("TRACING_ENDPOINT", "localhost:4318")
	cfg.Tracing.SampleRate = getEnvFloat("TRACING_SAMPLE_RATE", 1.0)

	cfg.Profiling.Enabled = getEnvBool("PROFILING_ENABLED", false)
	cfg.Profiling.Endpoint = getEnv("PROFILING_ENDPOINT", "http://localhost:4040")

	cfg.Shutdown.TimeoutSeconds = getEnvInt("SHUTDOWN_TIMEOUT_SECONDS", 15)
	cfg.Shutdown.ReadinessDrainDelaySeconds = getEnvInt("READINESS_DRAIN_DELAY_SECONDS", 0)

	return cfg
}

// Validate checks the configuration for startup-blocking problems.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return errors.New("DATABASE_URL is required")
	}
	if c.Auth.SessionTTLHours <= 0 {
		return fmt.Errorf("SESSION_TTL_HOURS must be positive, got %d", c.Auth.SessionTTLHours)
	}
	if c.Auth.SweepIntervalMinutes <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL_MINUTES must be positive, got %d", c.Auth.SweepIntervalMinutes)
	}
	// An unset signing secret in production would silently fall back to an
	// ephemeral one and invalidate every session on restart. Refuse to start.
	if c.IsProduction() && c.Auth.JWTSecret == "" {
		return errors.New("JWT_SECRET is required when ENV=production")
	}
	if c.Headscale.URL != "" && c.Headscale.APIKey == "" {
		return errors.New("HEADSCALE_API_KEY is required when HEADSCALE_URL is set")
	}
	return nil
}

// IsProduction reports whether the service runs with production hardening.
func (c *Config) IsProduction() bool {
	return c.Service.Env == "production"
}

// GetSessionTTL returns the session lifetime as a duration.
func (c *Config) GetSessionTTL() time.Duration {
	return time.Duration(c.Auth.SessionTTLHours) * time.Hour
}

// GetSweepInterval returns the cadence of the expired-session sweep.
func (c *Config) GetSweepInterval() time.Duration {
	return time.Duration(c.Auth.SweepIntervalMinutes) * time.Minute
}

// GetShutdownTimeoutDuration returns the graceful-shutdown deadline.
func (c *Config) GetShutdownTimeoutDuration() time.Duration {
	return time.Duration(c.Shutdown.TimeoutSeconds) * time.Second
}

// GetReadinessDrainDelayDuration returns how long to fail readiness before
// shutting the HTTP server down.
func (c *Config) GetReadinessDrainDelayDuration() time.Duration {
	return time.Duration(c.Shutdown.ReadinessDrainDelaySeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
