package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/mso328/headscale-ui/config"
	database "github.com/mso328/headscale-ui/internal/core"
	"github.com/mso328/headscale-ui/internal/core/repository"
	"github.com/mso328/headscale-ui/internal/logging"
	logicv1 "github.com/mso328/headscale-ui/internal/logic/v1"
	v1 "github.com/mso328/headscale-ui/internal/web/v1"
	"github.com/mso328/headscale-ui/middleware"
)

func main() {
	// Load configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		panic("Configuration validation failed: " + err.Error())
	}

	logging.Setup(cfg.Logging.Level)

	log.Info().
		Str("service", cfg.Service.Name).
		Str("version", cfg.Service.Version).
		Str("env", cfg.Service.Env).
		Str("port", cfg.Service.Port).
		Msg("Service starting")

	// Signing secret. Validate has already refused production without one;
	// anywhere else an ephemeral secret keeps development friction-free at
	// the cost of invalidating sessions on restart.
	secret := cfg.Auth.JWTSecret
	if secret == "" {
		b := make([]byte, 32)
		rand.Read(b)
		secret = hex.EncodeToString(b)
		log.Warn().Msg("JWT_SECRET not set; generated an ephemeral signing secret — all sessions will be invalidated on restart")
	}

	// Initialize OpenTelemetry tracing
	var tp interface{ Shutdown(context.Context) error }
	var err error
	if cfg.Tracing.Enabled {
		tp, err = middleware.InitTracing(cfg)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize tracing")
		} else {
			log.Info().
				Str("endpoint", cfg.Tracing.Endpoint).
				Float64("sample_rate", cfg.Tracing.SampleRate).
				Msg("Tracing initialized")
		}
	} else {
		log.Info().Msg("Tracing disabled (TRACING_ENABLED=false)")
	}

	// Initialize Pyroscope profiling
	if cfg.Profiling.Enabled {
		if err := middleware.InitProfiling(cfg); err != nil {
			log.Warn().Err(err).Msg("Failed to initialize profiling")
		} else {
			log.Info().
				Str("endpoint", cfg.Profiling.Endpoint).
				Msg("Profiling initialized")
			defer middleware.StopProfiling()
		}
	} else {
		log.Info().Msg("Profiling disabled (PROFILING_ENABLED=false)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// Schema first, pool second: the repositories assume the tables exist.
	if err := database.Migrate(ctx, cfg.Database.URL); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}
	pool, err := database.Connect(ctx, cfg.Database.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pool.Close()
	log.Info().Msg("Database connection pool established")

	// Wire the core: stores -> hasher/issuer -> session manager -> handlers.
	users := repository.NewUserRepository(pool)
	sessions := repository.NewSessionRepository(pool)
	hasher := logicv1.NewPasswordHasher(cfg.Auth.BcryptCost)
	issuer, err := logicv1.NewTokenIssuer([]byte(secret), cfg.GetSessionTTL())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize token issuer")
	}
	auth := logicv1.NewAuthService(users, sessions, hasher, issuer)
	handler := v1.NewHandler(auth, cfg.GetSessionTTL(), cfg.IsProduction())

	// Background expiry sweep, cancelled with the process.
	go logicv1.RunSweeper(ctx, auth, cfg.GetSweepInterval(), log.Logger)
	log.Info().Dur("interval", cfg.GetSweepInterval()).Msg("Session sweeper started")

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	var isShuttingDown atomic.Bool

	// Tracing middleware
	if cfg.Tracing.Enabled {
		r.Use(middleware.TracingMiddleware(cfg.Service.Name))
	}

	// Logging middleware
	r.Use(middleware.LoggingMiddleware())

	// Prometheus middleware
	r.Use(middleware.PrometheusMiddleware())

	// Request gate: resolves identity from the session cookie and enforces
	// the public/protected route policy before any handler runs.
	r.Use(middleware.AuthGate(auth))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Readiness check
	// Returns 503 once shutdown has started, to drain traffic before HTTP shutdown.
	r.GET("/ready", func(c *gin.Context) {
		if isShuttingDown.Load() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "shutting_down"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Metrics endpoint
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Panel frontend, when bundled alongside the service.
	if cfg.Web.StaticDir != "" {
		r.Static("/_app", cfg.Web.StaticDir)
	}

	api := r.Group("/api")
	handler.RegisterRoutes(api)

	if cfg.Headscale.URL != "" {
		proxy, err := v1.NewProxyHandler(cfg.Headscale.URL, cfg.Headscale.APIKey)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid HEADSCALE_URL")
		}
		proxy.RegisterRoutes(api)
		log.Info().Str("upstream", cfg.Headscale.URL).Msg("Headscale proxy enabled")
	} else {
		log.Info().Msg("Headscale proxy disabled (HEADSCALE_URL not set)")
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Service.Port,
		Handler: r,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", cfg.Service.Port).Msg("Starting admin panel")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	log.Info().Msg("Shutdown signal received")

	// Fail readiness first and wait for propagation before dropping connections.
	isShuttingDown.Store(true)
	drainDelay := cfg.GetReadinessDrainDelayDuration()
	if drainDelay > 0 {
		log.Info().Dur("delay", drainDelay).Msg("Readiness drain delay started")
		time.Sleep(drainDelay)
		log.Info().Dur("delay", drainDelay).Msg("Readiness drain delay completed")
	}

	// Shutdown context with configurable timeout
	shutdownTimeout := cfg.GetShutdownTimeoutDuration()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	log.Info().Dur("timeout", shutdownTimeout).Msg("Shutting down server...")

	// 1. Shutdown HTTP server
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	} else {
		log.Info().Msg("HTTP server shutdown complete")
	}

	// 2. Close database connections
	pool.Close()
	log.Info().Msg("Database pool closed")

	// 3. Shutdown tracer
	if tp != nil {
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Tracer shutdown error")
		} else {
			log.Info().Msg("Tracer shutdown complete")
		}
	}

	log.Info().Msg("Graceful shutdown complete")
}
