// Copyright (c) 2026 Solterra. All rights reserved.
// Author: platform@solterra.group

// Command api is the entry point for the Solterra HTTP API server.
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load configuration from environment variables.
//  3. Validate the permission matrix for exhaustive coverage.
//  4. Connect to PostgreSQL (pgxpool).
//  5. Connect to Redis.
//  6. Run database migrations (idempotent).
//  7. Wire domain services and HTTP handlers.
//  8. Ensure the bootstrap administrator exists.
//  9. Start the expiry sweeper and the HTTP server with graceful shutdown.
//
// No business logic lives here. All wiring is explicit constructor injection.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/solterra/solterra-api/internal/access"
	"github.com/solterra/solterra-api/internal/api"
	"github.com/solterra/solterra-api/internal/audit"
	"github.com/solterra/solterra-api/internal/auth"
	"github.com/solterra/solterra-api/internal/notify"
	"github.com/solterra/solterra-api/internal/platform/config"
	"github.com/solterra/solterra-api/internal/platform/constants"
	"github.com/solterra/solterra-api/internal/platform/migration"
	"github.com/solterra/solterra-api/internal/platform/obs"
	pgstore "github.com/solterra/solterra-api/internal/platform/postgres"
	redisstore "github.com/solterra/solterra-api/internal/platform/redis"
	"github.com/solterra/solterra-api/internal/platform/sec"
)

func main() {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	// Initialize first so that subsequent startup errors are structured JSON.
	rawLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// Add global context to all log entries.
	log := rawLog.With(slog.String("app", constants.AppName))
	slog.SetDefault(log)

	log.Info("[Solterra] service_initializing")

	// ── 2. Configuration ──────────────────────────────────────────────────
	cfg, err := config.Load()
	must(log, err, "load configuration")

	if cfg.Debug {
		debugLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		log = debugLog.With(slog.String("app", constants.AppName))
		slog.SetDefault(log)
		log.Debug("debug_logging_enabled")
	}

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
	)

	// ── 3. Permission Matrix ──────────────────────────────────────────────
	// The matrix must cover every role x resource pair before any request
	// is served; a gap here is a deployment defect, not a runtime condition.
	must(log, access.Validate(), "validate permission matrix")

	obs.MustRegister()

	// Root context for startup. Use a 30s deadline so misconfiguration is
	// caught quickly rather than hanging indefinitely.
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	// ── 4. PostgreSQL ─────────────────────────────────────────────────────
	pool, err := pgstore.NewPool(startupCtx, cfg.DatabaseURL, log)
	must(log, err, "connect to postgres")
	defer func() {
		log.Info("closing postgres pool")
		pool.Close()
	}()

	// ── 5. Redis ──────────────────────────────────────────────────────────
	rdb, err := redisstore.NewClient(startupCtx, cfg.RedisURL, log)
	must(log, err, "connect to redis")
	defer func() {
		log.Info("closing redis client")
		if cerr := rdb.Close(); cerr != nil {
			log.Error("redis close error", slog.Any("error", cerr))
		}
	}()

	// ── 6. Migrations ─────────────────────────────────────────────────────
	must(log, migration.RunUp(cfg.DatabaseURL, cfg.MigrationPath, log), "run migrations")

	// ── 7. Domain Wiring ──────────────────────────────────────────────────
	tickets, err := sec.NewTicketService(cfg.TicketSecret, constants.TicketIssuer)
	must(log, err, "initialize ticket service")

	recorder := audit.NewLogRecorder(log)

	var sender notify.CodeSender
	if cfg.SMTPHost == "" {
		log.Warn("SMTP_HOST not set, passcodes will be written to the log")
		sender = notify.NewLogSender(log)
	} else {
		smtpPort, err := strconv.Atoi(cfg.SMTPPort)
		must(log, err, "parse SMTP_PORT")
		sender = notify.NewSMTPSender(cfg.SMTPHost, smtpPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom, log)
	}

	principalRepository := auth.NewPrincipalRepository(pool)
	sessionRepository := auth.NewSessionRepository(pool)
	challengeRepository := auth.NewChallengeRepository(pool)
	throttleRepository := auth.NewThrottleRepository(rdb)

	sessionManager := auth.NewSessionManager(sessionRepository, principalRepository, recorder, cfg.SessionTTL)
	credentialService := auth.NewCredentialService(principalRepository, sessionRepository, recorder)
	otpManager := auth.NewOTPManager(challengeRepository, throttleRepository, sender, recorder, auth.OTPConfig{
		Digits:         cfg.OTPDigits,
		TTL:            cfg.OTPTTL,
		MaxAttempts:    cfg.OTPMaxAttempts,
		ResendCooldown: cfg.OTPResendCooldown,
	})
	flow := auth.NewFlow(
		principalRepository,
		credentialService,
		otpManager,
		sessionManager,
		throttleRepository,
		tickets,
		recorder,
		cfg.LockoutThreshold,
		cfg.LockoutWindow,
	)
	adminService := auth.NewAdminService(principalRepository, sessionManager, recorder, log)

	// ── 8. Bootstrap Administrator ────────────────────────────────────────
	must(log, adminService.EnsureBootstrapAdmin(startupCtx, cfg.BootstrapAdminEmail, cfg.BootstrapAdminPassword), "ensure bootstrap admin")

	// ── 9. Health handlers (wired with real dependency checkers) ──────────
	liveness, readiness := api.NewHealthHandlers(api.HealthDependencies{
		CheckDatabase: func() error {
			return pgstore.Ping(context.Background(), pool)
		},
		CheckCache: func() error {
			return redisstore.Ping(context.Background(), rdb)
		},
	}, log)

	// ── 10. HTTP Server ───────────────────────────────────────────────────
	handlers := api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Auth:      auth.NewHandler(flow, credentialService, sessionManager),
		IAM:       auth.NewIAMHandler(adminService, sessionManager),
	}

	serverCtx, serverCancel := context.WithCancel(context.Background())
	defer serverCancel()

	server := api.NewServer(serverCtx, cfg, log, sessionManager, handlers)

	// ── 11. Expiry Sweeper ────────────────────────────────────────────────
	go sweepExpired(serverCtx, sessionManager, otpManager, log)

	// ── 12. Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Block until OS signal or server error.
	select {
	case sig := <-quit:
		log.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("server startup error", slog.Any("error", err))
	}

	serverCancel()

	// Give in-flight requests enough time to complete.
	shutdownTimeout := constants.ShutdownTimeout
	log.Info("shutting down server", slog.Duration("timeout", shutdownTimeout))

	if err := server.Shutdown(shutdownTimeout); err != nil {
		log.Error("shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	log.Info("server stopped cleanly")
}

// sweepExpired periodically removes expired session and challenge rows.
// Expiry is always judged at check time; this loop is storage hygiene only.
func sweepExpired(ctx context.Context, sessions *auth.SessionManager, passcodes *auth.OTPManager, log *slog.Logger) {
	ticker := time.NewTicker(auth.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removedSessions, err := sessions.Sweep(ctx)
			if err != nil {
				log.Error("session_sweep_failed", slog.Any("error", err))
			}
			removedChallenges, err := passcodes.Sweep(ctx)
			if err != nil {
				log.Error("challenge_sweep_failed", slog.Any("error", err))
			}
			if removedSessions > 0 || removedChallenges > 0 {
				log.Info("expired_rows_swept",
					slog.Int64("sessions", removedSessions),
					slog.Int64("challenges", removedChallenges),
				)
			}
		}
	}
}

// must logs a structured fatal error and terminates the process if err is non-nil.
//
// It is intentionally limited to startup wiring. After startup, all errors
// must be returned and handled explicitly (never panic).
func must(log *slog.Logger, err error, context string) {
	if err != nil {
		log.Error("startup failure",
			slog.String("context", context),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
