// Copyright (c) 2026 Solterra. All rights reserved.
// Author: platform@solterra.group

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (DB, Redis) via constructors.
  - Zero Hidden State: No global variables are used to store config.

This ensures the application is Twelve-Factor compliant by storing config in the env.
*/
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// # Configuration Schema

// Config holds all runtime configuration for the Solterra API server.
type Config struct {

	// Server settings
	ServerPort  string `env:"SERVER_PORT"  envDefault:"8080"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// Relational Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`

	// MigrationPath is the filesystem path to the SQL migrations directory.
	MigrationPath string `env:"MIGRATION_PATH" envDefault:"./data/migrations"`

	// Key-Value Store (Redis) for lockout counters and resend cooldowns
	RedisURL string `env:"REDIS_URL,required"`

	// TicketSecret signs login-flow continuation tickets (HS256, >= 32 bytes).
	TicketSecret string `env:"TICKET_SECRET,required"`

	// Session lifecycle
	SessionTTL time.Duration `env:"SESSION_TTL" envDefault:"24h"`

	// One-time passcode policy
	OTPTTL            time.Duration `env:"OTP_TTL"             envDefault:"10m"`
	OTPDigits         int           `env:"OTP_DIGITS"          envDefault:"6"`
	OTPMaxAttempts    int           `env:"OTP_MAX_ATTEMPTS"    envDefault:"5"`
	OTPResendCooldown time.Duration `env:"OTP_RESEND_COOLDOWN" envDefault:"60s"`

	// Failed-login lockout
	LockoutThreshold int           `env:"LOCKOUT_THRESHOLD" envDefault:"10"`
	LockoutWindow    time.Duration `env:"LOCKOUT_WINDOW"    envDefault:"15m"`

	// Passcode delivery (SMTP). When SMTPHost is empty the service falls back
	// to a development sender that writes codes to the log.
	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     string `env:"SMTP_PORT" envDefault:"587"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	SMTPFrom     string `env:"SMTP_FROM" envDefault:"no-reply@solterra.group"`

	// Bootstrap administrator, created at startup when no principals exist.
	BootstrapAdminEmail    string `env:"BOOTSTRAP_ADMIN_EMAIL"`
	BootstrapAdminPassword string `env:"BOOTSTRAP_ADMIN_PASSWORD"`

	// Cross-Origin Resource Sharing
	ExtraOrigins string `env:"EXTRA_ORIGINS"`
}

// # Configuration Loading

// Load parses environment variables into a [Config] struct.
func Load() (*Config, error) {

	// Initialize an empty config struct
	cfg := &Config{}

	// Use the 'env' package to map environment variables to struct fields.
	// This will fail if any field marked with 'required' is missing.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	return cfg, nil
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
