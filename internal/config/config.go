// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package config loads the application configuration from environment variables.
package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Supported database drivers.
const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// Supported session stores.
const (
	SessionStoreDB     = "db"
	SessionStoreMemory = "memory"
	SessionStoreRedis  = "redis"
)

// knownWeakSecrets contains default/example secrets that must be rejected.
var knownWeakSecrets = []string{
	"change-me-to-32-byte-secret-key!",
	"REPLACE_WITH_YOUR_OWN_SECRET_KEY!",
	"your_secret_key",
}

// Config holds the application configuration loaded from environment variables.
type Config struct {
	DBDriver      string `env:"PERFUMERY_DB_DRIVER" envDefault:"sqlite"`
	DBDSN         string `env:"PERFUMERY_DB_DSN" envDefault:"./data/perfumery.db"`
	SessionSecret string `env:"PERFUMERY_SESSION_SECRET,required"`
	SessionStore  string `env:"PERFUMERY_SESSION_STORE" envDefault:"db"`
	RedisURL      string `env:"PERFUMERY_REDIS_URL"`
	ServerHost    string `env:"PERFUMERY_SERVER_HOST" envDefault:"localhost"`
	ServerPort    int    `env:"PERFUMERY_SERVER_PORT" envDefault:"3001"`
	Env           string `env:"PERFUMERY_ENV" envDefault:"development"`
	LogLevel      string `env:"PERFUMERY_LOG_LEVEL" envDefault:"info"`
	UploadsDir    string `env:"PERFUMERY_UPLOADS_DIR" envDefault:"./public/uploads"`
	MaxUploadMB   int    `env:"PERFUMERY_MAX_UPLOAD_MB" envDefault:"10"`

	// Seeding configuration
	DoSeed        bool   `env:"PERFUMERY_DO_SEED" envDefault:"false"`
	AdminUsername string `env:"PERFUMERY_ADMIN_USERNAME" envDefault:"admin"`
	AdminPassword string `env:"PERFUMERY_ADMIN_PASSWORD"`
}

// IsDevelopment returns true if the application is running in development mode.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// ServerAddr returns the full server address in host:port format.
func (c Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// MaxUploadBytes returns the multipart body limit in bytes.
func (c Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// SlogLevel maps LogLevel to a slog level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// MinSessionSecretLength is the minimum required length for the session secret.
const MinSessionSecretLength = 32

// Load parses environment variables and returns a Config struct.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	// Warn about low-entropy secrets
	if !hasMinimumEntropy(cfg.SessionSecret) {
		slog.Warn("PERFUMERY_SESSION_SECRET has low character diversity; " +
			"consider generating a random secret with: openssl rand -base64 32")
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if len(c.SessionSecret) < MinSessionSecretLength {
		return fmt.Errorf("PERFUMERY_SESSION_SECRET must be at least %d bytes long, got %d bytes; "+
			"generate a secure secret with: openssl rand -base64 32",
			MinSessionSecretLength, len(c.SessionSecret))
	}

	for _, weak := range knownWeakSecrets {
		if c.SessionSecret == weak {
			return fmt.Errorf("PERFUMERY_SESSION_SECRET is a known default value and must not be used; " +
				"generate a secure secret with: openssl rand -base64 32")
		}
	}

	switch c.DBDriver {
	case DriverSQLite, DriverMySQL:
	default:
		return fmt.Errorf("PERFUMERY_DB_DRIVER must be %q or %q, got %q", DriverSQLite, DriverMySQL, c.DBDriver)
	}

	switch c.SessionStore {
	case SessionStoreMemory:
	case SessionStoreDB:
		// scs/sqlite3store speaks SQLite only.
		if c.DBDriver != DriverSQLite {
			return fmt.Errorf("PERFUMERY_SESSION_STORE=%q requires the sqlite driver; use %q or %q with %s",
				SessionStoreDB, SessionStoreMemory, SessionStoreRedis, c.DBDriver)
		}
	case SessionStoreRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("PERFUMERY_REDIS_URL is required when PERFUMERY_SESSION_STORE=%q", SessionStoreRedis)
		}
	default:
		return fmt.Errorf("PERFUMERY_SESSION_STORE must be one of %q, %q, %q, got %q",
			SessionStoreDB, SessionStoreMemory, SessionStoreRedis, c.SessionStore)
	}

	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("PERFUMERY_MAX_UPLOAD_MB must be positive, got %d", c.MaxUploadMB)
	}

	if c.DoSeed && c.AdminPassword == "" {
		return fmt.Errorf("PERFUMERY_ADMIN_PASSWORD is required when PERFUMERY_DO_SEED=true")
	}

	return nil
}

// hasMinimumEntropy checks that a secret contains at least 3 character classes
// (lowercase, uppercase, digits, special characters).
func hasMinimumEntropy(s string) bool {
	charTypes := 0
	if strings.ContainsAny(s, "abcdefghijklmnopqrstuvwxyz") {
		charTypes++
	}
	if strings.ContainsAny(s, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") {
		charTypes++
	}
	if strings.ContainsAny(s, "0123456789") {
		charTypes++
	}
	if strings.ContainsAny(s, "!@#$%^&*()-_=+[]{}|;:,.<>?/~`'\"\\") {
		charTypes++
	}
	return charTypes >= 3
}
