// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package session builds the scs session manager and its backing store.
package session

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
	"github.com/alexedwards/scs/v2/memstore"
	"github.com/redis/go-redis/v9"
)

// Lifetime is the absolute session lifetime.
const Lifetime = 24 * time.Hour

// Store kinds accepted by Options.Store.
const (
	StoreDB     = "db"
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Options selects and configures the session backend.
type Options struct {
	// Store is one of StoreDB, StoreMemory or StoreRedis.
	Store string
	// DB must hold a migrated sessions table when Store is StoreDB.
	DB *sql.DB
	// Redis is required when Store is StoreRedis.
	Redis *redis.Client
	// IsDev disables Secure cookies and the __Host- cookie prefix.
	IsDev bool
}

// New creates a session manager for the configured store.
func New(opts Options) (*scs.SessionManager, error) {
	sm := scs.New()

	switch opts.Store {
	case StoreDB, "":
		if opts.DB == nil {
			return nil, errors.New("session: db store requires a database")
		}
		sm.Store = sqlite3store.New(opts.DB)
	case StoreMemory:
		sm.Store = memstore.New()
	case StoreRedis:
		if opts.Redis == nil {
			return nil, errors.New("session: redis store requires a client")
		}
		sm.Store = NewRedisStore(opts.Redis, DefaultRedisPrefix)
	default:
		return nil, fmt.Errorf("session: unknown store %q", opts.Store)
	}

	sm.Lifetime = Lifetime
	sm.Cookie.HttpOnly = true
	sm.Cookie.SameSite = http.SameSiteLaxMode
	sm.Cookie.Path = "/"
	sm.Cookie.Secure = !opts.IsDev // Secure cookies in production only
	if !opts.IsDev {
		// __Host- requires Secure, Path=/ and no Domain.
		sm.Cookie.Name = "__Host-session"
	}

	return sm, nil
}
