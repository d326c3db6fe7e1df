// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/olegiv/perfumery/internal/config"
	"github.com/olegiv/perfumery/internal/handler"
	"github.com/olegiv/perfumery/internal/imaging"
	"github.com/olegiv/perfumery/internal/metrics"
	"github.com/olegiv/perfumery/internal/middleware"
	"github.com/olegiv/perfumery/internal/render"
	"github.com/olegiv/perfumery/internal/service"
	"github.com/olegiv/perfumery/internal/session"
	"github.com/olegiv/perfumery/internal/store"
	"github.com/olegiv/perfumery/internal/version"
	"github.com/olegiv/perfumery/web"
)

// Version information - injected at build time via ldflags
var (
	appVersion   = "dev"
	appGitCommit = "unknown"
	appBuildTime = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	showHelp := flag.Bool("help", false, "Show help information")
	flag.BoolVar(showHelp, "h", false, "Show help information (shorthand)")

	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "GSPRO KANTIN - perfume storefront\n\n")
		_, _ = fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		_, _ = fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		_, _ = fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		_, _ = fmt.Fprintf(os.Stderr, "  PERFUMERY_SESSION_SECRET   Session and CSRF key (required, min 32 bytes)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  PERFUMERY_DB_DRIVER        sqlite|mysql (default: sqlite)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  PERFUMERY_DB_DSN           SQLite path or MySQL DSN (default: ./data/perfumery.db)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  PERFUMERY_SESSION_STORE    db|memory|redis (default: db)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  PERFUMERY_REDIS_URL        Redis URL for the redis session store\n")
		_, _ = fmt.Fprintf(os.Stderr, "  PERFUMERY_SERVER_PORT      Server port (default: 3001)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  PERFUMERY_ENV              development|production (default: development)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  PERFUMERY_UPLOADS_DIR      Image upload directory (default: ./public/uploads)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  PERFUMERY_DO_SEED          Create the admin account on startup (default: false)\n")
	}

	flag.Parse()

	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}

	versionInfo := version.Info{
		Version:   appVersion,
		GitCommit: appGitCommit,
		BuildTime: appBuildTime,
	}

	if *showVersion {
		_, _ = fmt.Println(versionInfo.String())
		os.Exit(0)
	}

	if err := run(versionInfo); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run(versionInfo version.Info) error {
	// Load .env files if present (development)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	dialect, err := store.ParseDialect(cfg.DBDriver)
	if err != nil {
		return err
	}

	if dialect == store.DialectSQLite {
		if err := os.MkdirAll(filepath.Dir(cfg.DBDSN), 0755); err != nil {
			return fmt.Errorf("creating data directory: %w", err)
		}
	}
	if err := os.MkdirAll(cfg.UploadsDir, 0755); err != nil {
		return fmt.Errorf("creating uploads directory: %w", err)
	}

	slog.Info("initializing database", "driver", cfg.DBDriver)
	db, err := store.NewDB(dialect, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer func(db *sql.DB) {
		if err := db.Close(); err != nil {
			slog.Error("error closing database connection", "error", err)
		}
	}(db)

	slog.Info("running database migrations")
	if err := store.Migrate(db, dialect); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	slog.Info("database ready")

	ctx := context.Background()
	if cfg.DoSeed {
		if err := store.SeedAdmin(ctx, db, dialect, cfg.AdminUsername, cfg.AdminPassword); err != nil {
			return fmt.Errorf("seeding admin: %w", err)
		}
	}

	var redisClient *redis.Client
	if cfg.SessionStore == config.SessionStoreRedis {
		opts := session.DefaultRedisOptions()
		opts.URL = cfg.RedisURL
		redisClient, err = session.NewRedisClient(opts)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer func() { _ = redisClient.Close() }()
	}

	sessionManager, err := session.New(session.Options{
		Store: cfg.SessionStore,
		DB:    db,
		Redis: redisClient,
		IsDev: cfg.IsDevelopment(),
	})
	if err != nil {
		return fmt.Errorf("initializing sessions: %w", err)
	}
	slog.Info("session manager initialized", "store", cfg.SessionStore)

	templatesFS, err := fs.Sub(web.Templates, "templates")
	if err != nil {
		return fmt.Errorf("getting templates fs: %w", err)
	}
	renderer, err := render.New(render.Config{
		TemplatesFS:    templatesFS,
		SessionManager: sessionManager,
		IsDev:          cfg.IsDevelopment(),
	})
	if err != nil {
		return fmt.Errorf("initializing renderer: %w", err)
	}

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		return fmt.Errorf("getting static fs: %w", err)
	}

	accounts := service.NewAccountService(db, dialect)
	catalog := service.NewCatalogService(db, dialect, imaging.NewProcessor(cfg.UploadsDir))
	purchases := service.NewPurchaseService(db, dialect)

	loginProtection := middleware.NewLoginProtection(middleware.DefaultLoginProtectionConfig())
	defer loginProtection.Stop()

	r := handler.NewRouter(handler.RouterConfig{
		DB:              db,
		Renderer:        renderer,
		SessionManager:  sessionManager,
		Accounts:        accounts,
		Catalog:         catalog,
		Purchases:       purchases,
		LoginProtection: loginProtection,
		Middleware: []func(http.Handler) http.Handler{
			chimw.RequestID,
			chimw.RealIP,
			chimw.Logger,
			chimw.Recoverer,
			chimw.RedirectSlashes,
			metrics.Middleware,
			middleware.SecurityHeaders(middleware.DefaultSecurityHeadersConfig(cfg.IsDevelopment())),
			middleware.SkipCSRF(handler.RouteMetrics),
			middleware.CSRF(middleware.DefaultCSRFConfig([]byte(cfg.SessionSecret), cfg.IsDevelopment(), cfg.ServerPort)),
		},
		UploadsDir:     cfg.UploadsDir,
		StaticFS:       staticFS,
		MaxUploadBytes: cfg.MaxUploadBytes(),
		Version:        versionInfo.Version,
	})

	srv := &http.Server{
		Addr:              cfg.ServerAddr(),
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second, // Longer to allow for large uploads and slow connections
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", cfg.ServerAddr(), "env", cfg.Env, "version", versionInfo.Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	case <-quit:
	}

	slog.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped")
	return nil
}
