// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"database/sql"
	"io/fs"
	"net/http"

	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/olegiv/perfumery/internal/middleware"
	"github.com/olegiv/perfumery/internal/render"
	"github.com/olegiv/perfumery/internal/service"
)

// RouterConfig wires the HTTP surface to the services.
type RouterConfig struct {
	DB              *sql.DB
	Renderer        *render.Renderer
	SessionManager  *scs.SessionManager
	Accounts        *service.AccountService
	Catalog         *service.CatalogService
	Purchases       *service.PurchaseService
	LoginProtection *middleware.LoginProtection

	// Middleware runs before method override and session loading.
	Middleware []func(http.Handler) http.Handler

	UploadsDir     string
	StaticFS       fs.FS
	MaxUploadBytes int64
	Version        string
}

// NewRouter builds the application router.
func NewRouter(cfg RouterConfig) chi.Router {
	sm := cfg.SessionManager

	authHandler := NewAuthHandler(cfg.Accounts, cfg.Renderer, sm, cfg.LoginProtection)
	shopHandler := NewShopHandler(cfg.Catalog, cfg.Renderer)
	buyHandler := NewBuyHandler(cfg.Catalog, cfg.Purchases, cfg.Renderer)
	adminHandler := NewAdminHandler(cfg.Catalog, cfg.Renderer, cfg.MaxUploadBytes)
	healthHandler := NewHealthHandler(cfg.DB, cfg.UploadsDir, cfg.Version)

	r := chi.NewRouter()
	r.Use(cfg.Middleware...)
	r.Use(middleware.MethodOverride(cfg.MaxUploadBytes))
	r.Use(sm.LoadAndSave)

	r.Get(RouteHealthLive, healthHandler.Liveness)
	r.Get(RouteHealthReady, healthHandler.Readiness)
	r.Handle(RouteMetrics, promhttp.Handler())

	if cfg.UploadsDir != "" {
		r.Handle(RouteUploads, http.StripPrefix("/uploads/", http.FileServer(http.Dir(cfg.UploadsDir))))
	}
	if cfg.StaticFS != nil {
		r.Handle(RouteStatic, http.StripPrefix("/static/", http.FileServerFS(cfg.StaticFS)))
	}

	// Public pages; the user is loaded when a session exists.
	r.Group(func(r chi.Router) {
		r.Use(middleware.OptionalLoadUser(sm, cfg.Accounts))

		r.Get(RouteRoot, authHandler.Root)
		r.Get(RouteRegister, authHandler.RegisterForm)
		r.Post(RouteRegister, authHandler.Register)
		r.Get(RouteLogin, authHandler.LoginForm)
		if cfg.LoginProtection != nil {
			r.With(cfg.LoginProtection.Middleware()).Post(RouteLogin, authHandler.Login)
		} else {
			r.Post(RouteLogin, authHandler.Login)
		}
		r.Get(RouteLogout, authHandler.Logout)

		r.Get(RoutePerfumes, shopHandler.Perfumes)
		r.Get(RouteAbout, shopHandler.About)
		r.Get(RouteContact, shopHandler.Contact)

		r.Get(RouteHealth, healthHandler.Health)
	})

	// Signed-in users.
	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(sm))
		r.Use(middleware.LoadUser(sm, cfg.Accounts))

		r.Get(RouteHome, shopHandler.Home)
		r.Get(RouteBuy, buyHandler.Form)
		r.Post(RouteBuy, buyHandler.Purchase)

		// Admins only; other roles get 403.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin)

			r.Get(RouteAdmin, adminHandler.List)
			r.Get(RouteCreatePerfume, adminHandler.CreateForm)
			r.Post(RouteCreatePerfume, adminHandler.Create)
			r.Get(RouteUpdatePerfume, adminHandler.EditForm)
			r.Put(RouteUpdatePerfume, adminHandler.Update)
			r.Delete(RouteDeletePerfume, adminHandler.Delete)
		})
	})

	return r
}
