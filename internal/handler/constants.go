// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

// Route pattern constants for chi router registration.
const (
	// RouteRoot dispatches by role.
	RouteRoot = "/"
	// RouteRegister is the registration route.
	RouteRegister = "/register"
	// RouteLogin is the login route.
	RouteLogin = "/login"
	// RouteLogout is the logout route.
	RouteLogout = "/logout"
	// RouteHome is the signed-in storefront.
	RouteHome = "/home"
	// RoutePerfumes is the public catalog.
	RoutePerfumes = "/perfume"
	// RouteAbout is the about page.
	RouteAbout = "/about"
	// RouteContact is the contact page.
	RouteContact = "/contact"

	// RouteAdmin is the catalog management page.
	RouteAdmin = "/admin"
	// RouteCreatePerfume is the create form and its submission.
	RouteCreatePerfume = "/create-perfume"
	// RouteUpdatePerfume is the edit form and its submission.
	RouteUpdatePerfume = "/update-perfume/{id}"
	// RouteDeletePerfume deletes a perfume.
	RouteDeletePerfume = "/delete-perfume/{id}"
	// RouteBuy is the purchase form and its submission.
	RouteBuy = "/buy/{id}"

	// RouteHealth and friends serve health checks.
	RouteHealth      = "/health"
	RouteHealthLive  = "/health/live"
	RouteHealthReady = "/health/ready"
	// RouteMetrics exposes Prometheus metrics.
	RouteMetrics = "/metrics"

	// RouteUploads serves uploaded images.
	RouteUploads = "/uploads/*"
	// RouteStatic serves embedded assets.
	RouteStatic = "/static/*"
)

// Template names.
const (
	tmplLogin       = "auth/login"
	tmplRegister    = "auth/register"
	tmplHome        = "shop/home"
	tmplPerfumes    = "shop/perfume"
	tmplAbout       = "shop/about"
	tmplContact     = "shop/contact"
	tmplBuy         = "shop/buy"
	tmplBuySuccess  = "shop/buy_success"
	tmplAdminList   = "admin/perfumes"
	tmplAdminCreate = "admin/create"
	tmplAdminUpdate = "admin/update"
)

// User-facing messages.
const (
	msgInsufficientStock = "Stok tidak cukup untuk jumlah yang diminta."
	msgInvalidCreds      = "Invalid credentials"
	msgDuplicateUsername = "Username is already taken"
	msgRegistered        = "Registration successful. Please log in."
	msgLoggedOut         = "You have been logged out."
	msgPerfumeCreated    = "Perfume added"
	msgPerfumeUpdated    = "Perfume updated"
	msgPerfumeDeleted    = "Perfume deleted"
	msgPerfumeNotFound   = "Perfume not found"
	msgInvalidImage      = "Image must be a JPEG, PNG, GIF or WebP file"
)
