// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"net/http"

	"github.com/olegiv/perfumery/internal/render"
	"github.com/olegiv/perfumery/internal/service"
)

// ShopHandler serves the storefront pages.
type ShopHandler struct {
	catalog  *service.CatalogService
	renderer *render.Renderer
}

// NewShopHandler creates a new ShopHandler.
func NewShopHandler(catalog *service.CatalogService, renderer *render.Renderer) *ShopHandler {
	return &ShopHandler{catalog: catalog, renderer: renderer}
}

// Home renders the signed-in storefront.
func (h *ShopHandler) Home(w http.ResponseWriter, r *http.Request) {
	h.renderCatalog(w, r, tmplHome, "GSPRO KANTIN")
}

// Perfumes renders the public catalog.
func (h *ShopHandler) Perfumes(w http.ResponseWriter, r *http.Request) {
	h.renderCatalog(w, r, tmplPerfumes, "Perfumes")
}

func (h *ShopHandler) renderCatalog(w http.ResponseWriter, r *http.Request, name, title string) {
	perfumes, err := h.catalog.List(r.Context())
	if err != nil {
		logAndInternalError(w, "failed to list perfumes", "error", err)
		return
	}
	renderPage(w, r, h.renderer, http.StatusOK, name, render.TemplateData{
		Title: title,
		Data:  perfumes,
	})
}

// About renders the about page.
func (h *ShopHandler) About(w http.ResponseWriter, r *http.Request) {
	renderPage(w, r, h.renderer, http.StatusOK, tmplAbout, render.TemplateData{Title: "About"})
}

// Contact renders the contact page.
func (h *ShopHandler) Contact(w http.ResponseWriter, r *http.Request) {
	renderPage(w, r, h.renderer, http.StatusOK, tmplContact, render.TemplateData{Title: "Contact"})
}
