// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/olegiv/perfumery/internal/render"
	"github.com/olegiv/perfumery/internal/service"
	"github.com/olegiv/perfumery/internal/store"
)

// imageField is the multipart field carrying the optional image.
const imageField = "image"

// multipartMemory is how much of an upload is buffered in memory.
const multipartMemory = 8 << 20

// AdminHandler serves catalog management.
type AdminHandler struct {
	catalog        *service.CatalogService
	renderer       *render.Renderer
	maxUploadBytes int64
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(catalog *service.CatalogService, renderer *render.Renderer, maxUploadBytes int64) *AdminHandler {
	return &AdminHandler{
		catalog:        catalog,
		renderer:       renderer,
		maxUploadBytes: maxUploadBytes,
	}
}

// List renders every perfume with edit and delete actions.
func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	perfumes, err := h.catalog.List(r.Context())
	if err != nil {
		logAndInternalError(w, "failed to list perfumes for admin", "error", err)
		return
	}
	renderPage(w, r, h.renderer, http.StatusOK, tmplAdminList, render.TemplateData{
		Title: "Admin - Manage Perfumes",
		Data:  perfumes,
	})
}

// CreateForm renders the empty create form.
func (h *AdminHandler) CreateForm(w http.ResponseWriter, r *http.Request) {
	renderPage(w, r, h.renderer, http.StatusOK, tmplAdminCreate, render.TemplateData{
		Title: "Add Perfume",
		Form:  service.PerfumeForm{Stock: "0"},
	})
}

// Create handles the multipart create form.
func (h *AdminHandler) Create(w http.ResponseWriter, r *http.Request) {
	form, upload, closeUpload, ok := h.readPerfumeForm(w, r)
	if !ok {
		return
	}
	defer closeUpload()

	p, err := h.catalog.Create(r.Context(), form, upload)
	if err != nil {
		if fieldErrors, ok := formErrors(err); ok {
			renderPage(w, r, h.renderer, http.StatusUnprocessableEntity, tmplAdminCreate, render.TemplateData{
				Title:  "Add Perfume",
				Form:   form,
				Errors: fieldErrors,
			})
			return
		}
		logAndInternalError(w, "failed to create perfume", "error", err)
		return
	}

	slog.Info("admin created perfume", "perfume_id", p.ID)
	flashSuccess(w, r, h.renderer, RouteAdmin, msgPerfumeCreated)
}

// EditForm renders the edit form filled with the stored values.
func (h *AdminHandler) EditForm(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, msgPerfumeNotFound)
	if !ok {
		return
	}

	p, err := h.catalog.Get(r.Context(), id)
	if errors.Is(err, service.ErrNotFound) {
		http.Error(w, msgPerfumeNotFound, http.StatusNotFound)
		return
	}
	if err != nil {
		logAndInternalError(w, "failed to load perfume", "perfume_id", id, "error", err)
		return
	}

	renderPage(w, r, h.renderer, http.StatusOK, tmplAdminUpdate, render.TemplateData{
		Title: "Update Perfume",
		Data:  p,
		Form: service.PerfumeForm{
			Name:        p.Name,
			Description: p.Description,
			Price:       strconv.FormatInt(p.Price, 10),
			Stock:       strconv.FormatInt(p.Stock, 10),
		},
	})
}

// Update handles the multipart edit form sent as PUT.
func (h *AdminHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, msgPerfumeNotFound)
	if !ok {
		return
	}

	form, upload, closeUpload, ok := h.readPerfumeForm(w, r)
	if !ok {
		return
	}
	defer closeUpload()

	_, err := h.catalog.Update(r.Context(), id, form, upload)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			http.Error(w, msgPerfumeNotFound, http.StatusNotFound)
			return
		}
		if fieldErrors, ok := formErrors(err); ok {
			current := store.Perfume{ID: id}
			if p, getErr := h.catalog.Get(r.Context(), id); getErr == nil {
				current = p
			}
			renderPage(w, r, h.renderer, http.StatusUnprocessableEntity, tmplAdminUpdate, render.TemplateData{
				Title:  "Update Perfume",
				Data:   current,
				Form:   form,
				Errors: fieldErrors,
			})
			return
		}
		logAndInternalError(w, "failed to update perfume", "perfume_id", id, "error", err)
		return
	}

	flashSuccess(w, r, h.renderer, RouteAdmin, msgPerfumeUpdated)
}

// Delete removes a perfume and its image.
func (h *AdminHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, msgPerfumeNotFound)
	if !ok {
		return
	}

	err := h.catalog.Delete(r.Context(), id)
	if errors.Is(err, service.ErrNotFound) {
		http.Error(w, msgPerfumeNotFound, http.StatusNotFound)
		return
	}
	if err != nil {
		logAndInternalError(w, "failed to delete perfume", "perfume_id", id, "error", err)
		return
	}

	flashSuccess(w, r, h.renderer, RouteAdmin, msgPerfumeDeleted)
}

// readPerfumeForm parses the form fields and the optional image. When ok
// is false a response has already been written. closeUpload must be
// called once the upload has been consumed.
func (h *AdminHandler) readPerfumeForm(w http.ResponseWriter, r *http.Request) (service.PerfumeForm, *service.Upload, func(), bool) {
	noop := func() {}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "Upload too large", http.StatusRequestEntityTooLarge)
			return service.PerfumeForm{}, nil, noop, false
		}
		http.Error(w, "Invalid form submission", http.StatusBadRequest)
		return service.PerfumeForm{}, nil, noop, false
	}

	form := service.PerfumeForm{
		Name:        r.PostFormValue("name"),
		Description: r.PostFormValue("description"),
		Price:       r.PostFormValue("price"),
		Stock:       r.PostFormValue("stock"),
	}

	file, header, err := r.FormFile(imageField)
	switch {
	case err == nil:
		return form, &service.Upload{Reader: file, Filename: header.Filename}, closeFile(file), true
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		return form, nil, noop, true
	default:
		slog.Debug("unreadable image field", "error", err)
		http.Error(w, "Invalid form submission", http.StatusBadRequest)
		return service.PerfumeForm{}, nil, noop, false
	}
}

func closeFile(f multipart.File) func() {
	return func() { _ = f.Close() }
}

// formErrors maps errors that re-render the form to per-field messages.
func formErrors(err error) (map[string]string, bool) {
	var verr *service.ValidationError
	if errors.As(err, &verr) {
		return verr.Fields, true
	}
	if errors.Is(err, service.ErrInvalidImage) {
		return map[string]string{imageField: msgInvalidImage}, true
	}
	return nil, false
}
