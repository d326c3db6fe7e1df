// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/olegiv/perfumery/internal/store"
)

// MaxNameLength bounds perfume names.
const MaxNameLength = 255

// ImageStore persists uploaded images and returns their public paths.
type ImageStore interface {
	Save(r io.Reader, originalName string) (string, error)
	Remove(publicPath string) error
}

// PerfumeForm is the raw admin form input.
type PerfumeForm struct {
	Name        string
	Description string
	Price       string
	Stock       string
}

// Upload is an optional image attached to a create or update.
type Upload struct {
	Reader   io.Reader
	Filename string
}

// perfumeFields is a validated PerfumeForm.
type perfumeFields struct {
	name        string
	description string
	price       int64
	stock       int64
}

// ParseStock reads a stock value the way the admin form always has:
// anything that is not an integer counts as 0.
func ParseStock(raw string) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func (f PerfumeForm) validate() (perfumeFields, error) {
	verr := newValidationError()
	out := perfumeFields{
		name:        strings.TrimSpace(f.Name),
		description: strings.TrimSpace(f.Description),
		stock:       ParseStock(f.Stock),
	}

	switch {
	case out.name == "":
		verr.Add("name", "Name is required")
	case utf8.RuneCountInString(out.name) > MaxNameLength:
		verr.Add("name", fmt.Sprintf("Name must be at most %d characters", MaxNameLength))
	}

	price := strings.TrimSpace(f.Price)
	if price == "" {
		verr.Add("price", "Price is required")
	} else if n, err := strconv.ParseInt(price, 10, 64); err != nil || n < 0 {
		verr.Add("price", "Price must be a whole number of zero or more")
	} else {
		out.price = n
	}

	if out.stock < 0 {
		verr.Add("stock", "Stock cannot be negative")
	}

	return out, verr.errOrNil()
}

// CatalogService serves the read paths and admin CRUD for perfumes.
type CatalogService struct {
	queries *store.Queries
	images  ImageStore
	now     func() time.Time
}

// NewCatalogService creates a CatalogService.
func NewCatalogService(db store.DBTX, dialect store.Dialect, images ImageStore) *CatalogService {
	return &CatalogService{
		queries: store.New(db, dialect),
		images:  images,
		now:     time.Now,
	}
}

// List returns every perfume in insertion order.
func (s *CatalogService) List(ctx context.Context) ([]store.Perfume, error) {
	perfumes, err := s.queries.ListPerfumes(ctx)
	if err != nil {
		return nil, storeError("listing perfumes", err)
	}
	return perfumes, nil
}

// Get returns one perfume or ErrNotFound.
func (s *CatalogService) Get(ctx context.Context, id int64) (store.Perfume, error) {
	p, err := s.queries.GetPerfume(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Perfume{}, ErrNotFound
	}
	if err != nil {
		return store.Perfume{}, storeError("loading perfume", err)
	}
	return p, nil
}

// saveUpload stores img when present and returns its public path.
func (s *CatalogService) saveUpload(img *Upload) (string, error) {
	if img == nil || img.Reader == nil {
		return "", nil
	}
	publicPath, err := s.images.Save(img.Reader, img.Filename)
	if err != nil {
		if errors.Is(err, ErrInvalidImage) {
			return "", err
		}
		return "", fmt.Errorf("saving image: %w", err)
	}
	return publicPath, nil
}

// discard removes a file that lost its database reference.
func (s *CatalogService) discard(publicPath string) {
	if publicPath == "" {
		return
	}
	if err := s.images.Remove(publicPath); err != nil {
		slog.Error("failed to remove image file", "path", publicPath, "error", err)
	}
}

// Create validates the form, stores the optional image and inserts the row.
// The image is removed again if the insert fails.
func (s *CatalogService) Create(ctx context.Context, form PerfumeForm, img *Upload) (store.Perfume, error) {
	fields, err := form.validate()
	if err != nil {
		return store.Perfume{}, err
	}

	imagePath, err := s.saveUpload(img)
	if err != nil {
		return store.Perfume{}, err
	}

	now := s.now().UTC()
	p, err := s.queries.CreatePerfume(ctx, store.CreatePerfumeParams{
		Name:        fields.name,
		Description: fields.description,
		Price:       fields.price,
		Image:       nullString(imagePath),
		Stock:       fields.stock,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		s.discard(imagePath)
		return store.Perfume{}, storeError("creating perfume", err)
	}

	slog.Info("perfume created", "perfume_id", p.ID, "name", p.Name)
	return p, nil
}

// Update overwrites a perfume. With a new image, the old file is deleted
// only after the row points at the new one; if the update fails the new
// file is deleted and the old reference stays.
func (s *CatalogService) Update(ctx context.Context, id int64, form PerfumeForm, img *Upload) (store.Perfume, error) {
	fields, err := form.validate()
	if err != nil {
		return store.Perfume{}, err
	}

	existing, err := s.Get(ctx, id)
	if err != nil {
		return store.Perfume{}, err
	}
	oldImage := existing.ImagePath()

	newImage, err := s.saveUpload(img)
	if err != nil {
		return store.Perfume{}, err
	}

	image := oldImage
	if newImage != "" {
		image = newImage
	}

	n, err := s.queries.UpdatePerfume(ctx, store.UpdatePerfumeParams{
		Name:        fields.name,
		Description: fields.description,
		Price:       fields.price,
		Image:       nullString(image),
		Stock:       fields.stock,
		UpdatedAt:   s.now().UTC(),
		ID:          id,
	})
	if err != nil {
		s.discard(newImage)
		return store.Perfume{}, storeError("updating perfume", err)
	}
	if n == 0 {
		s.discard(newImage)
		return store.Perfume{}, ErrNotFound
	}

	if newImage != "" && oldImage != "" && oldImage != newImage {
		s.discard(oldImage)
	}

	slog.Info("perfume updated", "perfume_id", id)
	return s.Get(ctx, id)
}

// Delete removes the perfume and then its image file.
func (s *CatalogService) Delete(ctx context.Context, id int64) error {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	n, err := s.queries.DeletePerfume(ctx, id)
	if err != nil {
		return storeError("deleting perfume", err)
	}
	if n == 0 {
		return ErrNotFound
	}

	s.discard(existing.ImagePath())
	slog.Info("perfume deleted", "perfume_id", id)
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
