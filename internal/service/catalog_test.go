// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/perfumery/internal/imaging"
	"github.com/olegiv/perfumery/internal/store"
)

func validForm() PerfumeForm {
	return PerfumeForm{
		Name:        "Oud Wood",
		Description: "Smoky and warm",
		Price:       "250000",
		Stock:       "12",
	}
}

func upload(name string) *Upload {
	return &Upload{Reader: strings.NewReader("image-bytes"), Filename: name}
}

// failWrites makes every statement of kind ("INSERT" or "UPDATE") on
// perfumes abort, simulating a store failure.
func failWrites(t *testing.T, db *sql.DB, kind string) {
	t.Helper()
	_, err := db.Exec(`CREATE TRIGGER fail_` + strings.ToLower(kind) + ` BEFORE ` + kind +
		` ON perfumes BEGIN SELECT RAISE(ABORT, 'simulated failure'); END;`)
	require.NoError(t, err)
}

func TestCreateThenGetRoundTrip(t *testing.T) {
	db := newTestDB(t)
	svc := NewCatalogService(db, store.DialectSQLite, newFakeImages())
	ctx := context.Background()

	created, err := svc.Create(ctx, validForm(), nil)
	require.NoError(t, err)

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Oud Wood", got.Name)
	assert.Equal(t, "Smoky and warm", got.Description)
	assert.Equal(t, int64(250000), got.Price)
	assert.Equal(t, int64(12), got.Stock)
	assert.False(t, got.Image.Valid)
}

func TestListInInsertionOrder(t *testing.T) {
	db := newTestDB(t)
	svc := NewCatalogService(db, store.DialectSQLite, newFakeImages())
	ctx := context.Background()

	for _, name := range []string{"C", "A", "B"} {
		form := validForm()
		form.Name = name
		_, err := svc.Create(ctx, form, nil)
		require.NoError(t, err)
	}

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "C", list[0].Name)
	assert.Equal(t, "A", list[1].Name)
	assert.Equal(t, "B", list[2].Name)
}

func TestGetNotFound(t *testing.T) {
	svc := NewCatalogService(newTestDB(t), store.DialectSQLite, newFakeImages())
	_, err := svc.Get(context.Background(), 404)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPerfumeFormValidation(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*PerfumeForm)
		wantField string
	}{
		{"missing name", func(f *PerfumeForm) { f.Name = "   " }, "name"},
		{"long name", func(f *PerfumeForm) { f.Name = strings.Repeat("n", MaxNameLength+1) }, "name"},
		{"missing price", func(f *PerfumeForm) { f.Price = "" }, "price"},
		{"fractional price", func(f *PerfumeForm) { f.Price = "12.5" }, "price"},
		{"negative price", func(f *PerfumeForm) { f.Price = "-1" }, "price"},
		{"negative stock", func(f *PerfumeForm) { f.Stock = "-3" }, "stock"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := validForm()
			tt.mutate(&form)
			_, err := form.validate()
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Fields, tt.wantField)
		})
	}
}

func TestParseStock(t *testing.T) {
	tests := map[string]int64{"7": 7, " 7 ": 7, "": 0, "abc": 0, "3.5": 0, "-2": -2}
	for in, want := range tests {
		assert.Equal(t, want, ParseStock(in), "ParseStock(%q)", in)
	}
}

func TestCreateWithImage(t *testing.T) {
	db := newTestDB(t)
	images := newFakeImages()
	svc := NewCatalogService(db, store.DialectSQLite, images)

	p, err := svc.Create(context.Background(), validForm(), upload("bottle.png"))
	require.NoError(t, err)
	assert.Equal(t, "/uploads/1.png", p.ImagePath())
	assert.True(t, images.exists("/uploads/1.png"))
}

func TestCreateValidationFailureSavesNothing(t *testing.T) {
	images := newFakeImages()
	svc := NewCatalogService(newTestDB(t), store.DialectSQLite, images)

	form := validForm()
	form.Name = ""
	_, err := svc.Create(context.Background(), form, upload("bottle.png"))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Zero(t, images.count())
}

func TestCreateInsertFailureRemovesImage(t *testing.T) {
	db := newTestDB(t)
	images := newFakeImages()
	svc := NewCatalogService(db, store.DialectSQLite, images)
	failWrites(t, db, "INSERT")

	_, err := svc.Create(context.Background(), validForm(), upload("bottle.png"))
	assert.ErrorIs(t, err, ErrStore)
	assert.Zero(t, images.count())
	assert.Equal(t, []string{"/uploads/1.png"}, images.removed)
}

func TestCreateInvalidImage(t *testing.T) {
	images := newFakeImages()
	images.saveErr = errors.Join(imaging.ErrInvalidImage, errors.New("not a png"))
	svc := NewCatalogService(newTestDB(t), store.DialectSQLite, images)

	_, err := svc.Create(context.Background(), validForm(), upload("notes.txt"))
	assert.ErrorIs(t, err, ErrInvalidImage)

	list, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestUpdateReplacesImage(t *testing.T) {
	db := newTestDB(t)
	images := newFakeImages()
	svc := NewCatalogService(db, store.DialectSQLite, images)
	ctx := context.Background()

	p, err := svc.Create(ctx, validForm(), upload("old.png"))
	require.NoError(t, err)
	oldPath := p.ImagePath()

	form := validForm()
	form.Name = "Oud Wood Intense"
	form.Stock = "3"
	updated, err := svc.Update(ctx, p.ID, form, upload("new.png"))
	require.NoError(t, err)

	assert.Equal(t, "Oud Wood Intense", updated.Name)
	assert.Equal(t, int64(3), updated.Stock)
	assert.NotEqual(t, oldPath, updated.ImagePath())
	assert.True(t, images.exists(updated.ImagePath()))
	assert.False(t, images.exists(oldPath), "old image should be removed after a successful update")
}

func TestUpdateWithoutImageKeepsOld(t *testing.T) {
	db := newTestDB(t)
	images := newFakeImages()
	svc := NewCatalogService(db, store.DialectSQLite, images)
	ctx := context.Background()

	p, err := svc.Create(ctx, validForm(), upload("old.png"))
	require.NoError(t, err)

	updated, err := svc.Update(ctx, p.ID, validForm(), nil)
	require.NoError(t, err)
	assert.Equal(t, p.ImagePath(), updated.ImagePath())
	assert.True(t, images.exists(p.ImagePath()))
	assert.Empty(t, images.removed)
}

func TestUpdateFailureKeepsOldImage(t *testing.T) {
	db := newTestDB(t)
	images := newFakeImages()
	svc := NewCatalogService(db, store.DialectSQLite, images)
	ctx := context.Background()

	p, err := svc.Create(ctx, validForm(), upload("old.png"))
	require.NoError(t, err)
	oldPath := p.ImagePath()

	failWrites(t, db, "UPDATE")

	_, err = svc.Update(ctx, p.ID, validForm(), upload("new.png"))
	assert.ErrorIs(t, err, ErrStore)

	// The new file is gone, the old one is still referenced and present.
	assert.Equal(t, 1, images.count())
	assert.True(t, images.exists(oldPath))

	got, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, oldPath, got.ImagePath())
}

func TestUpdateNotFound(t *testing.T) {
	images := newFakeImages()
	svc := NewCatalogService(newTestDB(t), store.DialectSQLite, images)

	_, err := svc.Update(context.Background(), 99, validForm(), upload("new.png"))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, images.count())
}

func TestDeleteRemovesImage(t *testing.T) {
	db := newTestDB(t)
	images := newFakeImages()
	svc := NewCatalogService(db, store.DialectSQLite, images)
	ctx := context.Background()

	p, err := svc.Create(ctx, validForm(), upload("bottle.png"))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, p.ID))
	assert.False(t, images.exists(p.ImagePath()))

	_, err = svc.Get(ctx, p.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, svc.Delete(ctx, p.ID), ErrNotFound)
}

func TestCatalogWithImageProcessor(t *testing.T) {
	db := newTestDB(t)
	dir := t.TempDir()
	svc := NewCatalogService(db, store.DialectSQLite, imaging.NewProcessor(dir))
	ctx := context.Background()

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))))

	p, err := svc.Create(ctx, validForm(), &Upload{Reader: &buf, Filename: "bottle.png"})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(p.ImagePath(), imaging.PublicPrefix))

	onDisk := filepath.Join(dir, filepath.Base(p.ImagePath()))
	_, err = os.Stat(onDisk)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, p.ID))
	_, err = os.Stat(onDisk)
	assert.True(t, os.IsNotExist(err), "file should be removed with the perfume")
}
