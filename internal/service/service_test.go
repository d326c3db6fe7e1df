// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/olegiv/perfumery/internal/store"
)

// newTestDB opens a migrated SQLite database in a temp directory.
func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := store.NewDB(store.DialectSQLite, filepath.Join(t.TempDir(), "shop.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, store.Migrate(db, store.DialectSQLite))
	return db
}

// fakeImages is an in-memory ImageStore.
type fakeImages struct {
	mu      sync.Mutex
	next    int
	files   map[string][]byte
	removed []string
	saveErr error
}

func newFakeImages() *fakeImages {
	return &fakeImages{files: make(map[string][]byte)}
}

func (f *fakeImages) Save(r io.Reader, originalName string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return "", f.saveErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	f.next++
	p := fmt.Sprintf("/uploads/%d%s", f.next, filepath.Ext(originalName))
	f.files[p] = data
	return p, nil
}

func (f *fakeImages) Remove(publicPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.files[publicPath]; !ok {
		return errors.New("no such file")
	}
	delete(f.files, publicPath)
	f.removed = append(f.removed, publicPath)
	return nil
}

func (f *fakeImages) exists(publicPath string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.files[publicPath]
	return ok
}

func (f *fakeImages) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.files)
}
