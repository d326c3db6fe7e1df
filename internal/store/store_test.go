// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/perfumery/internal/auth"
)

// testDB creates a migrated SQLite database in a temp directory.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := NewDB(DialectSQLite, filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, Migrate(db, DialectSQLite))
	return db
}

func createTestPerfume(t *testing.T, q *Queries, name string, stock int64) Perfume {
	t.Helper()
	now := time.Now().UTC()
	p, err := q.CreatePerfume(context.Background(), CreatePerfumeParams{
		Name:        name,
		Description: name + " description",
		Price:       150000,
		Stock:       stock,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	require.NoError(t, err)
	return p
}

func TestParseDialect(t *testing.T) {
	tests := []struct {
		in      string
		want    Dialect
		wantErr bool
	}{
		{"sqlite", DialectSQLite, false},
		{"mysql", DialectMySQL, false},
		{"postgres", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDialect(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSQLiteDSN(t *testing.T) {
	dsn := sqliteDSN("./data/shop.db")
	assert.True(t, strings.HasPrefix(dsn, "file:./data/shop.db?"))
	assert.Contains(t, dsn, "_pragma=busy_timeout(5000)")
	assert.Contains(t, dsn, "_pragma=foreign_keys(1)")
	assert.True(t, strings.HasSuffix(dsn, "&_txlock=immediate"))

	withQuery := sqliteDSN("file:shop.db?mode=rwc")
	assert.True(t, strings.HasPrefix(withQuery, "file:shop.db?mode=rwc&_pragma="))
}

func TestMySQLDSN(t *testing.T) {
	dsn, err := mysqlDSN("shop:secret@tcp(127.0.0.1:3306)/perfumery")
	require.NoError(t, err)
	assert.Contains(t, dsn, "parseTime=true")

	_, err = mysqlDSN("not a dsn")
	assert.Error(t, err)
}

func TestLockingRead(t *testing.T) {
	assert.Equal(t, " FOR UPDATE", DialectMySQL.lockingRead())
	assert.Equal(t, "", DialectSQLite.lockingRead())
}

func TestUsers(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	q := New(db, DialectSQLite)

	now := time.Now().UTC()
	user, err := q.CreateUser(ctx, CreateUserParams{
		Username:     "alice",
		PasswordHash: "hashed",
		Role:         RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	require.NoError(t, err)
	assert.NotZero(t, user.ID)
	assert.Equal(t, "alice", user.Username)
	assert.False(t, user.IsAdmin())

	got, err := q.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	got, err = q.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "hashed", got.PasswordHash)

	_, err = q.GetUserByUsername(ctx, "bob")
	assert.ErrorIs(t, err, sql.ErrNoRows)

	require.NoError(t, q.UpdateUserPassword(ctx, UpdateUserPasswordParams{
		PasswordHash: "rehashed",
		UpdatedAt:    now.Add(time.Minute),
		ID:           user.ID,
	}))
	got, err = q.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "rehashed", got.PasswordHash)

	count, err := q.CountUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestCreateUserDuplicateUsername(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	q := New(db, DialectSQLite)

	now := time.Now().UTC()
	params := CreateUserParams{Username: "alice", PasswordHash: "x", Role: RoleUser, CreatedAt: now, UpdatedAt: now}
	_, err := q.CreateUser(ctx, params)
	require.NoError(t, err)

	_, err = q.CreateUser(ctx, params)
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err), "want unique violation, got %v", err)
}

func TestIsUniqueViolationNil(t *testing.T) {
	assert.False(t, IsUniqueViolation(nil))
	assert.False(t, IsUniqueViolation(sql.ErrNoRows))
}

func TestPerfumeCRUD(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	q := New(db, DialectSQLite)

	first := createTestPerfume(t, q, "Oud Wood", 5)
	second := createTestPerfume(t, q, "Santal 33", 0)

	assert.Equal(t, "Oud Wood", first.Name)
	assert.Equal(t, int64(150000), first.Price)
	assert.False(t, first.Image.Valid)
	assert.Equal(t, "", first.ImagePath())
	assert.True(t, first.InStock())
	assert.False(t, second.InStock())

	list, err := q.ListPerfumes(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID)
	assert.Equal(t, second.ID, list[1].ID)

	n, err := q.UpdatePerfume(ctx, UpdatePerfumeParams{
		Name:        "Oud Wood Intense",
		Description: "darker",
		Price:       175000,
		Image:       sql.NullString{String: "/uploads/1.png", Valid: true},
		Stock:       7,
		UpdatedAt:   time.Now().UTC(),
		ID:          first.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := q.GetPerfume(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "Oud Wood Intense", got.Name)
	assert.Equal(t, "/uploads/1.png", got.ImagePath())
	assert.Equal(t, int64(7), got.Stock)

	n, err = q.UpdatePerfume(ctx, UpdatePerfumeParams{Name: "ghost", ID: 9999, UpdatedAt: time.Now().UTC()})
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = q.DeletePerfume(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = q.DeletePerfume(ctx, second.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = q.GetPerfume(ctx, second.ID)
	assert.ErrorIs(t, err, sql.ErrNoRows)

	count, err := q.CountPerfumes(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestListPerfumesEmpty(t *testing.T) {
	db := testDB(t)
	list, err := New(db, DialectSQLite).ListPerfumes(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

func TestDecrementStock(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	q := New(db, DialectSQLite)
	p := createTestPerfume(t, q, "Aventus", 3)

	n, err := q.DecrementStock(ctx, DecrementStockParams{ID: p.ID, Quantity: 2, UpdatedAt: time.Now().UTC()})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	// Only one unit left; the guard refuses to go negative.
	n, err = q.DecrementStock(ctx, DecrementStockParams{ID: p.ID, Quantity: 2, UpdatedAt: time.Now().UTC()})
	require.NoError(t, err)
	assert.Zero(t, n)

	got, err := q.GetPerfume(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Stock)
}

func TestStockCheckConstraint(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	q := New(db, DialectSQLite)
	p := createTestPerfume(t, q, "Bleu", 1)

	_, err := db.ExecContext(ctx, "UPDATE perfumes SET stock = -1 WHERE id = ?", p.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CHECK constraint failed")
}

func TestGetPerfumeForUpdateInTx(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	q := New(db, DialectSQLite)
	p := createTestPerfume(t, q, "Baccarat Rouge", 4)

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback() }()

	locked, err := q.WithTx(tx).GetPerfumeForUpdate(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(4), locked.Stock)
	assert.Equal(t, DialectSQLite, q.WithTx(tx).Dialect())

	_, err = q.WithTx(tx).GetPerfumeForUpdate(ctx, 12345)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := testDB(t)
	require.NoError(t, Migrate(db, DialectSQLite))
}

func TestSeedAdmin(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	require.NoError(t, SeedAdmin(ctx, db, DialectSQLite, "admin", "s3cret-pass"))

	q := New(db, DialectSQLite)
	admin, err := q.GetUserByUsername(ctx, "admin")
	require.NoError(t, err)
	assert.True(t, admin.IsAdmin())

	ok, err := auth.CheckPassword("s3cret-pass", admin.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)

	// Second run is a no-op.
	require.NoError(t, SeedAdmin(ctx, db, DialectSQLite, "admin", "other-pass"))
	again, err := q.GetUserByUsername(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, admin.PasswordHash, again.PasswordHash)
}
