// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/olegiv/perfumery/internal/store"
)

func TestRegisterThenLogin(t *testing.T) {
	db := newTestDB(t)
	svc := NewAccountService(db, store.DialectSQLite)
	ctx := context.Background()

	user, err := svc.Register(ctx, "  alice  ", "wonderland")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, store.RoleUser, user.Role)
	assert.True(t, strings.HasPrefix(user.PasswordHash, "$argon2id$"))
	assert.NotContains(t, user.PasswordHash, "wonderland")

	got, err := svc.Login(ctx, "alice", "wonderland")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
}

func TestLoginWrongPassword(t *testing.T) {
	db := newTestDB(t)
	svc := NewAccountService(db, store.DialectSQLite)
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice", "wonderland")
	require.NoError(t, err)

	for _, pw := range []string{"", "Wonderland", "wonderland ", "something-else"} {
		_, err := svc.Login(ctx, "alice", pw)
		assert.ErrorIs(t, err, ErrInvalidCredentials, "password %q", pw)
	}
}

func TestLoginUnknownUser(t *testing.T) {
	svc := NewAccountService(newTestDB(t), store.DialectSQLite)
	_, err := svc.Login(context.Background(), "nobody", "whatever")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegisterDuplicateUsername(t *testing.T) {
	db := newTestDB(t)
	svc := NewAccountService(db, store.DialectSQLite)
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice", "wonderland")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "alice", "another-pass")
	assert.ErrorIs(t, err, ErrDuplicateUsername)
}

func TestRegisterConcurrentDuplicate(t *testing.T) {
	db := newTestDB(t)
	svc := NewAccountService(db, store.DialectSQLite)
	ctx := context.Background()

	const n = 4
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = svc.Register(ctx, "race", "password1")
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrDuplicateUsername)
	}
	assert.Equal(t, 1, succeeded)
}

func TestValidateCredentials(t *testing.T) {
	tests := []struct {
		name      string
		username  string
		password  string
		wantField string
	}{
		{"valid", "alice_01", "secret1", ""},
		{"valid dots and dashes", "a.b-c", "secret1", ""},
		{"empty username", "", "secret1", "username"},
		{"short username", "ab", "secret1", "username"},
		{"long username", strings.Repeat("a", 51), "secret1", "username"},
		{"bad characters", "alice smith", "secret1", "username"},
		{"empty password", "alice", "", "password"},
		{"short password", "alice", "12345", "password"},
		{"long password", "alice", strings.Repeat("p", 73), "password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCredentials(tt.username, tt.password)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "want ValidationError, got %v", err)
			assert.Contains(t, verr.Fields, tt.wantField)
		})
	}
}

func TestRegisterValidationErrorDoesNotCreateUser(t *testing.T) {
	db := newTestDB(t)
	svc := NewAccountService(db, store.DialectSQLite)

	_, err := svc.Register(context.Background(), "x", "1")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Fields, 2)

	count, err := store.New(db, store.DialectSQLite).CountUsers(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestLoginUpgradesLegacyBcryptHash(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	q := store.New(db, store.DialectSQLite)

	legacy, err := bcrypt.GenerateFromPassword([]byte("imported"), bcrypt.MinCost)
	require.NoError(t, err)
	now := time.Now().UTC()
	created, err := q.CreateUser(ctx, store.CreateUserParams{
		Username:     "legacy",
		PasswordHash: string(legacy),
		Role:         store.RoleAdmin,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	require.NoError(t, err)

	svc := NewAccountService(db, store.DialectSQLite)
	user, err := svc.Login(ctx, "legacy", "imported")
	require.NoError(t, err)
	assert.True(t, user.IsAdmin())

	stored, err := q.GetUserByID(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stored.PasswordHash, "$argon2id$"), "hash not upgraded: %s", stored.PasswordHash)

	// The upgraded hash still accepts the same password.
	_, err = svc.Login(ctx, "legacy", "imported")
	assert.NoError(t, err)
}

func TestUserByID(t *testing.T) {
	db := newTestDB(t)
	svc := NewAccountService(db, store.DialectSQLite)
	ctx := context.Background()

	user, err := svc.Register(ctx, "alice", "wonderland")
	require.NoError(t, err)

	got, err := svc.UserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)

	_, err = svc.UserByID(ctx, user.ID+100)
	assert.ErrorIs(t, err, ErrNotFound)
}
