// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/olegiv/perfumery/internal/auth"
	"github.com/olegiv/perfumery/internal/store"
)

// Credential limits. Passwords stop at 72 bytes so legacy bcrypt hashes
// and new argon2id hashes accept the same inputs.
const (
	MinUsernameLength = 3
	MaxUsernameLength = 50
	MinPasswordLength = 6
	MaxPasswordLength = 72
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// AccountService registers and authenticates users.
type AccountService struct {
	queries *store.Queries
	now     func() time.Time
}

// NewAccountService creates an AccountService.
func NewAccountService(db store.DBTX, dialect store.Dialect) *AccountService {
	return &AccountService{
		queries: store.New(db, dialect),
		now:     time.Now,
	}
}

// NormalizeUsername trims surrounding whitespace.
func NormalizeUsername(username string) string {
	return strings.TrimSpace(username)
}

// ValidateCredentials checks the registration form rules.
func ValidateCredentials(username, password string) error {
	verr := newValidationError()

	switch n := utf8.RuneCountInString(username); {
	case n == 0:
		verr.Add("username", "Username is required")
	case n < MinUsernameLength || n > MaxUsernameLength:
		verr.Add("username", "Username must be between 3 and 50 characters")
	case !usernamePattern.MatchString(username):
		verr.Add("username", "Username may only contain letters, digits, dots, dashes and underscores")
	}

	switch n := len(password); {
	case n == 0:
		verr.Add("password", "Password is required")
	case n < MinPasswordLength:
		verr.Add("password", "Password must be at least 6 characters")
	case n > MaxPasswordLength:
		verr.Add("password", "Password must be at most 72 bytes")
	}

	return verr.errOrNil()
}

// Register creates a user with the "user" role.
func (s *AccountService) Register(ctx context.Context, username, password string) (store.User, error) {
	username = NormalizeUsername(username)
	if err := ValidateCredentials(username, password); err != nil {
		return store.User{}, err
	}

	if _, err := s.queries.GetUserByUsername(ctx, username); err == nil {
		return store.User{}, ErrDuplicateUsername
	} else if !errors.Is(err, sql.ErrNoRows) {
		return store.User{}, storeError("checking username", err)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return store.User{}, err
	}

	now := s.now().UTC()
	user, err := s.queries.CreateUser(ctx, store.CreateUserParams{
		Username:     username,
		PasswordHash: hash,
		Role:         store.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		// A concurrent registration can win between the check and the insert.
		if store.IsUniqueViolation(err) {
			return store.User{}, ErrDuplicateUsername
		}
		return store.User{}, storeError("creating user", err)
	}

	slog.Info("user registered", "user_id", user.ID, "username", user.Username)
	return user, nil
}

// Login verifies credentials and returns the matching user. Unknown
// usernames and wrong passwords both yield ErrInvalidCredentials.
func (s *AccountService) Login(ctx context.Context, username, password string) (store.User, error) {
	username = NormalizeUsername(username)

	user, err := s.queries.GetUserByUsername(ctx, username)
	if errors.Is(err, sql.ErrNoRows) {
		auth.SimulatePasswordCheck(password)
		return store.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return store.User{}, storeError("loading user", err)
	}

	ok, err := auth.CheckPassword(password, user.PasswordHash)
	if err != nil {
		slog.Warn("unreadable password hash", "user_id", user.ID, "error", err)
		return store.User{}, ErrInvalidCredentials
	}
	if !ok {
		return store.User{}, ErrInvalidCredentials
	}

	if auth.NeedsRehash(user.PasswordHash) {
		s.rehash(ctx, &user, password)
	}

	return user, nil
}

// rehash upgrades a legacy hash. Failure is logged and the login proceeds.
func (s *AccountService) rehash(ctx context.Context, user *store.User, password string) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		slog.Warn("failed to re-hash password", "user_id", user.ID, "error", err)
		return
	}
	err = s.queries.UpdateUserPassword(ctx, store.UpdateUserPasswordParams{
		PasswordHash: hash,
		UpdatedAt:    s.now().UTC(),
		ID:           user.ID,
	})
	if err != nil {
		slog.Warn("failed to store re-hashed password", "user_id", user.ID, "error", err)
		return
	}
	user.PasswordHash = hash
	slog.Info("upgraded password hash", "user_id", user.ID)
}

// UserByID loads a user for session validation.
func (s *AccountService) UserByID(ctx context.Context, id int64) (store.User, error) {
	user, err := s.queries.GetUserByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return store.User{}, ErrNotFound
	}
	if err != nil {
		return store.User{}, storeError("loading user", err)
	}
	return user, nil
}
