// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/olegiv/perfumery/internal/metrics"
	"github.com/olegiv/perfumery/internal/store"
)

// PurchaseRequest is a user's intent to buy one perfume.
type PurchaseRequest struct {
	PerfumeID   int64
	Quantity    int64
	Recipient   string
	Address     string
	PaymentNote string
	UserID      int64
}

// Receipt confirms a committed purchase. Perfume is the snapshot read
// under the lock, before the decrement.
type Receipt struct {
	Reference   string
	Perfume     store.Perfume
	Quantity    int64
	Total       int64
	Recipient   string
	Address     string
	PaymentNote string
}

// ParseQuantity reads the requested quantity; anything that is not a
// positive integer means 1.
func ParseQuantity(raw string) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// PurchaseService reserves stock transactionally.
type PurchaseService struct {
	db      *sql.DB
	dialect store.Dialect
	now     func() time.Time
	newRef  func() string
}

// NewPurchaseService creates a PurchaseService.
func NewPurchaseService(db *sql.DB, dialect store.Dialect) *PurchaseService {
	return &PurchaseService{
		db:      db,
		dialect: dialect,
		now:     time.Now,
		newRef:  uuid.NewString,
	}
}

// Purchase locks the perfume row, checks stock, decrements it and commits.
// Every exit path rolls back an uncommitted transaction and returns the
// dedicated connection to the pool.
func (s *PurchaseService) Purchase(ctx context.Context, req PurchaseRequest) (Receipt, error) {
	if req.Quantity < 1 {
		req.Quantity = 1
	}

	start := time.Now()
	outcome := metrics.OutcomeError
	defer func() {
		metrics.RecordPurchase(outcome, req.Quantity, time.Since(start))
	}()

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return Receipt{}, s.fail(req, storeError("acquiring connection", err))
	}
	defer func() { _ = conn.Close() }()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return Receipt{}, s.fail(req, storeError("beginning transaction", err))
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	q := store.New(tx, s.dialect)

	perfume, err := q.GetPerfumeForUpdate(ctx, req.PerfumeID)
	if errors.Is(err, sql.ErrNoRows) {
		outcome = metrics.OutcomeNotFound
		return Receipt{}, ErrNotFound
	}
	if err != nil {
		return Receipt{}, s.fail(req, storeError("locking perfume", err))
	}

	if perfume.Stock < req.Quantity {
		outcome = metrics.OutcomeInsufficient
		return Receipt{}, s.insufficient(req, perfume)
	}

	n, err := q.DecrementStock(ctx, store.DecrementStockParams{
		ID:        req.PerfumeID,
		Quantity:  req.Quantity,
		UpdatedAt: s.now().UTC(),
	})
	if err != nil {
		return Receipt{}, s.fail(req, storeError("decrementing stock", err))
	}
	if n == 0 {
		outcome = metrics.OutcomeInsufficient
		return Receipt{}, s.insufficient(req, perfume)
	}

	if err := tx.Commit(); err != nil {
		return Receipt{}, s.fail(req, storeError("committing purchase", err))
	}
	committed = true
	outcome = metrics.OutcomeCommitted

	receipt := Receipt{
		Reference:   s.newRef(),
		Perfume:     perfume,
		Quantity:    req.Quantity,
		Total:       perfume.Price * req.Quantity,
		Recipient:   strings.TrimSpace(req.Recipient),
		Address:     strings.TrimSpace(req.Address),
		PaymentNote: strings.TrimSpace(req.PaymentNote),
	}

	slog.Info("purchase committed",
		"reference", receipt.Reference,
		"perfume_id", perfume.ID,
		"user_id", req.UserID,
		"quantity", req.Quantity,
		"total", receipt.Total,
	)
	return receipt, nil
}

func (s *PurchaseService) insufficient(req PurchaseRequest, p store.Perfume) error {
	slog.Info("purchase rejected: insufficient stock",
		"perfume_id", p.ID,
		"user_id", req.UserID,
		"requested", req.Quantity,
		"available", p.Stock,
	)
	return &InsufficientStockError{Perfume: p, Requested: req.Quantity, Available: p.Stock}
}

func (s *PurchaseService) fail(req PurchaseRequest, err error) error {
	slog.Error("purchase failed", "perfume_id", req.PerfumeID, "user_id", req.UserID, "error", err)
	return err
}
