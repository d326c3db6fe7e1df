// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"time"
)

const perfumeColumns = `id, name, description, price, image, stock, created_at, updated_at`

func scanPerfume(row interface{ Scan(...interface{}) error }) (Perfume, error) {
	var p Perfume
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.Price,
		&p.Image,
		&p.Stock,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	return p, err
}

const listPerfumes = `-- name: ListPerfumes :many
SELECT ` + perfumeColumns + ` FROM perfumes ORDER BY id
`

func (q *Queries) ListPerfumes(ctx context.Context) ([]Perfume, error) {
	rows, err := q.db.QueryContext(ctx, listPerfumes)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	items := []Perfume{}
	for rows.Next() {
		p, err := scanPerfume(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getPerfume = `-- name: GetPerfume :one
SELECT ` + perfumeColumns + ` FROM perfumes WHERE id = ?
`

func (q *Queries) GetPerfume(ctx context.Context, id int64) (Perfume, error) {
	return scanPerfume(q.db.QueryRowContext(ctx, getPerfume, id))
}

// GetPerfumeForUpdate reads a perfume row and, on MySQL, locks it until the
// surrounding transaction ends.
func (q *Queries) GetPerfumeForUpdate(ctx context.Context, id int64) (Perfume, error) {
	query := `SELECT ` + perfumeColumns + ` FROM perfumes WHERE id = ?` + q.dialect.lockingRead()
	return scanPerfume(q.db.QueryRowContext(ctx, query, id))
}

const createPerfume = `-- name: CreatePerfume :execlastid
INSERT INTO perfumes (name, description, price, image, stock, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
`

type CreatePerfumeParams struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Price       int64          `json:"price"`
	Image       sql.NullString `json:"image"`
	Stock       int64          `json:"stock"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

func (q *Queries) CreatePerfume(ctx context.Context, arg CreatePerfumeParams) (Perfume, error) {
	res, err := q.db.ExecContext(ctx, createPerfume,
		arg.Name,
		arg.Description,
		arg.Price,
		arg.Image,
		arg.Stock,
		arg.CreatedAt,
		arg.UpdatedAt,
	)
	if err != nil {
		return Perfume{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Perfume{}, err
	}
	return q.GetPerfume(ctx, id)
}

const updatePerfume = `-- name: UpdatePerfume :execrows
UPDATE perfumes
SET name = ?, description = ?, price = ?, image = ?, stock = ?, updated_at = ?
WHERE id = ?
`

type UpdatePerfumeParams struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Price       int64          `json:"price"`
	Image       sql.NullString `json:"image"`
	Stock       int64          `json:"stock"`
	UpdatedAt   time.Time      `json:"updated_at"`
	ID          int64          `json:"id"`
}

// UpdatePerfume overwrites every mutable column and returns the number of
// rows matched.
func (q *Queries) UpdatePerfume(ctx context.Context, arg UpdatePerfumeParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, updatePerfume,
		arg.Name,
		arg.Description,
		arg.Price,
		arg.Image,
		arg.Stock,
		arg.UpdatedAt,
		arg.ID,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deletePerfume = `-- name: DeletePerfume :execrows
DELETE FROM perfumes WHERE id = ?
`

func (q *Queries) DeletePerfume(ctx context.Context, id int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, deletePerfume, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const decrementStock = `-- name: DecrementStock :execrows
UPDATE perfumes SET stock = stock - ?, updated_at = ? WHERE id = ? AND stock >= ?
`

type DecrementStockParams struct {
	ID        int64     `json:"id"`
	Quantity  int64     `json:"quantity"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DecrementStock subtracts Quantity only when enough stock remains. Zero
// rows affected means the row is missing or short on stock.
func (q *Queries) DecrementStock(ctx context.Context, arg DecrementStockParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, decrementStock, arg.Quantity, arg.UpdatedAt, arg.ID, arg.Quantity)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const countPerfumes = `-- name: CountPerfumes :one
SELECT COUNT(*) FROM perfumes
`

func (q *Queries) CountPerfumes(ctx context.Context) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countPerfumes).Scan(&count)
	return count, err
}
