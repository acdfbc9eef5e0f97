// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vinovest/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	// ErrNotFound is returned when a record is not found
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique constraint rejects a write
	ErrDuplicate = errors.New("record already exists")
)

// querier is satisfied by both *sqlx.DB and *sqlx.Tx.
type querier interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Repository provides typed access to the SQLite store.
type Repository struct {
	db *sqlx.DB
	q  querier
}

// New creates a new Repository instance
func New(db *sqlx.DB) *Repository {
	return &Repository{db: db, q: db}
}

// DB returns the underlying connection pool.
func (r *Repository) DB() *sqlx.DB {
	return r.db
}

// InTx runs fn against a repository bound to a single transaction. The
// transaction is committed when fn returns nil and rolled back otherwise.
// Nested calls reuse the outer transaction.
func (r *Repository) InTx(ctx context.Context, fn func(tx *Repository) error) error {
	if _, ok := r.q.(*sqlx.Tx); ok {
		return fn(r)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(&Repository{db: r.db, q: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// wrapError converts driver errors to repository errors
func wrapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return fmt.Errorf("%w: %s", ErrDuplicate, sqliteErr.Error())
		}
	}
	return err
}

// now returns the current time truncated the way it is stored.
func now() time.Time {
	return time.Now().UTC()
}

func lastInsertID(res sql.Result) (int64, error) {
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read insert id: %w", err)
	}
	return id, nil
}
