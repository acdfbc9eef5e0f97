// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

func newProvider(db *sql.DB) (*goose.Provider, error) {
	fsys, err := fs.Sub(embedMigrations, "migrations")
	if err != nil {
		return nil, err
	}
	return goose.NewProvider(goose.DialectSQLite3, db, fsys)
}

// Migrate applies all pending migrations.
func Migrate(ctx context.Context, db *sql.DB) error {
	p, err := newProvider(db)
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}

	results, err := p.Up(ctx)
	if err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	for _, r := range results {
		slog.Debug("migration_applied", "version", r.Source.Version, "duration", r.Duration)
	}
	return nil
}

// Rollback reverts migrations until version is the newest one applied.
// Version 0 drops the whole schema.
func Rollback(ctx context.Context, db *sql.DB, version int64) error {
	p, err := newProvider(db)
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}

	results, err := p.DownTo(ctx, version)
	if err != nil {
		return fmt.Errorf("failed to roll back migrations: %w", err)
	}
	for _, r := range results {
		slog.Info("migration_reverted", "version", r.Source.Version)
	}
	return nil
}

// Pending reports whether migrations are waiting to be applied.
func Pending(ctx context.Context, db *sql.DB) (bool, error) {
	p, err := newProvider(db)
	if err != nil {
		return false, fmt.Errorf("failed to load migrations: %w", err)
	}
	return p.HasPending(ctx)
}
