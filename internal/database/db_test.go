// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package database_test

import (
	"context"
	"os"
	"testing"
	"time"

	"codeberg.org/oliverandrich/planifio/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_InMemory(t *testing.T) {
	db, err := database.Open(":memory:")

	require.NoError(t, err)
	require.NotNil(t, db)

	err = database.Close(db)
	require.NoError(t, err)
}

func TestOpen_DefaultDSN(t *testing.T) {
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	_ = os.Chdir(tmpDir)
	defer func() {
		_ = os.Chdir(oldWd)
	}()

	db, err := database.Open("")

	require.NoError(t, err)
	require.NotNil(t, db)

	defer func() {
		_ = db.Close()
	}()
}

func TestOpen_MigrationsApplied(t *testing.T) {
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	defer func() {
		_ = db.Close()
	}()

	tables := []string{
		"users", "tokens", "workspaces", "workspace_members", "projects", "project_members",
		"tasks", "task_assignees", "task_watchers", "subtasks", "attachments", "comments", "activity_logs",
	}
	for _, table := range tables {
		var count int64
		err = db.Get(&count, "SELECT count(*) FROM sqlite_master WHERE type='table' AND name=?", table)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count, table)
	}
}

func TestOpen_ForeignKeysEnabled(t *testing.T) {
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	defer func() {
		_ = db.Close()
	}()

	var enabled int
	err = db.Get(&enabled, "PRAGMA foreign_keys")
	require.NoError(t, err)
	assert.Equal(t, 1, enabled)
}

func TestOpen_WithExistingParams(t *testing.T) {
	db, err := database.Open(":memory:?_pragma=foreign_keys(1)")

	require.NoError(t, err)
	require.NotNil(t, db)

	defer func() {
		_ = db.Close()
	}()
}

func TestOpen_FileDatabase(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := tmpDir + "/subdir/test.db"

	db, err := database.Open(dbPath)
	require.NoError(t, err)
	defer func() {
		_ = db.Close()
	}()

	var count int64
	err = db.Get(&count, "SELECT count(*) FROM sqlite_master WHERE type='table' AND name='users'")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestRollbackAndMigrate(t *testing.T) {
	ctx := context.Background()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	defer func() {
		_ = db.Close()
	}()

	pending, err := database.Pending(ctx, db.DB)
	require.NoError(t, err)
	assert.False(t, pending)

	require.NoError(t, database.Rollback(ctx, db.DB, 0))

	var count int64
	err = db.Get(&count, "SELECT count(*) FROM sqlite_master WHERE type='table' AND name='users'")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	pending, err = database.Pending(ctx, db.DB)
	require.NoError(t, err)
	assert.True(t, pending)

	require.NoError(t, database.Migrate(ctx, db.DB))
	err = db.Get(&count, "SELECT count(*) FROM sqlite_master WHERE type='table' AND name='users'")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestOpen_DeletingWorkspaceCascades(t *testing.T) {
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	defer func() {
		_ = db.Close()
	}()

	now := time.Now().UTC()
	_, err = db.Exec(`INSERT INTO users (id, email, password_hash, created_at, updated_at) VALUES (1, 'a@x.com', 'h', ?, ?)`, now, now)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO workspaces (id, name, owner_user_id, created_at, updated_at) VALUES (1, 'W', 1, ?, ?)`, now, now)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO workspace_members (workspace_id, user_id, role, joined_at) VALUES (1, 1, 'owner', ?)`, now)
	require.NoError(t, err)

	_, err = db.Exec(`DELETE FROM workspaces WHERE id = 1`)
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Get(&count, "SELECT count(*) FROM workspace_members"))
	assert.Zero(t, count)
}
