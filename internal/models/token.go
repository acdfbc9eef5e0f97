// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import (
	"database/sql"
	"time"
)

// Token is the store record backing a signed token. Only the SHA256 hash of
// the signed value is kept.
type Token struct { //nolint:govet // fieldalignment: readability over optimization
	ID          string         `db:"id" json:"id"`
	UserID      int64          `db:"user_id" json:"user_id"`
	TokenHash   string         `db:"token_hash" json:"-"`
	Purpose     string         `db:"purpose" json:"purpose"`
	WorkspaceID sql.NullInt64  `db:"workspace_id" json:"-"`
	Role        sql.NullString `db:"role" json:"-"`
	ExpiresAt   time.Time      `db:"expires_at" json:"expires_at"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
}

// Expired reports whether the record is past its expiry at now.
func (t *Token) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
