// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"time"

	"codeberg.org/oliverandrich/planifio/internal/models"
)

// CreateToken stores a token record.
func (r *Repository) CreateToken(ctx context.Context, token *models.Token) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO tokens (id, user_id, token_hash, purpose, workspace_id, role, expires_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		token.ID, token.UserID, token.TokenHash, token.Purpose, token.WorkspaceID, token.Role,
		token.ExpiresAt.UTC(), token.CreatedAt.UTC())
	return wrapError(err)
}

// GetTokenByHash retrieves a token record by the hash of its signed value.
func (r *Repository) GetTokenByHash(ctx context.Context, tokenHash string) (*models.Token, error) {
	var token models.Token
	if err := r.q.GetContext(ctx, &token, `SELECT * FROM tokens WHERE token_hash = ?`, tokenHash); err != nil {
		return nil, wrapError(err)
	}
	return &token, nil
}

// DeleteTokenByHash deletes a token record in a single statement and reports
// whether a record was removed. Concurrent callers see exactly one true.
func (r *Repository) DeleteTokenByHash(ctx context.Context, tokenHash string) (bool, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM tokens WHERE token_hash = ?`, tokenHash)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeleteToken deletes a token record by ID.
func (r *Repository) DeleteToken(ctx context.Context, id string) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM tokens WHERE id = ?`, id)
	return err
}

// DeleteUserTokens deletes all tokens of one purpose for a user.
func (r *Repository) DeleteUserTokens(ctx context.Context, userID int64, purpose string) (int64, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM tokens WHERE user_id = ? AND purpose = ?`, userID, purpose)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// GetInviteToken returns the newest invite record for a (user, workspace) pair.
func (r *Repository) GetInviteToken(ctx context.Context, userID, workspaceID int64, purpose string) (*models.Token, error) {
	var token models.Token
	err := r.q.GetContext(ctx, &token,
		`SELECT * FROM tokens WHERE user_id = ? AND workspace_id = ? AND purpose = ?
		 ORDER BY created_at DESC LIMIT 1`,
		userID, workspaceID, purpose)
	if err != nil {
		return nil, wrapError(err)
	}
	return &token, nil
}

// DeleteExpiredTokens deletes every token record that expired before now.
func (r *Repository) DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM tokens WHERE expires_at <= ?`, now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
