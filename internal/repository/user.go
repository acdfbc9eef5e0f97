// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"time"

	"codeberg.org/oliverandrich/planifio/internal/models"
)

// CreateUser inserts a new user and fills in its ID and timestamps.
func (r *Repository) CreateUser(ctx context.Context, user *models.User) error {
	ts := now()
	res, err := r.q.ExecContext(ctx,
		`INSERT INTO users (email, password_hash, display_name, email_verified, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		user.Email, user.PasswordHash, user.DisplayName, user.EmailVerified, ts, ts)
	if err != nil {
		return wrapError(err)
	}
	id, err := lastInsertID(res)
	if err != nil {
		return err
	}
	user.ID = id
	user.CreatedAt = ts
	user.UpdatedAt = ts
	return nil
}

// GetUserByID retrieves a user by their ID
func (r *Repository) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	if err := r.q.GetContext(ctx, &user, `SELECT * FROM users WHERE id = ?`, id); err != nil {
		return nil, wrapError(err)
	}
	return &user, nil
}

// GetUserByEmail retrieves a user by their email address
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.q.GetContext(ctx, &user, `SELECT * FROM users WHERE email = ?`, email); err != nil {
		return nil, wrapError(err)
	}
	return &user, nil
}

// MarkEmailVerified flips email_verified. It reports false when the user was already verified.
func (r *Repository) MarkEmailVerified(ctx context.Context, id int64) (bool, error) {
	res, err := r.q.ExecContext(ctx,
		`UPDATE users SET email_verified = 1, updated_at = ? WHERE id = ? AND email_verified = 0`, now(), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// UpdateUserPassword updates a user's password
func (r *Repository) UpdateUserPassword(ctx context.Context, id int64, passwordHash string) error {
	_, err := r.q.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`, passwordHash, now(), id)
	return err
}

// UpdateLastLogin records a successful login.
func (r *Repository) UpdateLastLogin(ctx context.Context, id int64, at time.Time) error {
	_, err := r.q.ExecContext(ctx, `UPDATE users SET last_login_at = ? WHERE id = ?`, at.UTC(), id)
	return err
}
