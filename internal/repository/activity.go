// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"

	"codeberg.org/oliverandrich/planifio/internal/models"
)

// CreateActivityLog appends an audit entry.
func (r *Repository) CreateActivityLog(ctx context.Context, entry *models.ActivityLog) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now()
	}
	if entry.Details == "" {
		entry.Details = "{}"
	}
	res, err := r.q.ExecContext(ctx,
		`INSERT INTO activity_logs (user_id, action, resource_type, resource_id, details, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.UserID, entry.Action, entry.ResourceType, entry.ResourceID, entry.Details, entry.CreatedAt.UTC())
	if err != nil {
		return err
	}
	entry.ID, err = lastInsertID(res)
	return err
}

// ListActivity returns the entries for a resource, newest first.
func (r *Repository) ListActivity(ctx context.Context, resourceType models.ResourceType, resourceID int64, limit int) ([]models.ActivityLog, error) {
	if limit <= 0 {
		limit = 50
	}
	entries := []models.ActivityLog{}
	if err := r.q.SelectContext(ctx, &entries,
		`SELECT * FROM activity_logs WHERE resource_type = ? AND resource_id = ?
		 ORDER BY created_at DESC, id DESC LIMIT ?`,
		resourceType, resourceID, limit); err != nil {
		return nil, err
	}
	return entries, nil
}
