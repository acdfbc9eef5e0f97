// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"

	"codeberg.org/oliverandrich/planifio/internal/models"
)

// CreateComment stores a comment on a task.
func (r *Repository) CreateComment(ctx context.Context, c *models.Comment) error {
	c.CreatedAt = now()
	res, err := r.q.ExecContext(ctx,
		`INSERT INTO comments (task_id, author_user_id, text, created_at) VALUES (?, ?, ?, ?)`,
		c.TaskID, c.AuthorUserID, c.Text, c.CreatedAt)
	if err != nil {
		return err
	}
	c.ID, err = lastInsertID(res)
	return err
}

// ListComments returns the comments of a task, oldest first.
func (r *Repository) ListComments(ctx context.Context, taskID int64) ([]models.Comment, error) {
	comments := []models.Comment{}
	if err := r.q.SelectContext(ctx, &comments,
		`SELECT * FROM comments WHERE task_id = ? ORDER BY created_at, id`, taskID); err != nil {
		return nil, err
	}
	return comments, nil
}
