// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"

	"codeberg.org/oliverandrich/planifio/internal/models"
)

// CreateTask inserts the task row.
func (r *Repository) CreateTask(ctx context.Context, t *models.Task) error {
	ts := now()
	if t.Status == "" {
		t.Status = models.TaskToDo
	}
	if t.Priority == "" {
		t.Priority = models.PriorityMedium
	}
	res, err := r.q.ExecContext(ctx,
		`INSERT INTO tasks (project_id, title, description, status, priority, due_date, is_archived,
		                    created_by_user_id, completed_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ProjectID, t.Title, t.Description, t.Status, t.Priority, t.DueDate, t.IsArchived,
		t.CreatedByUserID, t.CompletedAt, ts, ts)
	if err != nil {
		return wrapError(err)
	}
	id, err := lastInsertID(res)
	if err != nil {
		return err
	}
	t.ID = id
	t.CreatedAt = ts
	t.UpdatedAt = ts
	return nil
}

// GetTask loads a task with assignees, watchers, subtasks, attachments and comment ids.
func (r *Repository) GetTask(ctx context.Context, id int64) (*models.Task, error) {
	var t models.Task
	if err := r.q.GetContext(ctx, &t, `SELECT * FROM tasks WHERE id = ?`, id); err != nil {
		return nil, wrapError(err)
	}
	if err := r.loadTaskRelations(ctx, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *Repository) loadTaskRelations(ctx context.Context, t *models.Task) error {
	t.AssigneeUserIDs = []int64{}
	if err := r.q.SelectContext(ctx, &t.AssigneeUserIDs,
		`SELECT user_id FROM task_assignees WHERE task_id = ? ORDER BY user_id`, t.ID); err != nil {
		return err
	}
	t.WatcherUserIDs = []int64{}
	if err := r.q.SelectContext(ctx, &t.WatcherUserIDs,
		`SELECT user_id FROM task_watchers WHERE task_id = ? ORDER BY user_id`, t.ID); err != nil {
		return err
	}
	t.Subtasks = []models.Subtask{}
	if err := r.q.SelectContext(ctx, &t.Subtasks,
		`SELECT * FROM subtasks WHERE task_id = ? ORDER BY id`, t.ID); err != nil {
		return err
	}
	t.Attachments = []models.Attachment{}
	if err := r.q.SelectContext(ctx, &t.Attachments,
		`SELECT * FROM attachments WHERE task_id = ? ORDER BY id`, t.ID); err != nil {
		return err
	}
	t.CommentIDs = []int64{}
	return r.q.SelectContext(ctx, &t.CommentIDs,
		`SELECT id FROM comments WHERE task_id = ? ORDER BY id`, t.ID)
}

// ListTasks returns the tasks of a project.
func (r *Repository) ListTasks(ctx context.Context, projectID int64) ([]models.Task, error) {
	var list []models.Task
	if err := r.q.SelectContext(ctx, &list,
		`SELECT * FROM tasks WHERE project_id = ? ORDER BY created_at, id`, projectID); err != nil {
		return nil, err
	}
	for i := range list {
		if err := r.loadTaskRelations(ctx, &list[i]); err != nil {
			return nil, err
		}
	}
	return list, nil
}

// UpdateTask writes the scalar task fields.
func (r *Repository) UpdateTask(ctx context.Context, t *models.Task) error {
	t.UpdatedAt = now()
	_, err := r.q.ExecContext(ctx,
		`UPDATE tasks SET title = ?, description = ?, status = ?, priority = ?, due_date = ?,
		                  is_archived = ?, completed_at = ?, updated_at = ?
		 WHERE id = ?`,
		t.Title, t.Description, t.Status, t.Priority, t.DueDate, t.IsArchived, t.CompletedAt, t.UpdatedAt, t.ID)
	return err
}

// DeleteTask removes a task; its children cascade.
func (r *Repository) DeleteTask(ctx context.Context, id int64) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	return err
}

// SetTaskAssignees replaces the assignee set.
func (r *Repository) SetTaskAssignees(ctx context.Context, taskID int64, userIDs []int64) error {
	if _, err := r.q.ExecContext(ctx, `DELETE FROM task_assignees WHERE task_id = ?`, taskID); err != nil {
		return err
	}
	for _, uid := range userIDs {
		if _, err := r.q.ExecContext(ctx,
			`INSERT OR IGNORE INTO task_assignees (task_id, user_id) VALUES (?, ?)`, taskID, uid); err != nil {
			return err
		}
	}
	return nil
}

// AddTaskWatcher adds a watcher; adding twice is a no-op.
func (r *Repository) AddTaskWatcher(ctx context.Context, taskID, userID int64) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT OR IGNORE INTO task_watchers (task_id, user_id) VALUES (?, ?)`, taskID, userID)
	return err
}

// RemoveTaskWatcher removes a watcher.
func (r *Repository) RemoveTaskWatcher(ctx context.Context, taskID, userID int64) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM task_watchers WHERE task_id = ? AND user_id = ?`, taskID, userID)
	return err
}

// CreateSubtask appends a subtask.
func (r *Repository) CreateSubtask(ctx context.Context, s *models.Subtask) error {
	s.CreatedAt = now()
	res, err := r.q.ExecContext(ctx,
		`INSERT INTO subtasks (task_id, title, completed, created_at) VALUES (?, ?, ?, ?)`,
		s.TaskID, s.Title, s.Completed, s.CreatedAt)
	if err != nil {
		return err
	}
	s.ID, err = lastInsertID(res)
	return err
}

// GetSubtask retrieves a subtask scoped to its task.
func (r *Repository) GetSubtask(ctx context.Context, taskID, subtaskID int64) (*models.Subtask, error) {
	var s models.Subtask
	if err := r.q.GetContext(ctx, &s,
		`SELECT * FROM subtasks WHERE id = ? AND task_id = ?`, subtaskID, taskID); err != nil {
		return nil, wrapError(err)
	}
	return &s, nil
}

// UpdateSubtask writes title and completion.
func (r *Repository) UpdateSubtask(ctx context.Context, s *models.Subtask) error {
	_, err := r.q.ExecContext(ctx,
		`UPDATE subtasks SET title = ?, completed = ? WHERE id = ?`, s.Title, s.Completed, s.ID)
	return err
}

// CreateAttachment records an uploaded file.
func (r *Repository) CreateAttachment(ctx context.Context, a *models.Attachment) error {
	a.UploadedAt = now()
	res, err := r.q.ExecContext(ctx,
		`INSERT INTO attachments (task_id, file_name, file_url, file_type, file_size, uploaded_by_user_id, uploaded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.TaskID, a.FileName, a.FileURL, a.FileType, a.FileSize, a.UploadedByUserID, a.UploadedAt)
	if err != nil {
		return err
	}
	a.ID, err = lastInsertID(res)
	return err
}
