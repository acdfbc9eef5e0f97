// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"time"

	"codeberg.org/oliverandrich/planifio/internal/models"
)

// CreateProject inserts the project row.
func (r *Repository) CreateProject(ctx context.Context, p *models.Project) error {
	ts := now()
	if p.Status == "" {
		p.Status = models.ProjectPlanning
	}
	res, err := r.q.ExecContext(ctx,
		`INSERT INTO projects (workspace_id, title, description, status, is_archived, created_by_user_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.WorkspaceID, p.Title, p.Description, p.Status, p.IsArchived, p.CreatedByUserID, ts, ts)
	if err != nil {
		return wrapError(err)
	}
	id, err := lastInsertID(res)
	if err != nil {
		return err
	}
	p.ID = id
	p.CreatedAt = ts
	p.UpdatedAt = ts
	return nil
}

// GetProject loads a project with its member set and task ids.
func (r *Repository) GetProject(ctx context.Context, id int64) (*models.Project, error) {
	var p models.Project
	if err := r.q.GetContext(ctx, &p, `SELECT * FROM projects WHERE id = ?`, id); err != nil {
		return nil, wrapError(err)
	}
	if err := r.loadProjectRelations(ctx, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repository) loadProjectRelations(ctx context.Context, p *models.Project) error {
	var members []models.ProjectMember
	if err := r.q.SelectContext(ctx, &members,
		`SELECT * FROM project_members WHERE project_id = ?`, p.ID); err != nil {
		return err
	}
	p.Members = models.NewProjectMembers(members)

	p.TaskIDs = []int64{}
	return r.q.SelectContext(ctx, &p.TaskIDs, `SELECT id FROM tasks WHERE project_id = ? ORDER BY id`, p.ID)
}

// ListProjects returns the projects of a workspace.
func (r *Repository) ListProjects(ctx context.Context, workspaceID int64) ([]models.Project, error) {
	var list []models.Project
	if err := r.q.SelectContext(ctx, &list,
		`SELECT * FROM projects WHERE workspace_id = ? ORDER BY created_at, id`, workspaceID); err != nil {
		return nil, err
	}
	for i := range list {
		if err := r.loadProjectRelations(ctx, &list[i]); err != nil {
			return nil, err
		}
	}
	return list, nil
}

// UpdateProject writes the mutable project fields.
func (r *Repository) UpdateProject(ctx context.Context, p *models.Project) error {
	p.UpdatedAt = now()
	_, err := r.q.ExecContext(ctx,
		`UPDATE projects SET title = ?, description = ?, status = ?, is_archived = ?, updated_at = ? WHERE id = ?`,
		p.Title, p.Description, p.Status, p.IsArchived, p.UpdatedAt, p.ID)
	return err
}

// DeleteProject removes a project; tasks and memberships cascade.
func (r *Repository) DeleteProject(ctx context.Context, id int64) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	return err
}

// AddProjectMember inserts a project membership row.
func (r *Repository) AddProjectMember(ctx context.Context, projectID, userID int64, role models.ProjectRole, addedAt time.Time) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO project_members (project_id, user_id, role, added_at) VALUES (?, ?, ?, ?)`,
		projectID, userID, role, addedAt.UTC())
	return wrapError(err)
}

// SetProjectMemberRole updates the role of an existing project member.
func (r *Repository) SetProjectMemberRole(ctx context.Context, projectID, userID int64, role models.ProjectRole) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE project_members SET role = ? WHERE project_id = ? AND user_id = ?`, role, projectID, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// RemoveProjectMember deletes a project membership.
func (r *Repository) RemoveProjectMember(ctx context.Context, projectID, userID int64) error {
	res, err := r.q.ExecContext(ctx,
		`DELETE FROM project_members WHERE project_id = ? AND user_id = ?`, projectID, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
