// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"time"

	"codeberg.org/oliverandrich/planifio/internal/models"
)

// CreateWorkspace inserts the workspace row. Members are added separately.
func (r *Repository) CreateWorkspace(ctx context.Context, ws *models.Workspace) error {
	ts := now()
	res, err := r.q.ExecContext(ctx,
		`INSERT INTO workspaces (name, description, color, owner_user_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		ws.Name, ws.Description, ws.Color, ws.OwnerUserID, ts, ts)
	if err != nil {
		return wrapError(err)
	}
	id, err := lastInsertID(res)
	if err != nil {
		return err
	}
	ws.ID = id
	ws.CreatedAt = ts
	ws.UpdatedAt = ts
	return nil
}

// GetWorkspace loads a workspace with its member set and project ids.
func (r *Repository) GetWorkspace(ctx context.Context, id int64) (*models.Workspace, error) {
	var ws models.Workspace
	if err := r.q.GetContext(ctx, &ws, `SELECT * FROM workspaces WHERE id = ?`, id); err != nil {
		return nil, wrapError(err)
	}
	if err := r.loadWorkspaceRelations(ctx, &ws); err != nil {
		return nil, err
	}
	return &ws, nil
}

func (r *Repository) loadWorkspaceRelations(ctx context.Context, ws *models.Workspace) error {
	var members []models.WorkspaceMembership
	if err := r.q.SelectContext(ctx, &members,
		`SELECT * FROM workspace_members WHERE workspace_id = ?`, ws.ID); err != nil {
		return err
	}
	ws.Members = models.NewWorkspaceMembers(members)

	ws.ProjectIDs = []int64{}
	return r.q.SelectContext(ctx, &ws.ProjectIDs,
		`SELECT id FROM projects WHERE workspace_id = ? ORDER BY id`, ws.ID)
}

// ListWorkspacesForUser returns every workspace the user belongs to.
func (r *Repository) ListWorkspacesForUser(ctx context.Context, userID int64) ([]models.Workspace, error) {
	var list []models.Workspace
	err := r.q.SelectContext(ctx, &list,
		`SELECT w.* FROM workspaces w
		 JOIN workspace_members m ON m.workspace_id = w.id
		 WHERE m.user_id = ?
		 ORDER BY w.created_at, w.id`, userID)
	if err != nil {
		return nil, err
	}
	for i := range list {
		if err := r.loadWorkspaceRelations(ctx, &list[i]); err != nil {
			return nil, err
		}
	}
	return list, nil
}

// UpdateWorkspace writes name, description and color.
func (r *Repository) UpdateWorkspace(ctx context.Context, ws *models.Workspace) error {
	ws.UpdatedAt = now()
	_, err := r.q.ExecContext(ctx,
		`UPDATE workspaces SET name = ?, description = ?, color = ?, updated_at = ? WHERE id = ?`,
		ws.Name, ws.Description, ws.Color, ws.UpdatedAt, ws.ID)
	return err
}

// SetWorkspaceOwner changes owner_user_id.
func (r *Repository) SetWorkspaceOwner(ctx context.Context, workspaceID, userID int64) error {
	_, err := r.q.ExecContext(ctx,
		`UPDATE workspaces SET owner_user_id = ?, updated_at = ? WHERE id = ?`, userID, now(), workspaceID)
	return err
}

// DeleteWorkspace removes a workspace; projects, tasks and memberships cascade.
func (r *Repository) DeleteWorkspace(ctx context.Context, id int64) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM workspaces WHERE id = ?`, id)
	return err
}

// AddWorkspaceMember inserts a membership row. A second insert for the same
// user returns ErrDuplicate.
func (r *Repository) AddWorkspaceMember(ctx context.Context, workspaceID, userID int64, role models.WorkspaceRole, joinedAt time.Time) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO workspace_members (workspace_id, user_id, role, joined_at) VALUES (?, ?, ?, ?)`,
		workspaceID, userID, role, joinedAt.UTC())
	return wrapError(err)
}

// SetWorkspaceMemberRole updates the role of an existing member.
func (r *Repository) SetWorkspaceMemberRole(ctx context.Context, workspaceID, userID int64, role models.WorkspaceRole) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE workspace_members SET role = ? WHERE workspace_id = ? AND user_id = ?`, role, workspaceID, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// RemoveWorkspaceMember deletes the membership and every project membership
// the user holds inside the workspace.
func (r *Repository) RemoveWorkspaceMember(ctx context.Context, workspaceID, userID int64) error {
	if _, err := r.q.ExecContext(ctx,
		`DELETE FROM project_members WHERE user_id = ?
		 AND project_id IN (SELECT id FROM projects WHERE workspace_id = ?)`, userID, workspaceID); err != nil {
		return err
	}
	res, err := r.q.ExecContext(ctx,
		`DELETE FROM workspace_members WHERE workspace_id = ? AND user_id = ?`, workspaceID, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// CountCreatedProjects counts the projects of a workspace created by userID.
func (r *Repository) CountCreatedProjects(ctx context.Context, workspaceID, userID int64) (int64, error) {
	var n int64
	err := r.q.GetContext(ctx, &n,
		`SELECT count(*) FROM projects WHERE workspace_id = ? AND created_by_user_id = ?`, workspaceID, userID)
	return n, err
}

// WorkspaceStats aggregates counts for the dashboard.
type WorkspaceStats struct {
	Members        int64            `json:"members"`
	Projects       int64            `json:"projects"`
	ActiveProjects int64            `json:"active_projects"`
	Tasks          int64            `json:"tasks"`
	TasksByStatus  map[string]int64 `json:"tasks_by_status"`
	OverdueTasks   int64            `json:"overdue_tasks"`
}

// GetWorkspaceStats counts members, projects and tasks of a workspace.
func (r *Repository) GetWorkspaceStats(ctx context.Context, workspaceID int64, at time.Time) (*WorkspaceStats, error) {
	stats := &WorkspaceStats{TasksByStatus: map[string]int64{
		string(models.TaskToDo):       0,
		string(models.TaskInProgress): 0,
		string(models.TaskDone):       0,
	}}

	if err := r.q.GetContext(ctx, &stats.Members,
		`SELECT count(*) FROM workspace_members WHERE workspace_id = ?`, workspaceID); err != nil {
		return nil, err
	}
	if err := r.q.GetContext(ctx, &stats.Projects,
		`SELECT count(*) FROM projects WHERE workspace_id = ?`, workspaceID); err != nil {
		return nil, err
	}
	if err := r.q.GetContext(ctx, &stats.ActiveProjects,
		`SELECT count(*) FROM projects WHERE workspace_id = ? AND is_archived = 0`, workspaceID); err != nil {
		return nil, err
	}

	var rows []struct {
		Status string `db:"status"`
		Count  int64  `db:"count"`
	}
	if err := r.q.SelectContext(ctx, &rows,
		`SELECT t.status AS status, count(*) AS count FROM tasks t
		 JOIN projects p ON p.id = t.project_id
		 WHERE p.workspace_id = ? AND t.is_archived = 0
		 GROUP BY t.status`, workspaceID); err != nil {
		return nil, err
	}
	for _, row := range rows {
		stats.TasksByStatus[row.Status] = row.Count
		stats.Tasks += row.Count
	}

	if err := r.q.GetContext(ctx, &stats.OverdueTasks,
		`SELECT count(*) FROM tasks t
		 JOIN projects p ON p.id = t.project_id
		 WHERE p.workspace_id = ? AND t.is_archived = 0 AND t.status != ?
		 AND t.due_date IS NOT NULL AND t.due_date < ?`,
		workspaceID, models.TaskDone, at.UTC()); err != nil {
		return nil, err
	}

	return stats, nil
}
