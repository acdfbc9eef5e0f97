// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package authz decides what an actor may do with a workspace, project or
// task. It holds no state; callers load the workspace and project first.
package authz

import (
	"codeberg.org/oliverandrich/planifio/internal/membership"
	"codeberg.org/oliverandrich/planifio/internal/models"
)

// Action is something an actor may attempt.
type Action string

const (
	ViewWorkspace          Action = "workspace:view"
	UpdateWorkspace        Action = "workspace:update"
	DeleteWorkspace        Action = "workspace:delete"
	TransferWorkspace      Action = "workspace:transfer"
	InviteMember           Action = "workspace:invite"
	ManageWorkspaceMembers Action = "workspace:members"
	CreateProject          Action = "project:create"
	ViewProject            Action = "project:view"
	ManageProject          Action = "project:manage"
	DeleteProject          Action = "project:delete"
	CreateTask             Action = "task:create"
	UpdateTask             Action = "task:update"
	DeleteTask             Action = "task:delete"
	ViewTask               Action = "task:view"
	CommentTask            Action = "task:comment"
	WatchTask              Action = "task:watch"
)

var workspaceActions = []Action{
	ViewWorkspace, UpdateWorkspace, DeleteWorkspace, TransferWorkspace,
	InviteMember, ManageWorkspaceMembers, CreateProject,
}

var projectActions = []Action{
	ViewProject, ManageProject, DeleteProject,
	CreateTask, UpdateTask, DeleteTask, ViewTask, CommentTask, WatchTask,
}

// Can reports whether userID may perform action. p is nil for workspace level actions.
func Can(action Action, ws *models.Workspace, p *models.Project, userID int64) bool {
	switch action {
	case ViewWorkspace:
		return membership.IsWorkspaceMember(ws, userID)
	case UpdateWorkspace, DeleteWorkspace, TransferWorkspace:
		return IsWorkspaceOwner(ws, userID)
	case InviteMember:
		return CanInvite(ws, userID)
	case ManageWorkspaceMembers:
		return membership.IsWorkspaceAdmin(ws, userID)
	case CreateProject:
		return CanCreateProject(ws, userID)
	case ViewProject, ViewTask, CommentTask, WatchTask:
		return CanParticipate(ws, p, userID)
	case ManageProject:
		return CanManageProject(ws, p, userID)
	case DeleteProject:
		return membership.IsWorkspaceAdmin(ws, userID)
	case CreateTask, UpdateTask:
		return CanManageTask(ws, p, userID)
	case DeleteTask:
		return CanDeleteTask(ws, userID)
	}
	return false
}

// Allowed lists every action userID may perform. Project actions are only
// considered when p is not nil.
func Allowed(ws *models.Workspace, p *models.Project, userID int64) []Action {
	var allowed []Action
	for _, a := range workspaceActions {
		if Can(a, ws, p, userID) {
			allowed = append(allowed, a)
		}
	}
	if p == nil {
		return allowed
	}
	for _, a := range projectActions {
		if Can(a, ws, p, userID) {
			allowed = append(allowed, a)
		}
	}
	return allowed
}

// IsWorkspaceOwner compares against the owner field, not the member role.
func IsWorkspaceOwner(ws *models.Workspace, userID int64) bool {
	return ws != nil && userID != 0 && ws.OwnerUserID == userID
}

// CanInvite requires workspace owner or admin.
func CanInvite(ws *models.Workspace, userID int64) bool {
	return membership.IsWorkspaceAdmin(ws, userID)
}

// CanCreateProject excludes viewers.
func CanCreateProject(ws *models.Workspace, userID int64) bool {
	role, ok := membership.WorkspaceRole(ws, userID)
	return ok && role != models.WorkspaceViewer
}

// CanManageProject requires the effective project role manager.
func CanManageProject(ws *models.Workspace, p *models.Project, userID int64) bool {
	role, ok := membership.EffectiveProjectRole(ws, p, userID)
	return ok && role == models.ProjectManager
}

// CanManageTask gates task create, update, reassign, subtask and attachment changes.
func CanManageTask(ws *models.Workspace, p *models.Project, userID int64) bool {
	if membership.IsWorkspaceAdmin(ws, userID) {
		return true
	}
	role, ok := membership.ProjectRole(p, userID)
	return ok && (role == models.ProjectManager || role == models.ProjectContributor)
}

// CanDeleteTask looks at the workspace role only. Project managers who are
// plain workspace members can edit tasks but not delete them.
func CanDeleteTask(ws *models.Workspace, userID int64) bool {
	return membership.IsWorkspaceAdmin(ws, userID)
}

// CanParticipate covers reading, commenting and watching.
func CanParticipate(ws *models.Workspace, p *models.Project, userID int64) bool {
	return membership.IsProjectMember(p, userID) || membership.IsWorkspaceMember(ws, userID)
}
