// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package membership answers who belongs to a workspace or project and with
// which role. A member record whose role is not a known value counts as absent.
package membership

import "codeberg.org/oliverandrich/planifio/internal/models"

// WorkspaceRole returns the role of userID in ws.
func WorkspaceRole(ws *models.Workspace, userID int64) (models.WorkspaceRole, bool) {
	if ws == nil {
		return "", false
	}
	m, ok := ws.Members[userID]
	if !ok || !m.Role.Valid() {
		return "", false
	}
	return m.Role, true
}

// ProjectRole returns the explicit role of userID in p.
func ProjectRole(p *models.Project, userID int64) (models.ProjectRole, bool) {
	if p == nil {
		return "", false
	}
	m, ok := p.Members[userID]
	if !ok || !m.Role.Valid() {
		return "", false
	}
	return m.Role, true
}

func IsWorkspaceMember(ws *models.Workspace, userID int64) bool {
	_, ok := WorkspaceRole(ws, userID)
	return ok
}

func IsProjectMember(p *models.Project, userID int64) bool {
	_, ok := ProjectRole(p, userID)
	return ok
}

// IsWorkspaceAdmin reports whether userID is owner or admin of ws.
func IsWorkspaceAdmin(ws *models.Workspace, userID int64) bool {
	role, ok := WorkspaceRole(ws, userID)
	return ok && (role == models.WorkspaceOwner || role == models.WorkspaceAdmin)
}

// EffectiveProjectRole folds the workspace role into the project role.
// Workspace owners and admins manage every project of their workspace.
func EffectiveProjectRole(ws *models.Workspace, p *models.Project, userID int64) (models.ProjectRole, bool) {
	if IsWorkspaceAdmin(ws, userID) {
		return models.ProjectManager, true
	}
	return ProjectRole(p, userID)
}
