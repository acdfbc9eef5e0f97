// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import "fmt"

// WorkspaceRole is the role of a member inside a workspace.
type WorkspaceRole string

const (
	WorkspaceOwner  WorkspaceRole = "owner"
	WorkspaceAdmin  WorkspaceRole = "admin"
	WorkspaceMember WorkspaceRole = "member"
	WorkspaceViewer WorkspaceRole = "viewer"
)

// Valid reports whether r is one of the known workspace roles.
func (r WorkspaceRole) Valid() bool {
	switch r {
	case WorkspaceOwner, WorkspaceAdmin, WorkspaceMember, WorkspaceViewer:
		return true
	}
	return false
}

// Invitable reports whether r may be granted through an invite or a role change.
// Ownership only moves through a transfer.
func (r WorkspaceRole) Invitable() bool {
	return r.Valid() && r != WorkspaceOwner
}

// ParseWorkspaceRole converts s into a WorkspaceRole.
func ParseWorkspaceRole(s string) (WorkspaceRole, error) {
	r := WorkspaceRole(s)
	if !r.Valid() {
		return "", fmt.Errorf("invalid workspace role %q", s)
	}
	return r, nil
}

// ProjectRole is the role of a member inside a project.
type ProjectRole string

const (
	ProjectManager     ProjectRole = "manager"
	ProjectContributor ProjectRole = "contributor"
	ProjectViewer      ProjectRole = "viewer"
)

// Valid reports whether r is one of the known project roles.
func (r ProjectRole) Valid() bool {
	switch r {
	case ProjectManager, ProjectContributor, ProjectViewer:
		return true
	}
	return false
}

// ParseProjectRole converts s into a ProjectRole.
func ParseProjectRole(s string) (ProjectRole, error) {
	r := ProjectRole(s)
	if !r.Valid() {
		return "", fmt.Errorf("invalid project role %q", s)
	}
	return r, nil
}
