// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import (
	"encoding/json"
	"slices"
	"time"
)

type Workspace struct { //nolint:govet // fieldalignment not critical for models
	ID          int64            `db:"id" json:"id"`
	Name        string           `db:"name" json:"name"`
	Description string           `db:"description" json:"description"`
	Color       string           `db:"color" json:"color"`
	OwnerUserID int64            `db:"owner_user_id" json:"owner_user_id"`
	Members     WorkspaceMembers `db:"-" json:"members"`
	ProjectIDs  []int64          `db:"-" json:"project_ids"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time        `db:"updated_at" json:"updated_at"`
}

// WorkspaceMembership is one row of a workspace member list.
type WorkspaceMembership struct { //nolint:govet // fieldalignment not critical for models
	WorkspaceID int64         `db:"workspace_id" json:"-"`
	UserID      int64         `db:"user_id" json:"user_id"`
	Role        WorkspaceRole `db:"role" json:"role"`
	JoinedAt    time.Time     `db:"joined_at" json:"joined_at"`
}

// WorkspaceMembers is keyed by user id and serialised as a list ordered by join time.
type WorkspaceMembers map[int64]WorkspaceMembership

// NewWorkspaceMembers builds the set from stored rows.
func NewWorkspaceMembers(rows []WorkspaceMembership) WorkspaceMembers {
	m := make(WorkspaceMembers, len(rows))
	for _, row := range rows {
		m[row.UserID] = row
	}
	return m
}

// List returns the members ordered by join time, then user id.
func (m WorkspaceMembers) List() []WorkspaceMembership {
	list := make([]WorkspaceMembership, 0, len(m))
	for _, member := range m {
		list = append(list, member)
	}
	slices.SortFunc(list, func(a, b WorkspaceMembership) int {
		if c := a.JoinedAt.Compare(b.JoinedAt); c != 0 {
			return c
		}
		return int(a.UserID - b.UserID)
	})
	return list
}

func (m WorkspaceMembers) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.List())
}
