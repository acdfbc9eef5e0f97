// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"
)

type ProjectStatus string

const (
	ProjectPlanning   ProjectStatus = "Planning"
	ProjectInProgress ProjectStatus = "In Progress"
	ProjectOnHold     ProjectStatus = "On Hold"
	ProjectCompleted  ProjectStatus = "Completed"
	ProjectCancelled  ProjectStatus = "Cancelled"
)

func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectPlanning, ProjectInProgress, ProjectOnHold, ProjectCompleted, ProjectCancelled:
		return true
	}
	return false
}

func ParseProjectStatus(s string) (ProjectStatus, error) {
	status := ProjectStatus(s)
	if !status.Valid() {
		return "", fmt.Errorf("invalid project status %q", s)
	}
	return status, nil
}

type Project struct { //nolint:govet // fieldalignment not critical for models
	ID              int64          `db:"id" json:"id"`
	WorkspaceID     int64          `db:"workspace_id" json:"workspace_id"`
	Title           string         `db:"title" json:"title"`
	Description     string         `db:"description" json:"description"`
	Status          ProjectStatus  `db:"status" json:"status"`
	IsArchived      bool           `db:"is_archived" json:"is_archived"`
	CreatedByUserID int64          `db:"created_by_user_id" json:"created_by_user_id"`
	Members         ProjectMembers `db:"-" json:"members"`
	TaskIDs         []int64        `db:"-" json:"task_ids"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
}

type ProjectMember struct { //nolint:govet // fieldalignment not critical for models
	ProjectID int64       `db:"project_id" json:"-"`
	UserID    int64       `db:"user_id" json:"user_id"`
	Role      ProjectRole `db:"role" json:"role"`
	AddedAt   time.Time   `db:"added_at" json:"added_at"`
}

// ProjectMembers is keyed by user id and serialised as a list ordered by add time.
type ProjectMembers map[int64]ProjectMember

func NewProjectMembers(rows []ProjectMember) ProjectMembers {
	m := make(ProjectMembers, len(rows))
	for _, row := range rows {
		m[row.UserID] = row
	}
	return m
}

func (m ProjectMembers) List() []ProjectMember {
	list := make([]ProjectMember, 0, len(m))
	for _, member := range m {
		list = append(list, member)
	}
	slices.SortFunc(list, func(a, b ProjectMember) int {
		if c := a.AddedAt.Compare(b.AddedAt); c != 0 {
			return c
		}
		return int(a.UserID - b.UserID)
	})
	return list
}

func (m ProjectMembers) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.List())
}
