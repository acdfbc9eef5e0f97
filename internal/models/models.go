// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package models defines the persisted entities and their closed enumerations.
package models

import "time"

// ResourceType identifies what an activity log entry refers to.
type ResourceType string

const (
	ResourceWorkspace ResourceType = "workspace"
	ResourceProject   ResourceType = "project"
	ResourceTask      ResourceType = "task"
	ResourceUser      ResourceType = "user"
)

// ActivityLog is an append-only audit entry.
type ActivityLog struct { //nolint:govet // fieldalignment not critical for models
	ID           int64        `db:"id" json:"id"`
	UserID       int64        `db:"user_id" json:"user_id"`
	Action       string       `db:"action" json:"action"`
	ResourceType ResourceType `db:"resource_type" json:"resource_type"`
	ResourceID   int64        `db:"resource_id" json:"resource_id"`
	Details      string       `db:"details" json:"details"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
}
