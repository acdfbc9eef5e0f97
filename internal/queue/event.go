// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package queue publishes domain events to RabbitMQ.
package queue

import (
	"encoding/json"
	"time"

	"codeberg.org/oliverandrich/planifio/internal/models"
)

// ActivityEvent mirrors an activity log entry for downstream consumers such
// as notification workers.
type ActivityEvent struct {
	ID           int64               `json:"id"`
	UserID       int64               `json:"user_id"`
	Action       string              `json:"action"`
	ResourceType models.ResourceType `json:"resource_type"`
	ResourceID   int64               `json:"resource_id"`
	Details      json.RawMessage     `json:"details"`
	CreatedAt    string              `json:"created_at"`
}

// NewActivityEvent converts a stored log entry.
func NewActivityEvent(entry *models.ActivityLog) ActivityEvent {
	details := json.RawMessage(entry.Details)
	if !json.Valid(details) {
		details = json.RawMessage(`{}`)
	}
	return ActivityEvent{
		ID:           entry.ID,
		UserID:       entry.UserID,
		Action:       entry.Action,
		ResourceType: entry.ResourceType,
		ResourceID:   entry.ResourceID,
		Details:      details,
		CreatedAt:    entry.CreatedAt.UTC().Format(time.RFC3339),
	}
}
