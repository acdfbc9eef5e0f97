// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package activity appends audit entries for completed mutations and fans
// them out to the message broker when one is configured.
package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"codeberg.org/oliverandrich/planifio/internal/models"
	"codeberg.org/oliverandrich/planifio/internal/queue"
	"codeberg.org/oliverandrich/planifio/internal/repository"
)

// Actions recorded by the lifecycle services.
const (
	ActionCreatedWorkspace     = "created workspace"
	ActionUpdatedWorkspace     = "updated workspace"
	ActionTransferredWorkspace = "transferred workspace"
	ActionInvitedMember        = "invited member"
	ActionJoinedWorkspace      = "joined workspace"
	ActionLeftWorkspace        = "left workspace"
	ActionChangedMemberRole    = "changed member role"
	ActionRemovedMember        = "removed member"
	ActionDeletedWorkspace     = "deleted workspace"
	ActionCreatedProject       = "created project"
	ActionUpdatedProject       = "updated project"
	ActionChangedProjectStatus = "changed project status"
	ActionArchivedProject      = "archived project"
	ActionUnarchivedProject    = "unarchived project"
	ActionAddedProjectMember   = "added project member"
	ActionChangedProjectRole   = "changed project member role"
	ActionRemovedProjectMember = "removed project member"
	ActionDeletedProject       = "deleted project"
	ActionCreatedTask          = "created task"
	ActionUpdatedTask          = "updated task"
	ActionAssignedTask         = "assigned task"
	ActionWatchedTask          = "watched task"
	ActionUnwatchedTask        = "unwatched task"
	ActionArchivedTask         = "archived task"
	ActionUnarchivedTask       = "unarchived task"
	ActionAddedSubtask         = "added subtask"
	ActionUpdatedSubtask       = "updated subtask"
	ActionAddedAttachment      = "added attachment"
	ActionAddedComment         = "added comment"
	ActionDeletedTask          = "deleted task"
	ActionRegistered           = "registered"
	ActionVerifiedEmail        = "verified email"
	ActionResetPassword        = "reset password"
)

// Publisher receives a copy of every recorded entry.
type Publisher interface {
	Publish(ctx context.Context, v any) error
}

// Entry is a mutation to record.
type Entry struct {
	UserID       int64
	Action       string
	ResourceType models.ResourceType
	ResourceID   int64
	Details      map[string]any
}

// Recorder writes entries to the activity log.
type Recorder struct {
	repo *repository.Repository
	pub  Publisher
}

// NewRecorder creates a recorder. pub may be nil.
func NewRecorder(repo *repository.Repository, pub Publisher) *Recorder {
	return &Recorder{repo: repo, pub: pub}
}

// Record appends e. The mutation it describes has already happened, so
// failures are logged and not returned.
func (r *Recorder) Record(ctx context.Context, e Entry) {
	details := "{}"
	if len(e.Details) > 0 {
		raw, err := json.Marshal(e.Details)
		if err != nil {
			slog.Error("activity_details_invalid", "action", e.Action, "error", err)
		} else {
			details = string(raw)
		}
	}

	entry := &models.ActivityLog{
		UserID:       e.UserID,
		Action:       e.Action,
		ResourceType: e.ResourceType,
		ResourceID:   e.ResourceID,
		Details:      details,
	}
	if err := r.repo.CreateActivityLog(ctx, entry); err != nil {
		slog.Error("activity_record_failed",
			"action", e.Action,
			"resource_type", e.ResourceType,
			"resource_id", e.ResourceID,
			"error", err,
		)
		return
	}

	if r.pub != nil {
		if err := r.pub.Publish(ctx, queue.NewActivityEvent(entry)); err != nil {
			slog.Warn("activity_publish_failed", "id", entry.ID, "error", err)
		}
	}
}

// List returns the newest entries for a resource.
func (r *Recorder) List(ctx context.Context, resourceType models.ResourceType, resourceID int64, limit int) ([]models.ActivityLog, error) {
	entries, err := r.repo.ListActivity(ctx, resourceType, resourceID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list activity: %w", err)
	}
	return entries, nil
}
