// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package workspace implements the workspace lifecycle: creation, ownership
// transfer, invites and member management.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"codeberg.org/oliverandrich/planifio/internal/apperr"
	"codeberg.org/oliverandrich/planifio/internal/authz"
	"codeberg.org/oliverandrich/planifio/internal/membership"
	"codeberg.org/oliverandrich/planifio/internal/models"
	"codeberg.org/oliverandrich/planifio/internal/repository"
	"codeberg.org/oliverandrich/planifio/internal/services/activity"
	"codeberg.org/oliverandrich/planifio/internal/services/email"
	"codeberg.org/oliverandrich/planifio/internal/token"
)

var (
	ErrNotFound         = apperr.New(apperr.NotFound, "Workspace not found")
	ErrForbidden        = apperr.New(apperr.Authorization, "You do not have permission to perform this action")
	ErrNotOwner         = apperr.New(apperr.Authorization, "Only the workspace owner can perform this action")
	ErrTargetNotMember  = apperr.New(apperr.Validation, "The new owner must already be a member of the workspace")
	ErrAlreadyMember    = apperr.New(apperr.Conflict, "User is already a member of this workspace")
	ErrAlreadyInvited   = apperr.New(apperr.Conflict, "User has already been invited to this workspace")
	ErrUserNotFound     = apperr.New(apperr.NotFound, "User not found")
	ErrNotMember        = apperr.New(apperr.NotFound, "User is not a member of this workspace")
	ErrInvalidRole      = apperr.New(apperr.Validation, "Invalid role")
	ErrOwnerMembership  = apperr.New(apperr.Validation, "The owner's membership can only change through an ownership transfer")
	ErrOwnerCannotLeave = apperr.New(apperr.Validation, "The owner cannot leave the workspace. Transfer ownership first.")
	ErrProjectCreator   = apperr.New(apperr.Conflict, "The user created projects in this workspace. Delete them first.")
	ErrNotInvitee       = apperr.New(apperr.Authorization, "This invite was issued to another user")
	ErrInviteDelivery   = apperr.New(apperr.Dependency, "The invite could not be delivered. Please try again later.")
)

type Service struct {
	repo      *repository.Repository
	tokens    *token.Service
	mailer    *email.Mailer
	activity  *activity.Recorder
	inviteTTL time.Duration
}

func NewService(
	repo *repository.Repository,
	tokens *token.Service,
	mailer *email.Mailer,
	recorder *activity.Recorder,
	inviteTTL time.Duration,
) *Service {
	return &Service{
		repo:      repo,
		tokens:    tokens,
		mailer:    mailer,
		activity:  recorder,
		inviteTTL: inviteTTL,
	}
}

// Load returns a workspace or ErrNotFound. It does no access check.
func (s *Service) Load(ctx context.Context, id int64) (*models.Workspace, error) {
	return load(ctx, s.repo, id)
}

func load(ctx context.Context, repo *repository.Repository, id int64) (*models.Workspace, error) {
	ws, err := repo.GetWorkspace(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get workspace: %w", err)
	}
	return ws, nil
}

// Get returns a workspace the actor belongs to.
func (s *Service) Get(ctx context.Context, actorID, id int64) (*models.Workspace, error) {
	ws, err := s.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !authz.Can(authz.ViewWorkspace, ws, nil, actorID) {
		return nil, ErrForbidden
	}
	return ws, nil
}

// Activity lists the newest activity entries of a workspace. Deleted projects
// are recorded here.
func (s *Service) Activity(ctx context.Context, actorID, id int64, limit int) ([]models.ActivityLog, error) {
	ws, err := s.Get(ctx, actorID, id)
	if err != nil {
		return nil, err
	}
	return s.activity.List(ctx, models.ResourceWorkspace, ws.ID, limit)
}

// List returns every workspace the actor belongs to.
func (s *Service) List(ctx context.Context, actorID int64) ([]models.Workspace, error) {
	list, err := s.repo.ListWorkspacesForUser(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("failed to list workspaces: %w", err)
	}
	if list == nil {
		list = []models.Workspace{}
	}
	return list, nil
}

// CreateParams are the fields of a new workspace.
type CreateParams struct {
	Name        string
	Description string
	Color       string
}

// Create makes the actor owner of a new workspace.
func (s *Service) Create(ctx context.Context, actorID int64, params CreateParams) (*models.Workspace, error) {
	ws := &models.Workspace{
		Name:        strings.TrimSpace(params.Name),
		Description: params.Description,
		Color:       params.Color,
		OwnerUserID: actorID,
	}

	var created *models.Workspace
	err := s.repo.InTx(ctx, func(tx *repository.Repository) error {
		if err := tx.CreateWorkspace(ctx, ws); err != nil {
			return fmt.Errorf("failed to create workspace: %w", err)
		}
		if err := tx.AddWorkspaceMember(ctx, ws.ID, actorID, models.WorkspaceOwner, ws.CreatedAt); err != nil {
			return fmt.Errorf("failed to add owner: %w", err)
		}
		var err error
		created, err = load(ctx, tx, ws.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	slog.Info("workspace_created", "workspace_id", created.ID, "user_id", actorID)
	s.record(ctx, actorID, activity.ActionCreatedWorkspace, created.ID, map[string]any{"name": created.Name})
	return created, nil
}

// UpdateParams holds optional workspace changes.
type UpdateParams struct {
	Name        *string
	Description *string
	Color       *string
}

// Update changes name, description or color. Only the owner may do this.
func (s *Service) Update(ctx context.Context, actorID, id int64, params UpdateParams) (*models.Workspace, error) {
	ws, err := s.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !authz.Can(authz.UpdateWorkspace, ws, nil, actorID) {
		return nil, ErrNotOwner
	}

	changed := map[string]any{}
	if params.Name != nil {
		ws.Name = strings.TrimSpace(*params.Name)
		changed["name"] = ws.Name
	}
	if params.Description != nil {
		ws.Description = *params.Description
		changed["description"] = ws.Description
	}
	if params.Color != nil {
		ws.Color = *params.Color
		changed["color"] = ws.Color
	}

	if err := s.repo.UpdateWorkspace(ctx, ws); err != nil {
		return nil, fmt.Errorf("failed to update workspace: %w", err)
	}

	s.record(ctx, actorID, activity.ActionUpdatedWorkspace, ws.ID, changed)
	return ws, nil
}

// Delete removes a workspace with all its projects. Only the owner may do this.
func (s *Service) Delete(ctx context.Context, actorID, id int64) error {
	ws, err := s.Load(ctx, id)
	if err != nil {
		return err
	}
	if !authz.Can(authz.DeleteWorkspace, ws, nil, actorID) {
		return ErrNotOwner
	}

	if err := s.repo.DeleteWorkspace(ctx, ws.ID); err != nil {
		return fmt.Errorf("failed to delete workspace: %w", err)
	}

	slog.Info("workspace_deleted", "workspace_id", ws.ID, "user_id", actorID)
	s.record(ctx, actorID, activity.ActionDeletedWorkspace, ws.ID, map[string]any{"name": ws.Name})
	return nil
}

// Transfer hands ownership to another member. The former owner stays as
// admin, every other role is left alone. Transferring to oneself is a no-op.
func (s *Service) Transfer(ctx context.Context, actorID, id, targetID int64) (*models.Workspace, error) {
	ws, err := s.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !authz.Can(authz.TransferWorkspace, ws, nil, actorID) {
		return nil, ErrNotOwner
	}
	if !membership.IsWorkspaceMember(ws, targetID) {
		return nil, ErrTargetNotMember
	}
	if targetID == actorID {
		return ws, nil
	}

	var updated *models.Workspace
	err = s.repo.InTx(ctx, func(tx *repository.Repository) error {
		if err := tx.SetWorkspaceOwner(ctx, ws.ID, targetID); err != nil {
			return fmt.Errorf("failed to set owner: %w", err)
		}
		if err := tx.SetWorkspaceMemberRole(ctx, ws.ID, targetID, models.WorkspaceOwner); err != nil {
			return fmt.Errorf("failed to promote new owner: %w", err)
		}
		if err := tx.SetWorkspaceMemberRole(ctx, ws.ID, actorID, models.WorkspaceAdmin); err != nil {
			return fmt.Errorf("failed to demote former owner: %w", err)
		}
		var err error
		updated, err = load(ctx, tx, ws.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	slog.Info("workspace_transferred", "workspace_id", ws.ID, "from", actorID, "to", targetID)
	s.record(ctx, actorID, activity.ActionTransferredWorkspace, ws.ID, map[string]any{
		"from_user_id": actorID,
		"to_user_id":   targetID,
	})
	return updated, nil
}
