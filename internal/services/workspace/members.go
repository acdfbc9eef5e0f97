// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package workspace

import (
	"context"
	"errors"
	"fmt"

	"codeberg.org/oliverandrich/planifio/internal/authz"
	"codeberg.org/oliverandrich/planifio/internal/membership"
	"codeberg.org/oliverandrich/planifio/internal/models"
	"codeberg.org/oliverandrich/planifio/internal/repository"
	"codeberg.org/oliverandrich/planifio/internal/services/activity"
)

// SetMemberRole changes the role of a member. Only owner and admins may do
// this, the owner role is reserved for Transfer and only the owner can change
// another admin.
func (s *Service) SetMemberRole(ctx context.Context, actorID, id, userID int64, role models.WorkspaceRole) (*models.Workspace, error) {
	ws, err := s.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkMemberChange(ws, actorID, userID); err != nil {
		return nil, err
	}
	if !role.Invitable() {
		return nil, ErrOwnerMembership
	}

	if err := s.repo.SetWorkspaceMemberRole(ctx, ws.ID, userID, role); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotMember
		}
		return nil, fmt.Errorf("failed to set role: %w", err)
	}

	s.record(ctx, actorID, activity.ActionChangedMemberRole, ws.ID, map[string]any{
		"user_id": userID,
		"role":    role,
	})
	return s.Load(ctx, ws.ID)
}

// RemoveMember removes a member and their project memberships inside the
// workspace. A member who created projects there cannot be removed.
func (s *Service) RemoveMember(ctx context.Context, actorID, id, userID int64) error {
	ws, err := s.Load(ctx, id)
	if err != nil {
		return err
	}
	if err := checkMemberChange(ws, actorID, userID); err != nil {
		return err
	}

	if err := s.repo.InTx(ctx, func(tx *repository.Repository) error {
		return removeMember(ctx, tx, ws.ID, userID)
	}); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotMember
		}
		if errors.Is(err, ErrProjectCreator) {
			return err
		}
		return fmt.Errorf("failed to remove member: %w", err)
	}

	s.record(ctx, actorID, activity.ActionRemovedMember, ws.ID, map[string]any{"user_id": userID})
	return nil
}

// Leave removes the actor from the workspace. The owner has to transfer first
// and project creators have to delete their projects.
func (s *Service) Leave(ctx context.Context, actorID, id int64) error {
	ws, err := s.Load(ctx, id)
	if err != nil {
		return err
	}
	if authz.IsWorkspaceOwner(ws, actorID) {
		return ErrOwnerCannotLeave
	}
	if !membership.IsWorkspaceMember(ws, actorID) {
		return ErrNotMember
	}

	if err := s.repo.InTx(ctx, func(tx *repository.Repository) error {
		return removeMember(ctx, tx, ws.ID, actorID)
	}); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotMember
		}
		if errors.Is(err, ErrProjectCreator) {
			return err
		}
		return fmt.Errorf("failed to leave workspace: %w", err)
	}

	s.record(ctx, actorID, activity.ActionLeftWorkspace, ws.ID, nil)
	return nil
}

// Stats returns member, project and task counts.
func (s *Service) Stats(ctx context.Context, actorID, id int64) (*repository.WorkspaceStats, error) {
	ws, err := s.Get(ctx, actorID, id)
	if err != nil {
		return nil, err
	}
	stats, err := s.repo.GetWorkspaceStats(ctx, ws.ID, s.tokens.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}
	return stats, nil
}

// removeMember drops userID from the workspace. Project creators are refused.
func removeMember(ctx context.Context, tx *repository.Repository, workspaceID, userID int64) error {
	n, err := tx.CountCreatedProjects(ctx, workspaceID, userID)
	if err != nil {
		return err
	}
	if n > 0 {
		return ErrProjectCreator
	}
	return tx.RemoveWorkspaceMember(ctx, workspaceID, userID)
}

func checkMemberChange(ws *models.Workspace, actorID, userID int64) error {
	if !authz.Can(authz.ManageWorkspaceMembers, ws, nil, actorID) {
		return ErrForbidden
	}
	if authz.IsWorkspaceOwner(ws, userID) {
		return ErrOwnerMembership
	}
	target, ok := membership.WorkspaceRole(ws, userID)
	if !ok {
		return ErrNotMember
	}
	if target == models.WorkspaceAdmin && !authz.IsWorkspaceOwner(ws, actorID) {
		return ErrForbidden
	}
	return nil
}

func (s *Service) record(ctx context.Context, actorID int64, action string, workspaceID int64, details map[string]any) {
	s.activity.Record(ctx, activity.Entry{
		UserID:       actorID,
		Action:       action,
		ResourceType: models.ResourceWorkspace,
		ResourceID:   workspaceID,
		Details:      details,
	})
}
