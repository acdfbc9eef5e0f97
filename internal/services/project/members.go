// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package project

import (
	"context"
	"errors"
	"fmt"
	"time"

	"codeberg.org/oliverandrich/planifio/internal/authz"
	"codeberg.org/oliverandrich/planifio/internal/membership"
	"codeberg.org/oliverandrich/planifio/internal/models"
	"codeberg.org/oliverandrich/planifio/internal/repository"
	"codeberg.org/oliverandrich/planifio/internal/services/activity"
)

// AddMember adds a workspace member to the project.
func (s *Service) AddMember(ctx context.Context, actorID, id, userID int64, role models.ProjectRole) (*models.Project, error) {
	ws, p, err := s.Authorize(ctx, authz.ManageProject, actorID, id)
	if err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, ErrInvalidRole
	}
	if !membership.IsWorkspaceMember(ws, userID) {
		return nil, ErrNotWorkspaceMember
	}
	if membership.IsProjectMember(p, userID) {
		return nil, ErrAlreadyMember
	}

	if err := s.repo.AddProjectMember(ctx, p.ID, userID, role, time.Now().UTC()); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrAlreadyMember
		}
		return nil, fmt.Errorf("failed to add project member: %w", err)
	}

	s.record(ctx, actorID, activity.ActionAddedProjectMember, p.ID, map[string]any{
		"user_id": userID,
		"role":    role,
	})
	return s.reload(ctx, p.ID)
}

// SetMemberRole changes the role of a project member.
func (s *Service) SetMemberRole(ctx context.Context, actorID, id, userID int64, role models.ProjectRole) (*models.Project, error) {
	_, p, err := s.Authorize(ctx, authz.ManageProject, actorID, id)
	if err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, ErrInvalidRole
	}

	if err := s.repo.SetProjectMemberRole(ctx, p.ID, userID, role); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotMember
		}
		return nil, fmt.Errorf("failed to set project role: %w", err)
	}

	s.record(ctx, actorID, activity.ActionChangedProjectRole, p.ID, map[string]any{
		"user_id": userID,
		"role":    role,
	})
	return s.reload(ctx, p.ID)
}

// RemoveMember removes a project member. The creator always stays.
func (s *Service) RemoveMember(ctx context.Context, actorID, id, userID int64) (*models.Project, error) {
	_, p, err := s.Authorize(ctx, authz.ManageProject, actorID, id)
	if err != nil {
		return nil, err
	}
	if userID == p.CreatedByUserID {
		return nil, ErrCreatorMembership
	}

	if err := s.repo.RemoveProjectMember(ctx, p.ID, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotMember
		}
		return nil, fmt.Errorf("failed to remove project member: %w", err)
	}

	s.record(ctx, actorID, activity.ActionRemovedProjectMember, p.ID, map[string]any{"user_id": userID})
	return s.reload(ctx, p.ID)
}

func (s *Service) reload(ctx context.Context, id int64) (*models.Project, error) {
	p, err := s.repo.GetProject(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to reload project: %w", err)
	}
	return p, nil
}
