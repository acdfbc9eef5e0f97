// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package project implements project lifecycle and project membership.
package project

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"codeberg.org/oliverandrich/planifio/internal/apperr"
	"codeberg.org/oliverandrich/planifio/internal/authz"
	"codeberg.org/oliverandrich/planifio/internal/membership"
	"codeberg.org/oliverandrich/planifio/internal/models"
	"codeberg.org/oliverandrich/planifio/internal/repository"
	"codeberg.org/oliverandrich/planifio/internal/services/activity"
)

var (
	ErrNotFound           = apperr.New(apperr.NotFound, "Project not found")
	ErrWorkspaceNotFound  = apperr.New(apperr.NotFound, "Workspace not found")
	ErrForbidden          = apperr.New(apperr.Authorization, "You do not have permission to perform this action")
	ErrInvalidStatus      = apperr.New(apperr.Validation, "Invalid project status")
	ErrInvalidRole        = apperr.New(apperr.Validation, "Invalid project role")
	ErrNotWorkspaceMember = apperr.New(apperr.Validation, "User must be a member of the workspace")
	ErrAlreadyMember      = apperr.New(apperr.Conflict, "User is already a member of this project")
	ErrNotMember          = apperr.New(apperr.NotFound, "User is not a member of this project")
	ErrCreatorMembership  = apperr.New(apperr.Validation, "The project creator cannot be removed")
)

type Service struct {
	repo     *repository.Repository
	activity *activity.Recorder
}

func NewService(repo *repository.Repository, recorder *activity.Recorder) *Service {
	return &Service{repo: repo, activity: recorder}
}

// Scope loads a project together with its workspace. It does no access check.
func (s *Service) Scope(ctx context.Context, id int64) (*models.Workspace, *models.Project, error) {
	p, err := s.repo.GetProject(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("failed to get project: %w", err)
	}
	ws, err := s.workspace(ctx, p.WorkspaceID)
	if err != nil {
		return nil, nil, err
	}
	return ws, p, nil
}

// Authorize loads the project scope and checks action for the actor.
func (s *Service) Authorize(ctx context.Context, action authz.Action, actorID, id int64) (*models.Workspace, *models.Project, error) {
	ws, p, err := s.Scope(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if !authz.Can(action, ws, p, actorID) {
		return nil, nil, ErrForbidden
	}
	return ws, p, nil
}

func (s *Service) workspace(ctx context.Context, id int64) (*models.Workspace, error) {
	ws, err := s.repo.GetWorkspace(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrWorkspaceNotFound
		}
		return nil, fmt.Errorf("failed to get workspace: %w", err)
	}
	return ws, nil
}

// List returns the projects of a workspace the actor belongs to.
func (s *Service) List(ctx context.Context, actorID, workspaceID int64) ([]models.Project, error) {
	ws, err := s.workspace(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	if !authz.Can(authz.ViewWorkspace, ws, nil, actorID) {
		return nil, ErrForbidden
	}

	list, err := s.repo.ListProjects(ctx, ws.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	if list == nil {
		list = []models.Project{}
	}
	return list, nil
}

// Get returns a project the actor can see.
func (s *Service) Get(ctx context.Context, actorID, id int64) (*models.Project, error) {
	_, p, err := s.Authorize(ctx, authz.ViewProject, actorID, id)
	return p, err
}

// Activity lists the newest activity entries of a project.
func (s *Service) Activity(ctx context.Context, actorID, id int64, limit int) ([]models.ActivityLog, error) {
	_, p, err := s.Authorize(ctx, authz.ViewProject, actorID, id)
	if err != nil {
		return nil, err
	}
	return s.activity.List(ctx, models.ResourceProject, p.ID, limit)
}

// CreateParams are the fields of a new project. Members are added next to the
// creator, who always becomes manager.
type CreateParams struct {
	Title       string
	Description string
	Status      models.ProjectStatus
	Members     map[int64]models.ProjectRole
}

// Create adds a project to a workspace. Workspace viewers cannot create projects.
func (s *Service) Create(ctx context.Context, actorID, workspaceID int64, params CreateParams) (*models.Project, error) {
	ws, err := s.workspace(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	if !authz.Can(authz.CreateProject, ws, nil, actorID) {
		return nil, ErrForbidden
	}
	if params.Status != "" && !params.Status.Valid() {
		return nil, ErrInvalidStatus
	}
	for uid, role := range params.Members {
		if !role.Valid() {
			return nil, ErrInvalidRole
		}
		if !membership.IsWorkspaceMember(ws, uid) {
			return nil, ErrNotWorkspaceMember
		}
	}

	p := &models.Project{
		WorkspaceID:     ws.ID,
		Title:           strings.TrimSpace(params.Title),
		Description:     params.Description,
		Status:          params.Status,
		CreatedByUserID: actorID,
	}

	var created *models.Project
	err = s.repo.InTx(ctx, func(tx *repository.Repository) error {
		if err := tx.CreateProject(ctx, p); err != nil {
			return fmt.Errorf("failed to create project: %w", err)
		}
		if err := tx.AddProjectMember(ctx, p.ID, actorID, models.ProjectManager, p.CreatedAt); err != nil {
			return fmt.Errorf("failed to add creator: %w", err)
		}
		for uid, role := range params.Members {
			if uid == actorID {
				continue
			}
			if err := tx.AddProjectMember(ctx, p.ID, uid, role, p.CreatedAt); err != nil {
				return fmt.Errorf("failed to add member: %w", err)
			}
		}
		var err error
		created, err = tx.GetProject(ctx, p.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	slog.Info("project_created", "project_id", created.ID, "workspace_id", ws.ID, "user_id", actorID)
	s.record(ctx, actorID, activity.ActionCreatedProject, created.ID, map[string]any{
		"title":        created.Title,
		"workspace_id": ws.ID,
	})
	return created, nil
}

// UpdateParams holds optional project changes.
type UpdateParams struct {
	Title       *string
	Description *string
}

// Update changes title or description. Requires the effective manager role.
func (s *Service) Update(ctx context.Context, actorID, id int64, params UpdateParams) (*models.Project, error) {
	_, p, err := s.Authorize(ctx, authz.ManageProject, actorID, id)
	if err != nil {
		return nil, err
	}

	changed := map[string]any{}
	if params.Title != nil {
		p.Title = strings.TrimSpace(*params.Title)
		changed["title"] = p.Title
	}
	if params.Description != nil {
		p.Description = *params.Description
		changed["description"] = p.Description
	}

	if err := s.repo.UpdateProject(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to update project: %w", err)
	}

	s.record(ctx, actorID, activity.ActionUpdatedProject, p.ID, changed)
	return p, nil
}

// SetStatus moves the project to another status.
func (s *Service) SetStatus(ctx context.Context, actorID, id int64, status models.ProjectStatus) (*models.Project, error) {
	_, p, err := s.Authorize(ctx, authz.ManageProject, actorID, id)
	if err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}
	if p.Status == status {
		return p, nil
	}

	from := p.Status
	p.Status = status
	if err := s.repo.UpdateProject(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to update project: %w", err)
	}

	s.record(ctx, actorID, activity.ActionChangedProjectStatus, p.ID, map[string]any{
		"from": from,
		"to":   status,
	})
	return p, nil
}

// ToggleArchive flips the archived flag.
func (s *Service) ToggleArchive(ctx context.Context, actorID, id int64) (*models.Project, error) {
	_, p, err := s.Authorize(ctx, authz.ManageProject, actorID, id)
	if err != nil {
		return nil, err
	}

	p.IsArchived = !p.IsArchived
	if err := s.repo.UpdateProject(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to update project: %w", err)
	}

	action := activity.ActionArchivedProject
	if !p.IsArchived {
		action = activity.ActionUnarchivedProject
	}
	s.record(ctx, actorID, action, p.ID, nil)
	return p, nil
}

// Delete removes a project with its tasks. Only workspace owner and admins may do this.
func (s *Service) Delete(ctx context.Context, actorID, id int64) error {
	_, p, err := s.Authorize(ctx, authz.DeleteProject, actorID, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteProject(ctx, p.ID); err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	slog.Info("project_deleted", "project_id", p.ID, "user_id", actorID)
	s.activity.Record(ctx, activity.Entry{
		UserID:       actorID,
		Action:       activity.ActionDeletedProject,
		ResourceType: models.ResourceWorkspace,
		ResourceID:   p.WorkspaceID,
		Details:      map[string]any{"project_id": p.ID, "title": p.Title},
	})
	return nil
}

func (s *Service) record(ctx context.Context, actorID int64, action string, projectID int64, details map[string]any) {
	s.activity.Record(ctx, activity.Entry{
		UserID:       actorID,
		Action:       action,
		ResourceType: models.ResourceProject,
		ResourceID:   projectID,
		Details:      details,
	})
}
