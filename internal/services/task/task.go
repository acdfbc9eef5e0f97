// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package task implements the task lifecycle: fields, assignees, watchers,
// subtasks, attachments and comments.
package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"codeberg.org/oliverandrich/planifio/internal/apperr"
	"codeberg.org/oliverandrich/planifio/internal/authz"
	"codeberg.org/oliverandrich/planifio/internal/membership"
	"codeberg.org/oliverandrich/planifio/internal/models"
	"codeberg.org/oliverandrich/planifio/internal/repository"
	"codeberg.org/oliverandrich/planifio/internal/services/activity"
	"codeberg.org/oliverandrich/planifio/internal/services/project"
	"codeberg.org/oliverandrich/planifio/internal/storage"
)

var (
	ErrNotFound           = apperr.New(apperr.NotFound, "Task not found")
	ErrSubtaskNotFound    = apperr.New(apperr.NotFound, "Subtask not found")
	ErrForbidden          = apperr.New(apperr.Authorization, "You do not have permission to perform this action")
	ErrInvalidStatus      = apperr.New(apperr.Validation, "Invalid task status")
	ErrInvalidPriority    = apperr.New(apperr.Validation, "Invalid task priority")
	ErrAssigneeNotMember  = apperr.New(apperr.Validation, "Assignees must be members of the project or workspace")
	ErrEmptyComment       = apperr.New(apperr.Validation, "Comment text is required")
	ErrEmptyAttachment    = apperr.New(apperr.Validation, "The uploaded file is empty")
	ErrAttachmentDelivery = apperr.New(apperr.Dependency, "The file could not be stored. Please try again later.")
	ErrAttachmentMissing  = apperr.New(apperr.NotFound, "Attachment not found")
)

type Service struct {
	repo     *repository.Repository
	projects *project.Service
	uploader storage.Uploader
	activity *activity.Recorder
	now      func() time.Time
}

func NewService(repo *repository.Repository, projects *project.Service, uploader storage.Uploader, recorder *activity.Recorder) *Service {
	return &Service{
		repo:     repo,
		projects: projects,
		uploader: uploader,
		activity: recorder,
		now:      time.Now,
	}
}

type scope struct {
	ws      *models.Workspace
	project *models.Project
	task    *models.Task
}

// authorize loads task, project and workspace and checks action for the actor.
func (s *Service) authorize(ctx context.Context, action authz.Action, actorID, id int64) (*scope, error) {
	t, err := s.repo.GetTask(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	ws, p, err := s.projects.Scope(ctx, t.ProjectID)
	if err != nil {
		return nil, err
	}
	if !authz.Can(action, ws, p, actorID) {
		return nil, ErrForbidden
	}
	return &scope{ws: ws, project: p, task: t}, nil
}

// List returns the tasks of a project the actor can see.
func (s *Service) List(ctx context.Context, actorID, projectID int64) ([]models.Task, error) {
	_, p, err := s.projects.Authorize(ctx, authz.ViewTask, actorID, projectID)
	if err != nil {
		return nil, mapForbidden(err)
	}
	list, err := s.repo.ListTasks(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	if list == nil {
		list = []models.Task{}
	}
	return list, nil
}

// Get returns a task the actor can see.
func (s *Service) Get(ctx context.Context, actorID, id int64) (*models.Task, error) {
	sc, err := s.authorize(ctx, authz.ViewTask, actorID, id)
	if err != nil {
		return nil, err
	}
	return sc.task, nil
}

// CreateParams are the fields of a new task.
type CreateParams struct {
	Title       string
	Description string
	Status      models.TaskStatus
	Priority    models.TaskPriority
	DueDate     *time.Time
	AssigneeIDs []int64
}

// Create adds a task to a project. Requires CanManageTask on the project.
func (s *Service) Create(ctx context.Context, actorID, projectID int64, params CreateParams) (*models.Task, error) {
	ws, p, err := s.projects.Authorize(ctx, authz.CreateTask, actorID, projectID)
	if err != nil {
		return nil, mapForbidden(err)
	}
	if params.Status != "" && !params.Status.Valid() {
		return nil, ErrInvalidStatus
	}
	if params.Priority != "" && !params.Priority.Valid() {
		return nil, ErrInvalidPriority
	}
	assignees, err := checkAssignees(ws, p, params.AssigneeIDs)
	if err != nil {
		return nil, err
	}

	t := &models.Task{
		ProjectID:       p.ID,
		Title:           strings.TrimSpace(params.Title),
		Description:     params.Description,
		Status:          params.Status,
		Priority:        params.Priority,
		DueDate:         utc(params.DueDate),
		CreatedByUserID: actorID,
	}
	if t.Status == models.TaskDone {
		t.CompletedAt = utc(ptr(s.now()))
	}

	var created *models.Task
	err = s.repo.InTx(ctx, func(tx *repository.Repository) error {
		if err := tx.CreateTask(ctx, t); err != nil {
			return fmt.Errorf("failed to create task: %w", err)
		}
		if err := tx.SetTaskAssignees(ctx, t.ID, assignees); err != nil {
			return fmt.Errorf("failed to set assignees: %w", err)
		}
		var err error
		created, err = tx.GetTask(ctx, t.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	slog.Info("task_created", "task_id", created.ID, "project_id", p.ID, "user_id", actorID)
	s.record(ctx, actorID, activity.ActionCreatedTask, created.ID, map[string]any{
		"title":      created.Title,
		"project_id": p.ID,
	})
	return created, nil
}

// UpdateParams holds optional task changes. ClearDueDate removes the due date.
type UpdateParams struct {
	Title        *string
	Description  *string
	Status       *models.TaskStatus
	Priority     *models.TaskPriority
	DueDate      *time.Time
	ClearDueDate bool
}

// Update changes scalar task fields. Each changed field gets its own activity entry.
func (s *Service) Update(ctx context.Context, actorID, id int64, params UpdateParams) (*models.Task, error) {
	sc, err := s.authorize(ctx, authz.UpdateTask, actorID, id)
	if err != nil {
		return nil, err
	}
	if params.Status != nil && !params.Status.Valid() {
		return nil, ErrInvalidStatus
	}
	if params.Priority != nil && !params.Priority.Valid() {
		return nil, ErrInvalidPriority
	}
	t := sc.task

	var changes []fieldChange
	if params.Title != nil {
		if title := strings.TrimSpace(*params.Title); title != t.Title {
			changes = append(changes, fieldChange{"title", t.Title, title})
			t.Title = title
		}
	}
	if params.Description != nil && *params.Description != t.Description {
		changes = append(changes, fieldChange{"description", t.Description, *params.Description})
		t.Description = *params.Description
	}
	if params.Status != nil && *params.Status != t.Status {
		changes = append(changes, fieldChange{"status", t.Status, *params.Status})
		t.Status = *params.Status
		if t.Status == models.TaskDone {
			t.CompletedAt = utc(ptr(s.now()))
		} else {
			t.CompletedAt = nil
		}
	}
	if params.Priority != nil && *params.Priority != t.Priority {
		changes = append(changes, fieldChange{"priority", t.Priority, *params.Priority})
		t.Priority = *params.Priority
	}
	switch {
	case params.ClearDueDate && t.DueDate != nil:
		changes = append(changes, fieldChange{"due_date", t.DueDate, nil})
		t.DueDate = nil
	case params.DueDate != nil && (t.DueDate == nil || !t.DueDate.Equal(*params.DueDate)):
		changes = append(changes, fieldChange{"due_date", t.DueDate, utc(params.DueDate)})
		t.DueDate = utc(params.DueDate)
	}

	if len(changes) == 0 {
		return t, nil
	}
	if err := s.repo.UpdateTask(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	for _, c := range changes {
		s.record(ctx, actorID, activity.ActionUpdatedTask, t.ID, map[string]any{
			"field": c.field,
			"from":  c.from,
			"to":    c.to,
		})
	}
	return t, nil
}

type fieldChange struct {
	field    string
	from, to any
}

// SetAssignees replaces the assignee set.
func (s *Service) SetAssignees(ctx context.Context, actorID, id int64, userIDs []int64) (*models.Task, error) {
	sc, err := s.authorize(ctx, authz.UpdateTask, actorID, id)
	if err != nil {
		return nil, err
	}
	assignees, err := checkAssignees(sc.ws, sc.project, userIDs)
	if err != nil {
		return nil, err
	}

	if err := s.repo.InTx(ctx, func(tx *repository.Repository) error {
		return tx.SetTaskAssignees(ctx, sc.task.ID, assignees)
	}); err != nil {
		return nil, fmt.Errorf("failed to set assignees: %w", err)
	}

	s.record(ctx, actorID, activity.ActionAssignedTask, sc.task.ID, map[string]any{"assignee_user_ids": assignees})
	return s.reload(ctx, sc.task.ID)
}

// ToggleWatch adds or removes the actor as watcher and reports the new state.
func (s *Service) ToggleWatch(ctx context.Context, actorID, id int64) (bool, error) {
	sc, err := s.authorize(ctx, authz.WatchTask, actorID, id)
	if err != nil {
		return false, err
	}

	if slices.Contains(sc.task.WatcherUserIDs, actorID) {
		if err := s.repo.RemoveTaskWatcher(ctx, sc.task.ID, actorID); err != nil {
			return false, fmt.Errorf("failed to remove watcher: %w", err)
		}
		s.record(ctx, actorID, activity.ActionUnwatchedTask, sc.task.ID, nil)
		return false, nil
	}

	if err := s.repo.AddTaskWatcher(ctx, sc.task.ID, actorID); err != nil {
		return false, fmt.Errorf("failed to add watcher: %w", err)
	}
	s.record(ctx, actorID, activity.ActionWatchedTask, sc.task.ID, nil)
	return true, nil
}

// ToggleArchive flips the archived flag.
func (s *Service) ToggleArchive(ctx context.Context, actorID, id int64) (*models.Task, error) {
	sc, err := s.authorize(ctx, authz.UpdateTask, actorID, id)
	if err != nil {
		return nil, err
	}
	t := sc.task
	t.IsArchived = !t.IsArchived
	if err := s.repo.UpdateTask(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	action := activity.ActionArchivedTask
	if !t.IsArchived {
		action = activity.ActionUnarchivedTask
	}
	s.record(ctx, actorID, action, t.ID, nil)
	return t, nil
}

// Delete removes a task. Only workspace owner and admins may do this.
func (s *Service) Delete(ctx context.Context, actorID, id int64) error {
	sc, err := s.authorize(ctx, authz.DeleteTask, actorID, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteTask(ctx, sc.task.ID); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	slog.Info("task_deleted", "task_id", sc.task.ID, "user_id", actorID)
	s.activity.Record(ctx, activity.Entry{
		UserID:       actorID,
		Action:       activity.ActionDeletedTask,
		ResourceType: models.ResourceProject,
		ResourceID:   sc.project.ID,
		Details:      map[string]any{"task_id": sc.task.ID, "title": sc.task.Title},
	})
	return nil
}

func (s *Service) reload(ctx context.Context, id int64) (*models.Task, error) {
	t, err := s.repo.GetTask(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to reload task: %w", err)
	}
	return t, nil
}

func (s *Service) record(ctx context.Context, actorID int64, action string, taskID int64, details map[string]any) {
	s.activity.Record(ctx, activity.Entry{
		UserID:       actorID,
		Action:       action,
		ResourceType: models.ResourceTask,
		ResourceID:   taskID,
		Details:      details,
	})
}

// checkAssignees dedupes ids and requires each to be a project or workspace member.
func checkAssignees(ws *models.Workspace, p *models.Project, ids []int64) ([]int64, error) {
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if slices.Contains(out, id) {
			continue
		}
		if !membership.IsProjectMember(p, id) && !membership.IsWorkspaceMember(ws, id) {
			return nil, ErrAssigneeNotMember
		}
		out = append(out, id)
	}
	slices.Sort(out)
	return out, nil
}

func mapForbidden(err error) error {
	if errors.Is(err, project.ErrForbidden) {
		return ErrForbidden
	}
	return err
}

func ptr[T any](v T) *T { return &v }

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
