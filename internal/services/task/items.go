// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package task

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"codeberg.org/oliverandrich/planifio/internal/apperr"
	"codeberg.org/oliverandrich/planifio/internal/authz"
	"codeberg.org/oliverandrich/planifio/internal/models"
	"codeberg.org/oliverandrich/planifio/internal/repository"
	"codeberg.org/oliverandrich/planifio/internal/services/activity"
)

// AddSubtask appends a subtask.
func (s *Service) AddSubtask(ctx context.Context, actorID, id int64, title string) (*models.Subtask, error) {
	sc, err := s.authorize(ctx, authz.UpdateTask, actorID, id)
	if err != nil {
		return nil, err
	}

	sub := &models.Subtask{TaskID: sc.task.ID, Title: strings.TrimSpace(title)}
	if err := s.repo.CreateSubtask(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to create subtask: %w", err)
	}

	s.record(ctx, actorID, activity.ActionAddedSubtask, sc.task.ID, map[string]any{
		"subtask_id": sub.ID,
		"title":      sub.Title,
	})
	return sub, nil
}

// SubtaskParams holds optional subtask changes.
type SubtaskParams struct {
	Title     *string
	Completed *bool
}

// UpdateSubtask renames or toggles a subtask.
func (s *Service) UpdateSubtask(ctx context.Context, actorID, id, subtaskID int64, params SubtaskParams) (*models.Subtask, error) {
	sc, err := s.authorize(ctx, authz.UpdateTask, actorID, id)
	if err != nil {
		return nil, err
	}

	sub, err := s.repo.GetSubtask(ctx, sc.task.ID, subtaskID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSubtaskNotFound
		}
		return nil, fmt.Errorf("failed to get subtask: %w", err)
	}

	details := map[string]any{"subtask_id": sub.ID}
	if params.Title != nil {
		sub.Title = strings.TrimSpace(*params.Title)
		details["title"] = sub.Title
	}
	if params.Completed != nil {
		sub.Completed = *params.Completed
		details["completed"] = sub.Completed
	}

	if err := s.repo.UpdateSubtask(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to update subtask: %w", err)
	}

	s.record(ctx, actorID, activity.ActionUpdatedSubtask, sc.task.ID, details)
	return sub, nil
}

// Upload is a file received for a task.
type Upload struct {
	FileName    string
	ContentType string
	Data        []byte
}

// AddAttachment stores the file through the uploader and records it on the task.
func (s *Service) AddAttachment(ctx context.Context, actorID, id int64, upload Upload) (*models.Attachment, error) {
	sc, err := s.authorize(ctx, authz.UpdateTask, actorID, id)
	if err != nil {
		return nil, err
	}
	if len(upload.Data) == 0 {
		return nil, ErrEmptyAttachment
	}

	name := filepath.Base(upload.FileName)
	url, err := s.uploader.Upload(ctx, upload.Data, AttachmentFolder(sc.task.ID), name)
	if err != nil {
		return nil, apperr.Wrap(ErrAttachmentDelivery, err)
	}

	a := &models.Attachment{
		TaskID:           sc.task.ID,
		FileName:         name,
		FileURL:          url,
		FileType:         upload.ContentType,
		FileSize:         int64(len(upload.Data)),
		UploadedByUserID: actorID,
	}
	if err := s.repo.CreateAttachment(ctx, a); err != nil {
		return nil, fmt.Errorf("failed to record attachment: %w", err)
	}

	s.record(ctx, actorID, activity.ActionAddedAttachment, sc.task.ID, map[string]any{
		"attachment_id": a.ID,
		"file_name":     a.FileName,
	})
	return a, nil
}

// AddComment stores a comment. Anyone who can see the task may comment.
func (s *Service) AddComment(ctx context.Context, actorID, id int64, text string) (*models.Comment, error) {
	sc, err := s.authorize(ctx, authz.CommentTask, actorID, id)
	if err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyComment
	}

	c := &models.Comment{TaskID: sc.task.ID, AuthorUserID: actorID, Text: text}
	if err := s.repo.CreateComment(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}

	s.record(ctx, actorID, activity.ActionAddedComment, sc.task.ID, map[string]any{"comment_id": c.ID})
	return c, nil
}

// Comments lists the comments of a task, oldest first.
func (s *Service) Comments(ctx context.Context, actorID, id int64) ([]models.Comment, error) {
	sc, err := s.authorize(ctx, authz.ViewTask, actorID, id)
	if err != nil {
		return nil, err
	}
	comments, err := s.repo.ListComments(ctx, sc.task.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	return comments, nil
}

// AttachmentFolder is the storage folder of a task's attachments.
func AttachmentFolder(taskID int64) string {
	return fmt.Sprintf("tasks/%d", taskID)
}

// Attachment returns the attachment of a task whose stored file is name.
func (s *Service) Attachment(ctx context.Context, actorID, id int64, name string) (*models.Attachment, error) {
	sc, err := s.authorize(ctx, authz.ViewTask, actorID, id)
	if err != nil {
		return nil, err
	}
	for i := range sc.task.Attachments {
		if path.Base(sc.task.Attachments[i].FileURL) == name {
			return &sc.task.Attachments[i], nil
		}
	}
	return nil, ErrAttachmentMissing
}

// Activity lists the newest activity entries of a task.
func (s *Service) Activity(ctx context.Context, actorID, id int64, limit int) ([]models.ActivityLog, error) {
	sc, err := s.authorize(ctx, authz.ViewTask, actorID, id)
	if err != nil {
		return nil, err
	}
	return s.activity.List(ctx, models.ResourceTask, sc.task.ID, limit)
}
