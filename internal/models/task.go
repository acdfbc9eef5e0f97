// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import (
	"fmt"
	"time"
)

type TaskStatus string

const (
	TaskToDo       TaskStatus = "To Do"
	TaskInProgress TaskStatus = "In Progress"
	TaskDone       TaskStatus = "Done"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskToDo, TaskInProgress, TaskDone:
		return true
	}
	return false
}

func ParseTaskStatus(s string) (TaskStatus, error) {
	status := TaskStatus(s)
	if !status.Valid() {
		return "", fmt.Errorf("invalid task status %q", s)
	}
	return status, nil
}

type TaskPriority string

const (
	PriorityLow    TaskPriority = "Low"
	PriorityMedium TaskPriority = "Medium"
	PriorityHigh   TaskPriority = "High"
)

func (p TaskPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

func ParseTaskPriority(s string) (TaskPriority, error) {
	p := TaskPriority(s)
	if !p.Valid() {
		return "", fmt.Errorf("invalid task priority %q", s)
	}
	return p, nil
}

type Task struct { //nolint:govet // fieldalignment not critical for models
	ID              int64        `db:"id" json:"id"`
	ProjectID       int64        `db:"project_id" json:"project_id"`
	Title           string       `db:"title" json:"title"`
	Description     string       `db:"description" json:"description"`
	Status          TaskStatus   `db:"status" json:"status"`
	Priority        TaskPriority `db:"priority" json:"priority"`
	DueDate         *time.Time   `db:"due_date" json:"due_date,omitempty"`
	IsArchived      bool         `db:"is_archived" json:"is_archived"`
	CreatedByUserID int64        `db:"created_by_user_id" json:"created_by_user_id"`
	CompletedAt     *time.Time   `db:"completed_at" json:"completed_at,omitempty"`
	AssigneeUserIDs []int64      `db:"-" json:"assignee_user_ids"`
	WatcherUserIDs  []int64      `db:"-" json:"watcher_user_ids"`
	Subtasks        []Subtask    `db:"-" json:"subtasks"`
	Attachments     []Attachment `db:"-" json:"attachments"`
	CommentIDs      []int64      `db:"-" json:"comment_ids"`
	CreatedAt       time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time    `db:"updated_at" json:"updated_at"`
}

type Subtask struct { //nolint:govet // fieldalignment not critical for models
	ID        int64     `db:"id" json:"id"`
	TaskID    int64     `db:"task_id" json:"-"`
	Title     string    `db:"title" json:"title"`
	Completed bool      `db:"completed" json:"completed"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type Attachment struct { //nolint:govet // fieldalignment not critical for models
	ID               int64     `db:"id" json:"id"`
	TaskID           int64     `db:"task_id" json:"-"`
	FileName         string    `db:"file_name" json:"file_name"`
	FileURL          string    `db:"file_url" json:"file_url"`
	FileType         string    `db:"file_type" json:"file_type"`
	FileSize         int64     `db:"file_size" json:"file_size"`
	UploadedByUserID int64     `db:"uploaded_by_user_id" json:"uploaded_by_user_id"`
	UploadedAt       time.Time `db:"uploaded_at" json:"uploaded_at"`
}

type Comment struct { //nolint:govet // fieldalignment not critical for models
	ID           int64     `db:"id" json:"id"`
	TaskID       int64     `db:"task_id" json:"task_id"`
	AuthorUserID int64     `db:"author_user_id" json:"author_user_id"`
	Text         string    `db:"text" json:"text"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
