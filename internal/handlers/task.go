// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"io"
	"net/http"
	"time"

	"codeberg.org/oliverandrich/planifio/internal/apperr"
	"codeberg.org/oliverandrich/planifio/internal/models"
	"codeberg.org/oliverandrich/planifio/internal/services/task"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/labstack/echo/v4"
)

var errMissingFile = apperr.New(apperr.Validation, "A file is required")

// FileLocator resolves a stored upload to its file on disk.
type FileLocator interface {
	Path(folder, name string) string
}

// TaskHandlers contains handlers for tasks and their items.
type TaskHandlers struct {
	tasks *task.Service
	files FileLocator
}

// NewTask creates a new TaskHandlers instance.
func NewTask(svc *task.Service, files FileLocator) *TaskHandlers {
	return &TaskHandlers{tasks: svc, files: files}
}

type createTaskRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	DueDate     *time.Time `json:"due_date"`
	AssigneeIDs []int64    `json:"assignee_user_ids"`
}

func (r createTaskRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Description, validation.Length(0, 10000)),
	)
}

// List returns the tasks of a project.
func (h *TaskHandlers) List(c echo.Context) error {
	projectID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	list, err := h.tasks.List(c.Request().Context(), currentUser(c).ID, projectID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list)
}

// Create adds a task to a project.
func (h *TaskHandlers) Create(c echo.Context) error {
	projectID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req createTaskRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	t, err := h.tasks.Create(c.Request().Context(), currentUser(c).ID, projectID, task.CreateParams{
		Title:       req.Title,
		Description: req.Description,
		Status:      models.TaskStatus(req.Status),
		Priority:    models.TaskPriority(req.Priority),
		DueDate:     req.DueDate,
		AssigneeIDs: req.AssigneeIDs,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, t)
}

// Get returns a task.
func (h *TaskHandlers) Get(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	t, err := h.tasks.Get(c.Request().Context(), currentUser(c).ID, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, t)
}

type updateTaskRequest struct {
	Title        *string    `json:"title"`
	Description  *string    `json:"description"`
	Status       *string    `json:"status"`
	Priority     *string    `json:"priority"`
	DueDate      *time.Time `json:"due_date"`
	ClearDueDate bool       `json:"clear_due_date"`
}

func (r updateTaskRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.NilOrNotEmpty, validation.Length(1, 200)),
		validation.Field(&r.Description, validation.Length(0, 10000)),
	)
}

// Update changes scalar task fields.
func (h *TaskHandlers) Update(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req updateTaskRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	params := task.UpdateParams{
		Title:        req.Title,
		Description:  req.Description,
		DueDate:      req.DueDate,
		ClearDueDate: req.ClearDueDate,
	}
	if req.Status != nil {
		status := models.TaskStatus(*req.Status)
		params.Status = &status
	}
	if req.Priority != nil {
		priority := models.TaskPriority(*req.Priority)
		params.Priority = &priority
	}

	t, err := h.tasks.Update(c.Request().Context(), currentUser(c).ID, id, params)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, t)
}

// Delete removes a task.
func (h *TaskHandlers) Delete(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.tasks.Delete(c.Request().Context(), currentUser(c).ID, id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "Task deleted"})
}

type assigneesRequest struct {
	UserIDs []int64 `json:"user_ids"`
}

// SetAssignees replaces the assignee set.
func (h *TaskHandlers) SetAssignees(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req assigneesRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	t, err := h.tasks.SetAssignees(c.Request().Context(), currentUser(c).ID, id, req.UserIDs)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, t)
}

// WatchResponse reports the watch state after a toggle.
type WatchResponse struct {
	Watching bool `json:"watching"`
}

// ToggleWatch adds or removes the current user as watcher.
func (h *TaskHandlers) ToggleWatch(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	watching, err := h.tasks.ToggleWatch(c.Request().Context(), currentUser(c).ID, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, WatchResponse{Watching: watching})
}

// ToggleArchive flips the archived flag.
func (h *TaskHandlers) ToggleArchive(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	t, err := h.tasks.ToggleArchive(c.Request().Context(), currentUser(c).ID, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, t)
}

type subtaskRequest struct {
	Title string `json:"title"`
}

func (r subtaskRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required, validation.Length(1, 200)),
	)
}

// AddSubtask appends a subtask.
func (h *TaskHandlers) AddSubtask(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req subtaskRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	sub, err := h.tasks.AddSubtask(c.Request().Context(), currentUser(c).ID, id, req.Title)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, sub)
}

type updateSubtaskRequest struct {
	Title     *string `json:"title"`
	Completed *bool   `json:"completed"`
}

func (r updateSubtaskRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.NilOrNotEmpty, validation.Length(1, 200)),
	)
}

// UpdateSubtask renames or toggles a subtask.
func (h *TaskHandlers) UpdateSubtask(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	subtaskID, err := paramID(c, "subtaskId")
	if err != nil {
		return err
	}
	var req updateSubtaskRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	sub, err := h.tasks.UpdateSubtask(c.Request().Context(), currentUser(c).ID, id, subtaskID, task.SubtaskParams{
		Title:     req.Title,
		Completed: req.Completed,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sub)
}

// AddAttachment stores the multipart "file" field on the task.
func (h *TaskHandlers) AddAttachment(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return apperr.Wrap(errMissingFile, err)
	}
	f, err := fh.Open()
	if err != nil {
		return apperr.Wrap(errMissingFile, err)
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	if err != nil {
		return apperr.Wrap(errBadRequest, err)
	}

	a, err := h.tasks.AddAttachment(c.Request().Context(), currentUser(c).ID, id, task.Upload{
		FileName:    fh.Filename,
		ContentType: fh.Header.Get(echo.HeaderContentType),
		Data:        data,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, a)
}

// Attachment serves a stored attachment file.
func (h *TaskHandlers) Attachment(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	name := c.Param("name")
	if _, err := h.tasks.Attachment(c.Request().Context(), currentUser(c).ID, id, name); err != nil {
		return err
	}
	return c.File(h.files.Path(task.AttachmentFolder(id), name))
}

type commentRequest struct {
	Text string `json:"text"`
}

func (r commentRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Text, validation.Required, validation.Length(1, 5000)),
	)
}

// ListComments returns the comments of a task.
func (h *TaskHandlers) ListComments(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	comments, err := h.tasks.Comments(c.Request().Context(), currentUser(c).ID, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, comments)
}

// AddComment stores a comment on a task.
func (h *TaskHandlers) AddComment(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req commentRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	comment, err := h.tasks.AddComment(c.Request().Context(), currentUser(c).ID, id, req.Text)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, comment)
}

// Activity returns the newest activity entries of a task. The optional
// limit query parameter caps the result.
func (h *TaskHandlers) Activity(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	entries, err := h.tasks.Activity(c.Request().Context(), currentUser(c).ID, id, queryLimit(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, entries)
}
