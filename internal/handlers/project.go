// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"net/http"

	"codeberg.org/oliverandrich/planifio/internal/models"
	"codeberg.org/oliverandrich/planifio/internal/services/project"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/labstack/echo/v4"
)

// ProjectHandlers contains handlers for projects and project members.
type ProjectHandlers struct {
	projects *project.Service
}

// NewProject creates a new ProjectHandlers instance.
func NewProject(svc *project.Service) *ProjectHandlers {
	return &ProjectHandlers{projects: svc}
}

type projectMemberInput struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role"`
}

func (m projectMemberInput) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.UserID, validation.Required),
		validation.Field(&m.Role, validation.Required),
	)
}

type createProjectRequest struct {
	Title       string               `json:"title"`
	Description string               `json:"description"`
	Status      string               `json:"status"`
	Members     []projectMemberInput `json:"members"`
}

func (r createProjectRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Description, validation.Length(0, 5000)),
		validation.Field(&r.Members),
	)
}

// List returns the projects of a workspace.
func (h *ProjectHandlers) List(c echo.Context) error {
	wsID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	list, err := h.projects.List(c.Request().Context(), currentUser(c).ID, wsID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list)
}

// Create adds a project to a workspace.
func (h *ProjectHandlers) Create(c echo.Context) error {
	wsID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req createProjectRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	members := make(map[int64]models.ProjectRole, len(req.Members))
	for _, m := range req.Members {
		members[m.UserID] = models.ProjectRole(m.Role)
	}

	p, err := h.projects.Create(c.Request().Context(), currentUser(c).ID, wsID, project.CreateParams{
		Title:       req.Title,
		Description: req.Description,
		Status:      models.ProjectStatus(req.Status),
		Members:     members,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, p)
}

// Get returns a project.
func (h *ProjectHandlers) Get(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	p, err := h.projects.Get(c.Request().Context(), currentUser(c).ID, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

// Activity returns the newest activity entries of a project.
func (h *ProjectHandlers) Activity(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	entries, err := h.projects.Activity(c.Request().Context(), currentUser(c).ID, id, queryLimit(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, entries)
}

type updateProjectRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

func (r updateProjectRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.NilOrNotEmpty, validation.Length(1, 200)),
		validation.Field(&r.Description, validation.Length(0, 5000)),
	)
}

// Update changes title or description.
func (h *ProjectHandlers) Update(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req updateProjectRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	p, err := h.projects.Update(c.Request().Context(), currentUser(c).ID, id, project.UpdateParams{
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

type projectStatusRequest struct {
	Status string `json:"status"`
}

func (r projectStatusRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Status, validation.Required),
	)
}

// SetStatus moves the project to another status.
func (h *ProjectHandlers) SetStatus(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req projectStatusRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	p, err := h.projects.SetStatus(c.Request().Context(), currentUser(c).ID, id, models.ProjectStatus(req.Status))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

// ToggleArchive flips the archived flag.
func (h *ProjectHandlers) ToggleArchive(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	p, err := h.projects.ToggleArchive(c.Request().Context(), currentUser(c).ID, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

// Delete removes a project.
func (h *ProjectHandlers) Delete(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.projects.Delete(c.Request().Context(), currentUser(c).ID, id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "Project deleted"})
}

// AddMember adds a workspace member to the project.
func (h *ProjectHandlers) AddMember(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req projectMemberInput
	if err := bind(c, &req); err != nil {
		return err
	}
	p, err := h.projects.AddMember(c.Request().Context(), currentUser(c).ID, id, req.UserID, models.ProjectRole(req.Role))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, p)
}

type projectRoleRequest struct {
	Role string `json:"role"`
}

func (r projectRoleRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Role, validation.Required),
	)
}

// SetMemberRole changes the role of a project member.
func (h *ProjectHandlers) SetMemberRole(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	userID, err := paramID(c, "userId")
	if err != nil {
		return err
	}
	var req projectRoleRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	p, err := h.projects.SetMemberRole(c.Request().Context(), currentUser(c).ID, id, userID, models.ProjectRole(req.Role))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

// RemoveMember removes a project member.
func (h *ProjectHandlers) RemoveMember(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	userID, err := paramID(c, "userId")
	if err != nil {
		return err
	}
	p, err := h.projects.RemoveMember(c.Request().Context(), currentUser(c).ID, id, userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}
