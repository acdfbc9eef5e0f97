// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"net/http"

	"codeberg.org/oliverandrich/planifio/internal/models"
	"codeberg.org/oliverandrich/planifio/internal/services/workspace"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/labstack/echo/v4"
)

// WorkspaceHandlers contains handlers for workspaces, invites and members.
type WorkspaceHandlers struct {
	workspaces *workspace.Service
}

// NewWorkspace creates a new WorkspaceHandlers instance.
func NewWorkspace(svc *workspace.Service) *WorkspaceHandlers {
	return &WorkspaceHandlers{workspaces: svc}
}

type createWorkspaceRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Color       string `json:"color"`
}

func (r createWorkspaceRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 100)),
		validation.Field(&r.Description, validation.Length(0, 1000)),
		validation.Field(&r.Color, validation.Length(0, 32)),
	)
}

type workspaceRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Color       *string `json:"color"`
}

func (r workspaceRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.NilOrNotEmpty, validation.Length(1, 100)),
		validation.Field(&r.Description, validation.Length(0, 1000)),
		validation.Field(&r.Color, validation.Length(0, 32)),
	)
}

// List returns the workspaces of the current user.
func (h *WorkspaceHandlers) List(c echo.Context) error {
	list, err := h.workspaces.List(c.Request().Context(), currentUser(c).ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list)
}

// Create makes the current user owner of a new workspace.
func (h *WorkspaceHandlers) Create(c echo.Context) error {
	var req createWorkspaceRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	ws, err := h.workspaces.Create(c.Request().Context(), currentUser(c).ID, workspace.CreateParams{
		Name:        req.Name,
		Description: req.Description,
		Color:       req.Color,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, ws)
}

// Get returns a workspace.
func (h *WorkspaceHandlers) Get(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	ws, err := h.workspaces.Get(c.Request().Context(), currentUser(c).ID, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ws)
}

// Update changes name, description or color.
func (h *WorkspaceHandlers) Update(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req workspaceRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	ws, err := h.workspaces.Update(c.Request().Context(), currentUser(c).ID, id, workspace.UpdateParams{
		Name:        req.Name,
		Description: req.Description,
		Color:       req.Color,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ws)
}

// Delete removes a workspace.
func (h *WorkspaceHandlers) Delete(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.workspaces.Delete(c.Request().Context(), currentUser(c).ID, id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "Workspace deleted"})
}

// Stats returns member, project and task counts.
func (h *WorkspaceHandlers) Stats(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	stats, err := h.workspaces.Stats(c.Request().Context(), currentUser(c).ID, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}

// Activity returns the newest activity entries of a workspace.
func (h *WorkspaceHandlers) Activity(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	entries, err := h.workspaces.Activity(c.Request().Context(), currentUser(c).ID, id, queryLimit(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, entries)
}

type userIDRequest struct {
	UserID int64 `json:"user_id"`
}

func (r userIDRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.UserID, validation.Required, validation.Min(int64(1))),
	)
}

// Transfer hands ownership to another member.
func (h *WorkspaceHandlers) Transfer(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req userIDRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	ws, err := h.workspaces.Transfer(c.Request().Context(), currentUser(c).ID, id, req.UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ws)
}

type inviteRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (r inviteRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Role, validation.Required),
	)
}

// InviteResponse confirms an issued invite.
type InviteResponse struct {
	Message string                  `json:"message"`
	Invite  *workspace.InviteResult `json:"invite"`
}

// Invite emails a workspace invite to an existing user.
func (h *WorkspaceHandlers) Invite(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req inviteRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	res, err := h.workspaces.Invite(c.Request().Context(), currentUser(c).ID, id, req.Email, models.WorkspaceRole(req.Role))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, InviteResponse{Message: "Invitation sent", Invite: res})
}

// AcceptInvite adds the current user to the workspace named in the token.
func (h *WorkspaceHandlers) AcceptInvite(c echo.Context) error {
	var req tokenRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ws, err := h.workspaces.AcceptInvite(c.Request().Context(), currentUser(c).ID, req.Token)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ws)
}

// Join adds the current user as member.
func (h *WorkspaceHandlers) Join(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	ws, err := h.workspaces.Join(c.Request().Context(), currentUser(c).ID, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ws)
}

// Leave removes the current user from the workspace.
func (h *WorkspaceHandlers) Leave(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.workspaces.Leave(c.Request().Context(), currentUser(c).ID, id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "You left the workspace"})
}

type workspaceRoleRequest struct {
	Role string `json:"role"`
}

func (r workspaceRoleRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Role, validation.Required),
	)
}

// SetMemberRole changes the role of a member.
func (h *WorkspaceHandlers) SetMemberRole(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	userID, err := paramID(c, "userId")
	if err != nil {
		return err
	}
	var req workspaceRoleRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	ws, err := h.workspaces.SetMemberRole(c.Request().Context(), currentUser(c).ID, id, userID, models.WorkspaceRole(req.Role))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ws)
}

// RemoveMember removes a member from the workspace.
func (h *WorkspaceHandlers) RemoveMember(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	userID, err := paramID(c, "userId")
	if err != nil {
		return err
	}
	if err := h.workspaces.RemoveMember(c.Request().Context(), currentUser(c).ID, id, userID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "Member removed"})
}
