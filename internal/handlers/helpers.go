// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"strconv"

	"codeberg.org/oliverandrich/planifio/internal/apperr"
	"codeberg.org/oliverandrich/planifio/internal/auth"
	"codeberg.org/oliverandrich/planifio/internal/models"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/labstack/echo/v4"
)

var (
	errBadRequest = apperr.New(apperr.Validation, "Invalid request body")
	errBadID      = apperr.New(apperr.Validation, "Invalid id")
)

// MessageResponse is a body that only carries a message.
type MessageResponse struct {
	Message string `json:"message"`
}

// bind decodes the request body into dst and validates it when dst
// implements validation.Validatable.
func bind(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return apperr.Wrap(errBadRequest, err)
	}
	if v, ok := dst.(validation.Validatable); ok {
		return v.Validate()
	}
	return nil
}

// queryLimit reads the optional ?limit parameter. Zero means the store default.
func queryLimit(c echo.Context) int {
	limit, err := strconv.Atoi(c.QueryParam("limit"))
	if err != nil || limit < 0 {
		return 0
	}
	return limit
}

// paramID parses a positive int64 path parameter.
func paramID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errBadID
	}
	return id, nil
}

// currentUser returns the authenticated user. Routes using it sit behind
// middleware.RequireAuth, so the user is always present.
func currentUser(c echo.Context) *models.User {
	return auth.GetUser(c.Request().Context())
}
