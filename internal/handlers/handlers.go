// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package handlers contains the JSON HTTP handlers.
package handlers

import (
	"net/http"

	"codeberg.org/oliverandrich/planifio/internal/repository"
	"github.com/labstack/echo/v4"
)

// Handlers contains handlers that are not tied to a service.
type Handlers struct {
	repo *repository.Repository
}

// New creates a new Handlers instance.
func New(repo *repository.Repository) *Handlers {
	return &Handlers{repo: repo}
}

// Health returns the health status. The database is pinged when available.
func (h *Handlers) Health(c echo.Context) error {
	if h.repo != nil {
		if err := h.repo.DB().PingContext(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
			})
		}
	}
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}
