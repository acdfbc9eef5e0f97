// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"codeberg.org/oliverandrich/planifio/internal/apperr"
	authsvc "codeberg.org/oliverandrich/planifio/internal/services/auth"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/labstack/echo/v4"
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Message string `json:"message"`
	Errors  any    `json:"errors,omitempty"`
}

// ErrorHandler renders errors returned by handlers and middleware as JSON.
// Service errors are mapped through their apperr kind; anything unclassified
// is logged and answered with a generic 500.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status, body := errorResponse(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request_failed",
			"method", c.Request().Method,
			"uri", c.Request().RequestURI,
			"status", status,
			"error", err,
		)
	}

	var writeErr error
	if c.Request().Method == http.MethodHead {
		writeErr = c.NoContent(status)
	} else {
		writeErr = c.JSON(status, body)
	}
	if writeErr != nil {
		slog.Error("error_response_failed", "error", writeErr)
	}
}

func errorResponse(err error) (int, ErrorResponse) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg, ok := he.Message.(string)
		if !ok {
			msg = http.StatusText(he.Code)
		}
		return he.Code, ErrorResponse{Message: msg}
	}

	var verrs validation.Errors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for field, ferr := range verrs {
			fields[field] = ferr.Error()
		}
		return http.StatusBadRequest, ErrorResponse{Message: "Invalid request", Errors: fields}
	}

	body := ErrorResponse{Message: apperr.Message(err)}
	var perr *authsvc.PasswordValidationError
	if errors.As(err, &perr) {
		body.Errors = perr.Messages()
	}
	return apperr.KindOf(err).Status(), body
}
