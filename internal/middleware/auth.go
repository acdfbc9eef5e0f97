// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package middleware provides echo middleware for authentication and locale detection.
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"codeberg.org/oliverandrich/planifio/internal/apperr"
	"codeberg.org/oliverandrich/planifio/internal/auth"
	"codeberg.org/oliverandrich/planifio/internal/models"
	"codeberg.org/oliverandrich/planifio/internal/services/session"
	"codeberg.org/oliverandrich/planifio/internal/token"
	"github.com/labstack/echo/v4"
)

var (
	ErrUnauthenticated = apperr.New(apperr.Authentication, "Authentication required")
	ErrInvalidToken    = apperr.New(apperr.Authentication, "Invalid or expired token")
)

// Authenticator resolves a login token to its user.
type Authenticator interface {
	Authenticate(ctx context.Context, value string) (*models.User, *token.Verified, error)
}

// RequireAuth accepts a bearer token or, failing that, the session cookie.
// Requests without a valid login token are rejected with 401.
func RequireAuth(authn Authenticator, sessions *session.Manager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			value := BearerToken(c)
			if value == "" && sessions != nil {
				data, _ := sessions.Parse(c.Request())
				if data != nil {
					value = data.Token
				}
			}
			if value == "" {
				return ErrUnauthenticated
			}

			user, verified, err := authn.Authenticate(c.Request().Context(), value)
			if err != nil {
				if apperr.KindOf(err) == apperr.Validation || errors.Is(err, token.ErrNotFound) {
					slog.Debug("auth_token_rejected", "error", err)
					return apperr.Wrap(ErrInvalidToken, err)
				}
				return err
			}

			ctx := auth.WithUser(c.Request().Context(), user, verified)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// BearerToken returns the token from an "Authorization: Bearer" header.
func BearerToken(c echo.Context) string {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	scheme, value, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(value)
}
