// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package middleware

import (
	"log/slog"
	"net/http"

	"codeberg.org/oliverandrich/planifio/internal/apperr"
	"codeberg.org/oliverandrich/planifio/internal/services/session"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

// CSRFHeader carries the double-submit token on unsafe requests.
const CSRFHeader = "X-CSRF-Token"

var ErrCSRF = apperr.New(apperr.Authorization, "Invalid CSRF token. Please reload the page.")

// CSRF protects requests authenticated by the session cookie. Requests with a
// bearer token or without a session cookie are passed through. Every guarded
// response carries the current token in the X-CSRF-Token header.
func CSRF(sessions *session.Manager, secure bool) echo.MiddlewareFunc {
	check := echomw.CSRFWithConfig(echomw.CSRFConfig{
		Skipper: func(c echo.Context) bool {
			return BearerToken(c) != "" || sessions == nil || !sessions.Present(c.Request())
		},
		TokenLookup:    "header:" + CSRFHeader,
		CookieName:     "_csrf",
		CookiePath:     "/",
		CookieSecure:   secure,
		CookieHTTPOnly: true,
		CookieSameSite: http.SameSiteLaxMode,
		ErrorHandler: func(err error, c echo.Context) error {
			slog.Warn("csrf_failure",
				"path", c.Request().URL.Path,
				"method", c.Request().Method,
				"ip", c.RealIP(),
			)
			return apperr.Wrap(ErrCSRF, err)
		},
	})
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return check(func(c echo.Context) error {
			if token, ok := c.Get("csrf").(string); ok {
				c.Response().Header().Set(CSRFHeader, token)
			}
			return next(c)
		})
	}
}
