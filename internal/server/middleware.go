// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"fmt"
	"log/slog"
	"net/http"

	"codeberg.org/oliverandrich/planifio/internal/auth"
	"codeberg.org/oliverandrich/planifio/internal/config"
	appmw "codeberg.org/oliverandrich/planifio/internal/middleware"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

func setupMiddleware(e *echo.Echo, cfg *config.Config) {
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(requestLogger())
	e.Use(middleware.Secure())
	e.Use(middleware.Gzip())
	if cfg.Server.MaxBodySize > 0 {
		e.Use(middleware.BodyLimit(fmt.Sprintf("%dM", cfg.Server.MaxBodySize)))
	}
	e.Use(appmw.Locale())
}

// requestLogger logs one line per request. Server errors are logged with
// their cause, client errors only with the status.
func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			ctx := c.Request().Context()
			level := slog.LevelInfo
			attrs := make([]slog.Attr, 0, 7)
			attrs = append(attrs,
				slog.String("request_id", v.RequestID),
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
			)
			if user := auth.GetUser(ctx); user != nil {
				attrs = append(attrs, slog.Int64("user_id", user.ID))
			}
			if v.Error != nil && v.Status >= http.StatusInternalServerError {
				level = slog.LevelError
				attrs = append(attrs, slog.String("error", v.Error.Error()))
			}
			slog.LogAttrs(ctx, level, "request", attrs...)
			return nil
		},
	})
}
