// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

// setupLogger configures the global slog logger.
func setupLogger(level, format string) {
	slog.SetDefault(newLogger(os.Stdout, level, format))
}

// newLogger writes JSON for format "json" and colored text otherwise.
// Unknown levels fall back to info.
func newLogger(w io.Writer, level, format string) *slog.Logger {
	var logLevel slog.Level
	if err := logLevel.UnmarshalText([]byte(level)); err != nil {
		logLevel = slog.LevelInfo
	}

	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: logLevel}))
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      logLevel,
		TimeFormat: time.DateTime,
		NoColor:    w != os.Stdout,
	}))
}
