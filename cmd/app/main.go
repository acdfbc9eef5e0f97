// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"

	"codeberg.org/oliverandrich/planifio/internal/config"
	"codeberg.org/oliverandrich/planifio/internal/server"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
)

// Version information (set via ldflags during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// A missing .env is fine, the environment and config.toml still apply.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatal(err)
	}

	cmd := &cli.Command{
		Name:    "planifio",
		Usage:   "Workspace, project and task collaboration API",
		Version: fmt.Sprintf("%s (built %s)", Version, BuildTime),
		Flags:   config.Flags(),
		Action:  server.Run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
