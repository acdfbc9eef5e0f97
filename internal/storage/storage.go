// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package storage keeps uploaded files.
package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Uploader stores a file and returns the URL it is served under.
type Uploader interface {
	Upload(ctx context.Context, data []byte, folder, fileName string) (string, error)
}

// Local writes files below a directory that the server exposes under URLPrefix.
type Local struct {
	Dir       string
	URLPrefix string
}

// NewLocal creates the upload directory if needed.
func NewLocal(dir, urlPrefix string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &Local{Dir: dir, URLPrefix: strings.TrimSuffix(urlPrefix, "/")}, nil
}

// Upload implements Uploader. Files get a random name that keeps the original extension.
func (l *Local) Upload(ctx context.Context, data []byte, folder, fileName string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	folder = cleanFolder(folder)
	name := uuid.NewString() + strings.ToLower(filepath.Ext(filepath.Base(fileName)))

	dir := filepath.Join(l.Dir, filepath.FromSlash(folder))
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create folder: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o640); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	return l.URLPrefix + "/" + path.Join(folder, name), nil
}

// Path returns the file name on disk of a stored file. Both parts are
// confined below Dir.
func (l *Local) Path(folder, name string) string {
	return filepath.Join(l.Dir, filepath.FromSlash(cleanFolder(folder)), filepath.Base(filepath.Clean("/"+name)))
}

// cleanFolder keeps folder below the upload root.
func cleanFolder(folder string) string {
	folder = path.Clean("/" + strings.ReplaceAll(folder, "\\", "/"))
	return strings.TrimPrefix(folder, "/")
}
