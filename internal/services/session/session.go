// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package session stores the login token of browser clients in a signed and
// optionally encrypted cookie.
package session

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"codeberg.org/oliverandrich/planifio/internal/config"
	"github.com/gorilla/securecookie"
)

// Data is the decoded cookie payload.
type Data struct {
	Token     string    `json:"t"`
	ExpiresAt time.Time `json:"e"`
}

// Manager encodes and decodes session cookies.
type Manager struct {
	codec  *securecookie.SecureCookie
	name   string
	maxAge int
	secure bool
}

// NewManager creates a cookie manager. An empty hash key is replaced by a
// random one, which invalidates sessions on restart.
func NewManager(cfg *config.SessionConfig, secure bool) (*Manager, error) {
	hashKey, err := decodeKey(cfg.HashKey, "hash")
	if err != nil {
		return nil, err
	}
	if hashKey == nil {
		slog.Warn("session_hash_key_generated", "hint", "set SESSION_HASH_KEY to keep sessions across restarts")
		hashKey = securecookie.GenerateRandomKey(32)
	}

	blockKey, err := decodeKey(cfg.BlockKey, "block")
	if err != nil {
		return nil, err
	}

	codec := securecookie.New(hashKey, blockKey)
	codec.MaxAge(cfg.MaxAge)
	codec.SetSerializer(securecookie.JSONEncoder{})

	return &Manager{
		codec:  codec,
		name:   cfg.CookieName,
		maxAge: cfg.MaxAge,
		secure: secure,
	}, nil
}

func decodeKey(value, kind string) ([]byte, error) {
	if value == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("invalid session %s key: %w", kind, err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("invalid session %s key: must be 32 bytes, got %d", kind, len(key))
	}
	return key, nil
}

// Create returns a cookie carrying token until expiresAt. The cookie never
// outlives the token it carries.
func (m *Manager) Create(token string, expiresAt time.Time) (*http.Cookie, error) {
	encoded, err := m.codec.Encode(m.name, Data{Token: token, ExpiresAt: expiresAt.UTC()})
	if err != nil {
		return nil, fmt.Errorf("failed to encode session: %w", err)
	}

	maxAge := m.maxAge
	if left := int(time.Until(expiresAt).Seconds()); left < maxAge {
		maxAge = max(left, 1)
	}
	return m.cookie(encoded, maxAge), nil
}

// Parse returns the session carried by r, or nil when there is none or it
// cannot be decoded or has expired.
func (m *Manager) Parse(r *http.Request) (*Data, error) {
	c, err := r.Cookie(m.name)
	if err != nil {
		return nil, nil //nolint:nilerr // no cookie means no session
	}

	var data Data
	if err := m.codec.Decode(m.name, c.Value, &data); err != nil {
		slog.Debug("session_decode_failed", "error", err)
		return nil, nil
	}
	if !time.Now().Before(data.ExpiresAt) {
		return nil, nil
	}
	return &data, nil
}

// Present reports whether r carries a session cookie, valid or not.
func (m *Manager) Present(r *http.Request) bool {
	_, err := r.Cookie(m.name)
	return err == nil
}

// Clear returns a cookie that removes the session.
func (m *Manager) Clear() *http.Cookie {
	return m.cookie("", -1)
}

func (m *Manager) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     m.name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
