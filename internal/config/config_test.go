// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package config

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/urfave/cli/v3"
)

func TestIsLocalhost(t *testing.T) {
	tests := []struct {
		host     string
		expected bool
	}{
		{"", true},
		{"localhost", true},
		{"127.0.0.1", true},
		{"::1", true},
		{"app.localhost", true},
		{"example.com", false},
		{"192.168.1.1", false},
		{"localhost.com", false}, // not a real localhost
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsLocalhost(tt.host))
		})
	}
}

func TestBuildBaseURL(t *testing.T) {
	tests := []struct {
		name     string
		cfg      *Config
		expected string
	}{
		{
			name:     "localhost default port",
			cfg:      &Config{Server: ServerConfig{Host: "localhost", Port: 80}},
			expected: "http://localhost",
		},
		{
			name:     "localhost custom port",
			cfg:      &Config{Server: ServerConfig{Host: "localhost", Port: 8080}},
			expected: "http://localhost:8080",
		},
		{
			name:     "empty host",
			cfg:      &Config{Server: ServerConfig{Port: 3000}},
			expected: "http://localhost:3000",
		},
		{
			name:     "remote host behind proxy",
			cfg:      &Config{Server: ServerConfig{Host: "planifio.example.com", Port: 8080}},
			expected: "https://planifio.example.com",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, buildBaseURL(tt.cfg))
		})
	}
}

func TestRateLimitTTL(t *testing.T) {
	cfg := RateLimitConfig{Capacity: 10, RefillTokens: 1, RefillInterval: 6 * time.Second}
	assert.Equal(t, 66*time.Second, cfg.TTL())

	assert.Equal(t, time.Hour, RateLimitConfig{}.TTL())
}

func TestFlags(t *testing.T) {
	flags := Flags()

	assert.NotEmpty(t, flags)

	flagNames := make(map[string]bool)
	for _, f := range flags {
		for _, name := range f.Names() {
			flagNames[name] = true
		}
	}

	for _, name := range []string{
		"host", "port", "base-url", "log-level", "database-dsn",
		"token-secret", "invite-ttl", "session-cookie-name",
		"smtp-host", "redis-addr", "amqp-url", "upload-dir",
	} {
		assert.True(t, flagNames[name], "should have %s flag", name)
	}
}

func TestNewFromCLI(t *testing.T) {
	app := &cli.Command{
		Name:  "test",
		Flags: Flags(),
		Action: func(_ context.Context, cmd *cli.Command) error {
			cfg := NewFromCLI(cmd)

			assert.NotNil(t, cfg)
			assert.Equal(t, "localhost", cfg.Server.Host)
			assert.Equal(t, 8080, cfg.Server.Port)
			assert.Equal(t, "http://localhost:8080", cfg.Server.BaseURL)
			assert.Equal(t, "info", cfg.Log.Level)
			assert.Equal(t, "text", cfg.Log.Format)
			assert.Equal(t, "_planifio", cfg.Session.CookieName)
			assert.Equal(t, 604800, cfg.Session.MaxAge)

			assert.Equal(t, time.Hour, cfg.Auth.VerificationTTL)
			assert.Equal(t, time.Hour, cfg.Auth.ResetTTL)
			assert.Equal(t, 7*24*time.Hour, cfg.Auth.InviteTTL)
			assert.Equal(t, 7*24*time.Hour, cfg.Auth.LoginTTL)
			assert.Equal(t, "planifio", cfg.Auth.TokenIssuer)

			assert.Empty(t, cfg.SMTP.Host)
			assert.Empty(t, cfg.Redis.Addr)
			assert.Empty(t, cfg.AMQP.URL)
			assert.Equal(t, "planifio.activity", cfg.AMQP.Queue)
			assert.False(t, cfg.IsSecure())

			return nil
		},
	}

	err := app.Run(context.Background(), []string{"test"})
	assert.NoError(t, err)
}

func TestNewFromCLI_WithCustomValues(t *testing.T) {
	app := &cli.Command{
		Name:  "test",
		Flags: Flags(),
		Action: func(_ context.Context, cmd *cli.Command) error {
			cfg := NewFromCLI(cmd)

			assert.Equal(t, "0.0.0.0", cfg.Server.Host)
			assert.Equal(t, 9000, cfg.Server.Port)
			assert.Equal(t, "https://example.com", cfg.Server.BaseURL)
			assert.Equal(t, "debug", cfg.Log.Level)
			assert.Equal(t, "./data/test.db", cfg.Database.DSN)
			assert.Equal(t, 48*time.Hour, cfg.Auth.InviteTTL)
			assert.Equal(t, "smtp.example.com", cfg.SMTP.Host)
			assert.True(t, cfg.IsSecure())

			return nil
		},
	}

	args := []string{
		"test",
		"--host", "0.0.0.0",
		"--port", "9000",
		"--base-url", "https://example.com/",
		"--log-level", "debug",
		"--database-dsn", "./data/test.db",
		"--invite-ttl", "48h",
		"--smtp-host", "smtp.example.com",
	}
	err := app.Run(context.Background(), args)
	assert.NoError(t, err)
}
