// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package ratelimit_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"codeberg.org/oliverandrich/planifio/internal/config"
	"codeberg.org/oliverandrich/planifio/internal/ratelimit"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() config.RateLimitConfig {
	return config.RateLimitConfig{
		Enabled:        true,
		Capacity:       3,
		RefillTokens:   1,
		RefillInterval: time.Second,
		Prefix:         "test",
	}
}

func TestNewClient_NoAddr(t *testing.T) {
	rdb, err := ratelimit.NewClient(context.Background(), config.RedisConfig{})

	require.NoError(t, err)
	assert.Nil(t, rdb)
}

func TestLimiter_NilClientAllows(t *testing.T) {
	l := ratelimit.New(nil, testConfig())

	assert.False(t, l.Enabled())
	for range 10 {
		ok, err := l.Allow(context.Background(), "ip:1.2.3.4")
		require.NoError(t, err)
		assert.True(t, ok)
	}
}

func TestLimiter_DisabledAllows(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	t.Cleanup(func() { _ = rdb.Close() })

	l := ratelimit.New(rdb, cfg)

	res, err := l.Take(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestLimiter_RedisDownFailsOpen(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = rdb.Close() })
	l := ratelimit.New(rdb, testConfig())

	_, err := l.Take(context.Background(), "k")
	require.Error(t, err)

	ok, err := l.Allow(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMiddleware_Disabled(t *testing.T) {
	e := echo.New()
	l := ratelimit.New(nil, testConfig())
	h := l.Middleware()(func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodPost, "/authentification/login", nil)
	rec := httptest.NewRecorder()
	require.NoError(t, h(e.NewContext(req, rec)))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
}

func TestRequestKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/authentification/login", nil)
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.7")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/authentification/login")

	assert.Equal(t, "ip:10.0.0.7:route:POST /authentification/login", ratelimit.RequestKey(c))
}

func TestRateLimitTTLCoversRefill(t *testing.T) {
	cfg := testConfig()
	assert.GreaterOrEqual(t, cfg.TTL(), time.Duration(cfg.Capacity)*cfg.RefillInterval)
}
