// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package ratelimit implements a Redis backed token bucket. It throttles the
// public auth routes and serves as the bot-protection check of registration.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"codeberg.org/oliverandrich/planifio/internal/config"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// KEYS[1] bucket; ARGV now_ms, capacity, refill_tokens, interval_ms, ttl_seconds.
// Returns {allowed, remaining, retry_after_ms}.
var bucketScript = redis.NewScript(`
local key = KEYS[1]
local now_ms = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local refill_tokens = tonumber(ARGV[3])
local interval_ms = tonumber(ARGV[4])
local ttl_seconds = tonumber(ARGV[5])

local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
local tokens = tonumber(state[1])
local last_refill = tonumber(state[2])

if tokens == nil or last_refill == nil then
	tokens = capacity
	last_refill = now_ms
end

if interval_ms > 0 and refill_tokens > 0 then
	local elapsed = math.max(0, now_ms - last_refill)
	local intervals = math.floor(elapsed / interval_ms)
	if intervals > 0 then
		tokens = math.min(capacity, tokens + (intervals * refill_tokens))
		last_refill = last_refill + (intervals * interval_ms)
	end
end

local allowed = 0
local retry_after_ms = 0
if tokens > 0 then
	allowed = 1
	tokens = tokens - 1
else
	retry_after_ms = math.max(0, interval_ms - (now_ms - last_refill))
end

redis.call('HSET', key, 'tokens', tokens, 'last_refill_ms', last_refill)
redis.call('EXPIRE', key, ttl_seconds)

return { allowed, tokens, retry_after_ms }
`)

// NewClient connects to Redis. It returns nil when no address is configured.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}
	return rdb, nil
}

// Result is the outcome of taking a token from a bucket.
type Result struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
}

// Limiter takes tokens from per-key buckets. A nil Redis client or a disabled
// config lets every request through.
type Limiter struct {
	rdb *redis.Client
	cfg config.RateLimitConfig
	now func() time.Time
}

// New creates a limiter.
func New(rdb *redis.Client, cfg config.RateLimitConfig) *Limiter {
	return &Limiter{rdb: rdb, cfg: cfg, now: time.Now}
}

// Enabled reports whether requests are actually limited.
func (l *Limiter) Enabled() bool {
	return l != nil && l.rdb != nil && l.cfg.Enabled
}

// Take removes one token from the bucket of key.
func (l *Limiter) Take(ctx context.Context, key string) (Result, error) {
	if !l.Enabled() {
		return Result{Allowed: true, Remaining: int64(l.capacity())}, nil
	}

	args := []any{
		l.now().UnixMilli(),
		l.cfg.Capacity,
		l.cfg.RefillTokens,
		l.cfg.RefillInterval.Milliseconds(),
		int64(l.cfg.TTL() / time.Second),
	}

	vals, err := bucketScript.Run(ctx, l.rdb, []string{l.key(key)}, args...).Int64Slice()
	if err != nil {
		return Result{}, fmt.Errorf("failed to run rate limit script: %w", err)
	}
	if len(vals) != 3 {
		return Result{}, fmt.Errorf("unexpected rate limit result %v", vals)
	}

	return Result{
		Allowed:    vals[0] == 1,
		Remaining:  vals[1],
		RetryAfter: time.Duration(vals[2]) * time.Millisecond,
	}, nil
}

// Allow reports whether key may proceed. Redis failures let the request pass.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, error) {
	res, err := l.Take(ctx, key)
	if err != nil {
		slog.Warn("ratelimit_unavailable", "key", key, "error", err)
		return true, nil
	}
	return res.Allowed, nil
}

// Middleware limits requests per client IP and route.
func (l *Limiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if !l.Enabled() {
			return next
		}
		return func(c echo.Context) error {
			key := RequestKey(c)
			res, err := l.Take(c.Request().Context(), key)
			if err != nil {
				slog.Warn("ratelimit_unavailable", "key", key, "error", err)
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(l.cfg.Capacity))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))

			if !res.Allowed {
				secs := int(math.Ceil(res.RetryAfter.Seconds()))
				h.Set("Retry-After", strconv.Itoa(secs))
				slog.Info("ratelimit_blocked", "key", key, "retry_after", secs)
				return echo.NewHTTPError(http.StatusTooManyRequests, "Too many requests. Please try again later.")
			}
			return next(c)
		}
	}
}

// RequestKey builds the bucket key for a request from client IP and route.
func RequestKey(c echo.Context) string {
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	return strings.Join([]string{"ip", ip, "route", c.Request().Method + " " + c.Path()}, ":")
}

func (l *Limiter) key(key string) string {
	if l.cfg.Prefix == "" {
		return key
	}
	return l.cfg.Prefix + ":" + key
}

func (l *Limiter) capacity() int {
	if l == nil {
		return 0
	}
	return l.cfg.Capacity
}
