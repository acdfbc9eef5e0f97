// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package config

import (
	"fmt"
	"strings"
	"time"

	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli-altsrc/v3/toml"
	"github.com/urfave/cli/v3"
)

var configFile = altsrc.StringSourcer("config.toml")

type Config struct { //nolint:govet // fieldalignment not critical for config structs
	Server    ServerConfig
	Log       LogConfig
	Database  DatabaseConfig
	Auth      AuthConfig
	Session   SessionConfig
	SMTP      SMTPConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	AMQP      AMQPConfig
	Storage   StorageConfig
}

type ServerConfig struct { //nolint:govet // fieldalignment not critical for config structs
	Host        string
	Port        int
	BaseURL     string
	MaxBodySize int // in MB
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // text, json
}

type DatabaseConfig struct {
	DSN string
}

// AuthConfig controls token signing and lifetimes.
type AuthConfig struct { //nolint:govet // fieldalignment not critical for config structs
	TokenSecret     string // HMAC secret, generated per process when empty
	TokenIssuer     string
	VerificationTTL time.Duration
	ResetTTL        time.Duration
	InviteTTL       time.Duration
	LoginTTL        time.Duration
	BcryptCost      int
	SweepInterval   time.Duration // 0 disables the expired token sweep
}

type SessionConfig struct { //nolint:govet // fieldalignment not critical
	CookieName string // Session cookie name
	MaxAge     int    // Session max age in seconds
	HashKey    string // 32-byte hex string for HMAC signing
	BlockKey   string // 32-byte hex string for AES encryption (optional)
}

// SMTPConfig configures outgoing mail. An empty Host logs mails instead of sending them.
type SMTPConfig struct { //nolint:govet // fieldalignment not critical for config structs
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	TLS      bool
}

type RedisConfig struct { //nolint:govet // fieldalignment not critical for config structs
	Addr     string // empty disables redis
	Password string
	DB       int
}

type RateLimitConfig struct { //nolint:govet // fieldalignment not critical for config structs
	Enabled        bool
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	Prefix         string
}

// TTL is how long an idle bucket survives in redis.
func (c RateLimitConfig) TTL() time.Duration {
	if c.Capacity <= 0 || c.RefillTokens <= 0 {
		return time.Hour
	}
	refills := (c.Capacity + c.RefillTokens - 1) / c.RefillTokens
	return time.Duration(refills+1) * c.RefillInterval
}

type AMQPConfig struct {
	URL   string // empty disables publishing
	Queue string
}

type StorageConfig struct {
	UploadDir string
}

func NewFromCLI(cmd *cli.Command) *Config {
	cfg := &Config{
		Server: ServerConfig{
			Host:        cmd.String("host"),
			Port:        int(cmd.Int("port")),
			BaseURL:     cmd.String("base-url"),
			MaxBodySize: int(cmd.Int("max-body-size")),
		},
		Log: LogConfig{
			Level:  cmd.String("log-level"),
			Format: cmd.String("log-format"),
		},
		Database: DatabaseConfig{
			DSN: cmd.String("database-dsn"),
		},
		Auth: AuthConfig{
			TokenSecret:     cmd.String("token-secret"),
			TokenIssuer:     cmd.String("token-issuer"),
			VerificationTTL: cmd.Duration("verification-ttl"),
			ResetTTL:        cmd.Duration("reset-ttl"),
			InviteTTL:       cmd.Duration("invite-ttl"),
			LoginTTL:        cmd.Duration("login-ttl"),
			BcryptCost:      int(cmd.Int("bcrypt-cost")),
			SweepInterval:   cmd.Duration("token-sweep-interval"),
		},
		Session: SessionConfig{
			CookieName: cmd.String("session-cookie-name"),
			MaxAge:     int(cmd.Int("session-max-age")),
			HashKey:    cmd.String("session-hash-key"),
			BlockKey:   cmd.String("session-block-key"),
		},
		SMTP: SMTPConfig{
			Host:     cmd.String("smtp-host"),
			Port:     int(cmd.Int("smtp-port")),
			Username: cmd.String("smtp-username"),
			Password: cmd.String("smtp-password"),
			From:     cmd.String("smtp-from"),
			FromName: cmd.String("smtp-from-name"),
			TLS:      cmd.Bool("smtp-tls"),
		},
		Redis: RedisConfig{
			Addr:     cmd.String("redis-addr"),
			Password: cmd.String("redis-password"),
			DB:       int(cmd.Int("redis-db")),
		},
		RateLimit: RateLimitConfig{
			Enabled:        cmd.Bool("ratelimit-enabled"),
			Capacity:       int(cmd.Int("ratelimit-capacity")),
			RefillTokens:   int(cmd.Int("ratelimit-refill-tokens")),
			RefillInterval: cmd.Duration("ratelimit-refill-interval"),
			Prefix:         cmd.String("ratelimit-prefix"),
		},
		AMQP: AMQPConfig{
			URL:   cmd.String("amqp-url"),
			Queue: cmd.String("amqp-queue"),
		},
		Storage: StorageConfig{
			UploadDir: cmd.String("upload-dir"),
		},
	}

	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = buildBaseURL(cfg)
	}
	cfg.Server.BaseURL = strings.TrimSuffix(cfg.Server.BaseURL, "/")

	return cfg
}

// buildBaseURL assumes plain HTTP on localhost and a TLS terminating proxy anywhere else.
func buildBaseURL(cfg *Config) string {
	host := cfg.Server.Host
	port := cfg.Server.Port

	if !IsLocalhost(host) {
		return fmt.Sprintf("https://%s", host)
	}

	if host == "" {
		host = "localhost"
	}
	if port == 80 {
		return fmt.Sprintf("http://%s", host)
	}
	return fmt.Sprintf("http://%s:%d", host, port)
}

// IsLocalhost checks if the host is a localhost address.
func IsLocalhost(host string) bool {
	switch host {
	case "", "localhost", "127.0.0.1", "::1":
		return true
	}
	// Check for *.localhost subdomains (e.g., app.localhost)
	return strings.HasSuffix(host, ".localhost")
}

// IsSecure reports whether cookies should carry the Secure flag.
func (c *Config) IsSecure() bool {
	return strings.HasPrefix(c.Server.BaseURL, "https://")
}

func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "host",
			Value:   "localhost",
			Usage:   "Host to bind to",
			Sources: cli.NewValueSourceChain(cli.EnvVar("HOST"), toml.TOML("server.host", configFile)),
		},
		&cli.IntFlag{
			Name:    "port",
			Value:   8080,
			Usage:   "Port to listen on",
			Sources: cli.NewValueSourceChain(cli.EnvVar("PORT"), toml.TOML("server.port", configFile)),
		},
		&cli.StringFlag{
			Name:    "base-url",
			Usage:   "Public base URL used in email links",
			Sources: cli.NewValueSourceChain(cli.EnvVar("BASE_URL"), toml.TOML("server.base_url", configFile)),
		},
		&cli.IntFlag{
			Name:    "max-body-size",
			Value:   10,
			Usage:   "Maximum request body size in MB",
			Sources: cli.NewValueSourceChain(cli.EnvVar("MAX_BODY_SIZE"), toml.TOML("server.max_body_size", configFile)),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Value:   "info",
			Usage:   "Log level (debug, info, warn, error)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("LOG_LEVEL"), toml.TOML("log.level", configFile)),
		},
		&cli.StringFlag{
			Name:    "log-format",
			Value:   "text",
			Usage:   "Log format (text, json)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("LOG_FORMAT"), toml.TOML("log.format", configFile)),
		},
		&cli.StringFlag{
			Name:    "database-dsn",
			Value:   "./data/planifio.db",
			Usage:   "Database DSN",
			Sources: cli.NewValueSourceChain(cli.EnvVar("DATABASE_DSN"), toml.TOML("database.dsn", configFile)),
		},
		// Auth flags
		&cli.StringFlag{
			Name:    "token-secret",
			Usage:   "HMAC secret for signed tokens (random per process if empty)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("TOKEN_SECRET"), toml.TOML("auth.token_secret", configFile)),
		},
		&cli.StringFlag{
			Name:    "token-issuer",
			Value:   "planifio",
			Usage:   "Issuer claim for signed tokens",
			Sources: cli.NewValueSourceChain(cli.EnvVar("TOKEN_ISSUER"), toml.TOML("auth.token_issuer", configFile)),
		},
		&cli.DurationFlag{
			Name:    "verification-ttl",
			Value:   time.Hour,
			Usage:   "Lifetime of email verification tokens",
			Sources: cli.NewValueSourceChain(cli.EnvVar("VERIFICATION_TTL"), toml.TOML("auth.verification_ttl", configFile)),
		},
		&cli.DurationFlag{
			Name:    "reset-ttl",
			Value:   time.Hour,
			Usage:   "Lifetime of password reset tokens",
			Sources: cli.NewValueSourceChain(cli.EnvVar("RESET_TTL"), toml.TOML("auth.reset_ttl", configFile)),
		},
		&cli.DurationFlag{
			Name:    "invite-ttl",
			Value:   7 * 24 * time.Hour,
			Usage:   "Lifetime of workspace invites",
			Sources: cli.NewValueSourceChain(cli.EnvVar("INVITE_TTL"), toml.TOML("auth.invite_ttl", configFile)),
		},
		&cli.DurationFlag{
			Name:    "login-ttl",
			Value:   7 * 24 * time.Hour,
			Usage:   "Lifetime of login tokens",
			Sources: cli.NewValueSourceChain(cli.EnvVar("LOGIN_TTL"), toml.TOML("auth.login_ttl", configFile)),
		},
		&cli.IntFlag{
			Name:    "bcrypt-cost",
			Value:   10,
			Usage:   "bcrypt cost for password hashes",
			Sources: cli.NewValueSourceChain(cli.EnvVar("BCRYPT_COST"), toml.TOML("auth.bcrypt_cost", configFile)),
		},
		&cli.DurationFlag{
			Name:    "token-sweep-interval",
			Value:   time.Hour,
			Usage:   "Interval for deleting expired tokens (0 disables)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("TOKEN_SWEEP_INTERVAL"), toml.TOML("auth.token_sweep_interval", configFile)),
		},
		// Session flags
		&cli.StringFlag{
			Name:    "session-cookie-name",
			Value:   "_planifio",
			Usage:   "Session cookie name",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SESSION_COOKIE_NAME"), toml.TOML("session.cookie_name", configFile)),
		},
		&cli.IntFlag{
			Name:    "session-max-age",
			Value:   604800, // 7 days in seconds
			Usage:   "Session max age in seconds",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SESSION_MAX_AGE"), toml.TOML("session.max_age", configFile)),
		},
		&cli.StringFlag{
			Name:    "session-hash-key",
			Usage:   "Session hash key (32-byte hex, auto-generated if empty in dev)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SESSION_HASH_KEY"), toml.TOML("session.hash_key", configFile)),
		},
		&cli.StringFlag{
			Name:    "session-block-key",
			Usage:   "Session block key for encryption (32-byte hex, optional)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SESSION_BLOCK_KEY"), toml.TOML("session.block_key", configFile)),
		},
		// SMTP flags
		&cli.StringFlag{
			Name:    "smtp-host",
			Usage:   "SMTP host (mails are logged when empty)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_HOST"), toml.TOML("smtp.host", configFile)),
		},
		&cli.IntFlag{
			Name:    "smtp-port",
			Value:   587,
			Usage:   "SMTP port",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_PORT"), toml.TOML("smtp.port", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-username",
			Usage:   "SMTP username",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_USERNAME"), toml.TOML("smtp.username", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-password",
			Usage:   "SMTP password",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_PASSWORD"), toml.TOML("smtp.password", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-from",
			Value:   "noreply@planifio.local",
			Usage:   "Sender address",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_FROM"), toml.TOML("smtp.from", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-from-name",
			Value:   "Planifio",
			Usage:   "Sender display name",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_FROM_NAME"), toml.TOML("smtp.from_name", configFile)),
		},
		&cli.BoolFlag{
			Name:    "smtp-tls",
			Value:   true,
			Usage:   "Require TLS for SMTP",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_TLS"), toml.TOML("smtp.tls", configFile)),
		},
		// Redis and rate limiting
		&cli.StringFlag{
			Name:    "redis-addr",
			Usage:   "Redis address (rate limiting is disabled when empty)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("REDIS_ADDR"), toml.TOML("redis.addr", configFile)),
		},
		&cli.StringFlag{
			Name:    "redis-password",
			Usage:   "Redis password",
			Sources: cli.NewValueSourceChain(cli.EnvVar("REDIS_PASSWORD"), toml.TOML("redis.password", configFile)),
		},
		&cli.IntFlag{
			Name:    "redis-db",
			Usage:   "Redis database",
			Sources: cli.NewValueSourceChain(cli.EnvVar("REDIS_DB"), toml.TOML("redis.db", configFile)),
		},
		&cli.BoolFlag{
			Name:    "ratelimit-enabled",
			Value:   true,
			Usage:   "Enable rate limiting of auth endpoints",
			Sources: cli.NewValueSourceChain(cli.EnvVar("RATELIMIT_ENABLED"), toml.TOML("ratelimit.enabled", configFile)),
		},
		&cli.IntFlag{
			Name:    "ratelimit-capacity",
			Value:   10,
			Usage:   "Token bucket capacity",
			Sources: cli.NewValueSourceChain(cli.EnvVar("RATELIMIT_CAPACITY"), toml.TOML("ratelimit.capacity", configFile)),
		},
		&cli.IntFlag{
			Name:    "ratelimit-refill-tokens",
			Value:   1,
			Usage:   "Tokens added per refill interval",
			Sources: cli.NewValueSourceChain(cli.EnvVar("RATELIMIT_REFILL_TOKENS"), toml.TOML("ratelimit.refill_tokens", configFile)),
		},
		&cli.DurationFlag{
			Name:    "ratelimit-refill-interval",
			Value:   6 * time.Second,
			Usage:   "Token bucket refill interval",
			Sources: cli.NewValueSourceChain(cli.EnvVar("RATELIMIT_REFILL_INTERVAL"), toml.TOML("ratelimit.refill_interval", configFile)),
		},
		&cli.StringFlag{
			Name:    "ratelimit-prefix",
			Value:   "planifio:rl",
			Usage:   "Redis key prefix for buckets",
			Sources: cli.NewValueSourceChain(cli.EnvVar("RATELIMIT_PREFIX"), toml.TOML("ratelimit.prefix", configFile)),
		},
		// Activity publishing
		&cli.StringFlag{
			Name:    "amqp-url",
			Usage:   "AMQP URL for activity events (disabled when empty)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("AMQP_URL"), toml.TOML("amqp.url", configFile)),
		},
		&cli.StringFlag{
			Name:    "amqp-queue",
			Value:   "planifio.activity",
			Usage:   "Queue receiving activity events",
			Sources: cli.NewValueSourceChain(cli.EnvVar("AMQP_QUEUE"), toml.TOML("amqp.queue", configFile)),
		},
		// Storage
		&cli.StringFlag{
			Name:    "upload-dir",
			Value:   "./data/uploads",
			Usage:   "Directory for task attachments",
			Sources: cli.NewValueSourceChain(cli.EnvVar("UPLOAD_DIR"), toml.TOML("storage.upload_dir", configFile)),
		},
	}
}
