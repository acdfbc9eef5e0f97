// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codeberg.org/oliverandrich/planifio/internal/config"
	"codeberg.org/oliverandrich/planifio/internal/database"
	"codeberg.org/oliverandrich/planifio/internal/handlers"
	"codeberg.org/oliverandrich/planifio/internal/i18n"
	"codeberg.org/oliverandrich/planifio/internal/middleware"
	"codeberg.org/oliverandrich/planifio/internal/queue"
	"codeberg.org/oliverandrich/planifio/internal/ratelimit"
	"codeberg.org/oliverandrich/planifio/internal/repository"
	"codeberg.org/oliverandrich/planifio/internal/services/activity"
	authsvc "codeberg.org/oliverandrich/planifio/internal/services/auth"
	"codeberg.org/oliverandrich/planifio/internal/services/email"
	"codeberg.org/oliverandrich/planifio/internal/services/project"
	"codeberg.org/oliverandrich/planifio/internal/services/session"
	"codeberg.org/oliverandrich/planifio/internal/services/task"
	"codeberg.org/oliverandrich/planifio/internal/services/workspace"
	"codeberg.org/oliverandrich/planifio/internal/storage"
	"codeberg.org/oliverandrich/planifio/internal/token"
	"github.com/gorilla/securecookie"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v3"
	"github.com/vinovest/sqlx"
)

const uploadsPath = "/uploads"

// Options carries the external dependencies of an App. Zero values disable
// the optional ones.
type Options struct {
	Sender       email.Sender
	Redis        *redis.Client
	Publisher    activity.Publisher
	TokenOptions []token.Option
}

// App is a fully wired HTTP server.
type App struct {
	Echo   *echo.Echo
	Tokens *token.Service
}

// Run starts the server with the given CLI command.
func Run(ctx context.Context, cmd *cli.Command) error {
	cfg := config.NewFromCLI(cmd)
	setupLogger(cfg.Log.Level, cfg.Log.Format)

	slog.Info("starting server",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"base_url", cfg.Server.BaseURL,
	)

	// Database, migrations run on open
	db, err := database.Open(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if closeErr := database.Close(db); closeErr != nil {
			slog.Error("failed to close database", "error", closeErr)
		}
	}()

	sender, err := email.NewSender(&cfg.SMTP)
	if err != nil {
		return fmt.Errorf("failed to configure email: %w", err)
	}

	rdb, err := ratelimit.NewClient(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
	}

	opts := Options{Sender: sender, Redis: rdb}
	if cfg.AMQP.URL != "" {
		pub, dialErr := queue.Dial(cfg.AMQP.URL, cfg.AMQP.Queue)
		if dialErr != nil {
			return dialErr
		}
		defer func() { _ = pub.Close() }()
		opts.Publisher = pub
	}

	app, err := New(cfg, db, opts)
	if err != nil {
		return err
	}

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	if cfg.Auth.SweepInterval > 0 {
		go app.Tokens.RunSweeper(sweepCtx, cfg.Auth.SweepInterval)
	}

	return startWithGracefulShutdown(app.Echo, cfg)
}

// New wires repositories, services and handlers into an echo instance.
func New(cfg *config.Config, db *sqlx.DB, opts Options) (*App, error) {
	if err := i18n.Init(); err != nil {
		return nil, fmt.Errorf("failed to init i18n: %w", err)
	}

	repo := repository.New(db)

	secret := []byte(cfg.Auth.TokenSecret)
	if len(secret) == 0 {
		slog.Warn("token_secret_generated", "hint", "set TOKEN_SECRET to keep tokens valid across restarts")
		secret = securecookie.GenerateRandomKey(32)
	}
	tokens, err := token.NewService(repo, secret, cfg.Auth.TokenIssuer, opts.TokenOptions...)
	if err != nil {
		return nil, err
	}

	sessions, err := session.NewManager(&cfg.Session, cfg.IsSecure())
	if err != nil {
		return nil, fmt.Errorf("failed to create session manager: %w", err)
	}

	sender := opts.Sender
	if sender == nil {
		sender = email.LogSender{}
	}
	mailer := email.NewMailer(sender, cfg.Server.BaseURL)

	uploads, err := storage.NewLocal(cfg.Storage.UploadDir, cfg.Server.BaseURL+uploadsPath)
	if err != nil {
		return nil, err
	}

	limiter := ratelimit.New(opts.Redis, cfg.RateLimit)
	recorder := activity.NewRecorder(repo, opts.Publisher)

	authService := authsvc.NewService(repo, tokens, mailer, limiter, recorder, &cfg.Auth)
	workspaces := workspace.NewService(repo, tokens, mailer, recorder, cfg.Auth.InviteTTL)
	projects := project.NewService(repo, recorder)
	tasks := task.NewService(repo, projects, uploads, recorder)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handlers.ErrorHandler

	setupMiddleware(e, cfg)
	setupRoutes(e, &routes{
		base:        handlers.New(repo),
		auth:        handlers.NewAuth(authService, sessions),
		workspaces:  handlers.NewWorkspace(workspaces),
		projects:    handlers.NewProject(projects),
		tasks:       handlers.NewTask(tasks, uploads),
		requireAuth: middleware.RequireAuth(authService, sessions),
		csrf:        middleware.CSRF(sessions, cfg.IsSecure()),
		rateLimit:   limiter.Middleware(),
	})

	return &App{Echo: e, Tokens: tokens}, nil
}

type routes struct {
	base        *handlers.Handlers
	auth        *handlers.AuthHandlers
	workspaces  *handlers.WorkspaceHandlers
	projects    *handlers.ProjectHandlers
	tasks       *handlers.TaskHandlers
	requireAuth echo.MiddlewareFunc
	csrf        echo.MiddlewareFunc
	rateLimit   echo.MiddlewareFunc
}

func setupRoutes(e *echo.Echo, r *routes) {
	e.GET("/health", r.base.Health)

	a := e.Group("/authentification", r.rateLimit)
	a.POST("/register", r.auth.Register)
	a.POST("/verify-email", r.auth.VerifyEmail)
	a.POST("/resend-verification", r.auth.ResendVerification)
	a.POST("/login", r.auth.Login)
	a.POST("/forgot-password", r.auth.ForgotPassword)
	a.POST("/reset-password", r.auth.ResetPassword)
	a.POST("/logout", r.auth.Logout, r.csrf, r.requireAuth)
	a.GET("/me", r.auth.Me, r.csrf, r.requireAuth)
	a.POST("/change-password", r.auth.ChangePassword, r.csrf, r.requireAuth)

	e.POST("/workspace-invite/accept", r.workspaces.AcceptInvite, r.csrf, r.requireAuth)

	w := e.Group("/workspaces", r.csrf, r.requireAuth)
	w.GET("", r.workspaces.List)
	w.POST("", r.workspaces.Create)
	w.GET("/:id", r.workspaces.Get)
	w.PUT("/:id", r.workspaces.Update)
	w.DELETE("/:id", r.workspaces.Delete)
	w.GET("/:id/stats", r.workspaces.Stats)
	w.GET("/:id/activity", r.workspaces.Activity)
	w.POST("/:id/transfer", r.workspaces.Transfer)
	w.POST("/:id/invite", r.workspaces.Invite)
	w.POST("/:id/join", r.workspaces.Join)
	w.POST("/:id/leave", r.workspaces.Leave)
	w.PUT("/:id/members/:userId", r.workspaces.SetMemberRole)
	w.DELETE("/:id/members/:userId", r.workspaces.RemoveMember)
	w.GET("/:id/projects", r.projects.List)
	w.POST("/:id/projects", r.projects.Create)

	p := e.Group("/projects", r.csrf, r.requireAuth)
	p.GET("/:id", r.projects.Get)
	p.PUT("/:id", r.projects.Update)
	p.DELETE("/:id", r.projects.Delete)
	p.PUT("/:id/status", r.projects.SetStatus)
	p.POST("/:id/archive", r.projects.ToggleArchive)
	p.GET("/:id/activity", r.projects.Activity)
	p.POST("/:id/members", r.projects.AddMember)
	p.PUT("/:id/members/:userId", r.projects.SetMemberRole)
	p.DELETE("/:id/members/:userId", r.projects.RemoveMember)
	p.GET("/:id/tasks", r.tasks.List)
	p.POST("/:id/tasks", r.tasks.Create)

	t := e.Group("/tasks", r.csrf, r.requireAuth)
	t.GET("/:id", r.tasks.Get)
	t.PUT("/:id", r.tasks.Update)
	t.DELETE("/:id", r.tasks.Delete)
	t.PUT("/:id/assignees", r.tasks.SetAssignees)
	t.POST("/:id/watch", r.tasks.ToggleWatch)
	t.POST("/:id/archive", r.tasks.ToggleArchive)
	t.POST("/:id/subtasks", r.tasks.AddSubtask)
	t.PUT("/:id/subtasks/:subtaskId", r.tasks.UpdateSubtask)
	t.POST("/:id/attachments", r.tasks.AddAttachment)
	t.GET("/:id/comments", r.tasks.ListComments)
	t.POST("/:id/comments", r.tasks.AddComment)
	t.GET("/:id/activity", r.tasks.Activity)

	e.GET(uploadsPath+"/tasks/:id/:name", r.tasks.Attachment, r.csrf, r.requireAuth)
}

func startWithGracefulShutdown(e *echo.Echo, cfg *config.Config) error {
	errChan := make(chan error, 1)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		slog.Info("Server running", "url", cfg.Server.BaseURL)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Wait for interrupt signal or error
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		slog.Info("shutting down server")
	case err := <-errChan:
		slog.Error("server error", "error", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown server", "error", err)
	}

	slog.Info("server stopped")
	return nil
}
