// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package testutil provides test helpers and fixtures.
package testutil

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"codeberg.org/oliverandrich/planifio/internal/database"
	"codeberg.org/oliverandrich/planifio/internal/models"
	"codeberg.org/oliverandrich/planifio/internal/repository"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"github.com/vinovest/sqlx"
)

// NewTestDB creates an in-memory SQLite database for tests.
// Returns both the database connection and the repository for convenience.
func NewTestDB(t *testing.T) (*sqlx.DB, *repository.Repository) {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	repo := repository.New(db)
	return db, repo
}

// NewTestUser creates a verified test user in the database.
func NewTestUser(t *testing.T, repo *repository.Repository, email string) *models.User {
	t.Helper()
	user := &models.User{
		Email:         strings.ToLower(email),
		PasswordHash:  "not-a-real-hash",
		DisplayName:   strings.Split(email, "@")[0],
		EmailVerified: true,
	}
	require.NoError(t, repo.CreateUser(context.Background(), user))
	return user
}

// NewTestWorkspace creates a workspace owned by owner. Extra members are added
// with the given roles.
func NewTestWorkspace(t *testing.T, repo *repository.Repository, owner *models.User, members map[int64]models.WorkspaceRole) *models.Workspace {
	t.Helper()
	ctx := context.Background()
	ws := &models.Workspace{Name: "Test Workspace", OwnerUserID: owner.ID}
	require.NoError(t, repo.CreateWorkspace(ctx, ws))
	joined := time.Now().UTC()
	require.NoError(t, repo.AddWorkspaceMember(ctx, ws.ID, owner.ID, models.WorkspaceOwner, joined))
	for uid, role := range members {
		joined = joined.Add(time.Millisecond)
		require.NoError(t, repo.AddWorkspaceMember(ctx, ws.ID, uid, role, joined))
	}
	ws, err := repo.GetWorkspace(ctx, ws.ID)
	require.NoError(t, err)
	return ws
}

// NewTestProject creates a project inside ws with creator as manager.
func NewTestProject(t *testing.T, repo *repository.Repository, ws *models.Workspace, creator *models.User, members map[int64]models.ProjectRole) *models.Project {
	t.Helper()
	ctx := context.Background()
	p := &models.Project{WorkspaceID: ws.ID, Title: "Test Project", CreatedByUserID: creator.ID}
	require.NoError(t, repo.CreateProject(ctx, p))
	added := time.Now().UTC()
	require.NoError(t, repo.AddProjectMember(ctx, p.ID, creator.ID, models.ProjectManager, added))
	for uid, role := range members {
		require.NoError(t, repo.AddProjectMember(ctx, p.ID, uid, role, added))
	}
	p, err := repo.GetProject(ctx, p.ID)
	require.NoError(t, err)
	return p
}

// Mail is a message captured by Mailbox.
type Mail struct {
	To      string
	Subject string
	Body    string
}

// Mailbox records outgoing mail and can be told to fail.
type Mailbox struct {
	mu   sync.Mutex
	Fail error
	sent []Mail
}

// Send implements the email sender interface.
func (m *Mailbox) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return m.Fail
	}
	m.sent = append(m.sent, Mail{To: to, Subject: subject, Body: body})
	return nil
}

// Sent returns a copy of all captured mail.
func (m *Mailbox) Sent() []Mail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Mail(nil), m.sent...)
}

// Last returns the most recent mail to the given address.
func (m *Mailbox) Last(t *testing.T, to string) Mail {
	t.Helper()
	sent := m.Sent()
	for i := len(sent) - 1; i >= 0; i-- {
		if sent[i].To == to {
			return sent[i]
		}
	}
	require.FailNow(t, "no mail sent", "recipient %s", to)
	return Mail{}
}

// TokenFromMail extracts the value of the token query parameter from a mail body.
func TokenFromMail(t *testing.T, mail Mail) string {
	t.Helper()
	_, after, ok := strings.Cut(mail.Body, "token=")
	require.True(t, ok, "mail body has no token: %s", mail.Body)
	end := strings.IndexAny(after, " \n\r\t\"<&")
	if end >= 0 {
		after = after[:end]
	}
	return after
}

// NewEchoContext creates an Echo context for handler tests.
func NewEchoContext(e *echo.Echo, method, path string, body io.Reader) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return c, rec
}

// NewRequest creates an HTTP request for testing.
func NewRequest(method, path string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}
