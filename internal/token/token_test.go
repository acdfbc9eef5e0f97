// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package token_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"codeberg.org/oliverandrich/planifio/internal/models"
	"codeberg.org/oliverandrich/planifio/internal/repository"
	"codeberg.org/oliverandrich/planifio/internal/testutil"
	"codeberg.org/oliverandrich/planifio/internal/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vinovest/sqlx"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestService(t *testing.T) (*token.Service, *sqlx.DB, *repository.Repository, *models.User, *clock) {
	t.Helper()
	db, repo := testutil.NewTestDB(t)
	user := testutil.NewTestUser(t, repo, "subject@example.com")
	clk := &clock{now: time.Now().UTC()}
	svc, err := token.NewService(repo, testSecret, "planifio-test", token.WithClock(clk.Now))
	require.NoError(t, err)
	return svc, db, repo, user, clk
}

func TestNewService_ShortSecret(t *testing.T) {
	_, repo := testutil.NewTestDB(t)

	_, err := token.NewService(repo, []byte("short"), "planifio")

	require.Error(t, err)
}

func TestIssueVerifyConsume(t *testing.T) {
	svc, _, _, user, _ := newTestService(t)
	ctx := context.Background()

	issued, err := svc.Issue(ctx, user.ID, token.EmailVerification{}, time.Hour)
	require.NoError(t, err)
	assert.NotEmpty(t, issued.Value)
	assert.NotEmpty(t, issued.ID)

	verified, err := svc.Verify(ctx, issued.Value, token.KindEmailVerification)
	require.NoError(t, err)
	assert.Equal(t, user.ID, verified.SubjectID)
	assert.Equal(t, token.EmailVerification{}, verified.Purpose)

	require.NoError(t, svc.Consume(ctx, issued.Value))

	err = svc.Consume(ctx, issued.Value)
	require.ErrorIs(t, err, token.ErrAlreadyConsumed)

	_, err = svc.Verify(ctx, issued.Value, token.KindEmailVerification)
	assert.ErrorIs(t, err, token.ErrNotFound)
}

func TestVerify_WrongPurpose(t *testing.T) {
	svc, _, _, user, _ := newTestService(t)
	ctx := context.Background()

	kinds := []token.Purpose{
		token.EmailVerification{},
		token.PasswordReset{},
		token.Login{},
		token.WorkspaceInvite{WorkspaceID: 1, Role: models.WorkspaceMember},
	}

	for _, issuedAs := range kinds {
		issued, err := svc.Issue(ctx, user.ID, issuedAs, time.Hour)
		require.NoError(t, err)

		for _, checkedAs := range kinds {
			_, err := svc.Verify(ctx, issued.Value, checkedAs.Kind())
			if issuedAs.Kind() == checkedAs.Kind() {
				assert.NoError(t, err, "%s as %s", issuedAs.Kind(), checkedAs.Kind())
			} else {
				assert.ErrorIs(t, err, token.ErrWrongPurpose, "%s as %s", issuedAs.Kind(), checkedAs.Kind())
			}
		}
	}
}

func TestVerify_WrongPurposeKeepsRecord(t *testing.T) {
	svc, _, _, user, _ := newTestService(t)
	ctx := context.Background()

	issued, err := svc.Issue(ctx, user.ID, token.PasswordReset{}, time.Hour)
	require.NoError(t, err)

	_, err = svc.Verify(ctx, issued.Value, token.KindEmailVerification)
	require.ErrorIs(t, err, token.ErrWrongPurpose)

	_, err = svc.Verify(ctx, issued.Value, token.KindPasswordReset)
	assert.NoError(t, err)
}

func TestVerify_InvalidSignature(t *testing.T) {
	svc, _, repo, user, clk := newTestService(t)
	ctx := context.Background()

	issued, err := svc.Issue(ctx, user.ID, token.Login{}, time.Hour)
	require.NoError(t, err)

	other, err := token.NewService(repo, []byte("ffffffffffffffffffffffffffffffff"), "planifio-test", token.WithClock(clk.Now))
	require.NoError(t, err)
	_, err = other.Verify(ctx, issued.Value, token.KindLogin)
	assert.ErrorIs(t, err, token.ErrInvalidSignature)

	parts := strings.Split(issued.Value, ".")
	require.Len(t, parts, 3)
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))
	_, err = svc.Verify(ctx, tampered, token.KindLogin)
	assert.ErrorIs(t, err, token.ErrInvalidSignature)

	_, err = svc.Verify(ctx, "not-a-token", token.KindLogin)
	assert.ErrorIs(t, err, token.ErrInvalidSignature)
}

func TestVerify_WrongIssuer(t *testing.T) {
	svc, _, repo, user, clk := newTestService(t)
	ctx := context.Background()

	foreign, err := token.NewService(repo, testSecret, "someone-else", token.WithClock(clk.Now))
	require.NoError(t, err)
	issued, err := foreign.Issue(ctx, user.ID, token.Login{}, time.Hour)
	require.NoError(t, err)

	_, err = svc.Verify(ctx, issued.Value, token.KindLogin)
	assert.ErrorIs(t, err, token.ErrInvalidSignature)
}

func TestVerify_SignedExpiryPassed(t *testing.T) {
	svc, _, repo, user, clk := newTestService(t)
	ctx := context.Background()

	issued, err := svc.Issue(ctx, user.ID, token.EmailVerification{}, time.Hour)
	require.NoError(t, err)

	clk.Advance(2 * time.Hour)

	_, err = svc.Verify(ctx, issued.Value, token.KindEmailVerification)
	require.ErrorIs(t, err, token.ErrExpired)

	_, err = repo.GetTokenByHash(ctx, token.Hash(issued.Value))
	assert.ErrorIs(t, err, repository.ErrNotFound, "expired record should be reaped")
}

func TestVerify_RecordExpiryWithValidSignature(t *testing.T) {
	svc, db, repo, user, clk := newTestService(t)
	ctx := context.Background()

	issued, err := svc.Issue(ctx, user.ID, token.PasswordReset{}, 24*time.Hour)
	require.NoError(t, err)

	// The record expires long before the signed claim does.
	_, err = db.ExecContext(ctx, `UPDATE tokens SET expires_at = ? WHERE id = ?`,
		clk.Now().Add(time.Minute).UTC(), issued.ID)
	require.NoError(t, err)

	_, err = svc.Verify(ctx, issued.Value, token.KindPasswordReset)
	require.NoError(t, err)

	clk.Advance(5 * time.Minute)

	_, err = svc.Verify(ctx, issued.Value, token.KindPasswordReset)
	require.ErrorIs(t, err, token.ErrExpired)

	_, err = repo.GetTokenByHash(ctx, token.Hash(issued.Value))
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestConsume_Concurrent(t *testing.T) {
	svc, _, _, user, _ := newTestService(t)
	ctx := context.Background()

	issued, err := svc.Issue(ctx, user.ID, token.PasswordReset{}, time.Hour)
	require.NoError(t, err)

	const workers = 8
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- svc.Consume(ctx, issued.Value)
		}()
	}
	wg.Wait()
	close(results)

	var ok, consumed int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, token.ErrAlreadyConsumed):
			consumed++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, workers-1, consumed)
}

func TestInvitePayload(t *testing.T) {
	svc, _, _, user, _ := newTestService(t)
	ctx := context.Background()

	issued, err := svc.Issue(ctx, user.ID, token.WorkspaceInvite{WorkspaceID: 42, Role: models.WorkspaceAdmin}, 7*24*time.Hour)
	require.NoError(t, err)

	verified, err := svc.Verify(ctx, issued.Value, token.KindWorkspaceInvite)
	require.NoError(t, err)

	invite, ok := verified.Purpose.(token.WorkspaceInvite)
	require.True(t, ok)
	assert.Equal(t, int64(42), invite.WorkspaceID)
	assert.Equal(t, models.WorkspaceAdmin, invite.Role)

	record, err := svc.PendingInvite(ctx, user.ID, 42)
	require.NoError(t, err)
	assert.Equal(t, issued.ID, record.ID)
	assert.Equal(t, "admin", record.Role.String)

	_, err = svc.PendingInvite(ctx, user.ID, 43)
	assert.ErrorIs(t, err, token.ErrNotFound)
}

func TestRevoke(t *testing.T) {
	svc, _, _, user, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.Issue(ctx, user.ID, token.Login{}, time.Hour)
	require.NoError(t, err)
	second, err := svc.Issue(ctx, user.ID, token.Login{}, time.Hour)
	require.NoError(t, err)
	reset, err := svc.Issue(ctx, user.ID, token.PasswordReset{}, time.Hour)
	require.NoError(t, err)

	n, err := svc.Revoke(ctx, user.ID, token.KindLogin)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, err = svc.Verify(ctx, first.Value, token.KindLogin)
	assert.ErrorIs(t, err, token.ErrNotFound)
	_, err = svc.Verify(ctx, second.Value, token.KindLogin)
	assert.ErrorIs(t, err, token.ErrNotFound)
	_, err = svc.Verify(ctx, reset.Value, token.KindPasswordReset)
	assert.NoError(t, err)
}

func TestSweep(t *testing.T) {
	svc, _, _, user, clk := newTestService(t)
	ctx := context.Background()

	_, err := svc.Issue(ctx, user.ID, token.EmailVerification{}, time.Hour)
	require.NoError(t, err)
	keep, err := svc.Issue(ctx, user.ID, token.Login{}, 48*time.Hour)
	require.NoError(t, err)

	clk.Advance(2 * time.Hour)

	n, err := svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = svc.Verify(ctx, keep.Value, token.KindLogin)
	assert.NoError(t, err)
}

func TestRunSweeper_StopsOnCancel(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		svc.RunSweeper(ctx, 10*time.Millisecond)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestWithStore_UsesTransaction(t *testing.T) {
	svc, _, repo, user, _ := newTestService(t)
	ctx := context.Background()
	boom := errors.New("rollback")

	var value string
	err := repo.InTx(ctx, func(tx *repository.Repository) error {
		issued, err := svc.WithStore(tx).Issue(ctx, user.ID, token.Login{}, time.Hour)
		if err != nil {
			return err
		}
		value = issued.Value
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = svc.Verify(ctx, value, token.KindLogin)
	assert.ErrorIs(t, err, token.ErrNotFound)
}
