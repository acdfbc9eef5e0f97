// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package token issues and verifies signed, single-use tokens backed by a
// store record. A token is valid only while both the signed expiry and the
// record's own expiry lie in the future.
package token

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"codeberg.org/oliverandrich/planifio/internal/apperr"
	"codeberg.org/oliverandrich/planifio/internal/models"
	"codeberg.org/oliverandrich/planifio/internal/repository"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidSignature = apperr.New(apperr.Validation, "Invalid token")
	ErrExpired          = apperr.New(apperr.Validation, "Token has expired")
	ErrWrongPurpose     = apperr.New(apperr.Validation, "Token is not valid for this action")
	ErrNotFound         = apperr.New(apperr.Validation, "Token is invalid or has already been used")
	ErrAlreadyConsumed  = apperr.New(apperr.Validation, "Token has already been used")
)

// Store persists token records. *repository.Repository implements it.
type Store interface {
	CreateToken(ctx context.Context, token *models.Token) error
	GetTokenByHash(ctx context.Context, tokenHash string) (*models.Token, error)
	DeleteTokenByHash(ctx context.Context, tokenHash string) (bool, error)
	DeleteToken(ctx context.Context, id string) error
	DeleteUserTokens(ctx context.Context, userID int64, purpose string) (int64, error)
	GetInviteToken(ctx context.Context, userID, workspaceID int64, purpose string) (*models.Token, error)
	DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error)
}

type claims struct {
	Purpose     Kind   `json:"purpose"`
	WorkspaceID int64  `json:"workspace_id,omitempty"`
	Role        string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Issued is a freshly signed token.
type Issued struct {
	Value     string
	ID        string
	ExpiresAt time.Time
}

// Verified is the result of a successful verification.
type Verified struct {
	ID        string
	SubjectID int64
	Purpose   Purpose
	ExpiresAt time.Time
	Value     string
}

// Service signs tokens with HS256 and keeps their records in a Store.
type Service struct {
	store  Store
	secret []byte
	issuer string
	now    func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a token service.
func NewService(store Store, secret []byte, issuer string, opts ...Option) (*Service, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("token secret must be at least 32 bytes")
	}
	s := &Service{
		store:  store,
		secret: secret,
		issuer: issuer,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// WithStore returns a copy bound to another store, usually a transaction.
func (s *Service) WithStore(store Store) *Service {
	c := *s
	c.store = store
	return &c
}

// Hash returns the SHA256 hex digest under which a token value is stored.
func Hash(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

// Issue signs a token for subjectID and writes its store record.
func (s *Service) Issue(ctx context.Context, subjectID int64, purpose Purpose, ttl time.Duration) (*Issued, error) {
	now := s.now().UTC()
	expiresAt := now.Add(ttl).Truncate(time.Second)
	id := uuid.NewString()

	c := claims{
		Purpose: purpose.Kind(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   strconv.FormatInt(subjectID, 10),
			ID:        id,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	record := &models.Token{
		ID:        id,
		UserID:    subjectID,
		Purpose:   string(purpose.Kind()),
		ExpiresAt: expiresAt,
		CreatedAt: now,
	}

	if invite, ok := purpose.(WorkspaceInvite); ok {
		c.WorkspaceID = invite.WorkspaceID
		c.Role = string(invite.Role)
		record.WorkspaceID = sql.NullInt64{Int64: invite.WorkspaceID, Valid: true}
		record.Role = sql.NullString{String: string(invite.Role), Valid: true}
	}

	value, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}
	record.TokenHash = Hash(value)

	if err := s.store.CreateToken(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to store token: %w", err)
	}

	return &Issued{Value: value, ID: id, ExpiresAt: expiresAt}, nil
}

// Verify checks signature, expiry, purpose and the store record, in that order.
// Expired records are deleted when detected. Verify does not consume the token.
func (s *Service) Verify(ctx context.Context, value string, want Kind) (*Verified, error) {
	c := &claims{}
	_, err := jwt.ParseWithClaims(value, c, s.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			// the signature was valid, so the record can be reaped
			s.reap(ctx, Hash(value))
			return nil, ErrExpired
		}
		return nil, ErrInvalidSignature
	}

	if c.Purpose != want {
		return nil, ErrWrongPurpose
	}

	subjectID, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return nil, ErrInvalidSignature
	}

	purpose, err := purposeFromClaims(c)
	if err != nil {
		return nil, ErrInvalidSignature
	}

	hash := Hash(value)
	record, err := s.store.GetTokenByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load token: %w", err)
	}
	if record.UserID != subjectID || record.Purpose != string(want) {
		return nil, ErrNotFound
	}

	if record.Expired(s.now()) {
		s.reap(ctx, hash)
		return nil, ErrExpired
	}

	return &Verified{
		ID:        record.ID,
		SubjectID: subjectID,
		Purpose:   purpose,
		ExpiresAt: record.ExpiresAt,
		Value:     value,
	}, nil
}

// Consume deletes the record of value. Of several concurrent callers exactly
// one succeeds; the others get ErrAlreadyConsumed.
func (s *Service) Consume(ctx context.Context, value string) error {
	deleted, err := s.store.DeleteTokenByHash(ctx, Hash(value))
	if err != nil {
		return fmt.Errorf("failed to consume token: %w", err)
	}
	if !deleted {
		return ErrAlreadyConsumed
	}
	return nil
}

// Revoke deletes every record of kind held by userID.
func (s *Service) Revoke(ctx context.Context, userID int64, kind Kind) (int64, error) {
	n, err := s.store.DeleteUserTokens(ctx, userID, string(kind))
	if err != nil {
		return 0, fmt.Errorf("failed to revoke tokens: %w", err)
	}
	return n, nil
}

// PendingInvite returns the newest invite record for (userID, workspaceID),
// or ErrNotFound.
func (s *Service) PendingInvite(ctx context.Context, userID, workspaceID int64) (*models.Token, error) {
	record, err := s.store.GetInviteToken(ctx, userID, workspaceID, string(KindWorkspaceInvite))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load invite: %w", err)
	}
	return record, nil
}

// Discard deletes a record by id.
func (s *Service) Discard(ctx context.Context, id string) error {
	return s.store.DeleteToken(ctx, id)
}

// Now returns the service clock.
func (s *Service) Now() time.Time {
	return s.now()
}

// Sweep deletes all expired records.
func (s *Service) Sweep(ctx context.Context) (int64, error) {
	return s.store.DeleteExpiredTokens(ctx, s.now())
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *Service) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.Sweep(ctx)
			if err != nil {
				slog.Error("token_sweep_failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Debug("token_sweep", "deleted", n)
			}
		}
	}
}

func (s *Service) keyFunc(t *jwt.Token) (any, error) {
	if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
	}
	return s.secret, nil
}

func (s *Service) reap(ctx context.Context, hash string) {
	if _, err := s.store.DeleteTokenByHash(ctx, hash); err != nil {
		slog.Warn("token_reap_failed", "error", err)
	}
}

func purposeFromClaims(c *claims) (Purpose, error) {
	switch c.Purpose {
	case KindEmailVerification:
		return EmailVerification{}, nil
	case KindPasswordReset:
		return PasswordReset{}, nil
	case KindLogin:
		return Login{}, nil
	case KindWorkspaceInvite:
		role, err := models.ParseWorkspaceRole(c.Role)
		if err != nil || c.WorkspaceID == 0 {
			return nil, fmt.Errorf("malformed invite payload")
		}
		return WorkspaceInvite{WorkspaceID: c.WorkspaceID, Role: role}, nil
	}
	return nil, fmt.Errorf("unknown purpose %q", c.Purpose)
}
