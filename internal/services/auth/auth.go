// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package auth implements registration, email verification, login and the
// password reset flow on top of the token service.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"codeberg.org/oliverandrich/planifio/internal/apperr"
	"codeberg.org/oliverandrich/planifio/internal/config"
	"codeberg.org/oliverandrich/planifio/internal/models"
	"codeberg.org/oliverandrich/planifio/internal/repository"
	"codeberg.org/oliverandrich/planifio/internal/services/activity"
	"codeberg.org/oliverandrich/planifio/internal/services/email"
	"codeberg.org/oliverandrich/planifio/internal/token"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrDuplicateEmail       = apperr.New(apperr.Conflict, "An account with this email already exists")
	ErrInvalidCredentials   = apperr.New(apperr.Authentication, "Invalid email or password")
	ErrEmailNotVerified     = apperr.New(apperr.Authorization, "Please verify your email address before logging in")
	ErrInvalidEmail         = apperr.New(apperr.Validation, "Invalid email address")
	ErrWeakPassword         = apperr.New(apperr.Validation, "Password does not meet requirements")
	ErrBotDetected          = apperr.New(apperr.RateLimited, "Too many requests. Please try again later.")
	ErrVerificationDelivery = apperr.New(apperr.Dependency,
		"Your account was created but the verification email could not be sent. Please request a new one or contact support.")
)

// dummyHash is used for constant-time login to prevent timing attacks
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("dummy-password-for-timing"), bcrypt.DefaultCost)

// Guard decides whether a client may register. The Redis rate limiter
// implements it.
type Guard interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type Service struct {
	repo              *repository.Repository
	tokens            *token.Service
	mailer            *email.Mailer
	guard             Guard
	activity          *activity.Recorder
	config            *config.AuthConfig
	passwordValidator *PasswordValidator
}

// NewService wires the auth flows. guard may be nil.
func NewService(
	repo *repository.Repository,
	tokens *token.Service,
	mailer *email.Mailer,
	guard Guard,
	recorder *activity.Recorder,
	cfg *config.AuthConfig,
) *Service {
	return &Service{
		repo:              repo,
		tokens:            tokens,
		mailer:            mailer,
		guard:             guard,
		activity:          recorder,
		config:            cfg,
		passwordValidator: DefaultPasswordValidator(),
	}
}

// RegisterParams holds the parameters for user registration
type RegisterParams struct {
	Name     string
	Email    string
	Password string
	ClientIP string
}

// NormalizeEmail lowercases and trims an address.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Register creates an unverified account and emails a verification link.
// When only the email fails, the created user is returned together with
// ErrVerificationDelivery.
func (s *Service) Register(ctx context.Context, params RegisterParams) (*models.User, error) {
	addr := NormalizeEmail(params.Email)
	if _, err := mail.ParseAddress(addr); err != nil {
		return nil, ErrInvalidEmail
	}

	if s.guard != nil {
		allowed, err := s.guard.Allow(ctx, "register:"+params.ClientIP)
		if err != nil {
			return nil, fmt.Errorf("failed to check client: %w", err)
		}
		if !allowed {
			slog.Warn("register_blocked", "ip", params.ClientIP)
			return nil, ErrBotDetected
		}
	}

	name := strings.TrimSpace(params.Name)
	if err := s.passwordValidator.Validate(params.Password, addr, name); err != nil {
		return nil, apperr.Wrap(ErrWeakPassword, err)
	}

	_, err := s.repo.GetUserByEmail(ctx, addr)
	if err == nil {
		return nil, ErrDuplicateEmail
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}

	passwordHash, err := s.hash(params.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Email:        addr,
		PasswordHash: passwordHash,
		DisplayName:  name,
	}

	var issued *token.Issued
	err = s.repo.InTx(ctx, func(tx *repository.Repository) error {
		if err := tx.CreateUser(ctx, user); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return ErrDuplicateEmail
			}
			return fmt.Errorf("failed to create user: %w", err)
		}
		issued, err = s.tokens.WithStore(tx).Issue(ctx, user.ID, token.EmailVerification{}, s.config.VerificationTTL)
		return err
	})
	if err != nil {
		return nil, err
	}

	slog.Info("register_success", "user_id", user.ID, "email", addr)
	s.activity.Record(ctx, activity.Entry{
		UserID:       user.ID,
		Action:       activity.ActionRegistered,
		ResourceType: models.ResourceUser,
		ResourceID:   user.ID,
	})

	if err := s.mailer.SendVerification(ctx, user, issued.Value, s.config.VerificationTTL); err != nil {
		return user, apperr.Wrap(ErrVerificationDelivery, err)
	}

	return user, nil
}

// LoginResult is a successful login.
type LoginResult struct {
	User      *models.User
	Token     string
	ExpiresAt time.Time
}

// Login checks the credentials and issues a login token.
func (s *Service) Login(ctx context.Context, emailAddr, password string) (*LoginResult, error) {
	addr := NormalizeEmail(emailAddr)
	user, err := s.repo.GetUserByEmail(ctx, addr)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Constant-time: always perform bcrypt comparison to prevent timing attacks
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			slog.Warn("login_failed", "email", addr, "reason", "user_not_found")
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		slog.Warn("login_failed", "email", addr, "reason", "invalid_password")
		return nil, ErrInvalidCredentials
	}

	if !user.EmailVerified {
		slog.Warn("login_failed", "email", addr, "reason", "email_not_verified")
		return nil, ErrEmailNotVerified
	}

	now := s.tokens.Now().UTC()
	if err := s.repo.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return nil, fmt.Errorf("failed to update last login: %w", err)
	}
	user.LastLoginAt = &now

	issued, err := s.tokens.Issue(ctx, user.ID, token.Login{}, s.config.LoginTTL)
	if err != nil {
		return nil, err
	}

	slog.Info("login_success", "user_id", user.ID, "email", addr)
	return &LoginResult{User: user, Token: issued.Value, ExpiresAt: issued.ExpiresAt}, nil
}

// VerifyEmail consumes a verification token and marks the account verified.
// An account that is already verified succeeds again; lingering verification
// tokens are removed either way.
func (s *Service) VerifyEmail(ctx context.Context, value string) (*models.User, error) {
	v, err := s.tokens.Verify(ctx, value, token.KindEmailVerification)
	if err != nil {
		return nil, err
	}

	var changed bool
	err = s.repo.InTx(ctx, func(tx *repository.Repository) error {
		tokens := s.tokens.WithStore(tx)
		if err := tokens.Consume(ctx, value); err != nil {
			return err
		}
		if _, err := tokens.Revoke(ctx, v.SubjectID, token.KindEmailVerification); err != nil {
			return err
		}
		changed, err = tx.MarkEmailVerified(ctx, v.SubjectID)
		return err
	})
	if err != nil {
		return nil, err
	}

	user, err := s.repo.GetUserByID(ctx, v.SubjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if changed {
		slog.Info("email_verified", "user_id", user.ID)
		s.activity.Record(ctx, activity.Entry{
			UserID:       user.ID,
			Action:       activity.ActionVerifiedEmail,
			ResourceType: models.ResourceUser,
			ResourceID:   user.ID,
		})
	}
	return user, nil
}

// ResendVerification replaces any pending verification token of an
// unverified account and emails a new link. Unknown or verified addresses are
// ignored so callers cannot discover registered accounts.
func (s *Service) ResendVerification(ctx context.Context, emailAddr string) error {
	user, err := s.repo.GetUserByEmail(ctx, NormalizeEmail(emailAddr))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to get user: %w", err)
	}
	if user.EmailVerified {
		return nil
	}

	issued, err := s.reissue(ctx, user.ID, token.EmailVerification{}, s.config.VerificationTTL)
	if err != nil {
		return err
	}

	if err := s.mailer.SendVerification(ctx, user, issued.Value, s.config.VerificationTTL); err != nil {
		slog.Error("resend_verification_failed", "user_id", user.ID, "error", err)
	}
	return nil
}

// ForgotPassword emails a reset link when the account exists. The result
// never reveals whether it does.
func (s *Service) ForgotPassword(ctx context.Context, emailAddr string) error {
	addr := NormalizeEmail(emailAddr)
	user, err := s.repo.GetUserByEmail(ctx, addr)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			slog.Error("forgot_password_lookup_failed", "error", err)
		}
		slog.Info("forgot_password_unknown", "email", addr)
		return nil
	}

	issued, err := s.reissue(ctx, user.ID, token.PasswordReset{}, s.config.ResetTTL)
	if err != nil {
		slog.Error("forgot_password_issue_failed", "user_id", user.ID, "error", err)
		return nil
	}

	if err := s.mailer.SendPasswordReset(ctx, user, issued.Value, s.config.ResetTTL); err != nil {
		slog.Error("forgot_password_send_failed", "user_id", user.ID, "error", err)
		return nil
	}

	slog.Info("forgot_password_sent", "user_id", user.ID)
	return nil
}

// ResetPassword sets a new password with a reset token. Every login token of
// the user is revoked.
func (s *Service) ResetPassword(ctx context.Context, value, newPassword string) error {
	v, err := s.tokens.Verify(ctx, value, token.KindPasswordReset)
	if err != nil {
		return err
	}

	user, err := s.repo.GetUserByID(ctx, v.SubjectID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return token.ErrNotFound
		}
		return fmt.Errorf("failed to get user: %w", err)
	}

	if err := s.passwordValidator.Validate(newPassword, user.Email, user.DisplayName); err != nil {
		return apperr.Wrap(ErrWeakPassword, err)
	}

	passwordHash, err := s.hash(newPassword)
	if err != nil {
		return err
	}

	err = s.repo.InTx(ctx, func(tx *repository.Repository) error {
		tokens := s.tokens.WithStore(tx)
		if err := tokens.Consume(ctx, value); err != nil {
			return err
		}
		if err := tx.UpdateUserPassword(ctx, user.ID, passwordHash); err != nil {
			return fmt.Errorf("failed to update password: %w", err)
		}
		if _, err := tokens.Revoke(ctx, user.ID, token.KindPasswordReset); err != nil {
			return err
		}
		_, err := tokens.Revoke(ctx, user.ID, token.KindLogin)
		return err
	})
	if err != nil {
		return err
	}

	slog.Info("password_reset", "user_id", user.ID)
	s.activity.Record(ctx, activity.Entry{
		UserID:       user.ID,
		Action:       activity.ActionResetPassword,
		ResourceType: models.ResourceUser,
		ResourceID:   user.ID,
	})
	return nil
}

// ChangePassword changes a user's password (when they know their current password)
func (s *Service) ChangePassword(ctx context.Context, userID int64, currentPassword, newPassword string) error {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(currentPassword)); err != nil {
		return ErrInvalidCredentials
	}

	if err := s.passwordValidator.Validate(newPassword, user.Email, user.DisplayName); err != nil {
		return apperr.Wrap(ErrWeakPassword, err)
	}

	passwordHash, err := s.hash(newPassword)
	if err != nil {
		return err
	}

	if err := s.repo.UpdateUserPassword(ctx, userID, passwordHash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	slog.Info("password_changed", "user_id", userID)
	return nil
}

// Authenticate resolves a login token to its user.
func (s *Service) Authenticate(ctx context.Context, value string) (*models.User, *token.Verified, error) {
	v, err := s.tokens.Verify(ctx, value, token.KindLogin)
	if err != nil {
		return nil, nil, err
	}
	user, err := s.repo.GetUserByID(ctx, v.SubjectID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, token.ErrNotFound
		}
		return nil, nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, v, nil
}

// Logout consumes the login token.
func (s *Service) Logout(ctx context.Context, value string) error {
	return s.tokens.Consume(ctx, value)
}

// reissue drops pending tokens of the same kind and issues a fresh one.
func (s *Service) reissue(ctx context.Context, userID int64, purpose token.Purpose, ttl time.Duration) (*token.Issued, error) {
	var issued *token.Issued
	err := s.repo.InTx(ctx, func(tx *repository.Repository) error {
		tokens := s.tokens.WithStore(tx)
		if _, err := tokens.Revoke(ctx, userID, purpose.Kind()); err != nil {
			return err
		}
		var err error
		issued, err = tokens.Issue(ctx, userID, purpose, ttl)
		return err
	})
	return issued, err
}

func (s *Service) hash(password string) (string, error) {
	cost := s.config.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(h), nil
}
