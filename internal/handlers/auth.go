// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"codeberg.org/oliverandrich/planifio/internal/auth"
	"codeberg.org/oliverandrich/planifio/internal/models"
	authsvc "codeberg.org/oliverandrich/planifio/internal/services/auth"
	"codeberg.org/oliverandrich/planifio/internal/services/session"
	"codeberg.org/oliverandrich/planifio/internal/token"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/labstack/echo/v4"
)

const (
	msgRegistered       = "Registration successful. Please check your email to verify your account."
	msgVerified         = "Email verified successfully. You can now log in."
	msgVerificationSent = "If an account with this email exists and is not verified, a verification email has been sent."
	msgResetSent        = "If an account with this email exists, a password reset link has been sent."
	msgPasswordReset    = "Password has been reset successfully. You can now log in."
	msgPasswordChanged  = "Password changed successfully."
	msgLoggedOut        = "Logged out successfully."
)

// AuthHandlers contains handlers for registration, login and password flows.
type AuthHandlers struct {
	auth     *authsvc.Service
	sessions *session.Manager
}

// NewAuth creates a new AuthHandlers instance. sessions may be nil, then no
// cookie is set at login.
func NewAuth(svc *authsvc.Service, sessions *session.Manager) *AuthHandlers {
	return &AuthHandlers{auth: svc, sessions: sessions}
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r registerRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 100)),
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

// UserResponse wraps a user with a message.
type UserResponse struct {
	Message string       `json:"message,omitempty"`
	User    *models.User `json:"user"`
}

// Register creates an account and sends the verification email.
func (h *AuthHandlers) Register(c echo.Context) error {
	var req registerRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	user, err := h.auth.Register(c.Request().Context(), authsvc.RegisterParams{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		ClientIP: c.RealIP(),
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, UserResponse{Message: msgRegistered, User: user})
}

type tokenRequest struct {
	Token string `json:"token"`
}

func (r tokenRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required),
	)
}

// VerifyEmail consumes an email verification token.
func (h *AuthHandlers) VerifyEmail(c echo.Context) error {
	var req tokenRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	user, err := h.auth.VerifyEmail(c.Request().Context(), req.Token)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, UserResponse{Message: msgVerified, User: user})
}

type emailRequest struct {
	Email string `json:"email"`
}

func (r emailRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

// ResendVerification sends a new verification link. The answer is the same
// whether or not the account exists.
func (h *AuthHandlers) ResendVerification(c echo.Context) error {
	var req emailRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.auth.ResendVerification(c.Request().Context(), req.Email); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: msgVerificationSent})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r loginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

// LoginResponse carries the bearer token.
type LoginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

// Login issues a login token and sets the session cookie.
func (h *AuthHandlers) Login(c echo.Context) error {
	var req loginRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	res, err := h.auth.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}

	if h.sessions != nil {
		cookie, err := h.sessions.Create(res.Token, res.ExpiresAt)
		if err != nil {
			slog.Error("session_create_failed", "user_id", res.User.ID, "error", err)
		} else {
			c.SetCookie(cookie)
		}
	}

	return c.JSON(http.StatusOK, LoginResponse{Token: res.Token, ExpiresAt: res.ExpiresAt, User: res.User})
}

// ForgotPassword emails a reset link. The answer never reveals whether the
// account exists.
func (h *AuthHandlers) ForgotPassword(c echo.Context) error {
	var req emailRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.auth.ForgotPassword(c.Request().Context(), req.Email); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: msgResetSent})
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

func (r resetPasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required),
		validation.Field(&r.NewPassword, validation.Required),
	)
}

// ResetPassword sets a new password with a reset token.
func (h *AuthHandlers) ResetPassword(c echo.Context) error {
	var req resetPasswordRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.auth.ResetPassword(c.Request().Context(), req.Token, req.NewPassword); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: msgPasswordReset})
}

// Logout consumes the login token of the request and clears the cookie.
func (h *AuthHandlers) Logout(c echo.Context) error {
	if v := auth.GetToken(c.Request().Context()); v != nil {
		if err := h.auth.Logout(c.Request().Context(), v.Value); err != nil && !errors.Is(err, token.ErrAlreadyConsumed) {
			return err
		}
	}
	if h.sessions != nil {
		c.SetCookie(h.sessions.Clear())
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: msgLoggedOut})
}

// Me returns the authenticated user.
func (h *AuthHandlers) Me(c echo.Context) error {
	return c.JSON(http.StatusOK, UserResponse{User: currentUser(c)})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (r changePasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.CurrentPassword, validation.Required),
		validation.Field(&r.NewPassword, validation.Required),
	)
}

// ChangePassword replaces the password of the authenticated user.
func (h *AuthHandlers) ChangePassword(c echo.Context) error {
	var req changePasswordRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	user := currentUser(c)
	if err := h.auth.ChangePassword(c.Request().Context(), user.ID, req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: msgPasswordChanged})
}
