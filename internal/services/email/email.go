// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package email renders and delivers the transactional emails of the token
// lifecycle: verification, password reset and workspace invites.
package email

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"codeberg.org/oliverandrich/planifio/internal/config"
	"codeberg.org/oliverandrich/planifio/internal/i18n"
	"codeberg.org/oliverandrich/planifio/internal/models"
	"github.com/wneessen/go-mail"
)

// Sender delivers a single message.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPSender delivers mail via SMTP using go-mail.
type SMTPSender struct {
	cfg *config.SMTPConfig
}

// NewSMTPSender creates a new SMTP sender.
func NewSMTPSender(cfg *config.SMTPConfig) (*SMTPSender, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("SMTP host is required")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("SMTP from address is required")
	}
	return &SMTPSender{cfg: cfg}, nil
}

// NewSender returns an SMTP sender, or a LogSender when no SMTP host is configured.
func NewSender(cfg *config.SMTPConfig) (Sender, error) {
	if cfg.Host == "" {
		slog.Warn("smtp_not_configured", "fallback", "log")
		return LogSender{}, nil
	}
	return NewSMTPSender(cfg)
}

// Send implements Sender.
func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	msg, err := s.message(to, subject, body)
	if err != nil {
		return err
	}

	client, err := mail.NewClient(s.cfg.Host, s.options()...)
	if err != nil {
		return fmt.Errorf("creating mail client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("sending email: %w", err)
	}

	return nil
}

func (s *SMTPSender) message(to, subject, body string) (*mail.Msg, error) {
	msg := mail.NewMsg()

	if s.cfg.FromName != "" {
		if err := msg.FromFormat(s.cfg.FromName, s.cfg.From); err != nil {
			return nil, fmt.Errorf("setting from address: %w", err)
		}
	} else {
		if err := msg.From(s.cfg.From); err != nil {
			return nil, fmt.Errorf("setting from address: %w", err)
		}
	}

	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("setting to address: %w", err)
	}

	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)
	return msg, nil
}

func (s *SMTPSender) options() []mail.Option {
	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
	}

	// Implicit TLS on 465, STARTTLS elsewhere
	if s.cfg.TLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
		if s.cfg.Port == 465 {
			opts = append(opts, mail.WithSSL())
		}
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}

	if s.cfg.Username != "" && s.cfg.Password != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}
	return opts
}

// LogSender writes messages to the log instead of delivering them. Used in
// development when SMTP is not configured.
type LogSender struct{}

// Send implements Sender.
func (LogSender) Send(_ context.Context, to, subject, body string) error {
	slog.Info("email_logged", "to", to, "subject", subject, "body", body)
	return nil
}

// Mailer renders localized messages and hands them to a Sender.
type Mailer struct {
	sender  Sender
	baseURL string
}

// NewMailer creates a mailer. Links in messages point at baseURL.
func NewMailer(sender Sender, baseURL string) *Mailer {
	return &Mailer{
		sender:  sender,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

// SendVerification sends the email verification link.
func (m *Mailer) SendVerification(ctx context.Context, user *models.User, token string, validFor time.Duration) error {
	subject := i18n.T(ctx, "email_verification_subject")
	body := i18n.TData(ctx, "email_verification_body", map[string]any{
		"Name":      displayName(user),
		"VerifyURL": m.link("/verify-email", token),
		"ValidFor":  validFor.String(),
	})
	return m.send(ctx, user.Email, subject, body)
}

// SendPasswordReset sends the password reset link.
func (m *Mailer) SendPasswordReset(ctx context.Context, user *models.User, token string, validFor time.Duration) error {
	subject := i18n.T(ctx, "email_password_reset_subject")
	body := i18n.TData(ctx, "email_password_reset_body", map[string]any{
		"Name":     displayName(user),
		"ResetURL": m.link("/reset-password", token),
		"ValidFor": validFor.String(),
	})
	return m.send(ctx, user.Email, subject, body)
}

// Invite describes a workspace invitation.
type Invite struct {
	Invitee   *models.User
	Inviter   *models.User
	Workspace *models.Workspace
	Role      models.WorkspaceRole
	Token     string
	ExpiresAt time.Time
}

// SendInvite sends the accept link of a workspace invite.
func (m *Mailer) SendInvite(ctx context.Context, inv Invite) error {
	subject := i18n.TData(ctx, "email_invite_subject", map[string]any{
		"Workspace": inv.Workspace.Name,
	})
	body := i18n.TData(ctx, "email_invite_body", map[string]any{
		"Name":      displayName(inv.Invitee),
		"Inviter":   displayName(inv.Inviter),
		"Workspace": inv.Workspace.Name,
		"Role":      string(inv.Role),
		"AcceptURL": m.link("/workspace-invite/accept", inv.Token),
		"ExpiresAt": inv.ExpiresAt.UTC().Format(time.DateTime + " MST"),
	})
	return m.send(ctx, inv.Invitee.Email, subject, body)
}

func (m *Mailer) send(ctx context.Context, to, subject, body string) error {
	if err := m.sender.Send(ctx, to, subject, body); err != nil {
		slog.Error("email_send_failed", "to", to, "subject", subject, "error", err)
		return err
	}
	slog.Debug("email_sent", "to", to, "subject", subject)
	return nil
}

func (m *Mailer) link(path, token string) string {
	return m.baseURL + path + "?token=" + url.QueryEscape(token)
}

func displayName(u *models.User) string {
	if u == nil {
		return ""
	}
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Email
}
