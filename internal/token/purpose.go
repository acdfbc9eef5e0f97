// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package token

import "codeberg.org/oliverandrich/planifio/internal/models"

// Kind discriminates what a token may be used for.
type Kind string

const (
	KindEmailVerification Kind = "email-verification"
	KindPasswordReset     Kind = "password-reset"
	KindWorkspaceInvite   Kind = "workspace-invite"
	KindLogin             Kind = "login"
)

// Purpose is a closed set of token purposes. Only WorkspaceInvite carries a payload.
type Purpose interface {
	Kind() Kind
	purpose()
}

type EmailVerification struct{}

func (EmailVerification) Kind() Kind { return KindEmailVerification }
func (EmailVerification) purpose()   {}

type PasswordReset struct{}

func (PasswordReset) Kind() Kind { return KindPasswordReset }
func (PasswordReset) purpose()   {}

// Login is the bearer token handed out after a successful login.
type Login struct{}

func (Login) Kind() Kind { return KindLogin }
func (Login) purpose()   {}

// WorkspaceInvite grants membership of WorkspaceID with Role to the token subject.
type WorkspaceInvite struct {
	WorkspaceID int64
	Role        models.WorkspaceRole
}

func (WorkspaceInvite) Kind() Kind { return KindWorkspaceInvite }
func (WorkspaceInvite) purpose()   {}
