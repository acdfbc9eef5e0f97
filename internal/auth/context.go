// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package auth provides authentication context helpers.
package auth

import (
	"context"

	"codeberg.org/oliverandrich/planifio/internal/ctxkeys"
	"codeberg.org/oliverandrich/planifio/internal/models"
	"codeberg.org/oliverandrich/planifio/internal/token"
)

// WithUser stores the authenticated user and the login token it presented.
func WithUser(ctx context.Context, user *models.User, verified *token.Verified) context.Context {
	ctx = context.WithValue(ctx, ctxkeys.User{}, user)
	return context.WithValue(ctx, ctxkeys.Token{}, verified)
}

// GetUser returns the authenticated user from the context, or nil if not authenticated.
func GetUser(ctx context.Context) *models.User {
	if user, ok := ctx.Value(ctxkeys.User{}).(*models.User); ok {
		return user
	}
	return nil
}

// GetToken returns the login token the current request authenticated with.
func GetToken(ctx context.Context) *token.Verified {
	if v, ok := ctx.Value(ctxkeys.Token{}).(*token.Verified); ok {
		return v
	}
	return nil
}

// IsAuthenticated returns true if the context has an authenticated user.
func IsAuthenticated(ctx context.Context) bool {
	return GetUser(ctx) != nil
}
