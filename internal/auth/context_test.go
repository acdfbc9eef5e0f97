// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package auth_test

import (
	"context"
	"testing"

	"codeberg.org/oliverandrich/planifio/internal/auth"
	"codeberg.org/oliverandrich/planifio/internal/models"
	"codeberg.org/oliverandrich/planifio/internal/token"
	"github.com/stretchr/testify/assert"
)

func TestGetUser_Empty(t *testing.T) {
	ctx := context.Background()

	assert.Nil(t, auth.GetUser(ctx))
	assert.Nil(t, auth.GetToken(ctx))
	assert.False(t, auth.IsAuthenticated(ctx))
}

func TestWithUser(t *testing.T) {
	user := &models.User{ID: 7, Email: "a@example.com"}
	verified := &token.Verified{ID: "abc", SubjectID: 7}

	ctx := auth.WithUser(context.Background(), user, verified)

	assert.Equal(t, user, auth.GetUser(ctx))
	assert.Equal(t, verified, auth.GetToken(ctx))
	assert.True(t, auth.IsAuthenticated(ctx))
}
