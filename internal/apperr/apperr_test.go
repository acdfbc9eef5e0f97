// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package apperr_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"codeberg.org/oliverandrich/planifio/internal/apperr"
	"github.com/stretchr/testify/assert"
)

var errThing = apperr.New(apperr.Conflict, "Thing already exists")

func TestKindStatus(t *testing.T) {
	tests := []struct {
		kind   apperr.Kind
		status int
	}{
		{apperr.Validation, http.StatusBadRequest},
		{apperr.Authentication, http.StatusUnauthorized},
		{apperr.Authorization, http.StatusForbidden},
		{apperr.NotFound, http.StatusNotFound},
		{apperr.Conflict, http.StatusConflict},
		{apperr.RateLimited, http.StatusTooManyRequests},
		{apperr.Dependency, http.StatusInternalServerError},
		{apperr.Internal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			assert.Equal(t, tt.status, tt.kind.Status())
		})
	}
}

func TestWrap_KeepsSentinelAndCause(t *testing.T) {
	cause := errors.New("smtp down")

	err := fmt.Errorf("sending: %w", apperr.Wrap(errThing, cause))

	assert.ErrorIs(t, err, errThing)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, apperr.Conflict, apperr.KindOf(err))
	assert.Equal(t, "Thing already exists", apperr.Message(err))
}

func TestKindOf_PlainError(t *testing.T) {
	err := errors.New("disk on fire")

	assert.Equal(t, apperr.Internal, apperr.KindOf(err))
	assert.NotContains(t, apperr.Message(err), "disk")
}

func TestIs_DistinguishesSentinels(t *testing.T) {
	other := apperr.New(apperr.Conflict, "Other thing")

	assert.NotErrorIs(t, errThing, other)
	assert.ErrorIs(t, errThing, errThing)
}
