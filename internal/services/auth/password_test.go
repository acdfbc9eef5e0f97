// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package auth

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func codes(t *testing.T, err error) []string {
	t.Helper()
	if err == nil {
		return nil
	}
	var pwErr *PasswordValidationError
	require.True(t, errors.As(err, &pwErr))
	out := make([]string, len(pwErr.Errors))
	for i, e := range pwErr.Errors {
		out[i] = e.Code
	}
	return out
}

func TestPasswordValidator(t *testing.T) {
	v := DefaultPasswordValidator()

	tests := []struct {
		name     string
		password string
		attrs    []string
		expected []string
	}{
		{"valid", "pw12345678", []string{"a@x.com", "Ada"}, nil},
		{"too short", "abc1!", nil, []string{"min_length"}},
		{"numeric", "1234567890123", nil, []string{"entirely_numeric"}},
		{"common", "Password1", nil, []string{"common_password"}},
		{"contains email local part", "adalovelace99", []string{"adalovelace@example.com"}, []string{"too_similar"}},
		{"too long", strings.Repeat("x", 73), nil, []string{"max_length"}},
		{"short attributes ignored", "correct horse", []string{"ab"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, codes(t, v.Validate(tt.password, tt.attrs...)))
		})
	}
}

func TestCommonPasswordsLoaded(t *testing.T) {
	assert.NotEmpty(t, commonPasswords)
	assert.True(t, isCommonPassword("QWERTY"))
	assert.False(t, isCommonPassword("pw12345678"))
}

func TestPasswordValidationError_Messages(t *testing.T) {
	err := &PasswordValidationError{Errors: []ValidationError{
		{Code: "a", Message: "first"},
		{Code: "b", Message: "second"},
	}}

	assert.Equal(t, "first", err.Error())
	assert.Equal(t, []string{"first", "second"}, err.Messages())
	assert.Equal(t, "password validation failed", (&PasswordValidationError{}).Error())
}

func TestSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, similarity("abc", "abc"), 0.001)
	assert.InDelta(t, 0.0, similarity("", "abc"), 0.001)
	assert.Equal(t, 3, longestCommonSubsequence("abcdef", "axbycz"))
}
