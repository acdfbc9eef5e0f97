// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package i18n_test

import (
	"context"
	"testing"

	"codeberg.org/oliverandrich/planifio/internal/i18n"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestInit(t *testing.T) {
	err := i18n.Init()
	require.NoError(t, err)
}

func TestT(t *testing.T) {
	require.NoError(t, i18n.Init())

	ctx := i18n.WithLocale(context.Background(), language.English)

	// Should translate known key
	result := i18n.T(ctx, "app_name")
	assert.NotEqual(t, "app_name", result) // Should be translated
}

func TestT_German(t *testing.T) {
	require.NoError(t, i18n.Init())

	ctx := i18n.WithLocale(context.Background(), language.German)

	// Should use German translation
	result := i18n.T(ctx, "app_name")
	assert.NotEqual(t, "app_name", result)
}

func TestT_UnknownKey(t *testing.T) {
	require.NoError(t, i18n.Init())

	ctx := i18n.WithLocale(context.Background(), language.English)

	// Should return the key itself for unknown messages
	result := i18n.T(ctx, "unknown_key_that_does_not_exist")
	assert.Equal(t, "unknown_key_that_does_not_exist", result)
}

func TestT_NoLocaleContext(t *testing.T) {
	require.NoError(t, i18n.Init())

	// Without WithLocale, should fallback to English
	ctx := context.Background()

	result := i18n.T(ctx, "app_name")
	assert.NotEmpty(t, result)
}

func TestTData(t *testing.T) {
	require.NoError(t, i18n.Init())

	ctx := i18n.WithLocale(context.Background(), language.English)

	result := i18n.TData(ctx, "email_invite_subject", map[string]any{"Workspace": "Acme"})
	assert.Equal(t, "You have been invited to Acme", result)
}

func TestTData_German(t *testing.T) {
	require.NoError(t, i18n.Init())

	ctx := i18n.WithLocale(context.Background(), language.German)

	result := i18n.TData(ctx, "email_verification_body", map[string]any{
		"Name":      "Ada",
		"VerifyURL": "https://example.com/verify-email?token=abc",
		"ValidFor":  "1h0m0s",
	})
	assert.Contains(t, result, "Hallo Ada")
	assert.Contains(t, result, "token=abc")
}

func TestLanguages(t *testing.T) {
	require.NoError(t, i18n.Init())

	langs := i18n.Languages()

	require.NotEmpty(t, langs)
	assert.Equal(t, language.English, langs[0])
	assert.Contains(t, langs, language.German)
}

func TestInvite_German(t *testing.T) {
	require.NoError(t, i18n.Init())

	ctx := i18n.WithLocale(context.Background(), i18n.MatchLanguage("de-DE"))

	result := i18n.TData(ctx, "email_invite_body", map[string]any{
		"Name":      "Ada",
		"Inviter":   "Grace",
		"Workspace": "Acme",
		"Role":      "admin",
		"AcceptURL": "https://example.com/workspace-invite/accept?token=xyz",
		"ExpiresAt": "2025-01-08",
	})
	assert.Contains(t, result, "Acme")
	assert.Contains(t, result, "token=xyz")
	assert.NotContains(t, result, "invited you")
}

func TestMatchLanguage(t *testing.T) {
	require.NoError(t, i18n.Init())

	tests := []struct {
		expected       language.Tag
		acceptLanguage string
	}{
		{language.English, "en"},
		{language.English, "en-US"},
		{language.German, "de"},
		{language.German, "de-DE"},
		{language.German, "de-AT"},
		{language.English, "fr"}, // fallback to English
		{language.English, ""},   // empty defaults to English
		{language.German, "de, en;q=0.9"},
		{language.English, "en, de;q=0.9"},
	}

	for _, tt := range tests {
		t.Run(tt.acceptLanguage, func(t *testing.T) {
			tag := i18n.MatchLanguage(tt.acceptLanguage)
			// Compare base language (ignore region)
			assert.Equal(t, tt.expected.String()[:2], tag.String()[:2])
		})
	}
}

func TestWithLocale(t *testing.T) {
	require.NoError(t, i18n.Init())

	ctx := i18n.WithLocale(context.Background(), language.German)

	locale := i18n.GetLocale(ctx)
	assert.Equal(t, "de", locale)
}

func TestGetLocale(t *testing.T) {
	require.NoError(t, i18n.Init())

	ctx := i18n.WithLocale(context.Background(), language.English)

	assert.Equal(t, "en", i18n.GetLocale(ctx))
}

func TestGetLocale_Default(t *testing.T) {
	ctx := context.Background()

	// Without WithLocale, should return "en"
	assert.Equal(t, "en", i18n.GetLocale(ctx))
}
