// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package i18n localizes the messages the application sends to users.
package i18n

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	"github.com/BurntSushi/toml"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed translations/*.toml
var translationFS embed.FS

// English is the fallback for unsupported languages and missing messages.
var fallback = language.English

var (
	bundle  *i18n.Bundle
	matcher language.Matcher
)

type localeContextKey struct{}
type localizerContextKey struct{}

// Init loads every embedded translations/active.*.toml file.
func Init() error {
	b := i18n.NewBundle(fallback)
	b.RegisterUnmarshalFunc("toml", toml.Unmarshal)

	files, err := fs.Glob(translationFS, "translations/active.*.toml")
	if err != nil {
		return err
	}
	for _, file := range files {
		if _, err := b.LoadMessageFileFS(translationFS, file); err != nil {
			return fmt.Errorf("failed to load %s: %w", file, err)
		}
	}

	supported := []language.Tag{fallback}
	for _, tag := range b.LanguageTags() {
		if tag != fallback {
			supported = append(supported, tag)
		}
	}

	bundle = b
	matcher = language.NewMatcher(supported)
	return nil
}

// Languages returns the languages with a loaded translation, fallback first.
func Languages() []language.Tag {
	if bundle == nil {
		return []language.Tag{fallback}
	}
	return bundle.LanguageTags()
}

// WithLocale adds the locale to the context.
func WithLocale(ctx context.Context, lang language.Tag) context.Context {
	locale := lang.String()
	ctx = context.WithValue(ctx, localeContextKey{}, locale)
	localizer := i18n.NewLocalizer(bundle, locale)
	return context.WithValue(ctx, localizerContextKey{}, localizer)
}

// GetLocale returns the current locale from context.
func GetLocale(ctx context.Context) string {
	if locale, ok := ctx.Value(localeContextKey{}).(string); ok {
		return locale
	}
	return fallback.String()
}

// T translates a message by ID.
func T(ctx context.Context, messageID string) string {
	return TData(ctx, messageID, nil)
}

// TData translates a message with template data. Unknown messages come back
// as their ID.
func TData(ctx context.Context, messageID string, data map[string]any) string {
	msg, err := getLocalizer(ctx).Localize(&i18n.LocalizeConfig{
		MessageID:    messageID,
		TemplateData: data,
	})
	if err != nil {
		return messageID
	}
	return msg
}

// MatchLanguage picks the best supported language for an Accept-Language header.
func MatchLanguage(acceptLanguage string) language.Tag {
	if matcher == nil {
		return fallback
	}
	tag, _ := language.MatchStrings(matcher, acceptLanguage)
	return tag
}

func getLocalizer(ctx context.Context) *i18n.Localizer {
	if localizer, ok := ctx.Value(localizerContextKey{}).(*i18n.Localizer); ok {
		return localizer
	}
	return i18n.NewLocalizer(bundle, fallback.String())
}
