// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package apperr classifies service errors so the HTTP layer can map them to
// status codes without knowing every sentinel.
package apperr

import (
	"errors"
	"net/http"
)

// Kind is the class of an application error.
type Kind int

const (
	Internal Kind = iota
	Validation
	Authentication
	Authorization
	NotFound
	Conflict
	RateLimited
	Dependency
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case Authentication:
		return "authentication"
	case Authorization:
		return "authorization"
	case NotFound:
		return "not_found"
	case Conflict:
		return "conflict"
	case RateLimited:
		return "rate_limited"
	case Dependency:
		return "dependency"
	default:
		return "internal"
	}
}

// Status returns the HTTP status code for k.
func (k Kind) Status() int {
	switch k {
	case Validation:
		return http.StatusBadRequest
	case Authentication:
		return http.StatusUnauthorized
	case Authorization:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	case RateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified error with a message that is safe to show to clients.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error with the same kind and message, so sentinels
// declared with New work with errors.Is after Wrap.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && t.Message == e.Message && t.Err == nil
}

// New returns a classified error, typically assigned to a package level sentinel.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap attaches cause to sentinel. The result matches sentinel and cause with errors.Is.
func Wrap(sentinel *Error, cause error) error {
	return &Error{Kind: sentinel.Kind, Message: sentinel.Message, Err: cause}
}

// KindOf returns the kind of the first *Error in err's chain, or Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Message returns the client-safe message of err. Internal errors never leak details.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != Internal {
		return e.Message
	}
	return "Something went wrong. Please try again later."
}
