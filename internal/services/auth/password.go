// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package auth

import (
	"bufio"
	"embed"
	"fmt"
	"strings"
	"unicode"
)

//go:embed common_passwords.txt
var commonPasswordsFS embed.FS

var commonPasswords = loadCommonPasswords()

func loadCommonPasswords() map[string]struct{} {
	set := make(map[string]struct{})
	file, err := commonPasswordsFS.Open("common_passwords.txt")
	if err != nil {
		return set
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if pw := strings.ToLower(strings.TrimSpace(scanner.Text())); pw != "" {
			set[pw] = struct{}{}
		}
	}
	return set
}

// bcrypt ignores everything after 72 bytes.
const maxPasswordBytes = 72

// PasswordValidator checks new passwords.
type PasswordValidator struct {
	MinLength            int
	CheckCommonPasswords bool
	CheckUserSimilarity  bool
}

// DefaultPasswordValidator returns the validator used for registration and resets.
func DefaultPasswordValidator() *PasswordValidator {
	return &PasswordValidator{
		MinLength:            8,
		CheckCommonPasswords: true,
		CheckUserSimilarity:  true,
	}
}

// ValidationError is a single failed password rule.
type ValidationError struct {
	Code    string
	Message string
}

func (e ValidationError) Error() string {
	return e.Message
}

// PasswordValidationError collects every failed rule.
type PasswordValidationError struct {
	Errors []ValidationError
}

func (e *PasswordValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "password validation failed"
	}
	return e.Errors[0].Message
}

// Messages returns all error messages
func (e *PasswordValidationError) Messages() []string {
	messages := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		messages[i] = err.Message
	}
	return messages
}

// Validate returns nil or a *PasswordValidationError. userAttributes are
// values such as email and display name the password must not resemble.
func (v *PasswordValidator) Validate(password string, userAttributes ...string) error {
	var errs []ValidationError

	if len([]rune(password)) < v.MinLength {
		errs = append(errs, ValidationError{
			Code:    "min_length",
			Message: fmt.Sprintf("Password must be at least %d characters long.", v.MinLength),
		})
	}

	if len(password) > maxPasswordBytes {
		errs = append(errs, ValidationError{
			Code:    "max_length",
			Message: fmt.Sprintf("Password must be at most %d bytes long.", maxPasswordBytes),
		})
	}

	if isEntirelyNumeric(password) {
		errs = append(errs, ValidationError{
			Code:    "entirely_numeric",
			Message: "Password cannot be entirely numeric.",
		})
	}

	if v.CheckCommonPasswords && isCommonPassword(password) {
		errs = append(errs, ValidationError{
			Code:    "common_password",
			Message: "This password is too common. Please choose a more secure password.",
		})
	}

	if v.CheckUserSimilarity && isSimilarToUserAttributes(password, userAttributes) {
		errs = append(errs, ValidationError{
			Code:    "too_similar",
			Message: "Password is too similar to your personal information.",
		})
	}

	if len(errs) == 0 {
		return nil
	}
	return &PasswordValidationError{Errors: errs}
}

func isEntirelyNumeric(password string) bool {
	for _, r := range password {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return password != ""
}

func isCommonPassword(password string) bool {
	_, exists := commonPasswords[strings.ToLower(password)]
	return exists
}

func isSimilarToUserAttributes(password string, attributes []string) bool {
	pw := strings.ToLower(password)

	for _, attr := range attributes {
		attr = strings.ToLower(attr)
		// compare the local part of emails, not the domain
		if local, _, ok := strings.Cut(attr, "@"); ok {
			attr = local
		}
		if len(attr) < 3 {
			continue
		}
		if strings.Contains(pw, attr) || strings.Contains(attr, pw) {
			return true
		}
		if similarity(pw, attr) > 0.7 {
			return true
		}
	}

	return false
}

func similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}
	return float64(longestCommonSubsequence(a, b)) / float64(max(len(a), len(b)))
}

func longestCommonSubsequence(a, b string) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)

	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
			} else {
				cur[j] = max(prev[j], cur[j-1])
			}
		}
		prev, cur = cur, prev
	}

	return prev[len(b)]
}
