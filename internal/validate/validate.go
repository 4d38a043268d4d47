// Package validate is the fail-fast input gate in front of the stores.
// Every pattern runs on Go's RE2-based regexp engine, so matching cost is
// linear in the input regardless of how adversarial it is; malformed input
// is rejected before any store round-trip.
package validate

import (
	"errors"
	"regexp"
)

// ErrInputInvalid is returned for any input that fails a format check.
// Callers reject the request synchronously; no store is touched.
var ErrInputInvalid = errors.New("validate: input invalid")

// ErrPolicyViolation is returned when a credential fails format policy.
var ErrPolicyViolation = errors.New("validate: credential violates policy")

const (
	maxIdentifierLen = 254
	minCredentialLen = 12
	maxCredentialLen = 256
)

// Patterns are compiled once at package init; Compile panics on malformed
// patterns, which is what we want for programmer error.
var (
	usernameRe = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]{2,63}$`)
	emailRe    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	uuidRe     = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

	// RE2 has no lookahead, so the credential character classes are
	// checked with one linear pass per class.
	credAllowedRe = regexp.MustCompile(`^[\x21-\x7e]+$`) // printable ASCII, no spaces
	credUpperRe   = regexp.MustCompile(`[A-Z]`)
	credLowerRe   = regexp.MustCompile(`[a-z]`)
	credDigitRe   = regexp.MustCompile(`[0-9]`)
)

// Identifier checks an account login identifier: either a username or an
// email-like string.
func Identifier(s string) error {
	if s == "" || len(s) > maxIdentifierLen {
		return ErrInputInvalid
	}
	if usernameRe.MatchString(s) || emailRe.MatchString(s) {
		return nil
	}
	return ErrInputInvalid
}

// Email checks an email-like string.
func Email(s string) error {
	if s == "" || len(s) > maxIdentifierLen || !emailRe.MatchString(s) {
		return ErrInputInvalid
	}
	return nil
}

// SessionID checks the shape of an opaque session ID (UUID).
func SessionID(s string) error {
	if !uuidRe.MatchString(s) {
		return ErrInputInvalid
	}
	return nil
}

// AccountID checks the shape of an opaque account ID (UUID).
func AccountID(s string) error {
	if !uuidRe.MatchString(s) {
		return ErrInputInvalid
	}
	return nil
}

// Credential checks a plaintext credential against format policy: length
// bounds, printable ASCII, and at least one upper, lower, and digit
// character. Content policy only; strength estimation is out of scope.
func Credential(s string) error {
	if len(s) < minCredentialLen || len(s) > maxCredentialLen {
		return ErrPolicyViolation
	}
	if !credAllowedRe.MatchString(s) {
		return ErrPolicyViolation
	}
	if !credUpperRe.MatchString(s) || !credLowerRe.MatchString(s) || !credDigitRe.MatchString(s) {
		return ErrPolicyViolation
	}
	return nil
}
