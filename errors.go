package auth

import (
	"strings"

	"github.com/goliatone/go-errors"
)

// Text codes attached to structured errors so API clients can branch on a
// stable identifier instead of matching message strings.
const (
	TextCodeDuplicateEmail   = "DUPLICATE_EMAIL"
	TextCodeInvalidCreds     = "INVALID_CREDENTIALS"
	TextCodeAccountDisabled  = "ACCOUNT_DISABLED"
	TextCodeTokenExpired     = "TOKEN_EXPIRED"
	TextCodeTokenMalformed   = "TOKEN_MALFORMED"
	TextCodeUnauthorized     = "UNAUTHORIZED"
	TextCodeForbidden        = "FORBIDDEN"
	TextCodeEmptyPassword    = "EMPTY_PASSWORD"
	TextCodeIdentityNotFound = "IDENTITY_NOT_FOUND"
)

// ErrIdentityNotFound is returned when a user record lookup comes back empty.
// It never crosses the API boundary as-is; login translates it to
// ErrInvalidCredentials so callers cannot enumerate accounts.
var ErrIdentityNotFound = errors.New("identity not found", errors.CategoryNotFound).
	WithTextCode(TextCodeIdentityNotFound)

// ErrDuplicateEmail is returned when registering an email that already exists
var ErrDuplicateEmail = errors.New("an account with that email already exists", errors.CategoryConflict).
	WithTextCode(TextCodeDuplicateEmail)

// ErrInvalidCredentials covers unknown email, wrong password, and locked
// accounts uniformly.
var ErrInvalidCredentials = errors.New("the credentials provided are invalid", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds).
	WithCode(errors.CodeUnauthorized)

// ErrMismatchedHashAndPassword is the low-level verify failure surfaced by
// the password hasher. Callers translate it to ErrInvalidCredentials.
var ErrMismatchedHashAndPassword = errors.New("password does not match stored digest", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds)

// ErrAccountDisabled is returned for explicitly deactivated accounts,
// distinct from accounts locked by failed attempts.
var ErrAccountDisabled = errors.New("account is disabled", errors.CategoryAuth).
	WithTextCode(TextCodeAccountDisabled).
	WithCode(errors.CodeUnauthorized)

// ErrTokenExpired marks a token whose signature verified but whose expiry
// has passed. Kept distinct from ErrTokenMalformed so "re-login" is
// observable separately from tampering.
var ErrTokenExpired = errors.New("authentication token is expired", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(errors.CodeUnauthorized)

// ErrTokenMalformed covers bad signatures and undecodable tokens
var ErrTokenMalformed = errors.New("authentication token is invalid", errors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(errors.CodeUnauthorized)

// ErrUnauthorized is the gate's answer to anonymous requests
var ErrUnauthorized = errors.New("authentication required", errors.CategoryAuth).
	WithTextCode(TextCodeUnauthorized).
	WithCode(errors.CodeUnauthorized)

// ErrForbidden is the gate's uniform denial for authenticated principals,
// whether the role is insufficient or the backing account is non-operable.
var ErrForbidden = errors.New("insufficient permissions", errors.CategoryAuthz).
	WithTextCode(TextCodeForbidden)

// ErrNoEmptyString rejects empty passwords before hashing
var ErrNoEmptyString = errors.New("password must not be empty", errors.CategoryValidation).
	WithTextCode(TextCodeEmptyPassword)

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTokenExpired) {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for undecodable or tampered tokens
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTokenMalformed) {
		return true
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}
