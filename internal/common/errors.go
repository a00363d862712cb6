// Package common defines shared constants and sentinel errors used across
// the identity service layers. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal = errors.New("internal error")

	// ErrTransient marks storage or notification infrastructure failures.
	// Callers may retry with backoff.
	ErrTransient = errors.New("transient failure")

	// Lookup misses.
	ErrNoSuchUser  = errors.New("no such user")
	ErrNoSuchEmail = errors.New("no such email")

	// Authentication and account state.
	ErrBadCredentials  = errors.New("bad credentials")
	ErrUserUnverified  = errors.New("user is not verified")
	ErrAlreadyVerified = errors.New("email already verified")
	ErrEmailInUse      = errors.New("email already in use")

	// Presented values that are unknown or already consumed.
	ErrInvalidToken        = errors.New("invalid token")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")

	// Access token could not be parsed or its signature does not verify.
	ErrMalformedToken = errors.New("malformed token")

	// Token lifecycle errors.
	ErrTokenExpired = errors.New("token expired")

	// Rate limits.
	ErrTooSoon         = errors.New("requested too often")
	ErrTooManyAttempts = errors.New("too many attempts")

	// ErrReauthenticationRequired is returned when a refresh token was consumed
	// but its replacement could not be stored. The client has to sign in again.
	ErrReauthenticationRequired = errors.New("session lost, sign in again")
)
