package common

import (
	"context"
	"errors"
)

// Kind is a stable machine-readable failure class exposed to clients.
type Kind string

const (
	KindNone                     Kind = ""
	KindNoSuchUser               Kind = "no_such_user"
	KindNoSuchEmail              Kind = "no_such_email"
	KindBadCredentials           Kind = "bad_credentials"
	KindUserUnverified           Kind = "user_unverified"
	KindInvalidRefreshToken      Kind = "invalid_refresh_token"
	KindInvalidToken             Kind = "invalid_token"
	KindTokenExpired             Kind = "token_expired"
	KindAlreadyVerified          Kind = "already_verified"
	KindTooSoon                  Kind = "too_soon"
	KindTooManyAttempts          Kind = "too_many_attempts"
	KindEmailInUse               Kind = "email_in_use"
	KindReauthenticationRequired Kind = "reauthentication_required"
	KindTransient                Kind = "transient"
	KindInternal                 Kind = "internal"
)

// order matters: wrapped errors may match more than one sentinel and the
// first match wins (an expired refresh token is reported as invalid).
var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrReauthenticationRequired, KindReauthenticationRequired},
	{ErrInvalidRefreshToken, KindInvalidRefreshToken},
	{ErrTokenExpired, KindTokenExpired},
	{ErrInvalidToken, KindInvalidToken},
	{ErrMalformedToken, KindInvalidToken},
	{ErrNoSuchUser, KindNoSuchUser},
	{ErrNoSuchEmail, KindNoSuchEmail},
	{ErrBadCredentials, KindBadCredentials},
	{ErrUserUnverified, KindUserUnverified},
	{ErrAlreadyVerified, KindAlreadyVerified},
	{ErrTooSoon, KindTooSoon},
	{ErrTooManyAttempts, KindTooManyAttempts},
	{ErrEmailInUse, KindEmailInUse},
	{ErrTransient, KindTransient},
	{context.DeadlineExceeded, KindTransient},
}

// KindOf classifies err. Unknown non-nil errors are KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

var messages = map[Kind]string{
	KindNoSuchUser:               "user does not exist",
	KindNoSuchEmail:              "no account is registered for this email",
	KindBadCredentials:           "invalid email or password",
	KindUserUnverified:           "email address is not verified",
	KindInvalidRefreshToken:      "refresh token is invalid",
	KindInvalidToken:             "token is invalid",
	KindTokenExpired:             "token has expired, request a new one",
	KindAlreadyVerified:          "email address is already verified",
	KindTooSoon:                  "requested too often, try again later",
	KindTooManyAttempts:          "too many attempts, try again later",
	KindEmailInUse:               "email address is already in use",
	KindReauthenticationRequired: "session could not be renewed, sign in again",
	KindTransient:                "service temporarily unavailable, try again",
	KindInternal:                 "internal error",
}

// Message returns a human readable description safe to show to clients.
func (k Kind) Message() string {
	if m, ok := messages[k]; ok {
		return m
	}
	return ""
}
