package models

import "time"

// Purpose tells what a confirmation token was issued for. Both purposes share
// the single per-user slot.
type Purpose string

const (
	PurposeSignup        Purpose = "signup"
	PurposePasswordReset Purpose = "password_reset"
)

// ConfirmationToken is a single-use value proving control of the user's email.
// Expiry is derived from CreatedAt and the configured validity window.
type ConfirmationToken struct {
	ID        int64
	UserID    int64
	Token     string
	Purpose   Purpose
	CreatedAt time.Time
}
