package models

import "time"

// RefreshToken is an immutable rotating credential. Token is the opaque
// random value handed to the client.
type RefreshToken struct {
	ID        int64
	UserID    int64
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the token is past its expiry at now.
func (t RefreshToken) Expired(now time.Time) bool {
	return t.ExpiresAt.Before(now)
}
