// Package ratelimit throttles sign-in attempts per key with a fixed window.
package ratelimit

import (
	"context"
	"time"
)

// Limiter decides whether another attempt for key is allowed at now. When it
// is not, retryAfter tells how long until the window resets.
type Limiter interface {
	Allow(ctx context.Context, key string, now time.Time) (allowed bool, retryAfter time.Duration, err error)
}

// Unlimited allows everything. It is used when throttling is disabled.
type Unlimited struct{}

func (Unlimited) Allow(context.Context, string, time.Time) (bool, time.Duration, error) {
	return true, 0, nil
}
