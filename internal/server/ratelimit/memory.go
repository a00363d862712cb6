package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter keeps counters in process memory. Expired windows are
// dropped lazily, at most once per window.
type MemoryLimiter struct {
	mu          sync.Mutex
	limit       int
	window      time.Duration
	entries     map[string]*entry
	lastCleanup time.Time
}

type entry struct {
	count int
	reset time.Time
}

func NewMemory(limit int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		limit:   limit,
		window:  window,
		entries: map[string]*entry{},
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string, now time.Time) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastCleanup) >= l.window {
		for k, v := range l.entries {
			if now.After(v.reset) {
				delete(l.entries, k)
			}
		}
		l.lastCleanup = now
	}

	e, ok := l.entries[key]
	if !ok || now.After(e.reset) {
		l.entries[key] = &entry{count: 1, reset: now.Add(l.window)}
		return true, 0, nil
	}

	if e.count >= l.limit {
		return false, max(e.reset.Sub(now), 0), nil
	}

	e.count++
	return true, 0, nil
}
