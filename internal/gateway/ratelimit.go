package gateway

import (
	"sync"
	"time"
)

// FixedWindowLimiter allows max requests per key within a window that starts
// at the key's first request. Expired windows are pruned on every call, so
// memory is bounded by the number of keys active in one window.
type FixedWindowLimiter struct {
	window time.Duration
	max    int
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]*windowEntry
}

type windowEntry struct {
	count   int
	resetAt time.Time
}

// NewFixedWindowLimiter returns a limiter. max <= 0 disables limiting.
func NewFixedWindowLimiter(window time.Duration, max int) *FixedWindowLimiter {
	return &FixedWindowLimiter{
		window:  window,
		max:     max,
		now:     time.Now,
		entries: make(map[string]*windowEntry),
	}
}

// Allow records a request for key. When the key is over budget it returns
// false and how long until its window resets.
func (l *FixedWindowLimiter) Allow(key string) (bool, time.Duration) {
	if l == nil || l.max <= 0 {
		return true, 0
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	for k, e := range l.entries {
		if now.After(e.resetAt) {
			delete(l.entries, k)
		}
	}

	e, ok := l.entries[key]
	if !ok {
		l.entries[key] = &windowEntry{count: 1, resetAt: now.Add(l.window)}
		return true, 0
	}
	if e.count >= l.max {
		return false, e.resetAt.Sub(now)
	}
	e.count++
	return true, 0
}

// Limit returns the configured budget per window.
func (l *FixedWindowLimiter) Limit() int { return l.max }

func (l *FixedWindowLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
