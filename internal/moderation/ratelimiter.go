package moderation

import (
	"sync"
	"time"
)

// Rate limit defaults: a user may send 5 messages in any trailing 10s
// window before attempts are throttled.
const (
	DefaultRateLimit  = 5
	DefaultRateWindow = 10 * time.Second
)

// RateLimiter tracks recent event timestamps per user identifier over a
// sliding window. The clock is injectable for tests.
type RateLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	now    func() time.Time
	events map[string][]time.Time
}

// NewRateLimiter creates a limiter allowing `limit` events per `window`.
// Non-positive arguments fall back to the defaults.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return NewRateLimiterWithClock(limit, window, time.Now)
}

// NewRateLimiterWithClock is NewRateLimiter with an explicit time source.
func NewRateLimiterWithClock(limit int, window time.Duration, now func() time.Time) *RateLimiter {
	if limit <= 0 {
		limit = DefaultRateLimit
	}
	if window <= 0 {
		window = DefaultRateWindow
	}
	if now == nil {
		now = time.Now
	}
	return &RateLimiter{
		limit:  limit,
		window: window,
		now:    now,
		events: make(map[string][]time.Time),
	}
}

// CheckAndRecord registers an attempt for the user and reports whether it
// is throttled. The attempt is recorded even when throttled, so sustained
// spam keeps a user throttled until they back off for a full window.
func (r *RateLimiter) CheckAndRecord(user string) (throttled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	cutoff := now.Add(-r.window)
	key := Normalize(user)

	events := r.events[key]
	kept := events[:0]
	for _, ts := range events {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	kept = append(kept, now)
	r.events[key] = kept

	return len(kept) > r.limit
}

// Forget drops all recorded state for a user. Called on disconnect so the
// map does not grow with every identifier ever seen.
func (r *RateLimiter) Forget(user string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.events, Normalize(user))
}
