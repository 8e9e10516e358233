package moderation

import (
	"testing"
	"time"
)

// fakeClock advances only when told to, making window behavior exact.
type fakeClock struct {
	current time.Time
}

func (c *fakeClock) now() time.Time {
	return c.current
}

func (c *fakeClock) advance(d time.Duration) {
	c.current = c.current.Add(d)
}

func newTestLimiter(limit int, window time.Duration) (*RateLimiter, *fakeClock) {
	clock := &fakeClock{current: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	return NewRateLimiterWithClock(limit, window, clock.now), clock
}

func TestRateLimiter_SixthMessageThrottled(t *testing.T) {
	rl, _ := newTestLimiter(5, 10*time.Second)

	for i := 0; i < 5; i++ {
		if rl.CheckAndRecord("@alice") {
			t.Fatalf("message %d should not be throttled", i+1)
		}
	}
	if !rl.CheckAndRecord("@alice") {
		t.Error("6th message within the window should be throttled")
	}
}

func TestRateLimiter_SpacedMessagesNeverThrottled(t *testing.T) {
	rl, clock := newTestLimiter(5, 10*time.Second)

	for i := 0; i < 20; i++ {
		if rl.CheckAndRecord("@alice") {
			t.Fatalf("message %d throttled despite 11s spacing", i+1)
		}
		clock.advance(11 * time.Second)
	}
}

func TestRateLimiter_WindowSlides(t *testing.T) {
	rl, clock := newTestLimiter(5, 10*time.Second)

	for i := 0; i < 6; i++ {
		rl.CheckAndRecord("@alice")
	}

	// After a full window of silence, history expires
	clock.advance(10*time.Second + time.Millisecond)
	if rl.CheckAndRecord("@alice") {
		t.Error("message after the window expired should be allowed")
	}
}

func TestRateLimiter_ThrottledAttemptsCount(t *testing.T) {
	rl, clock := newTestLimiter(5, 10*time.Second)

	for i := 0; i < 6; i++ {
		rl.CheckAndRecord("@alice")
	}

	// 5s later the original burst is still in the window, and the
	// throttled 6th attempt counts too, so the user stays throttled.
	clock.advance(5 * time.Second)
	if !rl.CheckAndRecord("@alice") {
		t.Error("sustained spam should remain throttled mid-window")
	}
}

func TestRateLimiter_PerUserIsolation(t *testing.T) {
	rl, _ := newTestLimiter(5, 10*time.Second)

	for i := 0; i < 6; i++ {
		rl.CheckAndRecord("@alice")
	}
	if rl.CheckAndRecord("@bob") {
		t.Error("bob should not be throttled by alice's burst")
	}
}

func TestRateLimiter_NormalizesIdentifiers(t *testing.T) {
	rl, _ := newTestLimiter(5, 10*time.Second)

	spellings := []string{"alice", "@alice", "Alice", "@ALICE", "alice", "@Alice"}
	throttled := false
	for _, s := range spellings {
		throttled = rl.CheckAndRecord(s)
	}
	if !throttled {
		t.Error("identifier spellings should share one window")
	}
}

func TestRateLimiter_Forget(t *testing.T) {
	rl, _ := newTestLimiter(5, 10*time.Second)

	for i := 0; i < 6; i++ {
		rl.CheckAndRecord("@alice")
	}
	rl.Forget("@alice")
	if rl.CheckAndRecord("@alice") {
		t.Error("forgotten user should start with a clean window")
	}
}
