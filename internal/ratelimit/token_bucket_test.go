package ratelimit

import (
	"math"
	"testing"
	"time"
)

type fakeClock struct {
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestTokenBucketConsumeImmediate(t *testing.T) {
	clock := newFakeClock(time.Unix(0, 0))
	tb := newTokenBucket(2, 2, clock.Now())

	if allowed, _, retry := tb.consume(clock.Now(), 1); !allowed || retry != 0 {
		t.Fatalf("expected immediate token availability, got retry=%v allowed=%v", retry, allowed)
	}
}

func TestTokenBucketConsumeRetryAfter(t *testing.T) {
	clock := newFakeClock(time.Unix(0, 0))
	tb := newTokenBucket(1, 2, clock.Now())

	if allowed, _, _ := tb.consume(clock.Now(), 1); !allowed {
		t.Fatalf("initial consume should succeed")
	}

	allowed, _, retry := tb.consume(clock.Now(), 1)
	if allowed || math.Abs(retry.Seconds()-0.5) > 1e-9 {
		t.Fatalf("expected retryAfter of 0.5s and denial, got retry=%v allowed=%v", retry, allowed)
	}

	clock.Advance(250 * time.Millisecond)
	allowed, _, retry = tb.consume(clock.Now(), 1)
	if allowed || math.Abs(retry.Seconds()-0.25) > 1e-9 {
		t.Fatalf("after 0.25s advance expected retryAfter 0.25s, got retry=%v allowed=%v", retry, allowed)
	}

	clock.Advance(250 * time.Millisecond)
	if allowed, _, retry := tb.consume(clock.Now(), 1); !allowed || retry != 0 {
		t.Fatalf("after refill expected immediate token, got retry=%v allowed=%v", retry, allowed)
	}
}

func TestTokenBucketCapacityCap(t *testing.T) {
	clock := newFakeClock(time.Unix(0, 0))
	tb := newTokenBucket(3, 10, clock.Now())

	for i := 0; i < 3; i++ {
		if allowed, _, _ := tb.consume(clock.Now(), 1); !allowed {
			t.Fatalf("expected tokens during drain iteration %d", i)
		}
	}

	clock.Advance(10 * time.Second)
	tb.refill(clock.Now())

	if tb.tokens > tb.capacity {
		t.Fatalf("tokens exceeded capacity: %v > %v", tb.tokens, tb.capacity)
	}
	if tb.tokens != tb.capacity {
		t.Fatalf("tokens should refill to capacity, got %v", tb.tokens)
	}
}
