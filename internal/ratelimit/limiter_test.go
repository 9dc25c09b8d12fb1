package ratelimit

import (
	"testing"
	"time"

	"github.com/fabianmarian8/sentinel-sub000/internal/models"
)

func TestLimiterConsumeTokenDeniesWhenExhausted(t *testing.T) {
	clock := newFakeClock(time.Unix(0, 0))
	lim := NewLimiter(clock, func(_ string, _ models.ProviderKind) models.RateLimitBucketConfig {
		return models.RateLimitBucketConfig{CapacityTokens: 1, RefillPerSec: 1}
	})

	allowed, _, _ := lim.ConsumeToken("example.com", models.ProviderHTTP)
	if !allowed {
		t.Fatalf("expected first consume to succeed")
	}

	allowed, _, retry := lim.ConsumeToken("example.com", models.ProviderHTTP)
	if allowed || retry <= 0 {
		t.Fatalf("expected second consume to be denied with positive retryAfter, got allowed=%v retry=%v", allowed, retry)
	}
}

func TestLimiterSeparatesBucketsByProvider(t *testing.T) {
	clock := newFakeClock(time.Unix(0, 0))
	lim := NewLimiter(clock, func(_ string, _ models.ProviderKind) models.RateLimitBucketConfig {
		return models.RateLimitBucketConfig{CapacityTokens: 1, RefillPerSec: 1}
	})

	if allowed, _, _ := lim.ConsumeToken("example.com", models.ProviderHTTP); !allowed {
		t.Fatalf("expected http bucket to allow first request")
	}
	if allowed, _, _ := lim.ConsumeToken("example.com", models.ProviderHeadless); !allowed {
		t.Fatalf("expected headless bucket to be independent of http bucket")
	}
}

func TestLimiterBreakerTripsOnConsecutiveFailures(t *testing.T) {
	clock := newFakeClock(time.Unix(0, 0))
	lim := NewLimiter(clock, func(_ string, _ models.ProviderKind) models.RateLimitBucketConfig {
		return models.RateLimitBucketConfig{CapacityTokens: 10, RefillPerSec: 10}
	})

	for i := 0; i < breakerConsecutiveTrip; i++ {
		lim.Feedback("example.com", models.ProviderHTTP, false, false)
	}

	snap := lim.Snapshot("example.com", models.ProviderHTTP)
	if !snap.BreakerOpen {
		t.Fatalf("expected breaker to be open after %d consecutive failures", breakerConsecutiveTrip)
	}

	allowed, _, retry := lim.ConsumeToken("example.com", models.ProviderHTTP)
	if allowed || retry <= 0 {
		t.Fatalf("expected requests to be denied while breaker is open, got allowed=%v retry=%v", allowed, retry)
	}
}

func TestLimiterBreakerRecoversAfterOpenDuration(t *testing.T) {
	clock := newFakeClock(time.Unix(0, 0))
	lim := NewLimiter(clock, func(_ string, _ models.ProviderKind) models.RateLimitBucketConfig {
		return models.RateLimitBucketConfig{CapacityTokens: 10, RefillPerSec: 10}
	})

	for i := 0; i < breakerConsecutiveTrip; i++ {
		lim.Feedback("example.com", models.ProviderHTTP, false, false)
	}

	clock.Advance(breakerOpenDuration + time.Second)

	allowed, _, _ := lim.ConsumeToken("example.com", models.ProviderHTTP)
	if !allowed {
		t.Fatalf("expected a half-open probe to be allowed after the open duration elapses")
	}

	lim.Feedback("example.com", models.ProviderHTTP, true, false)
	snap := lim.Snapshot("example.com", models.ProviderHTTP)
	if snap.BreakerOpen {
		t.Fatalf("expected breaker to close after a successful half-open probe")
	}
}

func TestNormalizeDomainStripsDefaultPorts(t *testing.T) {
	cases := map[string]string{
		"Example.com:443":      "example.com",
		"example.com:80":       "example.com",
		"https://Example.com/": "example.com",
		"example.com:8443":     "example.com:8443",
	}
	for input, want := range cases {
		if got := normalizeDomain(input); got != want {
			t.Fatalf("normalizeDomain(%q) = %q, want %q", input, got, want)
		}
	}
}
