// Package ratelimit implements the fetch orchestrator's per-(domain,
// providerKind) token-bucket rate limiting with AIMD fill-rate adjustment
// and a sliding-window circuit breaker.
package ratelimit

import (
	"sync"
	"time"

	"github.com/fabianmarian8/sentinel-sub000/internal/models"
)

// Limiter is the non-blocking rate limiter consumed by the fetch
// orchestrator. Every call is keyed by (domain, providerKind)
// so each provider gets its own bucket per domain.
type Limiter struct {
	mu      sync.Mutex
	clock   Clock
	states  map[string]*domainState
	configs func(domain string, provider models.ProviderKind) models.RateLimitBucketConfig
}

// DefaultBucketConfig is used when no per-domain override is configured.
func DefaultBucketConfig(models.ProviderKind) models.RateLimitBucketConfig {
	return models.RateLimitBucketConfig{
		CapacityTokens: defaultCapacity,
		RefillPerSec:   defaultFillRate,
	}
}

// NewLimiter constructs a Limiter. configFn resolves the bucket shape for a
// given (domain, providerKind); pass nil to use DefaultBucketConfig for
// every key.
func NewLimiter(clock Clock, configFn func(domain string, provider models.ProviderKind) models.RateLimitBucketConfig) *Limiter {
	if clock == nil {
		clock = realClock{}
	}
	if configFn == nil {
		configFn = func(_ string, p models.ProviderKind) models.RateLimitBucketConfig {
			return DefaultBucketConfig(p)
		}
	}
	return &Limiter{
		clock:   clock,
		states:  make(map[string]*domainState),
		configs: configFn,
	}
}

func bucketKey(domain string, provider models.ProviderKind) string {
	return normalizeDomain(domain) + "|" + string(provider)
}

// ConsumeToken attempts to take one fetch slot for (domain, provider). It
// never blocks: when denied it reports how long the caller should wait
// before retrying
func (l *Limiter) ConsumeToken(domain string, provider models.ProviderKind) (allowed bool, remaining float64, retryAfter time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	ds := l.stateLocked(domain, provider, now)
	return ds.allow(now, 1)
}

// Feedback reports the outcome of a dispatched request so the limiter can
// adjust its fill rate and circuit breaker state.
func (l *Limiter) Feedback(domain string, provider models.ProviderKind, success bool, rateLimited bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	ds := l.stateLocked(domain, provider, now)
	ds.feedback(now, success, rateLimited)
}

// Snapshot returns a point-in-time view of the (domain, provider) bucket,
// primarily for metrics export and debugging.
func (l *Limiter) Snapshot(domain string, provider models.ProviderKind) DomainSnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	ds := l.stateLocked(domain, provider, now)
	return ds.snapshot(now)
}

func (l *Limiter) stateLocked(domain string, provider models.ProviderKind, now time.Time) *domainState {
	key := bucketKey(domain, provider)
	ds, ok := l.states[key]
	if !ok {
		ds = newDomainState(l.configs(domain, provider), now)
		l.states[key] = ds
	}
	return ds
}
