package ratelimit

import (
	"time"

	"github.com/fabianmarian8/sentinel-sub000/internal/models"
)

type circuitState int

const (
	circuitClosed circuitState = iota
	circuitOpen
	circuitHalfOpen
)

const (
	defaultCapacity          = 5.0
	defaultFillRate          = 1.0
	minFillRate              = 0.05
	maxFillRateMultiple      = 4.0
	aimdIncreaseStep         = 0.1
	aimdDecreaseFactor       = 0.5
	breakerErrorThreshold    = 0.5
	breakerMinSamples        = 5
	breakerConsecutiveTrip   = 5
	breakerOpenDuration      = 30 * time.Second
	breakerHalfOpenMaxProbes = 1
	slidingWindowDuration    = 60 * time.Second
	slidingWindowBucket      = 5 * time.Second
)

// domainState holds the token bucket, circuit breaker and error-rate window
// for a single (domain, providerKind) pair.
type domainState struct {
	bucket   *tokenBucket
	window   *slidingWindow
	baseRate float64
	maxRate  float64

	breaker            circuitState
	consecutiveFailure int
	openedAt           time.Time
	halfOpenProbes     int
}

func newDomainState(cfg models.RateLimitBucketConfig, now time.Time) *domainState {
	capacity := cfg.CapacityTokens
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	rate := cfg.RefillPerSec
	if rate <= 0 {
		rate = defaultFillRate
	}
	return &domainState{
		bucket:   newTokenBucket(capacity, rate, now),
		window:   newSlidingWindow(slidingWindowDuration, slidingWindowBucket),
		baseRate: rate,
		maxRate:  rate * maxFillRateMultiple,
		breaker:  circuitClosed,
	}
}

// allow evaluates the breaker state and, if request traffic is permitted,
// delegates to the underlying token bucket. It returns allowed=false with a
// non-zero retryAfter when the breaker is open or the bucket is empty.
func (ds *domainState) allow(now time.Time, amount float64) (allowed bool, remaining float64, retryAfter time.Duration) {
	switch ds.breaker {
	case circuitOpen:
		if now.Sub(ds.openedAt) < breakerOpenDuration {
			return false, ds.bucket.tokens, breakerOpenDuration - now.Sub(ds.openedAt)
		}
		ds.breaker = circuitHalfOpen
		ds.halfOpenProbes = 0
	case circuitHalfOpen:
		if ds.halfOpenProbes >= breakerHalfOpenMaxProbes {
			return false, ds.bucket.tokens, 250 * time.Millisecond
		}
	}

	allowed, remaining, retryAfter = ds.bucket.consume(now, amount)
	if ds.breaker == circuitHalfOpen && allowed {
		ds.halfOpenProbes++
	}
	return allowed, remaining, retryAfter
}

// feedback records the outcome of a dispatched request and adjusts the fill
// rate (AIMD) and breaker state accordingly.
func (ds *domainState) feedback(now time.Time, success bool, rateLimited bool) {
	errCount := 0
	if !success {
		errCount = 1
	}
	ds.window.record(now, 1, errCount)

	if success {
		ds.consecutiveFailure = 0
		if ds.breaker == circuitHalfOpen {
			ds.breaker = circuitClosed
			ds.halfOpenProbes = 0
		}
		ds.increaseRate()
		return
	}

	ds.consecutiveFailure++
	if rateLimited {
		ds.decreaseRate()
	}

	if ds.breaker == circuitHalfOpen {
		ds.openBreaker(now)
		return
	}

	total, errs := ds.window.snapshot(now)
	tripOnRate := total >= breakerMinSamples && float64(errs)/float64(total) >= breakerErrorThreshold
	tripOnStreak := ds.consecutiveFailure >= breakerConsecutiveTrip
	if ds.breaker == circuitClosed && (tripOnRate || tripOnStreak) {
		ds.openBreaker(now)
	}
}

func (ds *domainState) openBreaker(now time.Time) {
	ds.breaker = circuitOpen
	ds.openedAt = now
	ds.halfOpenProbes = 0
	ds.decreaseRate()
}

func (ds *domainState) increaseRate() {
	next := ds.bucket.fillRate + ds.baseRate*aimdIncreaseStep
	if next > ds.maxRate {
		next = ds.maxRate
	}
	ds.bucket.setFillRate(next)
}

func (ds *domainState) decreaseRate() {
	next := ds.bucket.fillRate * aimdDecreaseFactor
	if next < minFillRate {
		next = minFillRate
	}
	ds.bucket.setFillRate(next)
}

func (ds *domainState) snapshot(now time.Time) DomainSnapshot {
	total, errs := ds.window.snapshot(now)
	errRate := 0.0
	if total > 0 {
		errRate = float64(errs) / float64(total)
	}
	return DomainSnapshot{
		TokensRemaining: ds.bucket.tokens,
		FillRate:        ds.bucket.fillRate,
		BreakerOpen:     ds.breaker == circuitOpen,
		ErrorRate:       errRate,
	}
}

// DomainSnapshot is the read-only view exposed by Limiter.Snapshot.
type DomainSnapshot struct {
	TokensRemaining float64
	FillRate        float64
	BreakerOpen     bool
	ErrorRate       float64
}
