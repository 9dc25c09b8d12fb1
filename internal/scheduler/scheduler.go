// Package scheduler implements the cooperative single-threaded tick loop
// that claims due rules and enqueues run jobs, grounded on the
// teacher's internal/resources.Manager mutex discipline for the
// non-reentrant tick guard.
package scheduler

import (
	"context"
	"log/slog"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/fabianmarian8/sentinel-sub000/internal/models"
)

const (
	DefaultTickInterval = 5000 * time.Millisecond
	DefaultBatchSize    = 500
	domainPacingDelay   = 100 * time.Millisecond
	enqueueFailureDelay = 60 * time.Second
	shutdownGrace       = 30 * time.Second
)

// ClaimedRule is one row the atomic claim query returned, grouped by domain
// for the pacing pass.
type ClaimedRule struct {
	RuleID string
	Domain string
}

// Store is the scheduler's persistence port: select due rules, claim them
// atomically, and recompute their nextRunAt.
type Store interface {
	SelectDue(ctx context.Context, now time.Time, batchSize int) ([]ClaimedRule, error)
	Claim(ctx context.Context, now time.Time, ruleIDs []string) ([]string, error)
	RescheduleNext(ctx context.Context, ruleID string, nextRunAt time.Time) error
	RescheduleRetry(ctx context.Context, ruleID string, nextRunAt time.Time) error
}

// Enqueuer hands a claimed rule off to the rules-run queue.
type Enqueuer interface {
	EnqueueScheduledRun(ctx context.Context, ruleID string) error
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Scheduler drives the tick loop that claims due rules and enqueues run jobs.
type Scheduler struct {
	store         Store
	enqueuer      Enqueuer
	clock         Clock
	log           *slog.Logger
	tickInterval  time.Duration
	batchSize     int
	intervalFor   func(ruleID string) (intervalSeconds, jitterSeconds int)
	isProcessing  atomic.Bool
	stopped       atomic.Bool
}

// Option configures a Scheduler at construction.
type Option func(*Scheduler)

func WithTickInterval(d time.Duration) Option { return func(s *Scheduler) { s.tickInterval = d } }
func WithBatchSize(n int) Option              { return func(s *Scheduler) { s.batchSize = n } }
func WithLogger(l *slog.Logger) Option        { return func(s *Scheduler) { s.log = l } }

// WithIntervalResolver overrides how nextRunAt's interval/jitter are looked
// up per rule; defaults to the schedule already loaded on the ClaimedRule by
// the store (pass nil to let the store own this entirely).
func WithIntervalResolver(fn func(ruleID string) (int, int)) Option {
	return func(s *Scheduler) { s.intervalFor = fn }
}

// New builds a Scheduler. clock may be nil to use wall-clock time.
func New(store Store, enqueuer Enqueuer, clock Clock, opts ...Option) *Scheduler {
	if clock == nil {
		clock = realClock{}
	}
	s := &Scheduler{
		store: store, enqueuer: enqueuer, clock: clock,
		log: slog.Default(), tickInterval: DefaultTickInterval, batchSize: DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run drives the tick loop until ctx is cancelled, then waits up to the
// shutdown grace window for an in-flight tick to finish.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.stopped.Store(true)
			s.waitForIdle(shutdownGrace)
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) waitForIdle(timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for s.isProcessing.Load() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
}

// tick runs exactly one scheduling pass; re-entrant ticks are refused.
func (s *Scheduler) tick(ctx context.Context) {
	if s.stopped.Load() {
		return
	}
	if !s.isProcessing.CompareAndSwap(false, true) {
		return
	}
	defer s.isProcessing.Store(false)

	now := s.clock.Now()
	due, err := s.store.SelectDue(ctx, now, s.batchSize)
	if err != nil {
		s.log.Error("scheduler: select due rules failed", "error", err)
		return
	}
	if len(due) == 0 {
		return
	}

	ids := make([]string, len(due))
	for i, r := range due {
		ids[i] = r.RuleID
	}
	claimedIDs, err := s.store.Claim(ctx, now, ids)
	if err != nil {
		s.log.Error("scheduler: claim failed", "error", err)
		return
	}

	claimed := make(map[string]bool, len(claimedIDs))
	for _, id := range claimedIDs {
		claimed[id] = true
	}

	groups := groupByDomain(due, claimed)
	for _, group := range groups {
		for i, rule := range group {
			if i > 0 {
				time.Sleep(domainPacingDelay)
			}
			s.enqueueClaimed(ctx, rule, now)
		}
	}
}

func (s *Scheduler) enqueueClaimed(ctx context.Context, rule ClaimedRule, now time.Time) {
	if err := s.enqueuer.EnqueueScheduledRun(ctx, rule.RuleID); err != nil {
		s.log.Error("scheduler: enqueue failed, scheduling short retry", "rule", rule.RuleID, "error", err)
		_ = s.store.RescheduleRetry(ctx, rule.RuleID, now.Add(enqueueFailureDelay))
		return
	}

	var intervalSeconds, jitterSeconds int
	if s.intervalFor != nil {
		intervalSeconds, jitterSeconds = s.intervalFor(rule.RuleID)
	}
	nextRunAt := NextRunAt(now, intervalSeconds, jitterSeconds)
	if err := s.store.RescheduleNext(ctx, rule.RuleID, nextRunAt); err != nil {
		s.log.Error("scheduler: reschedule failed", "rule", rule.RuleID, "error", err)
	}
}

// NextRunAt computes the rule's next run time: now + interval + uniform
// jitter in [0, jitterSeconds).
func NextRunAt(now time.Time, intervalSeconds, jitterSeconds int) time.Time {
	jitter := time.Duration(0)
	if jitterSeconds > 0 {
		jitter = time.Duration(rand.Int63n(int64(jitterSeconds))) * time.Second
	}
	return now.Add(time.Duration(intervalSeconds)*time.Second + jitter)
}

func groupByDomain(due []ClaimedRule, claimed map[string]bool) [][]ClaimedRule {
	order := make([]string, 0)
	byDomain := make(map[string][]ClaimedRule)
	for _, rule := range due {
		if !claimed[rule.RuleID] {
			continue
		}
		if _, ok := byDomain[rule.Domain]; !ok {
			order = append(order, rule.Domain)
		}
		byDomain[rule.Domain] = append(byDomain[rule.Domain], rule)
	}
	groups := make([][]ClaimedRule, 0, len(order))
	for _, domain := range order {
		groups = append(groups, byDomain[domain])
	}
	return groups
}

// NewRuleNextRunAt computes a freshly created rule's initial nextRunAt
//.
func NewRuleNextRunAt(now time.Time, schedule models.Schedule) time.Time {
	return NextRunAt(now, schedule.IntervalSeconds, schedule.JitterSeconds)
}
