package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fakeStore struct {
	mu        sync.Mutex
	due       []ClaimedRule
	claimOK   map[string]bool
	rescheduled map[string]time.Time
	retried     map[string]time.Time
}

func (f *fakeStore) SelectDue(context.Context, time.Time, int) ([]ClaimedRule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.due, nil
}

func (f *fakeStore) Claim(_ context.Context, _ time.Time, ids []string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if f.claimOK == nil || f.claimOK[id] {
			out = append(out, id)
		}
	}
	return out, nil
}

func (f *fakeStore) RescheduleNext(_ context.Context, ruleID string, nextRunAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rescheduled == nil {
		f.rescheduled = make(map[string]time.Time)
	}
	f.rescheduled[ruleID] = nextRunAt
	return nil
}

func (f *fakeStore) RescheduleRetry(_ context.Context, ruleID string, nextRunAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.retried == nil {
		f.retried = make(map[string]time.Time)
	}
	f.retried[ruleID] = nextRunAt
	return nil
}

type fakeEnqueuer struct {
	mu       sync.Mutex
	enqueued []string
	fail     map[string]bool
}

func (f *fakeEnqueuer) EnqueueScheduledRun(_ context.Context, ruleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil && f.fail[ruleID] {
		return context.DeadlineExceeded
	}
	f.enqueued = append(f.enqueued, ruleID)
	return nil
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func TestTickEnqueuesOnlyClaimedRules(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	store := &fakeStore{
		due: []ClaimedRule{{RuleID: "a", Domain: "x.com"}, {RuleID: "b", Domain: "x.com"}},
		claimOK: map[string]bool{"a": true},
	}
	enq := &fakeEnqueuer{}
	s := New(store, enq, fixedClock{now: now}, WithTickInterval(time.Hour))

	s.tick(context.Background())

	if len(enq.enqueued) != 1 || enq.enqueued[0] != "a" {
		t.Fatalf("expected only rule a to be enqueued, got %v", enq.enqueued)
	}
	if _, ok := store.rescheduled["a"]; !ok {
		t.Fatalf("expected rule a to be rescheduled")
	}
	if _, ok := store.rescheduled["b"]; ok {
		t.Fatalf("rule b was not claimed and must not be rescheduled")
	}
}

func TestTickRefusesReentry(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	store := &fakeStore{due: []ClaimedRule{{RuleID: "a", Domain: "x.com"}}, claimOK: map[string]bool{"a": true}}
	enq := &fakeEnqueuer{}
	s := New(store, enq, fixedClock{now: now})
	s.isProcessing.Store(true)

	s.tick(context.Background())

	if len(enq.enqueued) != 0 {
		t.Fatalf("expected tick to no-op while a tick is already in flight")
	}
}

func TestEnqueueFailureSchedulesShortRetryInsteadOfNextRunAt(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	store := &fakeStore{due: []ClaimedRule{{RuleID: "a", Domain: "x.com"}}, claimOK: map[string]bool{"a": true}}
	enq := &fakeEnqueuer{fail: map[string]bool{"a": true}}
	s := New(store, enq, fixedClock{now: now})

	s.tick(context.Background())

	if _, ok := store.retried["a"]; !ok {
		t.Fatalf("expected a short retry to be scheduled after enqueue failure")
	}
	if _, ok := store.rescheduled["a"]; ok {
		t.Fatalf("must not advance nextRunAt on enqueue failure")
	}
}

func TestNextRunAtAddsIntervalAndBoundedJitter(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	next := NextRunAt(now, 3600, 60)
	if next.Before(now.Add(3600*time.Second)) || next.After(now.Add(3660*time.Second)) {
		t.Fatalf("expected nextRunAt within [interval, interval+jitter], got %v", next)
	}
}
