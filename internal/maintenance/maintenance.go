// Package maintenance runs the two scheduled cleanup sweeps the platform
// needs to keep its append-only tables bounded: raw sample retention on
// runs, and fetch-attempt ledger retention. Both run as cron.v3 jobs rather
// than queue jobs, since they are wall-clock scheduled and singleton by
// nature, not per-entity work items like rules-run.
package maintenance

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	rawSampleCleanupSpec     = "30 3 * * *" // daily 03:30 UTC
	fetchAttemptsCleanupSpec = "0 4 * * *"  // daily 04:00 UTC
	fetchAttemptsBatchSize   = 10_000
)

// Store is the persistence port both sweeps use.
type Store interface {
	// DeleteRawSamplesOlderThan clears Run.rawSample for runs started
	// before cutoff, returning how many rows were cleared.
	DeleteRawSamplesOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	// DeleteFetchAttemptsOlderThanBatch deletes up to batchSize
	// fetch_attempts rows older than cutoff, returning how many rows were
	// actually deleted (less than batchSize signals the table is drained).
	DeleteFetchAttemptsOlderThanBatch(ctx context.Context, cutoff time.Time, batchSize int) (int64, error)
}

// Clock abstracts time for deterministic cutoff computation in tests.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

const (
	rawSampleRetention    = 7 * 24 * time.Hour
	fetchAttemptRetention = 30 * 24 * time.Hour
)

// Scheduler wraps a cron.Cron instance running the two sweeps.
type Scheduler struct {
	cron  *cron.Cron
	store Store
	clock Clock
	log   *slog.Logger
}

func New(store Store, clock Clock, log *slog.Logger) *Scheduler {
	if clock == nil {
		clock = realClock{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		cron:  cron.New(cron.WithLocation(time.UTC)),
		store: store, clock: clock, log: log,
	}
}

// Start registers both sweeps and begins the cron scheduler's goroutine.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(rawSampleCleanupSpec, func() { s.runRawSampleCleanup(ctx) }); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(fetchAttemptsCleanupSpec, func() { s.runFetchAttemptsCleanup(ctx) }); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop halts the scheduler and waits for any in-flight sweep to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) runRawSampleCleanup(ctx context.Context) {
	cutoff := s.clock.Now().Add(-rawSampleRetention)
	cleared, err := s.store.DeleteRawSamplesOlderThan(ctx, cutoff)
	if err != nil {
		s.log.Error("maintenance: rawsample cleanup failed", "error", err)
		return
	}
	s.log.Info("maintenance: rawsample cleanup complete", "cleared", cleared, "cutoff", cutoff)
}

// runFetchAttemptsCleanup loops in fixed-size batches until a partial (or
// empty) batch comes back, so a single sweep never holds one enormous
// transaction against the ledger table.
func (s *Scheduler) runFetchAttemptsCleanup(ctx context.Context) {
	cutoff := s.clock.Now().Add(-fetchAttemptRetention)
	total := int64(0)
	for {
		deleted, err := s.store.DeleteFetchAttemptsOlderThanBatch(ctx, cutoff, fetchAttemptsBatchSize)
		if err != nil {
			s.log.Error("maintenance: fetch-attempts cleanup failed", "error", err, "deletedSoFar", total)
			return
		}
		total += deleted
		if deleted < fetchAttemptsBatchSize {
			break
		}
	}
	s.log.Info("maintenance: fetch-attempts cleanup complete", "deleted", total, "cutoff", cutoff)
}
