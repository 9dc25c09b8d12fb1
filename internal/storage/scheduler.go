package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/fabianmarian8/sentinel-sub000/internal/scheduler"
)

var _ scheduler.Store = (*SchedulerStore)(nil)

// SelectDue returns up to batchSize rules whose nextRunAt has elapsed,
// joined to their source for domain grouping.
func (s *SchedulerStore) SelectDue(ctx context.Context, now time.Time, batchSize int) ([]scheduler.ClaimedRule, error) {
	rows, err := s.pool.db.Query(ctx, `
		select r.id, s.domain
		from rules r
		join sources s on s.id = r.source_id
		where r.enabled and r.next_run_at <= $1
		order by r.next_run_at
		limit $2`, now, batchSize)
	if err != nil {
		return nil, fmt.Errorf("storage: select due rules: %w", err)
	}
	defer rows.Close()

	var due []scheduler.ClaimedRule
	for rows.Next() {
		var r scheduler.ClaimedRule
		if err := rows.Scan(&r.RuleID, &r.Domain); err != nil {
			return nil, fmt.Errorf("storage: scan due rule: %w", err)
		}
		due = append(due, r)
	}
	return due, rows.Err()
}

// Claim atomically marks the given rules as in-flight by pushing their
// nextRunAt far enough out that a concurrent tick won't reselect them
// before this tick's enqueue (or reschedule) actually lands, then reports
// which ids the update actually touched.
func (s *SchedulerStore) Claim(ctx context.Context, now time.Time, ruleIDs []string) ([]string, error) {
	rows, err := s.pool.db.Query(ctx, `
		update rules set next_run_at = $2 + interval '365 days'
		where id = any($1) and next_run_at <= $2
		returning id`, ruleIDs, now)
	if err != nil {
		return nil, fmt.Errorf("storage: claim due rules: %w", err)
	}
	defer rows.Close()

	var claimed []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("storage: scan claimed rule: %w", err)
		}
		claimed = append(claimed, id)
	}
	return claimed, rows.Err()
}

// RescheduleNext sets a successfully-enqueued rule's real next run time.
func (s *SchedulerStore) RescheduleNext(ctx context.Context, ruleID string, nextRunAt time.Time) error {
	_, err := s.pool.db.Exec(ctx, `update rules set next_run_at = $2 where id = $1`, ruleID, nextRunAt)
	if err != nil {
		return fmt.Errorf("storage: reschedule rule %s: %w", ruleID, err)
	}
	return nil
}

// RescheduleRetry sets a short retry time after a failed enqueue, distinct
// from RescheduleNext so the scheduler's retry cadence never touches the
// rule's configured interval or jitter.
func (s *SchedulerStore) RescheduleRetry(ctx context.Context, ruleID string, nextRunAt time.Time) error {
	return s.RescheduleNext(ctx, ruleID, nextRunAt)
}
