// Package queue implements the redis-backed work queues for rules-run,
// alerts-dispatch, and maintenance, with bounded retry/backoff bookkeeping
// on top of the go-redis client already wired for the alert cooldown gate.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fabianmarian8/sentinel-sub000/internal/runprocessor"
	"github.com/fabianmarian8/sentinel-sub000/internal/scheduler"
)

const (
	RemoveOnCompleteAge = 86400 * time.Second
	RemoveOnFailAge     = 604800 * time.Second
	MaxAttempts         = 3
	BackoffBase         = 2000 * time.Millisecond
)

const (
	streamRunsReady    = "queue:rules-run:ready"
	zsetRunsDelayed    = "queue:rules-run:delayed"
	streamAlerts       = "queue:alerts-dispatch:ready"
	streamMaintenance  = "queue:maintenance:ready"
)

// Client is the minimal redis surface the queue needs, narrowed so it can
// be faked in tests without a live redis connection.
type Client interface {
	ZAdd(ctx context.Context, key string, members ...redis.Z) *redis.IntCmd
	ZRangeByScore(ctx context.Context, key string, opt *redis.ZRangeBy) *redis.StringSliceCmd
	ZRem(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	BRPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
}

// Clock abstracts time for deterministic job-ID generation and delay math.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Job is the envelope persisted for every queue entry: enough metadata to
// honor attempts/backoff/removal job options without a separate bookkeeping
// table.
type Job[T any] struct {
	ID         string    `json:"id"`
	Payload    T         `json:"payload"`
	Attempt    int       `json:"attempt"`
	EnqueuedAt time.Time `json:"enqueuedAt"`
}

// Queue wires runprocessor.Queue and scheduler.Enqueuer against redis.
type Queue struct {
	client Client
	clock  Clock
}

var (
	_ runprocessor.Queue    = (*Queue)(nil)
	_ scheduler.Enqueuer    = (*Queue)(nil)
)

func New(client Client, clock Clock) *Queue {
	if clock == nil {
		clock = realClock{}
	}
	return &Queue{client: client, clock: clock}
}

// nextJobID builds a stable, inspectable key of the form
// <entityId>:<monotonicSuffix> that stays unique per enqueue.
func (q *Queue) nextJobID(ctx context.Context, entityID string) (string, error) {
	seq, err := q.client.Incr(ctx, fmt.Sprintf("queue:seq:%s", entityID)).Result()
	if err != nil {
		return "", fmt.Errorf("queue: allocate job id: %w", err)
	}
	return fmt.Sprintf("%s:%d", entityID, seq), nil
}

// EnqueueScheduledRun pushes a fresh rules-run job for a rule the scheduler
// just claimed.
func (q *Queue) EnqueueScheduledRun(ctx context.Context, ruleID string) error {
	job := runprocessor.JobInput{RuleID: ruleID, Trigger: runprocessor.TriggerSchedule, RequestedAt: q.clock.Now()}
	return q.pushReady(ctx, streamRunsReady, ruleID, job)
}

// EnqueueRunRetry re-enqueues a job after a rate-limit or timeout outcome,
// honoring the delay the run processor computed.
func (q *Queue) EnqueueRunRetry(ctx context.Context, job runprocessor.JobInput, delay time.Duration) error {
	id, err := q.nextJobID(ctx, job.RuleID)
	if err != nil {
		return err
	}
	envelope := Job[runprocessor.JobInput]{ID: id, Payload: job, Attempt: job.RateLimitRetryCount + job.TimeoutRetryCount, EnqueuedAt: q.clock.Now()}
	raw, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("queue: marshal retry job: %w", err)
	}
	runAt := q.clock.Now().Add(delay)
	return q.client.ZAdd(ctx, zsetRunsDelayed, redis.Z{Score: float64(runAt.UnixMilli()), Member: raw}).Err()
}

// EnqueueAlertDispatch hands a confirmed alert to the notification workers.
func (q *Queue) EnqueueAlertDispatch(ctx context.Context, payload runprocessor.AlertDispatchPayload) error {
	return q.pushReady(ctx, streamAlerts, payload.AlertID, payload)
}

// EnqueueMaintenance schedules a maintenance sweep (rawsample-cleanup,
// fetch-attempts-cleanup); name identifies which cron job produced it.
func (q *Queue) EnqueueMaintenance(ctx context.Context, name string, cursor string) error {
	return q.pushReady(ctx, streamMaintenance, name, map[string]string{"job": name, "cursor": cursor})
}

func (q *Queue) pushReady(ctx context.Context, stream, entityID string, payload interface{}) error {
	id, err := q.nextJobID(ctx, entityID)
	if err != nil {
		return err
	}
	envelope := struct {
		ID         string      `json:"id"`
		Payload    interface{} `json:"payload"`
		EnqueuedAt time.Time   `json:"enqueuedAt"`
	}{ID: id, Payload: payload, EnqueuedAt: q.clock.Now()}
	raw, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("queue: marshal job %s: %w", id, err)
	}
	return q.client.LPush(ctx, stream, raw).Err()
}

// PromoteDue moves delayed jobs whose runAt has elapsed onto the ready
// stream; call periodically from the worker process alongside the scheduler
// tick loop.
func (q *Queue) PromoteDue(ctx context.Context, now time.Time) (int, error) {
	due, err := q.client.ZRangeByScore(ctx, zsetRunsDelayed, &redis.ZRangeBy{
		Min: "-inf", Max: fmt.Sprintf("%d", now.UnixMilli()),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("queue: scan delayed runs: %w", err)
	}
	for _, raw := range due {
		if err := q.client.RPush(ctx, streamRunsReady, raw).Err(); err != nil {
			return 0, fmt.Errorf("queue: promote delayed run: %w", err)
		}
		if err := q.client.ZRem(ctx, zsetRunsDelayed, raw).Err(); err != nil {
			return 0, fmt.Errorf("queue: remove promoted run: %w", err)
		}
	}
	return len(due), nil
}

// DequeueRun blocks until a rules-run job is ready or timeout elapses.
func (q *Queue) DequeueRun(ctx context.Context, timeout time.Duration) (runprocessor.JobInput, bool, error) {
	result, err := q.client.BRPop(ctx, timeout, streamRunsReady).Result()
	if err == redis.Nil {
		return runprocessor.JobInput{}, false, nil
	}
	if err != nil {
		return runprocessor.JobInput{}, false, fmt.Errorf("queue: dequeue run: %w", err)
	}
	var envelope struct {
		Payload runprocessor.JobInput `json:"payload"`
	}
	if err := json.Unmarshal([]byte(result[1]), &envelope); err != nil {
		return runprocessor.JobInput{}, false, fmt.Errorf("queue: decode run job: %w", err)
	}
	return envelope.Payload, true, nil
}

// BackoffDelay returns the exponential backoff delay for the given attempt
// number (1-indexed), starting at BackoffBase and doubling each attempt.
func BackoffDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := BackoffBase
	for i := 1; i < attempt; i++ {
		delay *= 2
	}
	return delay
}
