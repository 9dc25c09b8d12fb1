// Package storage implements every persistence port (runprocessor,
// antiflap, orchestrator, scheduler) against PostgreSQL via pgx, wrapping a
// pooled client behind small, purpose-built repository types rather than
// one monolithic DAO.
package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Pool wraps a pgxpool.Pool and provides the withTx transaction helper;
// the repositories in this package issue single statements and do not
// call it.
type Pool struct {
	db *pgxpool.Pool
}

func Open(ctx context.Context, databaseURL string) (*Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("storage: parse database url: %w", err)
	}
	db, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("storage: connect: %w", err)
	}
	return &Pool{db: db}, nil
}

func NewFromPool(db *pgxpool.Pool) *Pool {
	return &Pool{db: db}
}

func (p *Pool) Close() {
	p.db.Close()
}

// withTx runs fn inside a transaction, committing on success and rolling
// back on any error or panic.
func (p *Pool) withTx(ctx context.Context, fn func(tx pgx.Tx) error) (err error) {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("storage: begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		err = tx.Commit(ctx)
	}()
	return fn(tx)
}

// RuleRepository exposes rule/source/workspace reads and mutations.
type RuleRepository struct{ pool *Pool }

func NewRuleRepository(pool *Pool) *RuleRepository { return &RuleRepository{pool: pool} }

// RunRepository persists immutable run and observation records.
type RunRepository struct{ pool *Pool }

func NewRunRepository(pool *Pool) *RunRepository { return &RunRepository{pool: pool} }

// AlertRepository persists deduplicated alerts.
type AlertRepository struct{ pool *Pool }

func NewAlertRepository(pool *Pool) *AlertRepository { return &AlertRepository{pool: pool} }

// RuleStateStore persists anti-flap state under optimistic concurrency.
type RuleStateStore struct{ pool *Pool }

func NewRuleStateStore(pool *Pool) *RuleStateStore { return &RuleStateStore{pool: pool} }

// BudgetLedger aggregates today's fetch-attempt spend for the budget guard.
type BudgetLedger struct{ pool *Pool }

func NewBudgetLedger(pool *Pool) *BudgetLedger { return &BudgetLedger{pool: pool} }

// AttemptWriter appends to the fetch-attempt ledger.
type AttemptWriter struct{ pool *Pool }

func NewAttemptWriter(pool *Pool) *AttemptWriter { return &AttemptWriter{pool: pool} }

// SchedulerStore backs the scheduler's atomic claim loop.
type SchedulerStore struct{ pool *Pool }

func NewSchedulerStore(pool *Pool) *SchedulerStore { return &SchedulerStore{pool: pool} }
