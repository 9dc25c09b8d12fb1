package storage

import (
	"context"
	"fmt"

	"github.com/fabianmarian8/sentinel-sub000/internal/models"
)

// DailySpend implements orchestrator.BudgetLedger by aggregating the
// fetch_attempts ledger for the given UTC day, scoped three ways at once so
// the budget guard can check all three caps from a single query.
func (b *BudgetLedger) DailySpend(ctx context.Context, workspaceID, domain, ruleID string, day string) (workspaceUSD, domainUSD, ruleUSD float64, err error) {
	row := b.pool.db.QueryRow(ctx, `
		select
		       coalesce(sum(cost_usd) filter (where workspace_id = $1), 0),
		       coalesce(sum(cost_usd) filter (where workspace_id = $1 and hostname = $2), 0),
		       coalesce(sum(cost_usd) filter (where rule_id = $3), 0)
		from fetch_attempts
		where workspace_id = $1 and created_at >= $4::date and created_at < $4::date + interval '1 day'`,
		workspaceID, domain, ruleID, day)

	if err := row.Scan(&workspaceUSD, &domainUSD, &ruleUSD); err != nil {
		return 0, 0, 0, fmt.Errorf("storage: daily spend for workspace %s: %w", workspaceID, err)
	}
	return workspaceUSD, domainUSD, ruleUSD, nil
}

// WriteAttempt implements orchestrator.AttemptWriter.
func (a *AttemptWriter) WriteAttempt(ctx context.Context, attempt models.FetchAttempt) error {
	_, err := a.pool.db.Exec(ctx, `
		insert into fetch_attempts (id, workspace_id, rule_id, hostname, provider, outcome, http_status, body_bytes, cost_usd, latency_ms, created_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		attempt.ID, attempt.WorkspaceID, attempt.RuleID, attempt.Hostname, attempt.Provider,
		attempt.Outcome, attempt.HTTPStatus, attempt.BodyBytes, attempt.CostUSD, attempt.LatencyMs, attempt.CreatedAt)
	if err != nil {
		return fmt.Errorf("storage: write fetch attempt %s: %w", attempt.ID, err)
	}
	return nil
}
