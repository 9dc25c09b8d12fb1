package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/fabianmarian8/sentinel-sub000/internal/models"
)

// BudgetLedger aggregates today's UTC spend across the three scopes the
// budget guard enforces. Backed by internal/storage's
// FetchAttempt repository in production.
type BudgetLedger interface {
	DailySpend(ctx context.Context, workspaceID, domain, ruleID string, day string) (workspaceUSD, domainUSD, ruleUSD float64, err error)
}

// BudgetGuard enforces the three daily caps against the FetchAttempt ledger.
type BudgetGuard struct {
	ledger BudgetLedger
	caps   models.BudgetCaps
}

func NewBudgetGuard(ledger BudgetLedger, caps models.BudgetCaps) *BudgetGuard {
	return &BudgetGuard{ledger: ledger, caps: caps}
}

// SpendStatus is the result of a canSpend check.
type SpendStatus struct {
	CanSpendPaid bool
	Reason       string
	WorkspaceUSD float64
	DomainUSD    float64
	RuleUSD      float64
}

// CanSpend reports whether a paid provider may still be used for
// (workspaceID, domain, ruleID) today. Free providers are always
// admissible and never call this.
func (g *BudgetGuard) CanSpend(ctx context.Context, workspaceID, domain, ruleID string, now time.Time) (SpendStatus, error) {
	day := now.UTC().Format("2006-01-02")
	ws, dom, rule, err := g.ledger.DailySpend(ctx, workspaceID, domain, ruleID, day)
	if err != nil {
		return SpendStatus{}, fmt.Errorf("budget guard: daily spend query: %w", err)
	}

	status := SpendStatus{CanSpendPaid: true, WorkspaceUSD: ws, DomainUSD: dom, RuleUSD: rule}

	switch {
	case ws >= g.caps.WorkspacePerDayUSD:
		status.CanSpendPaid = false
		status.Reason = fmt.Sprintf("workspace daily cap $%.2f reached ($%.2f spent)", g.caps.WorkspacePerDayUSD, ws)
	case dom >= g.caps.DomainPerDayUSD:
		status.CanSpendPaid = false
		status.Reason = fmt.Sprintf("domain daily cap $%.2f reached ($%.2f spent)", g.caps.DomainPerDayUSD, dom)
	case rule >= g.caps.RulePerDayUSD:
		status.CanSpendPaid = false
		status.Reason = fmt.Sprintf("rule daily cap $%.2f reached ($%.2f spent)", g.caps.RulePerDayUSD, rule)
	}

	return status, nil
}
