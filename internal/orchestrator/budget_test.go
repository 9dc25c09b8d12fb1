package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/fabianmarian8/sentinel-sub000/internal/models"
)

type staticLedger struct {
	workspaceUSD, domainUSD, ruleUSD float64
}

func (l staticLedger) DailySpend(context.Context, string, string, string, string) (float64, float64, float64, error) {
	return l.workspaceUSD, l.domainUSD, l.ruleUSD, nil
}

func TestCanSpendAllowsWhenUnderAllCaps(t *testing.T) {
	guard := NewBudgetGuard(staticLedger{workspaceUSD: 1, domainUSD: 0.1, ruleUSD: 0.1}, models.DefaultBudgetCaps())
	status, err := guard.CanSpend(context.Background(), "ws1", "example.com", "rule1", time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !status.CanSpendPaid {
		t.Fatalf("expected spend to be allowed, got reason %q", status.Reason)
	}
}

func TestCanSpendBlocksAtRuleCap(t *testing.T) {
	caps := models.DefaultBudgetCaps()
	guard := NewBudgetGuard(staticLedger{ruleUSD: caps.RulePerDayUSD}, caps)
	status, err := guard.CanSpend(context.Background(), "ws1", "example.com", "rule1", time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.CanSpendPaid {
		t.Fatalf("expected spend to be blocked at rule cap")
	}
}

func TestCanSpendBlocksAtWorkspaceCapBeforeDomainOrRule(t *testing.T) {
	caps := models.DefaultBudgetCaps()
	guard := NewBudgetGuard(staticLedger{workspaceUSD: caps.WorkspacePerDayUSD}, caps)
	status, err := guard.CanSpend(context.Background(), "ws1", "example.com", "rule1", time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.CanSpendPaid {
		t.Fatalf("expected spend to be blocked at workspace cap")
	}
	if status.Reason == "" {
		t.Fatalf("expected a human-readable reason")
	}
}
