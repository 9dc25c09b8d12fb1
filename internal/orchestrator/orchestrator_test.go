package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/fabianmarian8/sentinel-sub000/internal/models"
	"github.com/fabianmarian8/sentinel-sub000/internal/provider"
	"github.com/fabianmarian8/sentinel-sub000/internal/ratelimit"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

type scriptedAdapter struct {
	kind    models.ProviderKind
	results []models.FetchResult
	errs    []error
	calls   int
}

func (a *scriptedAdapter) Kind() models.ProviderKind { return a.kind }

func (a *scriptedAdapter) Fetch(_ context.Context, _ models.FetchRequest) (models.FetchResult, error) {
	i := a.calls
	a.calls++
	if i >= len(a.results) {
		i = len(a.results) - 1
	}
	var err error
	if i < len(a.errs) {
		err = a.errs[i]
	}
	return a.results[i], err
}

type unlimitedLedger struct{}

func (unlimitedLedger) DailySpend(context.Context, string, string, string, string) (float64, float64, float64, error) {
	return 0, 0, 0, nil
}

type exhaustedLedger struct{ caps models.BudgetCaps }

func (l exhaustedLedger) DailySpend(context.Context, string, string, string, string) (float64, float64, float64, error) {
	return l.caps.WorkspacePerDayUSD, 0, 0, nil
}

type recordingWriter struct{ attempts []models.FetchAttempt }

func (w *recordingWriter) WriteAttempt(_ context.Context, a models.FetchAttempt) error {
	w.attempts = append(w.attempts, a)
	return nil
}

func newOrchestrator(t *testing.T, ledger BudgetLedger, adapters ...provider.Adapter) (*Orchestrator, *recordingWriter) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}
	limiter := ratelimit.NewLimiter(clock, nil)
	guard := NewBudgetGuard(ledger, models.DefaultBudgetCaps())
	writer := &recordingWriter{}
	registry := provider.NewRegistry(adapters...)
	return New(registry, limiter, guard, DefaultCostTable(), writer, clock), writer
}

func basicPolicy() models.TierPolicy {
	return models.TierPolicy{AllowPaid: true, TimeoutMs: 30000, SLOTarget: 0.95}
}

func TestFetchSucceedsOnFirstProvider(t *testing.T) {
	http := &scriptedAdapter{kind: models.ProviderHTTP, results: []models.FetchResult{{Outcome: models.OutcomeOK, BodyText: "ok"}}}
	o, writer := newOrchestrator(t, unlimitedLedger{}, http)

	res, err := o.Fetch(context.Background(), models.FetchRequest{URL: "https://example.com/x"}, basicPolicy(), Config{AllowPaid: true}, "ws1", "rule1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Final.Outcome != models.OutcomeOK {
		t.Fatalf("expected ok outcome, got %v", res.Final.Outcome)
	}
	if len(writer.attempts) != 1 {
		t.Fatalf("expected 1 recorded attempt, got %d", len(writer.attempts))
	}
}

func TestFetchFallsThroughFreeProvidersInOrder(t *testing.T) {
	http := &scriptedAdapter{kind: models.ProviderHTTP, results: []models.FetchResult{{Outcome: models.OutcomeBlocked}}}
	mobile := &scriptedAdapter{kind: models.ProviderMobileUA, results: []models.FetchResult{{Outcome: models.OutcomeOK}}}
	o, _ := newOrchestrator(t, unlimitedLedger{}, http, mobile)

	res, err := o.Fetch(context.Background(), models.FetchRequest{URL: "https://example.com/x"}, basicPolicy(), Config{}, "ws1", "rule1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Final.Outcome != models.OutcomeOK || res.Final.Provider != models.ProviderMobileUA {
		t.Fatalf("expected mobile_ua to succeed, got %+v", res.Final)
	}
	if len(res.Attempts) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(res.Attempts))
	}
}

func TestFetchPreferredUnavailableWhenBudgetExhausted(t *testing.T) {
	preferred := models.ProviderBrightdata
	policy := basicPolicy()
	policy.PreferredProvider = &preferred

	bright := &scriptedAdapter{kind: models.ProviderBrightdata, results: []models.FetchResult{{Outcome: models.OutcomeOK}}}
	o, _ := newOrchestrator(t, exhaustedLedger{caps: models.DefaultBudgetCaps()}, bright)

	res, err := o.Fetch(context.Background(), models.FetchRequest{URL: "https://example.com/x"}, policy, Config{AllowPaid: true}, "ws1", "rule1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Final.Outcome != models.OutcomePreferredUnavailable {
		t.Fatalf("expected preferred_unavailable, got %v", res.Final.Outcome)
	}
}

func TestFetchRateLimitedStopsImmediately(t *testing.T) {
	http := &scriptedAdapter{kind: models.ProviderHTTP, results: []models.FetchResult{{Outcome: models.OutcomeOK}}}
	o, writer := newOrchestrator(t, unlimitedLedger{}, http)

	for i := 0; i < 10; i++ {
		_, _, _ = o.limiter.ConsumeToken("example.com", models.ProviderHTTP)
	}

	res, err := o.Fetch(context.Background(), models.FetchRequest{URL: "https://example.com/x"}, basicPolicy(), Config{}, "ws1", "rule1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Final.Outcome != models.OutcomeRateLimited {
		t.Fatalf("expected rate_limited, got %v", res.Final.Outcome)
	}
	if len(writer.attempts) != 1 {
		t.Fatalf("expected exactly 1 recorded attempt on rate limit, got %d", len(writer.attempts))
	}
}

func TestFetchStopsAfterPreferredFailureWhenConfigured(t *testing.T) {
	preferred := models.ProviderHeadless
	policy := basicPolicy()
	policy.PreferredProvider = &preferred
	policy.StopAfterPreferredFailure = true

	headless := &scriptedAdapter{kind: models.ProviderHeadless, results: []models.FetchResult{{Outcome: models.OutcomeBlocked}}}
	http := &scriptedAdapter{kind: models.ProviderHTTP, results: []models.FetchResult{{Outcome: models.OutcomeOK}}}
	o, _ := newOrchestrator(t, unlimitedLedger{}, headless, http)

	res, err := o.Fetch(context.Background(), models.FetchRequest{URL: "https://example.com/x"}, policy, Config{}, "ws1", "rule1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Final.Outcome != models.OutcomeBlocked {
		t.Fatalf("expected to stop on preferred provider failure, got %v", res.Final.Outcome)
	}
	if http.calls != 0 {
		t.Fatalf("expected fallback http adapter to never be called")
	}
}

func TestThrottleOnlyFiresForPaidSuccess(t *testing.T) {
	free := Throttle(models.FetchResult{Outcome: models.OutcomeOK, Provider: models.ProviderHTTP})
	if free.ShouldThrottle {
		t.Fatalf("expected no throttle for free provider success")
	}

	paid := Throttle(models.FetchResult{Outcome: models.OutcomeOK, Provider: models.ProviderBrightdata})
	if !paid.ShouldThrottle || paid.MinIntervalSecs != autoThrottleMinIntervalSecs {
		t.Fatalf("expected throttle signal for paid success, got %+v", paid)
	}
}
