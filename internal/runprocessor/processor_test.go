package runprocessor

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fabianmarian8/sentinel-sub000/internal/alerts"
	"github.com/fabianmarian8/sentinel-sub000/internal/extraction"
	"github.com/fabianmarian8/sentinel-sub000/internal/models"
	"github.com/fabianmarian8/sentinel-sub000/internal/orchestrator"
	"github.com/fabianmarian8/sentinel-sub000/internal/provider"
	"github.com/fabianmarian8/sentinel-sub000/internal/ratelimit"
	"github.com/fabianmarian8/sentinel-sub000/internal/tierpolicy"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

type orchClock struct{ now time.Time }

func (c *orchClock) Now() time.Time { return c.now }

type fakeRuleLoader struct {
	rule      models.Rule
	source    models.Source
	profile   models.FetchProfile
	workspace models.Workspace
}

func (f *fakeRuleLoader) Load(_ context.Context, _ string) (models.Rule, models.Source, models.FetchProfile, models.Workspace, error) {
	return f.rule, f.source, f.profile, f.workspace, nil
}

type fakeRuleUpdater struct {
	healthScore   int
	lastErrorCode *models.ErrorCode
	throttled     bool
	healedTo      string
}

func (f *fakeRuleUpdater) UpdateHealth(_ context.Context, _ string, healthScore int, lastErrorCode *models.ErrorCode, _ *time.Time) error {
	f.healthScore = healthScore
	f.lastErrorCode = lastErrorCode
	return nil
}
func (f *fakeRuleUpdater) UpdateSelectorFingerprint(_ context.Context, _ string, selector string, _ models.SelectorFingerprint) error {
	f.healedTo = selector
	return nil
}
func (f *fakeRuleUpdater) UpdateSchemaFingerprint(context.Context, string, models.SchemaFingerprint) error {
	return nil
}
func (f *fakeRuleUpdater) ApplyAutoThrottle(context.Context, string, int, time.Time, models.Schedule) error {
	f.throttled = true
	return nil
}

type fakeRunRepo struct {
	created []models.Run
	final   models.Run
}

func (f *fakeRunRepo) CreateRun(_ context.Context, run models.Run) error {
	f.created = append(f.created, run)
	return nil
}
func (f *fakeRunRepo) FinishRun(_ context.Context, run models.Run) error {
	f.final = run
	return nil
}

type fakeObservationRepo struct{ inserted []models.Observation }

func (f *fakeObservationRepo) Insert(_ context.Context, obs models.Observation) error {
	f.inserted = append(f.inserted, obs)
	return nil
}

type fakeAlertRepo struct {
	inserted []models.Alert
	seen     map[string]bool
}

func (f *fakeAlertRepo) Insert(_ context.Context, alert models.Alert) (bool, error) {
	if f.seen == nil {
		f.seen = make(map[string]bool)
	}
	if f.seen[alert.DedupeKey] {
		return false, nil
	}
	f.seen[alert.DedupeKey] = true
	f.inserted = append(f.inserted, alert)
	return true, nil
}
func (f *fakeAlertRepo) RefreshTriggeredAt(context.Context, string, string, time.Time) error { return nil }

func (f *fakeAlertRepo) ExistsAny(_ context.Context, dedupeKeys []string) (bool, error) {
	for _, k := range dedupeKeys {
		if f.seen[k] {
			return true, nil
		}
	}
	return false, nil
}

type fakeRuleStateStore struct{ state models.RuleState }

func (f *fakeRuleStateStore) Load(string) (models.RuleState, error) { return f.state, nil }
func (f *fakeRuleStateStore) CompareAndSwap(_ string, expectedVersion int64, next models.RuleState) (bool, error) {
	if expectedVersion != f.state.Version {
		return false, nil
	}
	f.state = next
	return true, nil
}

type fakeQueue struct {
	retries   []JobInput
	dispatches []AlertDispatchPayload
}

func (f *fakeQueue) EnqueueRunRetry(_ context.Context, job JobInput, _ time.Duration) error {
	f.retries = append(f.retries, job)
	return nil
}
func (f *fakeQueue) EnqueueAlertDispatch(_ context.Context, payload AlertDispatchPayload) error {
	f.dispatches = append(f.dispatches, payload)
	return nil
}

type fakeAdapter struct {
	kind   models.ProviderKind
	result models.FetchResult
}

func (a *fakeAdapter) Kind() models.ProviderKind { return a.kind }
func (a *fakeAdapter) Fetch(context.Context, models.FetchRequest) (models.FetchResult, error) {
	return a.result, nil
}

type unlimitedBudget struct{}

func (unlimitedBudget) DailySpend(context.Context, string, string, string, string) (float64, float64, float64, error) {
	return 0, 0, 0, nil
}

type noopAttemptWriter struct{}

func (noopAttemptWriter) WriteAttempt(context.Context, models.FetchAttempt) error { return nil }

func newTestProcessor(t *testing.T, rule models.Rule, body string, now time.Time) (*Processor, *fakeRuleUpdater, *fakeAlertRepo, *fakeRuleStateStore, *fakeQueue) {
	t.Helper()
	source := models.Source{ID: "src1", WorkspaceID: "ws1", URL: "https://example.com/product"}
	profile := models.FetchProfile{DomainTier: models.TierA}
	workspace := models.Workspace{ID: "ws1", Timezone: "UTC"}

	loader := &fakeRuleLoader{rule: rule, source: source, profile: profile, workspace: workspace}
	ruleUpdater := &fakeRuleUpdater{healthScore: rule.HealthScore}
	runs := &fakeRunRepo{}
	observations := &fakeObservationRepo{}
	alertRepo := &fakeAlertRepo{}
	states := &fakeRuleStateStore{}
	queue := &fakeQueue{}
	cooldown := alerts.NewCooldown(&fakeRedisClientForProcessor{})

	adapter := &fakeAdapter{kind: models.ProviderHTTP, result: models.FetchResult{Outcome: models.OutcomeOK, BodyText: body}}
	registry := provider.NewRegistry(adapter)
	limiter := ratelimit.NewLimiter(&orchClock{now: now}, nil)
	guard := orchestrator.NewBudgetGuard(unlimitedBudget{}, models.DefaultBudgetCaps())
	orch := orchestrator.New(registry, limiter, guard, orchestrator.DefaultCostTable(), noopAttemptWriter{}, &orchClock{now: now})

	extractor := extraction.NewExtractor(&extractClockAdapter{now: now}, false)

	p := New(loader, ruleUpdater, runs, observations, alertRepo, states, cooldown, queue, orch,
		orchestrator.Config{AllowPaid: true}, tierpolicy.NewDefaults(), extractor, nil, &fakeClock{now: now})

	return p, ruleUpdater, alertRepo, states, queue
}

type extractClockAdapter struct{ now time.Time }

func (c *extractClockAdapter) Now() time.Time { return c.now }

type fakeRedisClientForProcessor struct{ locked map[string]time.Duration }

func (f *fakeRedisClientForProcessor) SetNX(ctx context.Context, key string, _ interface{}, expiration time.Duration) *redis.BoolCmd {
	cmd := redis.NewBoolCmd(ctx)
	if f.locked == nil {
		f.locked = make(map[string]time.Duration)
	}
	if _, exists := f.locked[key]; exists {
		cmd.SetVal(false)
		return cmd
	}
	f.locked[key] = expiration
	cmd.SetVal(true)
	return cmd
}

func (f *fakeRedisClientForProcessor) TTL(ctx context.Context, key string) *redis.DurationCmd {
	cmd := redis.NewDurationCmd(ctx, time.Second)
	ttl, ok := f.locked[key]
	if !ok {
		cmd.SetVal(-2 * time.Second)
		return cmd
	}
	cmd.SetVal(ttl)
	return cmd
}

func priceRule() models.Rule {
	return models.Rule{
		ID:       "rule-1",
		Name:     "Widget price",
		RuleType: models.RuleTypePrice,
		Extraction: models.ExtractionConfig{
			Method:   models.ExtractCSS,
			Selector: ".price",
		},
		Normalization: models.NormalizationConfig{RuleType: models.RuleTypePrice, Locale: "sk-SK"},
		Schedule:      models.Schedule{IntervalSeconds: 3600},
		Enabled:       true,
		HealthScore:   90,
	}
}

func TestProcessFreshObservationIsNotAChange(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	p, _, alertRepo, states, _ := newTestProcessor(t, priceRule(), `<span class="price">29,99 EUR</span>`, now)

	if err := p.Process(context.Background(), JobInput{RuleID: "rule-1", Trigger: TriggerSchedule}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if states.state.LastStable == nil {
		t.Fatalf("expected lastStable to be set after first run")
	}
	if len(alertRepo.inserted) != 0 {
		t.Fatalf("first sighting must never raise an alert")
	}
}

func priceDropRule() models.Rule {
	rule := priceRule()
	rule.AlertPolicy = models.AlertPolicy{
		Conditions: []models.AlertCondition{
			{ID: "cond-drop", Kind: models.CondPriceDropPercent, Threshold: 10, Severity: models.SeverityMedium},
		},
		Channels: []string{"webhook"},
	}
	return rule
}

// newTestProcessorWithAdapter is newTestProcessor plus the fake fetch adapter,
// so a test can swap the fetched body across successive Process calls.
func newTestProcessorWithAdapter(t *testing.T, rule models.Rule, body string, now time.Time) (*Processor, *fakeAlertRepo, *fakeQueue, *fakeAdapter) {
	t.Helper()
	source := models.Source{ID: "src1", WorkspaceID: "ws1", URL: "https://example.com/product"}
	profile := models.FetchProfile{DomainTier: models.TierA}
	workspace := models.Workspace{ID: "ws1", Timezone: "UTC"}

	loader := &fakeRuleLoader{rule: rule, source: source, profile: profile, workspace: workspace}
	ruleUpdater := &fakeRuleUpdater{healthScore: rule.HealthScore}
	runs := &fakeRunRepo{}
	observations := &fakeObservationRepo{}
	alertRepo := &fakeAlertRepo{}
	states := &fakeRuleStateStore{}
	queue := &fakeQueue{}
	cooldown := alerts.NewCooldown(&fakeRedisClientForProcessor{})

	adapter := &fakeAdapter{kind: models.ProviderHTTP, result: models.FetchResult{Outcome: models.OutcomeOK, BodyText: body}}
	registry := provider.NewRegistry(adapter)
	// The clock never advances, so the bucket must hold enough tokens for
	// every Process call a test makes.
	limiter := ratelimit.NewLimiter(&orchClock{now: now}, func(string, models.ProviderKind) models.RateLimitBucketConfig {
		return models.RateLimitBucketConfig{CapacityTokens: 100, RefillPerSec: 1}
	})
	guard := orchestrator.NewBudgetGuard(unlimitedBudget{}, models.DefaultBudgetCaps())
	orch := orchestrator.New(registry, limiter, guard, orchestrator.DefaultCostTable(), noopAttemptWriter{}, &orchClock{now: now})

	extractor := extraction.NewExtractor(&extractClockAdapter{now: now}, false)

	p := New(loader, ruleUpdater, runs, observations, alertRepo, states, cooldown, queue, orch,
		orchestrator.Config{AllowPaid: true}, tierpolicy.NewDefaults(), extractor, nil, &fakeClock{now: now})

	return p, alertRepo, queue, adapter
}

func TestProcessConfirmedPriceDropTriggersAlert(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	p, alertRepo, queue, adapter := newTestProcessorWithAdapter(t, priceDropRule(), `<span class="price">29,99 EUR</span>`, now)
	ctx := context.Background()
	job := JobInput{RuleID: "rule-1", Trigger: TriggerSchedule}

	if err := p.Process(ctx, job); err != nil {
		t.Fatalf("run 1 (establish stable): %v", err)
	}
	if len(alertRepo.inserted) != 0 {
		t.Fatalf("establishing the first stable value must never raise an alert")
	}

	adapter.result.BodyText = `<span class="price">24,99 EUR</span>`
	if err := p.Process(ctx, job); err != nil {
		t.Fatalf("run 2 (first candidate sighting): %v", err)
	}
	if len(alertRepo.inserted) != 0 {
		t.Fatalf("a single candidate sighting must not confirm a change yet")
	}

	if err := p.Process(ctx, job); err != nil {
		t.Fatalf("run 3 (second candidate sighting, confirms): %v", err)
	}
	if len(alertRepo.inserted) != 1 {
		t.Fatalf("expected exactly one alert after the drop is confirmed, got %d", len(alertRepo.inserted))
	}
	if len(queue.dispatches) != 1 {
		t.Fatalf("expected the confirmed alert to be enqueued for dispatch, got %d", len(queue.dispatches))
	}
}

func TestProcessDuplicateAlertSuppressedByDedupeKey(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	p, alertRepo, _, adapter := newTestProcessorWithAdapter(t, priceDropRule(), `<span class="price">29,99 EUR</span>`, now)
	ctx := context.Background()
	job := JobInput{RuleID: "rule-1", Trigger: TriggerSchedule}

	must := func(body string) {
		t.Helper()
		adapter.result.BodyText = body
		if err := p.Process(ctx, job); err != nil {
			t.Fatalf("process: %v", err)
		}
	}

	must(`<span class="price">29,99 EUR</span>`) // establishes stable 29.99
	must(`<span class="price">24,99 EUR</span>`) // candidate sighting 1
	must(`<span class="price">24,99 EUR</span>`) // confirms drop to 24.99, alert #1

	if len(alertRepo.inserted) != 1 {
		t.Fatalf("expected 1 alert after the first confirmed drop, got %d", len(alertRepo.inserted))
	}

	must(`<span class="price">29,99 EUR</span>`) // candidate sighting back up
	must(`<span class="price">29,99 EUR</span>`) // confirms rise back to 29.99, no drop alert
	must(`<span class="price">24,99 EUR</span>`) // candidate sighting 2
	must(`<span class="price">24,99 EUR</span>`) // confirms the *same* 29.99->24.99 drop again, same day

	if len(alertRepo.inserted) != 1 {
		t.Fatalf("expected the repeat drop to the same value on the same day to be deduped, got %d alerts", len(alertRepo.inserted))
	}
}

func TestHandleRateLimitedReenqueuesThenExhausts(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	ruleUpdater := &fakeRuleUpdater{}
	runs := &fakeRunRepo{}
	queue := &fakeQueue{}
	p := &Processor{
		ruleUpdater: ruleUpdater, runs: runs, queue: queue, clock: &fakeClock{now: now},
	}
	rule := priceRule()
	ctx := context.Background()

	job := JobInput{RuleID: rule.ID, Trigger: TriggerSchedule}
	for i := 0; i < maxRateLimitRetries; i++ {
		run := models.Run{ID: "run", RuleID: rule.ID}
		if err := p.handleRateLimited(ctx, job, run, rule); err != nil {
			t.Fatalf("retry %d: %v", i, err)
		}
		job = queue.retries[len(queue.retries)-1]
	}
	if len(queue.retries) != maxRateLimitRetries {
		t.Fatalf("expected %d re-enqueued retries, got %d", maxRateLimitRetries, len(queue.retries))
	}
	if runs.final.ErrorCode == nil || *runs.final.ErrorCode != models.ErrRateLimitedDeferred {
		t.Fatalf("expected each deferred retry to finish with ErrRateLimitedDeferred, got %v", runs.final.ErrorCode)
	}

	run := models.Run{ID: "run-final", RuleID: rule.ID}
	if err := p.handleRateLimited(ctx, job, run, rule); err != nil {
		t.Fatalf("final retry: %v", err)
	}
	if len(queue.retries) != maxRateLimitRetries {
		t.Fatalf("exhausted retries must not re-enqueue again, got %d entries", len(queue.retries))
	}
	if runs.final.ErrorCode == nil || *runs.final.ErrorCode != models.ErrRateLimitedMaxRetries {
		t.Fatalf("expected the exhausted run to finish with ErrRateLimitedMaxRetries, got %v", runs.final.ErrorCode)
	}
}

func TestHealSelectorRecordsHealingEvent(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	ruleUpdater := &fakeRuleUpdater{}
	extractor := extraction.NewExtractor(&extractClockAdapter{now: now}, false)
	p := &Processor{ruleUpdater: ruleUpdater, extractor: extractor, clock: &fakeClock{now: now}}

	rule := priceRule()
	extracted := models.ExtractionResult{UsedFallback: true, HealedTo: ".price-new", Similarity: 0.92}
	p.healSelector(context.Background(), rule, extracted)

	if ruleUpdater.healedTo != ".price-new" {
		t.Fatalf("expected the rule's selector to be updated to %q, got %q", ".price-new", ruleUpdater.healedTo)
	}
}

func TestCheckSchemaDriftAlertsOnShapeChange(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	alertRepo := &fakeAlertRepo{}
	ruleUpdater := &fakeRuleUpdater{}
	p := &Processor{alertRepo: alertRepo, ruleUpdater: ruleUpdater, clock: &fakeClock{now: now}}

	rule := priceRule()
	rule.SchemaFingerprint = &models.SchemaFingerprint{BlockCount: 2, ShapeHash: "aaaa"}

	p.checkSchemaDrift(context.Background(), rule, models.SchemaFingerprint{BlockCount: 3, ShapeHash: "bbbb"})

	if len(alertRepo.inserted) != 1 {
		t.Fatalf("expected a schema drift alert, got %d", len(alertRepo.inserted))
	}
	if alertRepo.inserted[0].AlertType != models.CondSchemaDrift {
		t.Fatalf("expected alert type %q, got %q", models.CondSchemaDrift, alertRepo.inserted[0].AlertType)
	}

	// Same shape hash the second time around: no new alert, fingerprint unchanged.
	p.checkSchemaDrift(context.Background(), rule, models.SchemaFingerprint{BlockCount: 3, ShapeHash: "bbbb"})
	rule.SchemaFingerprint = &models.SchemaFingerprint{BlockCount: 3, ShapeHash: "bbbb"}
	p.checkSchemaDrift(context.Background(), rule, models.SchemaFingerprint{BlockCount: 3, ShapeHash: "bbbb"})
	if len(alertRepo.inserted) != 1 {
		t.Fatalf("an unchanged shape hash must not raise a second alert, got %d total", len(alertRepo.inserted))
	}
}
