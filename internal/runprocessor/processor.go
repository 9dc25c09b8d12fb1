package runprocessor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/fabianmarian8/sentinel-sub000/internal/alerts"
	"github.com/fabianmarian8/sentinel-sub000/internal/antiflap"
	"github.com/fabianmarian8/sentinel-sub000/internal/extraction"
	"github.com/fabianmarian8/sentinel-sub000/internal/models"
	"github.com/fabianmarian8/sentinel-sub000/internal/normalize"
	"github.com/fabianmarian8/sentinel-sub000/internal/orchestrator"
	"github.com/fabianmarian8/sentinel-sub000/internal/tierpolicy"
)

// Trigger names what caused a run.
type Trigger string

const (
	TriggerSchedule Trigger = "schedule"
	TriggerManual   Trigger = "manual"
	TriggerWebhook  Trigger = "webhook"
	TriggerRetry    Trigger = "retry"
)

// JobInput is the rules-run queue payload.
type JobInput struct {
	RuleID              string
	Trigger             Trigger
	RequestedAt         time.Time
	ForceMode           *string
	Debug               bool
	RateLimitRetryCount int
	TimeoutRetryCount   int
}

const (
	maxRateLimitRetries = 2
	maxTimeoutRetries   = 1
	rateLimitBaseDelay  = 60 * time.Second
	rateLimitStep       = 60 * time.Second
	rateLimitJitterMax  = 30 * time.Second
	timeoutRetryDelay   = 30 * time.Second
	rawSampleMaxBytes   = 64 * 1024
)

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Processor runs the full per-rule pipeline: fetch, extract, normalize,
// confirm, and alert.
type Processor struct {
	rules        RuleLoader
	ruleUpdater  RuleUpdater
	runs         RunRepository
	observations ObservationRepository
	alertRepo    AlertRepository
	ruleStates   RuleStateStore
	cooldown     *alerts.Cooldown
	queue        Queue
	orchestrator *orchestrator.Orchestrator
	orchCfg      orchestrator.Config
	tierDefaults tierpolicy.Resolver
	extractor    *extraction.Extractor
	screenshots  ScreenshotCapturer
	clock        Clock
}

// New constructs a Processor. screenshots may be nil to skip step 10 entirely.
func New(
	rules RuleLoader,
	ruleUpdater RuleUpdater,
	runs RunRepository,
	observations ObservationRepository,
	alertRepo AlertRepository,
	ruleStates RuleStateStore,
	cooldown *alerts.Cooldown,
	queue Queue,
	orch *orchestrator.Orchestrator,
	orchCfg orchestrator.Config,
	tierDefaults tierpolicy.Resolver,
	extractor *extraction.Extractor,
	screenshots ScreenshotCapturer,
	clock Clock,
) *Processor {
	if clock == nil {
		clock = realClock{}
	}
	return &Processor{
		rules: rules, ruleUpdater: ruleUpdater, runs: runs, observations: observations,
		alertRepo: alertRepo, ruleStates: ruleStates, cooldown: cooldown, queue: queue,
		orchestrator: orch, orchCfg: orchCfg, tierDefaults: tierDefaults, extractor: extractor,
		screenshots: screenshots, clock: clock,
	}
}

// Process runs the pipeline for one rules-run job.
func (p *Processor) Process(ctx context.Context, job JobInput) error {
	rule, source, profile, workspace, err := p.rules.Load(ctx, job.RuleID)
	if err != nil {
		if errors.Is(err, models.ErrRuleNotFound) || errors.Is(err, models.ErrSourceNotFound) || errors.Is(err, models.ErrWorkspaceMissing) {
			return nil
		}
		return fmt.Errorf("runprocessor: load rule %s: %w", job.RuleID, err)
	}
	if !rule.Enabled {
		return nil
	}

	run := models.Run{ID: uuid.NewString(), RuleID: rule.ID, StartedAt: p.clock.Now()}
	if err := p.runs.CreateRun(ctx, run); err != nil {
		return fmt.Errorf("runprocessor: create run: %w", err)
	}

	policy := p.tierDefaults.Resolve(profile.DomainTier, tierpolicy.OverrideFromProfile(profile))

	req := models.FetchRequest{
		URL:                     source.URL,
		UserAgent:               profile.UserAgent,
		Headers:                 profile.Headers,
		Cookies:                 profile.Cookies,
		RenderWaitMs:            profile.RenderWaitMs,
		FlaresolverrWaitSeconds: profile.FlaresolverrWaitSeconds,
	}
	if profile.GeoCountry != nil {
		req.GeoCountry = *profile.GeoCountry
	}

	result, err := p.orchestrator.Fetch(ctx, req, policy, p.orchCfg, workspace.ID, rule.ID)
	if err != nil {
		return p.crash(ctx, run, rule, err)
	}

	switch result.Final.Outcome {
	case models.OutcomeRateLimited:
		return p.handleRateLimited(ctx, job, run, rule)
	case models.OutcomeTimeout:
		return p.handleTimeout(ctx, job, run, rule)
	case models.OutcomePreferredUnavailable:
		return p.finishTerminalError(ctx, run, rule, models.ErrPreferredProviderUnavailable, "preferred provider unavailable")
	case models.OutcomeOK:
		// fall through to extraction
	default:
		return p.finishTerminalError(ctx, run, rule, classifyFetchError(result.Final), joinSignals(result.Final.Signals))
	}

	if !rule.AutoThrottleDisabled && rule.Schedule.IntervalSeconds < 86400 {
		if signal := orchestrator.Throttle(result.Final); signal.ShouldThrottle {
			p.applyAutoThrottle(ctx, rule)
		}
	}

	run.FetchModeUsed = models.FetchMode(result.Final.Provider)
	run.HTTPStatus = result.Final.HTTPStatus
	run.BlockDetected = result.Final.BlockKind != nil

	extracted, err := p.extractor.Extract(result.Final.BodyText, rule.Extraction, rule.SelectorFingerprint)
	if err != nil {
		code := models.ErrExtractSelectorNotFound
		if rule.Extraction.Method == models.ExtractSchema {
			code = models.ErrExtractSchemaNotFound
		}
		return p.finishTerminalError(ctx, run, rule, code, err.Error())
	}

	if extracted.UsedFallback && extracted.HealedTo != "" {
		p.healSelector(ctx, rule, extracted)
	}
	if extracted.SchemaMeta != nil {
		p.checkSchemaDrift(ctx, rule, extracted.SchemaMeta.Fingerprint)
	}

	normalized, err := normalize.Normalize(extracted.RawValue, rule.Normalization, extracted.SchemaMeta)
	if err != nil {
		return p.finishTerminalError(ctx, run, rule, models.ErrParseError, err.Error())
	}

	prevState, err := p.ruleStates.Load(rule.ID)
	if err != nil {
		return p.crash(ctx, run, rule, fmt.Errorf("load rule state: %w", err))
	}

	_, confirmed, err := antiflap.Apply(p.ruleStates, rule.ID, normalized, antiflap.DefaultRequireConsecutive)
	if err != nil {
		return p.crash(ctx, run, rule, err)
	}

	changeKind := models.ChangeNone
	diffSummary := ""
	if confirmed {
		changeKind = classifyChange(prevState.LastStable, normalized)
		if prevState.LastStable != nil {
			diffSummary = normalize.DiffSummary(*prevState.LastStable, normalized)
		}
	}

	obs := models.Observation{
		ID:                  uuid.NewString(),
		RunID:               run.ID,
		RuleID:              rule.ID,
		ExtractedRaw:        extracted.RawValue,
		ExtractedNormalized: normalized,
		ChangeDetected:      confirmed,
		ChangeKind:          changeKind,
		DiffSummary:         diffSummary,
	}
	if err := p.observations.Insert(ctx, obs); err != nil {
		return fmt.Errorf("runprocessor: insert observation: %w", err)
	}

	finishedAt := p.clock.Now()
	run.FinishedAt = &finishedAt
	run.ContentHash = contentHash(result.Final.BodyText)
	if job.Debug {
		run.RawSample = boundedSample(result.Final.BodyText)
	}
	if err := p.runs.FinishRun(ctx, run); err != nil {
		return fmt.Errorf("runprocessor: finish run: %w", err)
	}

	usedFallback := len(result.Attempts) > 1
	newHealth := applyHealthDelta(rule.HealthScore, successHealthDelta(usedFallback))
	if err := p.ruleUpdater.UpdateHealth(ctx, rule.ID, newHealth, nil, nil); err != nil {
		return fmt.Errorf("runprocessor: update health: %w", err)
	}

	if confirmed {
		if err := p.evaluateAndAlert(ctx, rule, workspace, prevState.LastStable, normalized); err != nil {
			return fmt.Errorf("runprocessor: alert evaluation: %w", err)
		}
	}

	if rule.ScreenshotOnChange && confirmed && p.screenshots != nil {
		if path, err := p.screenshots.Capture(ctx, result.Final.BodyText, rule.Extraction.Selector); err == nil {
			run.ScreenshotPath = path
			_ = p.runs.FinishRun(ctx, run)
		}
	}

	return nil
}

func (p *Processor) evaluateAndAlert(ctx context.Context, rule models.Rule, workspace models.Workspace, previous *models.NormalizedValue, current models.NormalizedValue) error {
	hasPrevious := previous != nil
	prevValue := models.NormalizedValue{}
	if hasPrevious {
		prevValue = *previous
	}

	triggered, severity := alerts.Evaluate(rule.AlertPolicy.Conditions, prevValue, current, hasPrevious)
	if len(triggered) == 0 {
		return nil
	}

	conditionIDs := make([]string, len(triggered))
	for i, t := range triggered {
		conditionIDs[i] = t.Condition.ID
	}

	now := p.clock.Now()
	loc := workspace.Location()
	dayBucket := alerts.DayBucket(now, loc)
	repr := alerts.NormalizedValueRepr(string(current.RuleType), normalize.Render(current))
	dedupeKey := alerts.DedupeKey(rule.ID, conditionIDs, repr, dayBucket)

	candidateKeys := make([]string, 0, 2)
	for _, bucket := range alerts.CandidateBuckets(now, loc) {
		candidateKeys = append(candidateKeys, alerts.DedupeKey(rule.ID, conditionIDs, repr, bucket))
	}
	duplicate, err := p.alertRepo.ExistsAny(ctx, candidateKeys)
	if err != nil {
		return err
	}
	if duplicate {
		return nil
	}

	cooldown := time.Duration(rule.AlertPolicy.CooldownSeconds) * time.Second
	allowed, _ := p.cooldown.Acquire(ctx, rule.ID, cooldown, now)
	if !allowed {
		return nil
	}

	alert := models.Alert{
		ID:          uuid.NewString(),
		RuleID:      rule.ID,
		TriggeredAt: now,
		Severity:    severity,
		AlertType:   triggered[0].Condition.Kind,
		Title:       alertTitle(rule, triggered),
		Body:        normalize.DiffSummary(prevValue, current),
		DedupeKey:   dedupeKey,
	}
	inserted, err := p.alertRepo.Insert(ctx, alert)
	if err != nil {
		return err
	}
	if !inserted {
		return nil
	}

	if len(rule.AlertPolicy.Channels) > 0 {
		return p.queue.EnqueueAlertDispatch(ctx, AlertDispatchPayload{
			AlertID: alert.ID, WorkspaceID: workspace.ID, RuleID: rule.ID,
			Channels: rule.AlertPolicy.Channels, DedupeKey: dedupeKey,
		})
	}
	return nil
}

func (p *Processor) healSelector(ctx context.Context, rule models.Rule, extracted models.ExtractionResult) {
	fp := models.SelectorFingerprint{}
	if rule.SelectorFingerprint != nil {
		fp = *rule.SelectorFingerprint
	}
	event := p.extractor.NewHealingEvent(rule.Extraction.Selector, extracted.HealedTo, extracted.Similarity)
	fp.HealingHistory = append(fp.HealingHistory, event)
	_ = p.ruleUpdater.UpdateSelectorFingerprint(ctx, rule.ID, extracted.HealedTo, fp)
}

func (p *Processor) checkSchemaDrift(ctx context.Context, rule models.Rule, newFp models.SchemaFingerprint) {
	if rule.SchemaFingerprint == nil {
		_ = p.ruleUpdater.UpdateSchemaFingerprint(ctx, rule.ID, newFp)
		return
	}
	if rule.SchemaFingerprint.ShapeHash == newFp.ShapeHash {
		return
	}

	now := p.clock.Now()
	dedupeKey := fmt.Sprintf("schema_drift:%s:%s", rule.ID, newFp.ShapeHash)
	body := fmt.Sprintf("schema shape changed to %s (%d JSON-LD blocks)", newFp.ShapeHash, newFp.BlockCount)

	alert := models.Alert{
		ID: uuid.NewString(), RuleID: rule.ID, TriggeredAt: now,
		Severity: models.SeverityMedium, AlertType: models.CondSchemaDrift,
		Title: "Schema drift detected", Body: body, DedupeKey: dedupeKey,
	}
	inserted, err := p.alertRepo.Insert(ctx, alert)
	if err == nil && !inserted {
		_ = p.alertRepo.RefreshTriggeredAt(ctx, dedupeKey, body, now)
	}
	_ = p.ruleUpdater.UpdateSchemaFingerprint(ctx, rule.ID, newFp)
}

func (p *Processor) applyAutoThrottle(ctx context.Context, rule models.Rule) {
	nextRunAt := p.clock.Now().Add(24 * time.Hour)
	_ = p.ruleUpdater.ApplyAutoThrottle(ctx, rule.ID, 86400, nextRunAt, rule.Schedule)
}

func (p *Processor) handleRateLimited(ctx context.Context, job JobInput, run models.Run, rule models.Rule) error {
	retryCount := job.RateLimitRetryCount + 1
	if retryCount <= maxRateLimitRetries {
		delay := rateLimitBaseDelay + time.Duration(retryCount)*rateLimitStep + time.Duration(rand.Int63n(int64(rateLimitJitterMax)))
		next := job
		next.RateLimitRetryCount = retryCount
		next.Trigger = TriggerRetry
		if err := p.queue.EnqueueRunRetry(ctx, next, delay); err != nil {
			return fmt.Errorf("runprocessor: re-enqueue rate-limited job: %w", err)
		}
		return p.finishTerminalError(ctx, run, rule, models.ErrRateLimitedDeferred, fmt.Sprintf("retry %d scheduled in %s", retryCount, delay))
	}
	return p.finishTerminalError(ctx, run, rule, models.ErrRateLimitedMaxRetries, "rate limit retries exhausted")
}

func (p *Processor) handleTimeout(ctx context.Context, job JobInput, run models.Run, rule models.Rule) error {
	retryCount := job.TimeoutRetryCount + 1
	if retryCount <= maxTimeoutRetries {
		next := job
		next.TimeoutRetryCount = retryCount
		next.Trigger = TriggerRetry
		if err := p.queue.EnqueueRunRetry(ctx, next, timeoutRetryDelay); err != nil {
			return fmt.Errorf("runprocessor: re-enqueue timed-out job: %w", err)
		}
		return p.finishTerminalError(ctx, run, rule, models.ErrTimeoutRetryScheduled, fmt.Sprintf("retry %d scheduled in %s", retryCount, timeoutRetryDelay))
	}
	return p.finishTerminalError(ctx, run, rule, models.ErrFetchTimeout, "timeout retries exhausted")
}

// finishTerminalError finalizes a run with an errorCode and applies the
// matching health penalty.
func (p *Processor) finishTerminalError(ctx context.Context, run models.Run, rule models.Rule, code models.ErrorCode, detail string) error {
	now := p.clock.Now()
	run.FinishedAt = &now
	run.ErrorCode = &code
	run.ErrorDetail = detail
	if err := p.runs.FinishRun(ctx, run); err != nil {
		return fmt.Errorf("runprocessor: finish errored run: %w", err)
	}
	newHealth := applyHealthDelta(rule.HealthScore, errorHealthDelta(code))
	if err := p.ruleUpdater.UpdateHealth(ctx, rule.ID, newHealth, &code, &now); err != nil {
		return fmt.Errorf("runprocessor: update health after error: %w", err)
	}
	return nil
}

// crash finalizes a run as a fatal worker crash and propagates the error so
// the queue's retry policy takes over.
func (p *Processor) crash(ctx context.Context, run models.Run, rule models.Rule, cause error) error {
	code := models.ErrSystemWorkerCrash
	now := p.clock.Now()
	run.FinishedAt = &now
	run.ErrorCode = &code
	run.ErrorDetail = cause.Error()
	_ = p.runs.FinishRun(ctx, run)
	newHealth := applyHealthDelta(rule.HealthScore, errorHealthDelta(code))
	_ = p.ruleUpdater.UpdateHealth(ctx, rule.ID, newHealth, &code, &now)
	return fmt.Errorf("runprocessor: %s: %w", code, cause)
}

func classifyChange(prevStable *models.NormalizedValue, current models.NormalizedValue) models.ChangeKind {
	if prevStable == nil {
		return models.ChangeAppeared
	}
	switch current.RuleType {
	case models.RuleTypePrice:
		if current.PriceValue > prevStable.PriceValue {
			return models.ChangeIncreased
		}
		if current.PriceValue < prevStable.PriceValue {
			return models.ChangeDecreased
		}
	case models.RuleTypeNumber:
		if current.NumberValue > prevStable.NumberValue {
			return models.ChangeIncreased
		}
		if current.NumberValue < prevStable.NumberValue {
			return models.ChangeDecreased
		}
	case models.RuleTypeAvailability:
		if current.Availability == models.AvailabilityOutOfStock {
			return models.ChangeDisappeared
		}
		if prevStable.Availability == models.AvailabilityOutOfStock {
			return models.ChangeAppeared
		}
	}
	return models.ChangeOther
}

func classifyFetchError(result models.FetchResult) models.ErrorCode {
	switch result.Outcome {
	case models.OutcomeBlocked:
		if result.BlockKind != nil {
			switch *result.BlockKind {
			case models.BlockCloudflare:
				return models.ErrCloudflareBlock
			case models.BlockDatadome:
				return models.ErrDatadomeBlock
			case models.BlockCaptcha:
				return models.ErrBlockCaptchaSuspected
			}
		}
		return models.ErrBotDetection
	case models.OutcomeCaptchaRequired:
		return models.ErrBlockCaptchaSuspected
	case models.OutcomeInterstitialGeo:
		return models.ErrGeoBlock
	case models.OutcomeNetworkError:
		return models.ErrFetchConnection
	case models.OutcomeEmpty:
		return statusBasedError(result.HTTPStatus)
	default:
		return models.ErrUnknown
	}
}

func statusBasedError(status *int) models.ErrorCode {
	if status == nil {
		return models.ErrUnknown
	}
	switch {
	case *status >= 400 && *status < 500:
		return models.ErrFetchHTTP4xx
	case *status >= 500 && *status < 600:
		return models.ErrFetchHTTP5xx
	default:
		return models.ErrUnknown
	}
}

func joinSignals(signals []string) string {
	out := ""
	for i, s := range signals {
		if i > 0 {
			out += "; "
		}
		out += s
	}
	return out
}

func contentHash(body string) string {
	sum := sha256.Sum256([]byte(body))
	return hex.EncodeToString(sum[:])
}

func boundedSample(body string) []byte {
	if len(body) <= rawSampleMaxBytes {
		return []byte(body)
	}
	return []byte(body[:rawSampleMaxBytes])
}

func alertTitle(rule models.Rule, triggered []alerts.Triggered) string {
	if len(triggered) == 1 {
		return fmt.Sprintf("%s: %s", rule.Name, triggered[0].Condition.Kind)
	}
	return fmt.Sprintf("%s: %d conditions triggered", rule.Name, len(triggered))
}
