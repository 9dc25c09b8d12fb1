// Package orchestrator implements the fetch orchestrator:
// provider selection, fallback order, budget enforcement, and outcome
// classification, run as a single synchronous call per run rather than a
// streaming pipeline.
package orchestrator

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/fabianmarian8/sentinel-sub000/internal/models"
	"github.com/fabianmarian8/sentinel-sub000/internal/provider"
	"github.com/fabianmarian8/sentinel-sub000/internal/ratelimit"
)

// Config controls how aggressively the orchestrator falls back to paid
// providers.
type Config struct {
	MaxAttemptsPerRun int
	AllowPaid         bool
	DegradeToFreeOnly bool
	HardStopOnExceed  bool
}

// CostTable resolves a provider's constant per-request cost.
type CostTable interface {
	CostUSD(provider models.ProviderKind) float64
}

// AttemptWriter persists each FetchAttempt synchronously as the
// orchestrator works through the provider list.
type AttemptWriter interface {
	WriteAttempt(ctx context.Context, attempt models.FetchAttempt) error
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Result is the orchestrator's return value.
type Result struct {
	Final     models.FetchResult
	Attempts  []models.FetchAttempt
	RawSample []byte
}

// Orchestrator drives provider fallback for a single fetch.
type Orchestrator struct {
	registry *provider.Registry
	limiter  *ratelimit.Limiter
	budget   *BudgetGuard
	costs    CostTable
	ledger   AttemptWriter
	clock    Clock
}

func New(registry *provider.Registry, limiter *ratelimit.Limiter, budget *BudgetGuard, costs CostTable, ledger AttemptWriter, clock Clock) *Orchestrator {
	if clock == nil {
		clock = realClock{}
	}
	return &Orchestrator{registry: registry, limiter: limiter, budget: budget, costs: costs, ledger: ledger, clock: clock}
}

// Fetch runs the full provider-fallback algorithm: rate limiting, budget
// checks, and trying each provider in order until one succeeds.
func (o *Orchestrator) Fetch(ctx context.Context, req models.FetchRequest, policy models.TierPolicy, cfg Config, workspaceID, ruleID string) (Result, error) {
	domain, err := hostnameOf(req.URL)
	if err != nil {
		return Result{}, fmt.Errorf("orchestrator: %w: %v", models.ErrInvalidURL, err)
	}

	order, preferredUnavailableReason := o.buildOrder(policy, cfg)
	if policy.PreferredProvider != nil && preferredUnavailableReason != "" {
		final := models.FetchResult{Provider: *policy.PreferredProvider, Outcome: models.OutcomePreferredUnavailable, Signals: []string{preferredUnavailableReason}}
		return Result{Final: final}, nil
	}

	if policy.PreferredProvider != nil && policy.PreferredProvider.IsPaid() {
		status, err := o.budget.CanSpend(ctx, workspaceID, domain, ruleID, o.clock.Now())
		if err != nil {
			return Result{}, err
		}
		if !status.CanSpendPaid {
			final := models.FetchResult{Provider: *policy.PreferredProvider, Outcome: models.OutcomePreferredUnavailable, Signals: []string{status.Reason}}
			return Result{Final: final}, nil
		}
	}

	var attempts []models.FetchAttempt
	var lastFailed *models.FetchResult
	maxAttempts := cfg.MaxAttemptsPerRun
	if maxAttempts <= 0 {
		maxAttempts = len(order)
	}

	for i, kind := range order {
		if i >= maxAttempts {
			break
		}

		adapter, ok := o.registry.Get(kind)
		if !ok {
			continue
		}

		if kind.IsPaid() {
			status, err := o.budget.CanSpend(ctx, workspaceID, domain, ruleID, o.clock.Now())
			if err != nil {
				return Result{}, err
			}
			if !status.CanSpendPaid {
				if cfg.HardStopOnExceed {
					final := models.FetchResult{Provider: kind, Outcome: models.OutcomePreferredUnavailable, Signals: []string{status.Reason}}
					return Result{Final: final, Attempts: attempts}, nil
				}
				if cfg.DegradeToFreeOnly {
					continue
				}
				continue
			}
		}

		allowed, _, retryAfter := o.limiter.ConsumeToken(domain, kind)
		if !allowed {
			result := models.FetchResult{Provider: kind, Outcome: models.OutcomeRateLimited, Signals: []string{fmt.Sprintf("retry after %s", retryAfter)}}
			attempt := o.recordAttempt(ctx, workspaceID, ruleID, domain, result)
			attempts = append(attempts, attempt)
			return Result{Final: result, Attempts: attempts}, nil
		}

		reqWithTimeout := req
		if reqWithTimeout.TimeoutMs <= 0 {
			reqWithTimeout.TimeoutMs = policy.TimeoutMs
		}
		if reqWithTimeout.GeoCountry == "" {
			reqWithTimeout.GeoCountry = policy.GeoCountry
		}

		result, fetchErr := adapter.Fetch(ctx, reqWithTimeout)
		result.Provider = kind
		if result.CostUSD == 0 && o.costs != nil {
			result.CostUSD = o.costs.CostUSD(kind)
		}

		success := fetchErr == nil && result.Outcome == models.OutcomeOK
		o.limiter.Feedback(domain, kind, success, result.Outcome == models.OutcomeRateLimited)

		attempt := o.recordAttempt(ctx, workspaceID, ruleID, domain, result)
		attempts = append(attempts, attempt)

		if success {
			return Result{Final: result, Attempts: attempts}, nil
		}

		copyResult := result
		lastFailed = &copyResult

		if policy.StopAfterPreferredFailure && policy.PreferredProvider != nil && kind == *policy.PreferredProvider {
			break
		}
	}

	if lastFailed != nil {
		return Result{Final: *lastFailed, Attempts: attempts}, nil
	}
	return Result{Final: models.FetchResult{Outcome: models.OutcomeProviderError}, Attempts: attempts}, nil
}

// buildOrder computes the ordered provider list step 1-2.
func (o *Orchestrator) buildOrder(policy models.TierPolicy, cfg Config) ([]models.ProviderKind, string) {
	disabled := make(map[models.ProviderKind]bool, len(policy.DisabledProviders))
	for _, d := range policy.DisabledProviders {
		disabled[d] = true
	}

	if policy.PreferredProvider != nil {
		p := *policy.PreferredProvider
		if disabled[p] {
			return nil, "preferred provider is disabled"
		}
		if p.IsPaid() && !(cfg.AllowPaid && policy.AllowPaid) {
			return nil, "preferred provider is paid but paid fallback is not allowed"
		}
	}

	var order []models.ProviderKind
	if policy.PreferredProvider != nil {
		order = append(order, *policy.PreferredProvider)
	}
	for _, p := range models.FreeProviderOrder {
		if disabled[p] || containsKind(order, p) {
			continue
		}
		order = append(order, p)
	}
	if cfg.AllowPaid && policy.AllowPaid {
		for _, p := range models.PaidProviderOrder {
			if disabled[p] || containsKind(order, p) {
				continue
			}
			order = append(order, p)
		}
	}

	return order, ""
}

func containsKind(list []models.ProviderKind, k models.ProviderKind) bool {
	for _, p := range list {
		if p == k {
			return true
		}
	}
	return false
}

func (o *Orchestrator) recordAttempt(ctx context.Context, workspaceID, ruleID, domain string, result models.FetchResult) models.FetchAttempt {
	var ridPtr *string
	if ruleID != "" {
		ridPtr = &ruleID
	}
	attempt := models.FetchAttempt{
		WorkspaceID: workspaceID,
		RuleID:      ridPtr,
		Hostname:    domain,
		Provider:    result.Provider,
		Outcome:     result.Outcome,
		HTTPStatus:  result.HTTPStatus,
		BodyBytes:   result.BodyBytes,
		CostUSD:     result.CostUSD,
		LatencyMs:   result.LatencyMs,
		CreatedAt:   o.clock.Now(),
	}
	if o.ledger != nil {
		_ = o.ledger.WriteAttempt(ctx, attempt)
	}
	return attempt
}

func hostnameOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "", fmt.Errorf("invalid url %q", rawURL)
	}
	return u.Hostname(), nil
}
