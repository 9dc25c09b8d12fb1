// Package health summarizes rule health into the workspace-level dashboard
// view, bucketing on top of models.BucketHealth.
package health

import (
	"sort"

	"github.com/fabianmarian8/sentinel-sub000/internal/models"
)

// RuleHealth is one rule's health snapshot as read from storage.
type RuleHealth struct {
	RuleID        string
	RuleName      string
	HealthScore   int
	LastErrorCode *models.ErrorCode
}

// BucketCounts tallies how many rules fall in each health bucket.
type BucketCounts struct {
	Healthy  int
	Warning  int
	Critical int
}

// WorkspaceSummary is the dashboard-facing rollup for one workspace.
type WorkspaceSummary struct {
	WorkspaceID string
	TotalRules  int
	Buckets     BucketCounts
	WorstRules  []RuleHealth
}

const worstRulesLimit = 10

// Summarize buckets the given rules and surfaces the worst-scoring ones
// first, so an operator dashboard can render "what needs attention" without
// a second query.
func Summarize(workspaceID string, rules []RuleHealth) WorkspaceSummary {
	summary := WorkspaceSummary{WorkspaceID: workspaceID, TotalRules: len(rules)}

	sorted := make([]RuleHealth, len(rules))
	copy(sorted, rules)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].HealthScore < sorted[j].HealthScore })

	for _, rule := range sorted {
		switch models.BucketHealth(rule.HealthScore) {
		case models.HealthHealthy:
			summary.Buckets.Healthy++
		case models.HealthWarning:
			summary.Buckets.Warning++
		case models.HealthCritical:
			summary.Buckets.Critical++
		}
	}

	limit := worstRulesLimit
	if limit > len(sorted) {
		limit = len(sorted)
	}
	summary.WorstRules = sorted[:limit]

	return summary
}
