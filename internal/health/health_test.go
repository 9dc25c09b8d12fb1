package health

import "testing"

func TestSummarizeBucketsAndSortsWorstFirst(t *testing.T) {
	rules := []RuleHealth{
		{RuleID: "a", HealthScore: 95},
		{RuleID: "b", HealthScore: 60},
		{RuleID: "c", HealthScore: 20},
	}
	summary := Summarize("ws1", rules)

	if summary.Buckets.Healthy != 1 || summary.Buckets.Warning != 1 || summary.Buckets.Critical != 1 {
		t.Fatalf("unexpected bucket counts: %+v", summary.Buckets)
	}
	if summary.WorstRules[0].RuleID != "c" {
		t.Fatalf("expected worst rule first, got %+v", summary.WorstRules)
	}
	if summary.TotalRules != 3 {
		t.Fatalf("expected total rules 3, got %d", summary.TotalRules)
	}
}

func TestSummarizeCapsWorstRulesList(t *testing.T) {
	rules := make([]RuleHealth, 25)
	for i := range rules {
		rules[i] = RuleHealth{RuleID: string(rune('a' + i)), HealthScore: i}
	}
	summary := Summarize("ws1", rules)
	if len(summary.WorstRules) != worstRulesLimit {
		t.Fatalf("expected worst rules capped at %d, got %d", worstRulesLimit, len(summary.WorstRules))
	}
}
