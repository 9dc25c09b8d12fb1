package alerts

import (
	"testing"

	"github.com/fabianmarian8/sentinel-sub000/internal/models"
)

func TestEvaluatePriceDropPercentTriggers(t *testing.T) {
	prev := models.NormalizedValue{RuleType: models.RuleTypePrice, PriceValue: 100, Currency: "EUR"}
	cur := models.NormalizedValue{RuleType: models.RuleTypePrice, PriceValue: 85, Currency: "EUR"}

	conditions := []models.AlertCondition{
		{ID: "c1", Kind: models.CondPriceDropPercent, Threshold: 10, Severity: models.SeverityHigh},
	}

	fired, severity := Evaluate(conditions, prev, cur, true)
	if len(fired) != 1 {
		t.Fatalf("expected 1 condition to fire, got %d", len(fired))
	}
	if severity != models.SeverityHigh {
		t.Fatalf("expected severity high, got %v", severity)
	}
}

func TestEvaluateValueChangedRequiresPrevious(t *testing.T) {
	cur := models.NormalizedValue{RuleType: models.RuleTypeText, Text: "a", TextHash: 1}
	conditions := []models.AlertCondition{{ID: "c1", Kind: models.CondValueChanged}}

	fired, _ := Evaluate(conditions, models.NormalizedValue{}, cur, false)
	if len(fired) != 0 {
		t.Fatalf("expected no trigger on first sighting")
	}
}

func TestEvaluateHighestSeverityWins(t *testing.T) {
	prev := models.NormalizedValue{RuleType: models.RuleTypeNumber, NumberValue: 1}
	cur := models.NormalizedValue{RuleType: models.RuleTypeNumber, NumberValue: 2}

	conditions := []models.AlertCondition{
		{ID: "c1", Kind: models.CondNumberChanged, Severity: models.SeverityLow},
		{ID: "c2", Kind: models.CondNumberAbove, Threshold: 1, Severity: models.SeverityCritical},
	}

	fired, severity := Evaluate(conditions, prev, cur, true)
	if len(fired) != 2 {
		t.Fatalf("expected both conditions to fire, got %d", len(fired))
	}
	if severity != models.SeverityCritical {
		t.Fatalf("expected critical severity, got %v", severity)
	}
}
