// Package alerts implements the condition evaluator, day-bucketed dedupe
// key, and Redis-backed cooldown gate.
package alerts

import (
	"strconv"
	"strings"

	"github.com/fabianmarian8/sentinel-sub000/internal/models"
)

// Triggered is one condition that fired against the current observation.
type Triggered struct {
	Condition models.AlertCondition
}

// Evaluate returns the subset of conditions that triggered and the highest
// severity among them.
func Evaluate(conditions []models.AlertCondition, previous, current models.NormalizedValue, hasPrevious bool) ([]Triggered, models.Severity) {
	var fired []Triggered
	highest := models.SeverityLow
	any := false

	for _, c := range conditions {
		if conditionFires(c, previous, current, hasPrevious) {
			fired = append(fired, Triggered{Condition: c})
			if !any || c.Severity > highest {
				highest = c.Severity
				any = true
			}
		}
	}

	return fired, highest
}

func conditionFires(c models.AlertCondition, prev, cur models.NormalizedValue, hasPrev bool) bool {
	switch c.Kind {
	case models.CondValueChanged:
		return hasPrev && !prev.Equal(cur)
	case models.CondValueIncreased:
		return hasPrev && numericOf(cur) > numericOf(prev)
	case models.CondValueDecreased:
		return hasPrev && numericOf(cur) < numericOf(prev)
	case models.CondValueAbove:
		return numericOf(cur) > c.Threshold
	case models.CondValueBelow:
		return numericOf(cur) < c.Threshold
	case models.CondValueAppeared:
		return !hasPrev
	case models.CondValueDisappeared:
		return hasPrev && textOf(cur) == "" && textOf(prev) != ""
	case models.CondValueEquals:
		return textOf(cur) == c.Value
	case models.CondValueNotEquals:
		return textOf(cur) != c.Value
	case models.CondValueContains:
		return strings.Contains(textOf(cur), c.Value)
	case models.CondValueNotContains:
		return !strings.Contains(textOf(cur), c.Value)
	case models.CondPercentageChange:
		return hasPrev && percentChange(numericOf(prev), numericOf(cur)) >= c.Threshold
	case models.CondPriceBelow:
		return cur.RuleType == models.RuleTypePrice && cur.PriceValue < c.Threshold
	case models.CondPriceAbove:
		return cur.RuleType == models.RuleTypePrice && cur.PriceValue > c.Threshold
	case models.CondPriceDropPercent:
		return hasPrev && cur.RuleType == models.RuleTypePrice && prev.PriceValue > 0 &&
			((cur.PriceValue-prev.PriceValue)/prev.PriceValue*100) <= -c.Threshold
	case models.CondAvailabilityIs:
		return cur.RuleType == models.RuleTypeAvailability && string(cur.Availability) == c.Value
	case models.CondTextChanged:
		return hasPrev && cur.RuleType == models.RuleTypeText && prev.TextHash != cur.TextHash
	case models.CondNumberChanged:
		return hasPrev && cur.RuleType == models.RuleTypeNumber && prev.NumberValue != cur.NumberValue
	case models.CondNumberAbove:
		return cur.RuleType == models.RuleTypeNumber && cur.NumberValue > c.Threshold
	case models.CondNumberBelow:
		return cur.RuleType == models.RuleTypeNumber && cur.NumberValue < c.Threshold
	default:
		return false
	}
}

func numericOf(v models.NormalizedValue) float64 {
	switch v.RuleType {
	case models.RuleTypePrice:
		return v.PriceValue
	case models.RuleTypeNumber:
		return v.NumberValue
	default:
		return 0
	}
}

func textOf(v models.NormalizedValue) string {
	switch v.RuleType {
	case models.RuleTypeText:
		return v.Text
	case models.RuleTypeAvailability:
		return string(v.Availability)
	case models.RuleTypePrice:
		return strconv.FormatFloat(v.PriceValue, 'f', -1, 64)
	case models.RuleTypeNumber:
		return strconv.FormatFloat(v.NumberValue, 'f', -1, 64)
	default:
		return ""
	}
}

func percentChange(prev, cur float64) float64 {
	if prev == 0 {
		return 0
	}
	d := (cur - prev) / prev * 100
	if d < 0 {
		return -d
	}
	return d
}
