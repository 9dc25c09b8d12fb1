// Package normalize dispatches raw extracted text into a stable typed
// NormalizedValue by RuleType, using shopspring/decimal for precision.
package normalize

import (
	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"

	"github.com/fabianmarian8/sentinel-sub000/internal/models"
)

var markdownConverter = converter.NewConverter(
	converter.WithPlugins(
		base.NewBasePlugin(),
		commonmark.NewCommonmarkPlugin(),
	),
)

// Normalize dispatches raw/schemaMeta into a NormalizedValue per cfg.RuleType.
func Normalize(raw string, cfg models.NormalizationConfig, schemaMeta *models.SchemaExtractMeta) (models.NormalizedValue, error) {
	switch cfg.RuleType {
	case models.RuleTypePrice:
		return normalizePrice(raw, cfg, schemaMeta)
	case models.RuleTypeNumber:
		return normalizeNumber(raw, cfg)
	case models.RuleTypeText:
		return normalizeText(raw, cfg)
	case models.RuleTypeAvailability:
		return normalizeAvailability(raw, cfg)
	default:
		return models.NormalizedValue{}, ErrParse
	}
}

// DiffSummary renders a human-readable change description. When the raw
// extracted value looks like an HTML fragment it's rendered to Markdown via
// html-to-markdown so the summary reads cleanly in a notification; plain
// text values pass through unchanged.
func DiffSummary(previous, current models.NormalizedValue) string {
	prev := renderForDiff(previous)
	cur := renderForDiff(current)
	return prev + " -> " + cur
}

// Render produces the same stable string form DiffSummary uses for one
// side of a comparison, for callers that only need a single value's
// canonical representation (e.g. the alert dedupe key).
func Render(v models.NormalizedValue) string {
	return renderForDiff(v)
}

func renderForDiff(v models.NormalizedValue) string {
	switch v.RuleType {
	case models.RuleTypePrice:
		return v.Currency + " " + formatFloat(v.PriceValue)
	case models.RuleTypeNumber:
		return formatFloat(v.NumberValue)
	case models.RuleTypeAvailability:
		return string(v.Availability)
	case models.RuleTypeText:
		if looksLikeHTML(v.Text) {
			if md, err := markdownConverter.ConvertString(v.Text); err == nil {
				return md
			}
		}
		return v.Text
	default:
		return ""
	}
}

func looksLikeHTML(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == '<' {
			return true
		}
	}
	return false
}

func formatFloat(f float64) string {
	return trimTrailingZeros(formatFixed(f))
}
