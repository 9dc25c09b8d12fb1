package normalize

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/fabianmarian8/sentinel-sub000/internal/models"
)

const defaultScale = 2

var defaultCurrencyTokens = []string{"€", "$", "£", "Kč", "Sk", "EUR", "USD", "GBP", "CZK"}

// normalizePrice strips currency tokens and separators, then parses with
// shopspring/decimal to avoid float rounding drift, keeping
// normalizePrice(format(n, locale)) == n for every representable n.
func normalizePrice(raw string, cfg models.NormalizationConfig, schemaMeta *models.SchemaExtractMeta) (models.NormalizedValue, error) {
	scale := cfg.Scale
	if scale <= 0 {
		scale = defaultScale
	}

	if schemaMeta != nil {
		return normalizePriceFromSchema(raw, schemaMeta, scale)
	}

	cleaned := stripCurrencyTokens(raw, cfg.CurrencyTokens)
	cleaned = normalizeSeparators(cleaned, cfg)

	dec, err := decimal.NewFromString(strings.TrimSpace(cleaned))
	if err != nil {
		return models.NormalizedValue{}, fmt.Errorf("%w: price %q: %v", ErrParse, raw, err)
	}

	rounded := dec.Round(int32(scale))
	value, _ := rounded.Float64()

	return models.NormalizedValue{
		RuleType:   models.RuleTypePrice,
		PriceValue: value,
		Currency:   detectCurrency(raw, cfg.CurrencyTokens),
	}, nil
}

func normalizePriceFromSchema(raw string, meta *models.SchemaExtractMeta, scale int) (models.NormalizedValue, error) {
	dec, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return models.NormalizedValue{}, fmt.Errorf("%w: schema price %q: %v", ErrParse, raw, err)
	}
	rounded := dec.Round(int32(scale))
	value, _ := rounded.Float64()

	var cents *int64
	if meta.Cents != nil {
		cents = meta.Cents
	} else {
		c := rounded.Mul(decimal.NewFromInt(100)).IntPart()
		cents = &c
	}

	return models.NormalizedValue{
		RuleType:     models.RuleTypePrice,
		PriceValue:   value,
		Currency:     meta.Currency,
		CentsVariant: cents,
	}, nil
}

func stripCurrencyTokens(raw string, configured []string) string {
	tokens := configured
	if len(tokens) == 0 {
		tokens = defaultCurrencyTokens
	}
	out := raw
	for _, tok := range tokens {
		out = strings.ReplaceAll(out, tok, "")
	}
	out = strings.ReplaceAll(out, " ", " ") // no-break space
	return strings.TrimSpace(out)
}

func detectCurrency(raw string, configured []string) string {
	tokens := configured
	if len(tokens) == 0 {
		tokens = defaultCurrencyTokens
	}
	symbolToISO := map[string]string{"€": "EUR", "$": "USD", "£": "GBP", "Kč": "CZK"}
	for _, tok := range tokens {
		if strings.Contains(raw, tok) {
			if iso, ok := symbolToISO[tok]; ok {
				return iso
			}
			return tok
		}
	}
	return ""
}

// normalizeSeparators picks the locale's decimal/thousand separators (or
// explicit config) and rewrites the string into Go's "1234.56" form.
func normalizeSeparators(raw string, cfg models.NormalizationConfig) string {
	decimalSep, thousandSeps := separatorsFor(cfg)

	out := raw
	for _, sep := range thousandSeps {
		out = strings.ReplaceAll(out, sep, "")
	}
	out = strings.ReplaceAll(out, " ", "")
	out = strings.ReplaceAll(out, " ", "")

	if decimalSep != "." {
		out = strings.ReplaceAll(out, decimalSep, ".")
	}
	return out
}

func separatorsFor(cfg models.NormalizationConfig) (decimalSep string, thousandSeps []string) {
	if cfg.DecimalSeparator != "" {
		decimalSep = cfg.DecimalSeparator
		thousandSeps = cfg.ThousandSeparators
		return
	}
	switch cfg.Locale {
	case "sk-SK", "de-DE":
		return ",", []string{"."}
	case "en-US", "":
		return ".", []string{","}
	default:
		return ".", []string{","}
	}
}
