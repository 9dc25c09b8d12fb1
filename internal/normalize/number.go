package normalize

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/fabianmarian8/sentinel-sub000/internal/models"
)

// normalizeNumber removes thousand separators, swaps the decimal separator,
// parses, and applies an optional scale multiplier.
func normalizeNumber(raw string, cfg models.NormalizationConfig) (models.NormalizedValue, error) {
	cleaned := normalizeSeparators(raw, cfg)

	dec, err := decimal.NewFromString(strings.TrimSpace(cleaned))
	if err != nil {
		return models.NormalizedValue{}, fmt.Errorf("%w: number %q: %v", ErrParse, raw, err)
	}

	if cfg.Scale != 0 {
		dec = dec.Mul(decimal.NewFromInt(int64(cfg.Scale)))
	}

	value, _ := dec.Float64()
	return models.NormalizedValue{RuleType: models.RuleTypeNumber, NumberValue: value}, nil
}
