package normalize

import (
	"strings"

	"github.com/fabianmarian8/sentinel-sub000/internal/models"
)

const defaultMaxSnippetLength = 500

// normalizeText optionally collapses whitespace, truncates to
// maxSnippetLength, and computes a stable 32-bit djb2 hash for equality
// comparisons in the anti-flap state machine.
func normalizeText(raw string, cfg models.NormalizationConfig) (models.NormalizedValue, error) {
	text := raw
	if cfg.CollapseWhitespace {
		text = strings.Join(strings.Fields(text), " ")
	}

	maxLen := cfg.MaxSnippetLength
	if maxLen <= 0 {
		maxLen = defaultMaxSnippetLength
	}
	if len(text) > maxLen {
		text = text[:maxLen]
	}

	return models.NormalizedValue{
		RuleType: models.RuleTypeText,
		Text:     text,
		TextHash: djb2(text),
	}, nil
}

// djb2 is the classic 32-bit string hash.
func djb2(s string) uint32 {
	var hash uint32 = 5381
	for i := 0; i < len(s); i++ {
		hash = ((hash << 5) + hash) + uint32(s[i])
	}
	return hash
}
