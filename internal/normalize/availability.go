package normalize

import (
	"strings"

	"github.com/fabianmarian8/sentinel-sub000/internal/models"
)

var (
	defaultInStock    = []string{"in stock", "available", "skladom"}
	defaultOutOfStock = []string{"out of stock", "sold out", "vypredané", "unavailable"}
	defaultPreorder   = []string{"preorder", "pre-order", "coming soon"}
	defaultLimited    = []string{"limited", "low stock", "few left"}
)

// normalizeAvailability maps raw text to one of the fixed availability
// statuses via configured keyword lists.
func normalizeAvailability(raw string, cfg models.NormalizationConfig) (models.NormalizedValue, error) {
	lower := strings.ToLower(raw)

	status := models.AvailabilityUnknown
	switch {
	case containsAny(lower, pick(cfg.OutOfStockKeywords, defaultOutOfStock)):
		status = models.AvailabilityOutOfStock
	case containsAny(lower, pick(cfg.PreorderKeywords, defaultPreorder)):
		status = models.AvailabilityPreorder
	case containsAny(lower, pick(cfg.LimitedKeywords, defaultLimited)):
		status = models.AvailabilityLimited
	case containsAny(lower, pick(cfg.InStockKeywords, defaultInStock)):
		status = models.AvailabilityInStock
	}

	return models.NormalizedValue{RuleType: models.RuleTypeAvailability, Availability: status}, nil
}

func pick(configured, fallback []string) []string {
	if len(configured) > 0 {
		return configured
	}
	return fallback
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, strings.ToLower(n)) {
			return true
		}
	}
	return false
}
