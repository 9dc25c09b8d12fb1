package models

// RuleType selects the normalization dispatch.
type RuleType string

const (
	RuleTypePrice        RuleType = "price"
	RuleTypeAvailability RuleType = "availability"
	RuleTypeText         RuleType = "text"
	RuleTypeNumber       RuleType = "number"
)

// NormalizationConfig is the tagged-variant normalization configuration attached to a Rule.
type NormalizationConfig struct {
	RuleType RuleType `json:"ruleType" validate:"required"`

	// price / number
	Scale                int      `json:"scale,omitempty"`
	Locale               string   `json:"locale,omitempty"`
	DecimalSeparator     string   `json:"decimalSeparator,omitempty"`
	ThousandSeparators   []string `json:"thousandSeparators,omitempty"`
	CurrencyTokens       []string `json:"currencyTokens,omitempty"`

	// text
	CollapseWhitespace bool `json:"collapseWhitespace,omitempty"`
	MaxSnippetLength   int  `json:"maxSnippetLength,omitempty"`

	// availability
	InStockKeywords    []string `json:"inStockKeywords,omitempty"`
	OutOfStockKeywords []string `json:"outOfStockKeywords,omitempty"`
	PreorderKeywords   []string `json:"preorderKeywords,omitempty"`
	LimitedKeywords    []string `json:"limitedKeywords,omitempty"`
}

// AvailabilityStatus is the normalized availability enum.
type AvailabilityStatus string

const (
	AvailabilityInStock    AvailabilityStatus = "in_stock"
	AvailabilityOutOfStock AvailabilityStatus = "out_of_stock"
	AvailabilityPreorder   AvailabilityStatus = "preorder"
	AvailabilityLimited    AvailabilityStatus = "limited"
	AvailabilityUnknown    AvailabilityStatus = "unknown"
)

// NormalizedValue is the stable typed value produced by normalization,
// modeled as a tagged variant keyed by RuleType.
type NormalizedValue struct {
	RuleType RuleType `json:"ruleType"`

	// price
	PriceValue    float64 `json:"priceValue,omitempty"`
	Currency      string  `json:"currency,omitempty"`
	CentsVariant  *int64  `json:"centsVariant,omitempty"`

	// number
	NumberValue float64 `json:"numberValue,omitempty"`

	// text
	Text     string `json:"text,omitempty"`
	TextHash uint32 `json:"textHash,omitempty"`

	// availability
	Availability    AvailabilityStatus `json:"availability,omitempty"`
	LeadTimeDays    *int               `json:"leadTimeDays,omitempty"`
	AvailabilityURL string             `json:"availabilityUrl,omitempty"`
}

// Equal reports whether two normalized values represent the same observed
// state, used by the anti-flap state machine.
func (v NormalizedValue) Equal(other NormalizedValue) bool {
	if v.RuleType != other.RuleType {
		return false
	}
	switch v.RuleType {
	case RuleTypePrice:
		if v.CentsVariant != nil && other.CentsVariant != nil {
			return *v.CentsVariant == *other.CentsVariant && v.Currency == other.Currency
		}
		return v.PriceValue == other.PriceValue && v.Currency == other.Currency
	case RuleTypeNumber:
		return v.NumberValue == other.NumberValue
	case RuleTypeText:
		return v.TextHash == other.TextHash
	case RuleTypeAvailability:
		return v.Availability == other.Availability
	default:
		return false
	}
}
