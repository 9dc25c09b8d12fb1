// Package extraction implements CSS/XPath/regex/schema value extraction
// with fallback-selector self-healing using goquery and a
// Jaccard-similarity healing algorithm.
package extraction

import (
	"fmt"
	"strings"
	"time"

	"github.com/fabianmarian8/sentinel-sub000/internal/models"
)

const (
	healingSimilarityThreshold = 0.60
	strictHealingThreshold     = 0.70
	anchorPrefixLength         = 20
)

// Clock abstracts the healing-event timestamp for deterministic tests.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Extractor runs the extraction algorithm for one rule invocation.
type Extractor struct {
	clock                Clock
	similarityThreshold  float64
}

// NewExtractor builds an Extractor. strictThreshold, when true, raises the
// healing similarity floor from 0.60 to 0.70 so a fallback selector only
// heals a rule when it's a close match, not merely a plausible one.
func NewExtractor(clock Clock, strictThreshold bool) *Extractor {
	if clock == nil {
		clock = realClock{}
	}
	threshold := healingSimilarityThreshold
	if strictThreshold {
		threshold = strictHealingThreshold
	}
	return &Extractor{clock: clock, similarityThreshold: threshold}
}

// Extract runs the full CSS/XPath/regex/schema algorithm, including
// fallback-selector healing for CSS/XPath.
func (e *Extractor) Extract(html string, cfg models.ExtractionConfig, fp *models.SelectorFingerprint) (models.ExtractionResult, error) {
	switch cfg.Method {
	case models.ExtractSchema:
		return e.extractSchema(html, cfg)
	case models.ExtractRegex:
		return e.extractSimple(html, cfg, regexExtract)
	case models.ExtractCSS:
		return e.extractWithHealing(html, cfg, fp, cssExtract)
	case models.ExtractXPath:
		return e.extractWithHealing(html, cfg, fp, xpathExtract)
	default:
		return models.ExtractionResult{}, fmt.Errorf("extraction: unknown method %q", cfg.Method)
	}
}

type rawExtractFn func(html, selector, attribute string, extractAll bool) ([]string, error)

func (e *Extractor) extractSimple(html string, cfg models.ExtractionConfig, fn func(body, selector string, extractAll bool) ([]string, error)) (models.ExtractionResult, error) {
	values, err := fn(html, cfg.Selector, cfg.ExtractAll)
	if err != nil {
		return models.ExtractionResult{}, err
	}
	if len(values) == 0 {
		return models.ExtractionResult{}, fmt.Errorf("extraction: no match for selector %q", cfg.Selector)
	}
	raw, err := e.postProcess(values, cfg)
	if err != nil {
		return models.ExtractionResult{}, err
	}
	return models.ExtractionResult{RawValue: raw}, nil
}

func (e *Extractor) extractSchema(html string, cfg models.ExtractionConfig) (models.ExtractionResult, error) {
	value, meta, err := schemaExtract(html, cfg.Selector)
	if err != nil {
		return models.ExtractionResult{}, err
	}
	if value == "" {
		// Schema miss falls through to the fallback selectors, each tried
		// as a CSS selector.
		for _, fallback := range cfg.FallbackSelectors {
			fallbackCfg := cfg
			fallbackCfg.Selector = fallback
			fallbackCfg.Method = models.ExtractCSS
			if result, err := e.extractSimple(html, fallbackCfg, cssExtract); err == nil {
				result.UsedFallback = true
				return result, nil
			}
		}
		return models.ExtractionResult{}, fmt.Errorf("extraction: schema selector %q produced no value", cfg.Selector)
	}
	raw, err := applyPostProcess(value, cfg.PostProcess)
	if err != nil {
		return models.ExtractionResult{}, err
	}
	return models.ExtractionResult{RawValue: raw, SchemaMeta: meta}, nil
}

func (e *Extractor) extractWithHealing(html string, cfg models.ExtractionConfig, fp *models.SelectorFingerprint, fn rawExtractFn) (models.ExtractionResult, error) {
	values, err := fn(html, cfg.Selector, cfg.Attribute, cfg.ExtractAll)
	if err == nil && len(values) > 0 {
		raw, ppErr := e.postProcess(values, cfg)
		if ppErr != nil {
			return models.ExtractionResult{}, ppErr
		}
		if fp == nil || fp.TextAnchor == "" || anchorMatches(raw, fp.TextAnchor) {
			return models.ExtractionResult{RawValue: raw}, nil
		}
	}

	candidates := append(append([]string{}, cfg.FallbackSelectors...), alternativeSelectors(fp)...)
	for _, alt := range candidates {
		similarity := jaccardSimilarity(cfg.Selector, alt)
		if similarity < e.similarityThreshold {
			continue
		}
		values, err := fn(html, alt, cfg.Attribute, cfg.ExtractAll)
		if err != nil || len(values) == 0 {
			continue
		}
		raw, ppErr := e.postProcess(values, cfg)
		if ppErr != nil {
			continue
		}
		return models.ExtractionResult{
			RawValue:     raw,
			HealedTo:     alt,
			Similarity:   similarity,
			UsedFallback: true,
		}, nil
	}

	return models.ExtractionResult{}, fmt.Errorf("extraction: no selector matched for %q", cfg.Selector)
}

func (e *Extractor) postProcess(values []string, cfg models.ExtractionConfig) (string, error) {
	joined := strings.Join(values, ", ")
	if !cfg.ExtractAll {
		joined = values[0]
	}
	return applyPostProcess(joined, cfg.PostProcess)
}

func alternativeSelectors(fp *models.SelectorFingerprint) []string {
	if fp == nil {
		return nil
	}
	return fp.AlternativeSelectors
}

func anchorMatches(value, anchor string) bool {
	clean := func(s string) string {
		return strings.ToLower(strings.Join(strings.Fields(s), " "))
	}
	anchor = clean(anchor)
	if len(anchor) > anchorPrefixLength {
		anchor = anchor[:anchorPrefixLength]
	}
	return strings.Contains(clean(value), anchor)
}

// NewHealingEvent records a self-heal for persistence onto the rule's
// SelectorFingerprint.
func (e *Extractor) NewHealingEvent(from, to string, similarity float64) models.HealingEvent {
	return models.HealingEvent{
		From:       from,
		To:         to,
		Similarity: similarity,
		HealedAt:   e.clock.Now().UTC().Format(time.RFC3339),
	}
}
