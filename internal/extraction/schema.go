package extraction

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/fabianmarian8/sentinel-sub000/internal/models"
)

// schemaExtract reads JSON-LD `<script type="application/ld+json">` blocks
// and `<meta>` tags, following the selector string as a dotted path into the
// matching JSON-LD node (e.g. "offers.price")'s schema
// extraction.
func schemaExtract(html, selector string) (string, *models.SchemaExtractMeta, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", nil, fmt.Errorf("schema extract: parse html: %w", err)
	}

	blocks := collectJSONLD(doc)
	fingerprint := fingerprintBlocks(blocks)

	for _, block := range blocks {
		if value, meta, ok := resolvePath(block, selector); ok {
			meta.Source = models.SchemaSourceJSONLD
			meta.Fingerprint = fingerprint
			return value, meta, nil
		}
	}

	if content, ok := doc.Find(fmt.Sprintf(`meta[property=%q],meta[name=%q]`, selector, selector)).Attr("content"); ok {
		return content, &models.SchemaExtractMeta{Source: models.SchemaSourceMeta, Fingerprint: fingerprint}, nil
	}

	return "", nil, nil
}

func collectJSONLD(doc *goquery.Document) []map[string]interface{} {
	var blocks []map[string]interface{}
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		var parsed interface{}
		if err := json.Unmarshal([]byte(s.Text()), &parsed); err != nil {
			return
		}
		switch v := parsed.(type) {
		case map[string]interface{}:
			blocks = append(blocks, v)
		case []interface{}:
			for _, item := range v {
				if m, ok := item.(map[string]interface{}); ok {
					blocks = append(blocks, m)
				}
			}
		}
	})
	return blocks
}

// resolvePath walks a dotted path like "offers.price" into a JSON-LD node.
func resolvePath(node map[string]interface{}, path string) (string, *models.SchemaExtractMeta, bool) {
	parts := strings.Split(path, ".")
	var cur interface{} = node
	for _, part := range parts {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return "", nil, false
		}
		cur, ok = m[part]
		if !ok {
			return "", nil, false
		}
	}

	meta := &models.SchemaExtractMeta{}
	if offers, ok := node["offers"].(map[string]interface{}); ok {
		if currency, ok := offers["priceCurrency"].(string); ok {
			meta.Currency = currency
		}
		if avail, ok := offers["availability"].(string); ok {
			meta.AvailabilityURL = avail
		}
	}

	switch v := cur.(type) {
	case string:
		return v, meta, true
	case float64:
		return fmt.Sprintf("%v", v), meta, true
	case bool:
		return fmt.Sprintf("%v", v), meta, true
	default:
		return "", nil, false
	}
}

// fingerprintBlocks computes the block count and a stable shape hash over
// the sorted top-level keys of every JSON-LD block, used to detect schema
// drift.
func fingerprintBlocks(blocks []map[string]interface{}) models.SchemaFingerprint {
	var shapes []string
	for _, b := range blocks {
		keys := make([]string, 0, len(b))
		for k := range b {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		shapes = append(shapes, strings.Join(keys, ","))
	}
	sort.Strings(shapes)
	sum := sha256.Sum256([]byte(strings.Join(shapes, "|")))
	return models.SchemaFingerprint{
		BlockCount: len(blocks),
		ShapeHash:  hex.EncodeToString(sum[:])[:16],
	}
}
