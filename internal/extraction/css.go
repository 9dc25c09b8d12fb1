package extraction

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// cssExtract runs a single CSS selector against HTML, grounded on the
// teacher's goquery usage in engine/internal/crawler/colly_fetcher.go.
func cssExtract(html, selector, attribute string, extractAll bool) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("css extract: parse html: %w", err)
	}

	sel := doc.Find(selector)
	if sel.Length() == 0 {
		return nil, nil
	}

	var values []string
	extractOne := func(s *goquery.Selection) string {
		if attribute != "" {
			v, _ := s.Attr(attribute)
			return v
		}
		return s.Text()
	}

	if extractAll {
		sel.Each(func(_ int, s *goquery.Selection) {
			values = append(values, extractOne(s))
		})
		return values, nil
	}

	return []string{extractOne(sel.First())}, nil
}
