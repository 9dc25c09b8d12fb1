package extraction

import (
	"fmt"
	"strings"

	"github.com/antchfx/htmlquery"
	"github.com/antchfx/xpath"
)

// xpathExtract runs a single XPath expression against HTML using antchfx.
func xpathExtract(html, expr, attribute string, extractAll bool) ([]string, error) {
	doc, err := htmlquery.Parse(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("xpath extract: parse html: %w", err)
	}

	compiled, err := xpath.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("xpath extract: compile %q: %w", expr, err)
	}

	nodes := htmlquery.QuerySelectorAll(doc, compiled)
	if len(nodes) == 0 {
		return nil, nil
	}

	extractOne := func(n *htmlquery.Node) string {
		if attribute != "" {
			return htmlquery.SelectAttr(n, attribute)
		}
		return htmlquery.InnerText(n)
	}

	if extractAll {
		values := make([]string, 0, len(nodes))
		for _, n := range nodes {
			values = append(values, extractOne(n))
		}
		return values, nil
	}

	return []string{extractOne(nodes[0])}, nil
}
