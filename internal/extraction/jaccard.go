package extraction

import (
	"regexp"
	"strings"
)

var tokenPattern = regexp.MustCompile(`[a-zA-Z][\w-]*|\.[\w-]+|#[\w-]+|\[[^\]]+\]`)

// selectorTokens tokenizes a CSS/XPath-ish selector into its tag, class,
// id, and attribute components, forming the token set the Jaccard index is
// computed over.
func selectorTokens(selector string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, m := range tokenPattern.FindAllString(strings.ToLower(selector), -1) {
		tokens[m] = struct{}{}
	}
	return tokens
}

// jaccardSimilarity computes the Jaccard index between two selectors' token
// sets, used to gate fallback-selector healing.
func jaccardSimilarity(a, b string) float64 {
	ta, tb := selectorTokens(a), selectorTokens(b)
	if len(ta) == 0 && len(tb) == 0 {
		return 1
	}
	intersection := 0
	for t := range ta {
		if _, ok := tb[t]; ok {
			intersection++
		}
	}
	union := len(ta) + len(tb) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
