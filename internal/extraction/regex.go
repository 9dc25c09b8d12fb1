package extraction

import (
	"fmt"
	"regexp"
)

// regexExtract runs a regular expression against the raw body text. The
// selector is the pattern itself; group 1 is returned when present,
// otherwise the full match.
func regexExtract(body, pattern string, extractAll bool) ([]string, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("regex extract: compile %q: %w", pattern, err)
	}

	pick := func(m []string) string {
		if len(m) > 1 {
			return m[1]
		}
		if len(m) == 1 {
			return m[0]
		}
		return ""
	}

	if extractAll {
		matches := re.FindAllStringSubmatch(body, -1)
		if matches == nil {
			return nil, nil
		}
		values := make([]string, 0, len(matches))
		for _, m := range matches {
			values = append(values, pick(m))
		}
		return values, nil
	}

	m := re.FindStringSubmatch(body)
	if m == nil {
		return nil, nil
	}
	return []string{pick(m)}, nil
}
