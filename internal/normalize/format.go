package normalize

import (
	"strconv"
	"strings"
)

func formatFixed(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func trimTrailingZeros(s string) string {
	if !strings.Contains(s, ".") {
		return s
	}
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
