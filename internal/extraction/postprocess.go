package extraction

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/fabianmarian8/sentinel-sub000/internal/models"
)

var numberPattern = regexp.MustCompile(`-?[0-9][0-9.,\s]*`)

// applyPostProcess runs a value through the configured post-process chain in
// order.
func applyPostProcess(value string, steps []models.PostProcessStep) (string, error) {
	for _, step := range steps {
		var err error
		switch step.Op {
		case "trim":
			value = strings.TrimSpace(value)
		case "lowercase":
			value = strings.ToLower(value)
		case "uppercase":
			value = strings.ToUpper(value)
		case "replace":
			re, reErr := regexp.Compile(step.Pattern)
			if reErr != nil {
				return "", reErr
			}
			value = re.ReplaceAllString(value, step.Replacement)
		case "extract_number":
			match := numberPattern.FindString(value)
			value = strings.TrimSpace(match)
		default:
			continue
		}
		if err != nil {
			return "", err
		}
	}
	return value, nil
}

func parseLooseNumber(s string) (float64, bool) {
	cleaned := strings.ReplaceAll(s, " ", "")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
