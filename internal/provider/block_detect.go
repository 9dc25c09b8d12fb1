package provider

import (
	"net/http"
	"strings"

	"github.com/fabianmarian8/sentinel-sub000/internal/models"
)

// detectBlock inspects a raw HTTP response for the anti-bot signals the
// orchestrator needs to pick the next fallback provider. It
// returns nil when nothing suspicious was found.
func detectBlock(status int, header http.Header, body string) (*models.BlockKind, []string) {
	var signals []string

	lowerBody := strings.ToLower(body)

	if header.Get("Server") == "cloudflare" || header.Get("Cf-Ray") != "" {
		if status == 403 || strings.Contains(lowerBody, "attention required") || strings.Contains(lowerBody, "checking your browser") {
			signals = append(signals, "cf-ray-challenge")
			k := models.BlockCloudflare
			return &k, signals
		}
	}

	if strings.Contains(strings.ToLower(header.Get("Set-Cookie")), "datadome") {
		signals = append(signals, "datadome-cookie")
		k := models.BlockDatadome
		return &k, signals
	}

	if strings.Contains(lowerBody, "captcha") || strings.Contains(lowerBody, "recaptcha") || strings.Contains(lowerBody, "hcaptcha") {
		signals = append(signals, "captcha-markup")
		k := models.BlockCaptcha
		return &k, signals
	}

	if status == 403 || status == 429 {
		signals = append(signals, "status-"+http.StatusText(status))
		k := models.BlockGeneric
		return &k, signals
	}

	return nil, nil
}

func outcomeForStatus(status int, block *models.BlockKind) models.FetchOutcome {
	switch {
	case block != nil && *block == models.BlockCaptcha:
		return models.OutcomeCaptchaRequired
	case block != nil:
		return models.OutcomeBlocked
	case status == 429:
		return models.OutcomeRateLimited
	case status >= 500:
		return models.OutcomeProviderError
	case status >= 200 && status < 300:
		return models.OutcomeOK
	default:
		return models.OutcomeProviderError
	}
}
