package models

// ProviderKind enumerates the free and paid fetch providers.
type ProviderKind string

const (
	ProviderHTTP             ProviderKind = "http"
	ProviderMobileUA         ProviderKind = "mobile_ua"
	ProviderHeadless         ProviderKind = "headless"
	ProviderFlaresolverr     ProviderKind = "flaresolverr"
	ProviderBrightdata       ProviderKind = "brightdata"
	ProviderScrapingBrowser  ProviderKind = "scraping_browser"
	ProviderTwocaptchaProxy  ProviderKind = "twocaptcha_proxy"
	ProviderTwocaptchaDatadome ProviderKind = "twocaptcha_datadome"
)

// FreeProviderOrder is the default fallback order for free providers.
var FreeProviderOrder = []ProviderKind{ProviderHTTP, ProviderMobileUA, ProviderHeadless, ProviderFlaresolverr}

// PaidProviderOrder is appended after free providers when paid fallback is allowed.
var PaidProviderOrder = []ProviderKind{ProviderBrightdata, ProviderScrapingBrowser, ProviderTwocaptchaProxy, ProviderTwocaptchaDatadome}

// IsPaid reports whether a provider kind carries non-zero unit cost.
func (p ProviderKind) IsPaid() bool {
	switch p {
	case ProviderBrightdata, ProviderScrapingBrowser, ProviderTwocaptchaProxy, ProviderTwocaptchaDatadome:
		return true
	default:
		return false
	}
}

// FetchOutcome classifies what a provider adapter did with a request.
type FetchOutcome string

const (
	OutcomeOK                  FetchOutcome = "ok"
	OutcomeBlocked             FetchOutcome = "blocked"
	OutcomeCaptchaRequired     FetchOutcome = "captcha_required"
	OutcomeEmpty               FetchOutcome = "empty"
	OutcomeTimeout             FetchOutcome = "timeout"
	OutcomeNetworkError        FetchOutcome = "network_error"
	OutcomeProviderError       FetchOutcome = "provider_error"
	OutcomeRateLimited         FetchOutcome = "rate_limited"
	OutcomePreferredUnavailable FetchOutcome = "preferred_unavailable"
	OutcomeInterstitialGeo     FetchOutcome = "interstitial_geo"
)

// BlockKind names the anti-bot signal the adapter believes it tripped.
type BlockKind string

const (
	BlockCloudflare BlockKind = "cloudflare"
	BlockDatadome   BlockKind = "datadome"
	BlockCaptcha    BlockKind = "captcha"
	BlockGeneric    BlockKind = "generic"
)

// FetchRequest is the uniform input to every provider adapter.
type FetchRequest struct {
	URL           string
	Method        string
	UserAgent     string
	Headers       map[string]string
	Cookies       map[string]string
	TimeoutMs     int
	RenderWaitMs  int
	GeoCountry    string
	FlaresolverrWaitSeconds int
}

// FetchResult is the uniform output of every provider adapter.
type FetchResult struct {
	Provider   ProviderKind
	Outcome    FetchOutcome
	HTTPStatus *int
	FinalURL   string
	BodyText   string
	BodyBytes  int
	BlockKind  *BlockKind
	Signals    []string
	CostUSD    float64
	LatencyMs  int64
	Country    string
}

// ProviderCost is a constant-per-request cost entry in the provider cost table.
type ProviderCost struct {
	Provider ProviderKind `yaml:"provider"`
	CostUSD  float64      `yaml:"costUsd"`
}
