// Package provider implements the uniform fetch-adapter contract for every
// free and paid provider kind.
package provider

import (
	"context"

	"github.com/fabianmarian8/sentinel-sub000/internal/models"
)

// Adapter fetches a single URL through one provider and reports a uniform
// FetchResult regardless of which provider served it.
type Adapter interface {
	Kind() models.ProviderKind
	Fetch(ctx context.Context, req models.FetchRequest) (models.FetchResult, error)
}

// Registry resolves an Adapter by provider kind.
type Registry struct {
	adapters map[models.ProviderKind]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[models.ProviderKind]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Kind()] = a
	}
	return r
}

func (r *Registry) Get(kind models.ProviderKind) (Adapter, bool) {
	a, ok := r.adapters[kind]
	return a, ok
}

// AdapterConfig carries the operator-supplied endpoints and proxy URLs for
// every paid provider. A field left empty disables that adapter: the free
// adapters (HTTP, mobile UA, headless) are always registered; a paid adapter
// with no proxy URL configured is simply never selectable by the orchestrator.
type AdapterConfig struct {
	BrightdataProxyURL         string
	ScrapingBrowserProxyURL    string
	TwoCaptchaProxyURL         string
	TwoCaptchaDatadomeProxyURL string
	FlaresolverrEndpoint       string
}

// DefaultAdapters builds the full set of adapters the worker process
// registers at startup: the three always-on free adapters plus whichever
// paid adapters have a proxy URL/endpoint configured. Paid adapters report
// a zero per-request cost here; the orchestrator fills it in from its cost
// table instead, so the cost table is the single source of pricing.
func DefaultAdapters(cfg AdapterConfig) []Adapter {
	adapters := []Adapter{NewHTTPAdapter(), NewMobileUAAdapter(), NewHeadlessAdapter()}

	if cfg.FlaresolverrEndpoint != "" {
		adapters = append(adapters, NewFlaresolverrAdapter(cfg.FlaresolverrEndpoint))
	}
	if cfg.BrightdataProxyURL != "" {
		if a, err := NewBrightdataAdapter(cfg.BrightdataProxyURL, 0); err == nil {
			adapters = append(adapters, a)
		}
	}
	if cfg.ScrapingBrowserProxyURL != "" {
		if a, err := NewScrapingBrowserAdapter(cfg.ScrapingBrowserProxyURL, 0); err == nil {
			adapters = append(adapters, a)
		}
	}
	if cfg.TwoCaptchaProxyURL != "" {
		if a, err := NewTwoCaptchaProxyAdapter(cfg.TwoCaptchaProxyURL, 0); err == nil {
			adapters = append(adapters, a)
		}
	}
	if cfg.TwoCaptchaDatadomeProxyURL != "" {
		if a, err := NewTwoCaptchaDatadomeAdapter(cfg.TwoCaptchaDatadomeProxyURL, 0); err == nil {
			adapters = append(adapters, a)
		}
	}
	return adapters
}
