package provider

import (
	"context"
	"time"

	"github.com/fabianmarian8/sentinel-sub000/internal/models"
)

// HeadlessAdapter simulates a JS-rendering fetch by delegating to the plain
// HTTP adapter and then waiting out RenderWaitMs, so the orchestrator's
// fallback ordering and timing budget behave the same way a real headless
// browser integration would. No real headless browser driver is wired here.
type HeadlessAdapter struct {
	inner *HTTPAdapter
}

func NewHeadlessAdapter() *HeadlessAdapter {
	return &HeadlessAdapter{inner: &HTTPAdapter{kind: models.ProviderHeadless, userAgent: defaultDesktopUA}}
}

func (a *HeadlessAdapter) Kind() models.ProviderKind { return models.ProviderHeadless }

func (a *HeadlessAdapter) Fetch(ctx context.Context, req models.FetchRequest) (models.FetchResult, error) {
	result, err := a.inner.Fetch(ctx, req)
	result.Provider = models.ProviderHeadless
	if err != nil {
		return result, err
	}

	if req.RenderWaitMs > 0 {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-time.After(time.Duration(req.RenderWaitMs) * time.Millisecond):
		}
		result.LatencyMs += int64(req.RenderWaitMs)
	}

	return result, nil
}
