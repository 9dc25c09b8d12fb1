package provider

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/fabianmarian8/sentinel-sub000/internal/models"
)

const defaultDesktopUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// HTTPAdapter performs a plain desktop-UA HTTP fetch, adapted from the
// teacher's engine/internal/crawler.CollyFetcher.
type HTTPAdapter struct {
	kind          models.ProviderKind
	userAgent     string
	forceMobileUA bool
}

// NewHTTPAdapter builds the plain "http" provider.
func NewHTTPAdapter() *HTTPAdapter {
	return &HTTPAdapter{kind: models.ProviderHTTP, userAgent: defaultDesktopUA}
}

// NewMobileUAAdapter builds the "mobile_ua" provider, which differs from
// the plain "http" provider only in its user agent: it always sends its
// mobile user agent and ignores req.UserAgent.
func NewMobileUAAdapter() *HTTPAdapter {
	return &HTTPAdapter{
		kind:          models.ProviderMobileUA,
		userAgent:     "Mozilla/5.0 (iPhone; CPU iPhone OS 17_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Mobile/15E148 Safari/604.1",
		forceMobileUA: true,
	}
}

func (a *HTTPAdapter) Kind() models.ProviderKind { return a.kind }

func (a *HTTPAdapter) Fetch(ctx context.Context, req models.FetchRequest) (models.FetchResult, error) {
	timeout := time.Duration(req.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	c := colly.NewCollector()
	c.SetRequestTimeout(timeout)

	ua := a.userAgent
	if req.UserAgent != "" && !a.forceMobileUA {
		ua = req.UserAgent
	}
	c.UserAgent = ua

	result := models.FetchResult{Provider: a.kind}
	started := time.Now()

	c.OnRequest(func(r *colly.Request) {
		for k, v := range req.Headers {
			r.Headers.Set(k, v)
		}
		for k, v := range req.Cookies {
			r.Headers.Add("Cookie", k+"="+v)
		}
	})

	var fetchErr error
	c.OnResponse(func(r *colly.Response) {
		result.HTTPStatus = intPtr(r.StatusCode)
		result.BodyText = string(r.Body)
		result.BodyBytes = len(r.Body)
		result.FinalURL = r.Request.URL.String()

		var header http.Header
		if r.Headers != nil {
			header = *r.Headers
		}
		block, signals := detectBlock(r.StatusCode, header, result.BodyText)
		result.BlockKind = block
		result.Signals = signals
		result.Outcome = outcomeForStatus(r.StatusCode, block)
	})

	c.OnError(func(r *colly.Response, err error) {
		fetchErr = err
		if r != nil {
			result.HTTPStatus = intPtr(r.StatusCode)
		}
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		if req.Method == "" || req.Method == "GET" {
			fetchErr = c.Visit(req.URL)
		} else {
			fetchErr = c.Request(req.Method, req.URL, nil, nil, nil)
		}
		c.Wait()
	}()

	select {
	case <-ctx.Done():
		return models.FetchResult{Provider: a.kind, Outcome: models.OutcomeTimeout}, ctx.Err()
	case <-done:
	}

	result.LatencyMs = time.Since(started).Milliseconds()

	if fetchErr != nil {
		if result.HTTPStatus == nil {
			result.Outcome = models.OutcomeNetworkError
		}
		return result, fmt.Errorf("http adapter fetch %q: %w", req.URL, fetchErr)
	}

	if result.HTTPStatus == nil {
		result.Outcome = models.OutcomeEmpty
	}

	return result, nil
}

func intPtr(v int) *int { return &v }
