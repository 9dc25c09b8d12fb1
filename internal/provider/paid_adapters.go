package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/fabianmarian8/sentinel-sub000/internal/models"
)

// paidProxyAdapter routes a fetch through an upstream paid proxy endpoint.
// Brightdata, ScrapingBrowser and the two TwoCaptcha-backed variants all
// share this shape; only the proxy URL and constant per-request cost
// differ.
type paidProxyAdapter struct {
	kind      models.ProviderKind
	proxyURL  string
	costUSD   float64
	userAgent string
	client    *http.Client
}

func newPaidProxyAdapter(kind models.ProviderKind, proxyURL string, costUSD float64) (*paidProxyAdapter, error) {
	client := &http.Client{}
	if proxyURL != "" {
		parsed, err := url.Parse(proxyURL)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid proxy url: %w", kind, err)
		}
		client.Transport = &http.Transport{Proxy: http.ProxyURL(parsed)}
	}
	return &paidProxyAdapter{kind: kind, proxyURL: proxyURL, costUSD: costUSD, userAgent: defaultDesktopUA, client: client}, nil
}

// NewBrightdataAdapter wraps Bright Data's residential proxy pool.
func NewBrightdataAdapter(proxyURL string, costUSD float64) (Adapter, error) {
	return newPaidProxyAdapter(models.ProviderBrightdata, proxyURL, costUSD)
}

// NewScrapingBrowserAdapter wraps a managed headless-browser-as-a-service endpoint.
func NewScrapingBrowserAdapter(proxyURL string, costUSD float64) (Adapter, error) {
	return newPaidProxyAdapter(models.ProviderScrapingBrowser, proxyURL, costUSD)
}

// NewTwoCaptchaProxyAdapter wraps a plain proxy paired with 2Captcha's solver.
func NewTwoCaptchaProxyAdapter(proxyURL string, costUSD float64) (Adapter, error) {
	return newPaidProxyAdapter(models.ProviderTwocaptchaProxy, proxyURL, costUSD)
}

// NewTwoCaptchaDatadomeAdapter wraps 2Captcha's DataDome-cookie solving flow.
func NewTwoCaptchaDatadomeAdapter(proxyURL string, costUSD float64) (Adapter, error) {
	return newPaidProxyAdapter(models.ProviderTwocaptchaDatadome, proxyURL, costUSD)
}

func (a *paidProxyAdapter) Kind() models.ProviderKind { return a.kind }

func (a *paidProxyAdapter) Fetch(ctx context.Context, req models.FetchRequest) (models.FetchResult, error) {
	result := models.FetchResult{Provider: a.kind, CostUSD: a.costUSD}

	timeout := time.Duration(req.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		result.Outcome = models.OutcomeProviderError
		return result, fmt.Errorf("%s: build request: %w", a.kind, err)
	}

	ua := req.UserAgent
	if ua == "" {
		ua = a.userAgent
	}
	httpReq.Header.Set("User-Agent", ua)
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	started := time.Now()
	resp, err := a.client.Do(httpReq)
	if err != nil {
		result.Outcome = models.OutcomeNetworkError
		return result, fmt.Errorf("%s: do request: %w", a.kind, err)
	}
	defer resp.Body.Close()

	body := make([]byte, 0, 64*1024)
	buf := make([]byte, 32*1024)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			body = append(body, buf[:n]...)
		}
		if readErr != nil {
			break
		}
	}

	result.LatencyMs = time.Since(started).Milliseconds()
	result.HTTPStatus = intPtr(resp.StatusCode)
	result.FinalURL = resp.Request.URL.String()
	result.BodyText = string(body)
	result.BodyBytes = len(body)

	block, signals := detectBlock(resp.StatusCode, resp.Header, result.BodyText)
	result.BlockKind = block
	result.Signals = signals
	result.Outcome = outcomeForStatus(resp.StatusCode, block)

	return result, nil
}
