package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fabianmarian8/sentinel-sub000/internal/models"
)

// FlaresolverrAdapter proxies the request through a self-hosted FlareSolverr
// instance's v1 API, the last-resort free provider.
type FlaresolverrAdapter struct {
	endpoint string
	client   *http.Client
}

func NewFlaresolverrAdapter(endpoint string) *FlaresolverrAdapter {
	return &FlaresolverrAdapter{endpoint: endpoint, client: &http.Client{}}
}

func (a *FlaresolverrAdapter) Kind() models.ProviderKind { return models.ProviderFlaresolverr }

type flaresolverrRequest struct {
	Cmd        string `json:"cmd"`
	URL        string `json:"url"`
	MaxTimeout int    `json:"maxTimeout"`
}

type flaresolverrSolution struct {
	URL      string `json:"url"`
	Status   int    `json:"status"`
	Response string `json:"response"`
}

type flaresolverrResponse struct {
	Status   string               `json:"status"`
	Message  string               `json:"message"`
	Solution flaresolverrSolution `json:"solution"`
}

func (a *FlaresolverrAdapter) Fetch(ctx context.Context, req models.FetchRequest) (models.FetchResult, error) {
	result := models.FetchResult{Provider: models.ProviderFlaresolverr}

	waitSeconds := req.FlaresolverrWaitSeconds
	if waitSeconds <= 0 {
		waitSeconds = 60
	}

	payload, err := json.Marshal(flaresolverrRequest{
		Cmd:        "request.get",
		URL:        req.URL,
		MaxTimeout: waitSeconds * 1000,
	})
	if err != nil {
		return result, fmt.Errorf("flaresolverr: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint+"/v1", bytes.NewReader(payload))
	if err != nil {
		return result, fmt.Errorf("flaresolverr: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	started := time.Now()
	resp, err := a.client.Do(httpReq)
	if err != nil {
		result.Outcome = models.OutcomeNetworkError
		return result, fmt.Errorf("flaresolverr: call: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		result.Outcome = models.OutcomeProviderError
		return result, fmt.Errorf("flaresolverr: read response: %w", err)
	}

	result.LatencyMs = time.Since(started).Milliseconds()

	var parsed flaresolverrResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		result.Outcome = models.OutcomeProviderError
		return result, fmt.Errorf("flaresolverr: decode response: %w", err)
	}

	if parsed.Status != "ok" {
		result.Outcome = models.OutcomeProviderError
		result.Signals = []string{parsed.Message}
		return result, nil
	}

	result.HTTPStatus = intPtr(parsed.Solution.Status)
	result.FinalURL = parsed.Solution.URL
	result.BodyText = parsed.Solution.Response
	result.BodyBytes = len(parsed.Solution.Response)

	block, signals := detectBlock(parsed.Solution.Status, nil, result.BodyText)
	result.BlockKind = block
	result.Signals = signals
	result.Outcome = outcomeForStatus(parsed.Solution.Status, block)

	return result, nil
}
