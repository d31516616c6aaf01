// Package upstream pulls pending CAD data for scheduled runs.
package upstream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/telhawk-systems/etl-central-square/internal/apperr"
)

const maxResponseSize = 16 << 20

// Fetcher returns the raw upstream payload, or nil when nothing is pending.
type Fetcher interface {
	Fetch(ctx context.Context) ([]byte, error)
}

type Config struct {
	URL          string
	APIKey       string
	APIKeyHeader string
	Timeout      time.Duration
}

// HTTPFetcher GETs a CAD export endpoint.
type HTTPFetcher struct {
	url          string
	apiKey       string
	apiKeyHeader string
	httpClient   *http.Client
}

func NewHTTPFetcher(cfg Config) *HTTPFetcher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	header := cfg.APIKeyHeader
	if header == "" {
		header = "X-API-Key"
	}
	return &HTTPFetcher{
		url:          cfg.URL,
		apiKey:       cfg.APIKey,
		apiKeyHeader: header,
		httpClient:   &http.Client{Timeout: timeout},
	}
}

// Fetch treats 204 No Content and an empty body as nothing pending.
func (f *HTTPFetcher) Fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, apperr.UpstreamFetch("invalid upstream request", err)
	}
	req.Header.Set("Accept", "application/json")
	if f.apiKey != "" {
		req.Header.Set(f.apiKeyHeader, f.apiKey)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, apperr.UpstreamFetch("upstream request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperr.UpstreamFetch(fmt.Sprintf("upstream returned status %d", resp.StatusCode), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize+1))
	if err != nil {
		return nil, apperr.UpstreamFetch("failed to read upstream response", err)
	}
	if len(body) > maxResponseSize {
		return nil, apperr.UpstreamFetch("upstream response too large", nil)
	}
	if len(body) == 0 {
		return nil, nil
	}
	return body, nil
}

// NoOpFetcher is used when no upstream source is configured.
type NoOpFetcher struct{}

func (NoOpFetcher) Fetch(ctx context.Context) ([]byte, error) {
	return nil, nil
}
