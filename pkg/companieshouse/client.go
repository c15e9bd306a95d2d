// Package companieshouse is a thin client for the Companies House open
// data service.
package companieshouse

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/tsg-insights/insights-cli/pkg/lookup"
)

// Config configures the company registry client.
type Config struct {
	BaseURL     string  `mapstructure:"base_url"`
	TimeoutSecs int     `mapstructure:"timeout_secs"`
	RateLimit   float64 `mapstructure:"rate_limit"` // requests per second
}

// Fetcher abstracts the registry lookup for testing.
type Fetcher interface {
	Company(ctx context.Context, number string) (map[string]any, error)
}

// Client fetches company records by company number.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// Ensure Client implements Fetcher.
var _ Fetcher = (*Client)(nil)

// New creates a company registry client.
func New(cfg Config) *Client {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if cfg.TimeoutSecs == 0 {
		timeout = 30 * time.Second
	}
	rps := cfg.RateLimit
	if rps == 0 {
		rps = 10
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
	}
}

// Company fetches the registry record for a company number from
// GET {base}/doc/company/{number}.json.
func (c *Client) Company(ctx context.Context, number string) (map[string]any, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "companieshouse: rate limit")
	}

	reqURL := fmt.Sprintf("%s/doc/company/%s.json", c.baseURL, number)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "companieshouse: build request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "companieshouse: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Wrapf(lookup.ErrMalformedResponse, "companieshouse: status %d for %s", resp.StatusCode, number)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "companieshouse: read body")
	}

	var record map[string]any
	if err := json.Unmarshal(body, &record); err != nil {
		return nil, eris.Wrapf(lookup.ErrMalformedResponse, "companieshouse: decode %s: %v", number, err)
	}
	return record, nil
}
