// Package ftc is a thin client for the findthatcharity charity registry.
package ftc

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

// Config configures the charity registry client.
type Config struct {
	BaseURL     string  `mapstructure:"base_url"`
	TimeoutSecs int     `mapstructure:"timeout_secs"`
	RateLimit   float64 `mapstructure:"rate_limit"` // requests per second
}

// Fetcher abstracts the registry lookup for testing.
type Fetcher interface {
	OrgID(ctx context.Context, orgid string) (map[string]any, error)
}

// Client fetches charity records by organisation identifier.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// Ensure Client implements Fetcher.
var _ Fetcher = (*Client)(nil)

// New creates a charity registry client.
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

// OrgID fetches the registry record for an organisation identifier from
// GET {base}/orgid/{id}.json.
func (c *Client) OrgID(ctx context.Context, orgid string) (map[string]any, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "ftc: rate limit")
	}

	reqURL := fmt.Sprintf("%s/orgid/%s.json", c.baseURL, orgid)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "ftc: build request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "ftc: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Wrapf(lookup.ErrMalformedResponse, "ftc: status %d for %s", resp.StatusCode, orgid)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "ftc: read body")
	}

	var record map[string]any
	if err := json.Unmarshal(body, &record); err != nil {
		return nil, eris.Wrapf(lookup.ErrMalformedResponse, "ftc: decode %s: %v", orgid, err)
	}
	return record, nil
}
