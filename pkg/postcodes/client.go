// Package postcodes is a thin client for the findthatcharity postcode and
// geography service.
package postcodes

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/tsg-insights/insights-cli/pkg/lookup"
)

// Config configures the postcode service client.
type Config struct {
	BaseURL     string  `mapstructure:"base_url"`
	TimeoutSecs int     `mapstructure:"timeout_secs"`
	RateLimit   float64 `mapstructure:"rate_limit"` // requests per second
}

// Fetcher abstracts the postcode service for testing.
type Fetcher interface {
	Postcode(ctx context.Context, postcode string) (map[string]any, error)
	AreaNames(ctx context.Context, types []string) (map[string]string, error)
}

// Client fetches postcode records and the geography code name table.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// Ensure Client implements Fetcher.
var _ Fetcher = (*Client)(nil)

// New creates a postcode service client.
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

// Postcode fetches geography data for a postcode from
// GET {base}/postcodes/{postcode}.json.
func (c *Client) Postcode(ctx context.Context, postcode string) (map[string]any, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "postcodes: rate limit")
	}

	reqURL := fmt.Sprintf("%s/postcodes/%s.json", c.baseURL, url.PathEscape(postcode))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "postcodes: build request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "postcodes: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Wrapf(lookup.ErrMalformedResponse, "postcodes: status %d for %s", resp.StatusCode, postcode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "postcodes: read body")
	}

	var record map[string]any
	if err := json.Unmarshal(body, &record); err != nil {
		return nil, eris.Wrapf(lookup.ErrMalformedResponse, "postcodes: decode %s: %v", postcode, err)
	}
	return record, nil
}

// AreaNames fetches the geography code → name table from
// GET {base}/areas/names.csv?types=<comma-list>. The CSV columns are
// type, code, name; keys are returned joined as "type-code".
func (c *Client) AreaNames(ctx context.Context, types []string) (map[string]string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "postcodes: rate limit")
	}

	reqURL := fmt.Sprintf("%s/areas/names.csv?types=%s", c.baseURL, url.QueryEscape(strings.Join(types, ",")))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "postcodes: build request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "postcodes: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Wrapf(lookup.ErrMalformedResponse, "postcodes: names status %d", resp.StatusCode)
	}

	reader := csv.NewReader(resp.Body)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, eris.Wrapf(lookup.ErrMalformedResponse, "postcodes: names header: %v", err)
	}
	typeIdx, codeIdx, nameIdx := -1, -1, -1
	for i, h := range header {
		switch strings.TrimSpace(h) {
		case "type":
			typeIdx = i
		case "code":
			codeIdx = i
		case "name":
			nameIdx = i
		}
	}
	if typeIdx < 0 || codeIdx < 0 || nameIdx < 0 {
		return nil, eris.Wrapf(lookup.ErrMalformedResponse, "postcodes: names csv missing columns: %v", header)
	}

	names := make(map[string]string)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(lookup.ErrMalformedResponse, "postcodes: names row: %v", err)
		}
		if len(record) <= nameIdx || len(record) <= codeIdx || len(record) <= typeIdx {
			continue
		}
		names[record[typeIdx]+"-"+record[codeIdx]] = record[nameIdx]
	}
	return names, nil
}
