// Package fx looks up currency exchange rates from a Frankfurter-compatible
// API (https://www.frankfurter.app).
package fx

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is the public Frankfurter endpoint.
const DefaultBaseURL = "https://api.frankfurter.app"

// Client fetches exchange rates.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client. timeout bounds every request.
func New(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type latestResponse struct {
	Amount float64            `json:"amount"`
	Base   string             `json:"base"`
	Date   string             `json:"date"`
	Rates  map[string]float64 `json:"rates"`
}

// Fetch returns how many units of to one unit of from buys.
func (c *Client) Fetch(ctx context.Context, from, to string) (float64, error) {
	from, to = strings.ToUpper(from), strings.ToUpper(to)
	if from == to {
		return 1, nil
	}

	q := url.Values{"from": {from}, "to": {to}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/latest?"+q.Encode(), nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build rate request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch rate %s->%s: %w", from, to, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("failed to fetch rate %s->%s: status %d", from, to, resp.StatusCode)
	}

	var body latestResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("failed to decode rate response: %w", err)
	}
	rate, ok := body.Rates[to]
	if !ok || rate <= 0 {
		return 0, fmt.Errorf("no rate for %s->%s", from, to)
	}
	return rate, nil
}

// Rate is Fetch with a fallback: any failure is logged and yields 1.
func (c *Client) Rate(ctx context.Context, from, to string) float64 {
	rate, err := c.Fetch(ctx, from, to)
	if err != nil {
		slog.Warn("Exchange rate lookup failed, using 1", "from", from, "to", to, "error", err)
		return 1
	}
	return rate
}
