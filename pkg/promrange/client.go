// Package promrange queries a Prometheus-compatible server over its range
// query API and reshapes the JSON result into a column-per-instance frame
// ready for a line chart.
//
// The client deliberately does not interpret the response: body and status
// code go back to the caller unconditionally, with no retries and no timeout
// beyond the HTTP client default. The caller decides how to react to a
// non-200 status, typically by echoing the payload back to the user.
package promrange

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Defaults from the original monitoring dashboard.
const (
	DefaultQuery = "node_memory_MemFree_bytes"
	DefaultStep  = "30s"
	// DefaultWindow is how far back the first query reaches.
	DefaultWindow = 60 * time.Minute
)

// rangePath is the Prometheus range query endpoint.
const rangePath = "/api/v1/query_range"

// Client issues range queries against one Prometheus server.
type Client struct {
	// BaseURL is the server base, e.g. http://raspberrypi:9090
	BaseURL string
	// HTTPClient is optional; if nil a default client with timeout is used.
	HTTPClient *http.Client
}

// QueryRange performs a single synchronous GET against the range query
// endpoint with query, start, end (epoch seconds) and step parameters.
//
// It returns the raw response body and HTTP status code unconditionally; the
// error is non-nil only for transport-level failures (bad URL, connection
// refused, read error).
func (c *Client) QueryRange(ctx context.Context, query string, start, end time.Time, step string) ([]byte, int, error) {
	if c.BaseURL == "" {
		return nil, 0, fmt.Errorf("promrange: BaseURL is required")
	}

	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return nil, 0, fmt.Errorf("promrange: invalid BaseURL: %w", err)
	}
	u.Path = rangePath

	q := u.Query()
	q.Set("query", query)
	q.Set("start", fmt.Sprintf("%d", start.Unix()))
	q.Set("end", fmt.Sprintf("%d", end.Unix()))
	q.Set("step", step)
	u.RawQuery = q.Encode()

	cli := c.HTTPClient
	if cli == nil {
		cli = &http.Client{Timeout: 10 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := cli.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("promrange: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("promrange: read response: %w", err)
	}
	return body, resp.StatusCode, nil
}
