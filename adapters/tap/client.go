package tap

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"exocompare/internal"
	"exocompare/internal/errors"
)

const userAgent = "exocompare/1.0 (go net/http)"

var logger = internal.DefaultLogger.WithComponent("tap")

// Query describes one synchronous TAP request
type Query struct {
	Endpoint string
	Table    string
	Format   string
	Columns  []string
	Methods  []string
}

// HTTPMeta is the response metadata recorded in the run log
type HTTPMeta struct {
	Status             int    `json:"status"`
	ContentType        string `json:"content_type"`
	ResponseBytes      int    `json:"response_bytes"`
	ContentLengthBytes *int64 `json:"content_length_bytes,omitempty"`
	Attempts           int    `json:"attempts"`
	Method             string `json:"method"`
}

// FetchResult is a fetched CSV payload plus everything needed to audit it
type FetchResult struct {
	CSV  []byte
	ADQL string
	URL  string
	HTTP HTTPMeta
}

// Client fetches catalog tables from a TAP sync endpoint
type Client struct {
	httpClient *http.Client
	maxRetries int
	backoff    time.Duration
}

// NewClient creates a client with a per-attempt timeout
func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: 3,
		backoff:    time.Second,
	}
}

// WithRetries sets the attempt budget and the linear backoff step
func (c *Client) WithRetries(maxRetries int, backoff time.Duration) *Client {
	c.maxRetries = maxRetries
	c.backoff = backoff
	return c
}

// fallbackStatuses are answered by retrying the same query as a form POST.
var fallbackStatuses = map[int]bool{
	http.StatusBadRequest:                  true,
	http.StatusRequestURITooLong:           true,
	http.StatusRequestHeaderFieldsTooLarge: true,
}

// transientStatuses are retried.
var transientStatuses = map[int]bool{
	http.StatusBadGateway:         true,
	http.StatusServiceUnavailable: true,
	http.StatusGatewayTimeout:     true,
}

// Fetch runs the query. GET is tried first; a 400/414/431 answer falls back
// to POST. Transport errors and 502/503/504 are retried up to maxRetries
// attempts in total.
func (c *Client) Fetch(ctx context.Context, q Query) (*FetchResult, error) {
	adql, err := BuildADQL(q.Table, q.Columns, q.Methods)
	if err != nil {
		return nil, err
	}
	syncURL := strings.TrimRight(q.Endpoint, "/") + "/sync"
	params := url.Values{"query": {adql}, "format": {q.Format}}

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt-1) * c.backoff):
			}
		}

		res, retry, err := c.attempt(ctx, syncURL, params)
		if err == nil {
			res.ADQL = adql
			res.HTTP.Attempts = attempt
			logger.Info("fetched %d bytes from %s (status %d, attempt %d)", res.HTTP.ResponseBytes, syncURL, res.HTTP.Status, attempt)
			return res, nil
		}
		lastErr = err
		if !retry || ctx.Err() != nil {
			break
		}
		logger.Warn("attempt %d/%d failed: %v", attempt, c.maxRetries, err)
	}

	return nil, errors.ExternalServiceError("TAP", fmt.Errorf("fetch failed after %d attempt(s): %w", c.maxRetries, lastErr))
}

// attempt performs one GET (and POST fallback). retry reports whether the
// failure is worth another attempt.
func (c *Client) attempt(ctx context.Context, syncURL string, params url.Values) (*FetchResult, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, syncURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("GET %s: %w", syncURL, err)
	}

	if fallbackStatuses[resp.StatusCode] {
		drain(resp)
		post, err := http.NewRequestWithContext(ctx, http.MethodPost, syncURL, strings.NewReader(params.Encode()))
		if err != nil {
			return nil, false, err
		}
		post.Header.Set("User-Agent", userAgent)
		post.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		resp, err = c.httpClient.Do(post)
		if err != nil {
			return nil, true, fmt.Errorf("POST %s: %w", syncURL, err)
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, transientStatuses[resp.StatusCode], fmt.Errorf("TAP returned status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	meta := HTTPMeta{
		Status:        resp.StatusCode,
		ContentType:   resp.Header.Get("Content-Type"),
		ResponseBytes: len(body),
		Method:        resp.Request.Method,
	}
	if cl := resp.Header.Get("Content-Length"); cl != "" {
		if n, err := strconv.ParseInt(cl, 10, 64); err == nil {
			meta.ContentLengthBytes = &n
		}
	}

	return &FetchResult{CSV: body, URL: resp.Request.URL.String(), HTTP: meta}, false, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
