// Package request provides the outbound HTTP client used by the signal
// pollers: bounded timeout, exponential-backoff retries, JSON decoding.
package request

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"curbcast/pkg/config"
	"curbcast/pkg/version"
)

var defaultUserAgent = fmt.Sprintf("curbcast/%s", version.Version)

// StatusError is returned for non-2xx responses that are not retried
// away.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Code, truncate(e.Body, 200))
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}

// Client performs outbound GET requests with retries.
type Client struct {
	httpClient *http.Client
	retries    int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// New creates a client from the request configuration.
func New(cfg *config.RequestConfig) *Client {
	timeout := cfg.Timeout.Std()
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		retries:    cfg.Retries,
		baseDelay:  cfg.Backoff.BaseDelay.Std(),
		maxDelay:   cfg.Backoff.MaxDelay.Std(),
	}
}

// Get fetches a URL with query parameters and returns the response body.
// Transient failures (network errors, 5xx, 429) are retried with
// exponential backoff; other non-2xx statuses fail immediately.
func (c *Client) Get(ctx context.Context, rawURL string, params url.Values) ([]byte, error) {
	u := rawURL
	if len(params) > 0 {
		u = rawURL + "?" + params.Encode()
	}

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.delay(attempt)):
			}
		}

		body, retryable, err := c.do(ctx, u)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}
		slog.Debug("request retry", "url", rawURL, "attempt", attempt+1, "error", err)
	}
	return nil, fmt.Errorf("request failed after %d attempts: %w", c.retries+1, lastErr)
}

// GetJSON fetches a URL and decodes the JSON response into out.
func (c *Client) GetJSON(ctx context.Context, rawURL string, params url.Values, out any) error {
	body, err := c.Get(ctx, rawURL, params)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response from %s: %w", rawURL, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, u string) (body []byte, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", defaultUserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, true, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		retry := resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		return nil, retry, &StatusError{Code: resp.StatusCode, Body: string(data)}
	}
	return data, false, nil
}

// delay is the exponential backoff before the given retry attempt.
func (c *Client) delay(attempt int) time.Duration {
	base := c.baseDelay
	if base <= 0 {
		base = time.Second
	}
	d := base << (attempt - 1)
	if c.maxDelay > 0 && d > c.maxDelay {
		d = c.maxDelay
	}
	return d
}
