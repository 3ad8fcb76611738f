// Package httpclient is the retrying, rate-limited JSON GET client shared by
// the data providers.
package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/rewired-gh/stableyield/internal/logger"
)

// StatusError is a non-retryable HTTP response.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request to %s failed with status %d: %s", e.URL, e.StatusCode, e.Body)
}

// Options configures a Client.
type Options struct {
	Timeout        time.Duration
	MaxRetries     int
	RetryDelayBase time.Duration
	// RequestsPerMinute caps outgoing requests; zero disables limiting.
	RequestsPerMinute int
}

// Client performs GET requests with linear backoff on transport and 5xx errors.
type Client struct {
	httpClient     *http.Client
	limiter        *rate.Limiter
	maxRetries     int
	retryDelayBase time.Duration
}

// New creates a client.
func New(opts Options) *Client {
	c := &Client{
		httpClient:     &http.Client{Timeout: opts.Timeout},
		maxRetries:     opts.MaxRetries,
		retryDelayBase: opts.RetryDelayBase,
	}
	if c.maxRetries < 1 {
		c.maxRetries = 1
	}
	if opts.RequestsPerMinute > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(float64(opts.RequestsPerMinute)/60), 1)
	}
	return c
}

// GetJSON fetches urlStr and decodes the body into out.
func (c *Client) GetJSON(ctx context.Context, urlStr string, out interface{}) error {
	resp, err := c.doRequest(ctx, urlStr)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) doRequest(ctx context.Context, urlStr string) (*http.Response, error) {
	var lastErr error

	for i := 0; i < c.maxRetries; i++ {
		if i > 0 {
			delay := time.Duration(i) * c.retryDelayBase
			logger.Debug("Retrying request (attempt %d/%d) after %v: %v", i+1, c.maxRetries, delay, lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}

		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			resp.Body.Close()
			return nil, &StatusError{URL: redact(req), StatusCode: resp.StatusCode, Body: string(body)}
		}

		return resp, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// redact drops query parameters, which may carry API keys.
func redact(req *http.Request) string {
	u := *req.URL
	u.RawQuery = ""
	return u.String()
}
