// Package transport provides the shared HTTP client used by source adapters.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/therealsahil19/webspace/pkg/errors"
)

// DefaultTimeout is the default timeout for HTTP requests.
var DefaultTimeout = 30 * time.Second

// DefaultUserAgent identifies webspace traffic to upstream sources.
const DefaultUserAgent = "webspace/1.0 (+https://github.com/therealsahil19/webspace)"

// maxBodySize caps response bodies so a misbehaving source cannot exhaust
// memory.
const maxBodySize = 16 << 20 // 16 MiB

// Client provides HTTP client functionality with sane defaults for scraping
// launch data sources.
type Client struct {
	http      *http.Client
	userAgent string
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout overrides the request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithHTTPClient replaces the underlying http.Client. Useful in tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// New creates a transport client.
func New(opts ...Option) *Client {
	c := &Client{
		http:      &http.Client{Timeout: DefaultTimeout},
		userAgent: DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do performs an HTTP request with common headers applied.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if req.Method == http.MethodPost || req.Method == http.MethodPut || req.Method == http.MethodPatch {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.http.Do(req)
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request for %s: %w", url, err)
	}
	return c.Do(req)
}

// GetJSON performs a GET request and decodes the JSON response body into v.
// Non-2xx statuses and decode failures are reported as adapter errors
// attributed to source.
func (c *Client) GetJSON(ctx context.Context, source, url string, v any) error {
	resp, err := c.Get(ctx, url)
	if err != nil {
		return errors.NewAdapterError(source, "network", "fetch "+url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain a little of the body so the connection can be reused.
		io.CopyN(io.Discard, resp.Body, 512) //nolint:errcheck
		return errors.NewAdapterError(source, "network",
			fmt.Sprintf("fetch %s: unexpected status %d", url, resp.StatusCode), nil)
	}

	body := io.LimitReader(resp.Body, maxBodySize)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		return errors.NewAdapterError(source, "parse", "decode response from "+url, err)
	}
	return nil
}
