package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultTimeout bounds a single catalog request.
const DefaultTimeout = 10 * time.Second

// maxBodySize caps the catalog response read into memory.
const maxBodySize = 16 << 20

// StatusError reports a non-2xx catalog response.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Body == "" {
		return fmt.Sprintf("catalog: GET %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("catalog: GET %s: status %d: %s", e.URL, e.StatusCode, e.Body)
}

// HTTPOption configures an HTTPClient.
type HTTPOption func(*HTTPClient)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(c *HTTPClient) {
		if client != nil {
			c.client = client
		}
	}
}

// WithHeader adds a request header, e.g. an Authorization token.
func WithHeader(key, value string) HTTPOption {
	return func(c *HTTPClient) {
		c.headers.Add(key, value)
	}
}

// WithTimeout bounds each request. Zero keeps DefaultTimeout.
func WithTimeout(timeout time.Duration) HTTPOption {
	return func(c *HTTPClient) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// HTTPClient reads the catalog from an HTTP endpoint with GET.
type HTTPClient struct {
	url     string
	client  *http.Client
	headers http.Header
	timeout time.Duration
}

// NewHTTPClient returns a client for the catalog served at url.
func NewHTTPClient(url string, opts ...HTTPOption) *HTTPClient {
	c := &HTTPClient{
		url:     strings.TrimSpace(url),
		client:  http.DefaultClient,
		headers: http.Header{},
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// GetVariables implements Catalog.
func (c *HTTPClient) GetVariables(ctx context.Context) ([]Entry, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("catalog: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for key, values := range c.headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog: GET %s: %w", c.url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", c.url, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: c.url, StatusCode: resp.StatusCode, Body: snippet(body)}
	}
	return DecodeJSON(c.url, body)
}

func snippet(body []byte) string {
	const limit = 200
	text := strings.TrimSpace(string(body))
	if len(text) > limit {
		return text[:limit] + "..."
	}
	return text
}
