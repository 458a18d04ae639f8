package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	DefaultTimeout   = 30 * time.Second
	DefaultUserAgent = "Game Feed/1.0"

	// MaxResponseSize caps a single response body (50MB).
	MaxResponseSize = 50 * 1024 * 1024
)

// HTTPClient performs GET requests against sources. Implementations report
// every failure as a *TransportError.
type HTTPClient interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

type httpClient struct {
	client    *http.Client
	userAgent string
}

// NewHTTPClient returns the default HTTPClient. Zero values fall back to
// DefaultTimeout and DefaultUserAgent.
func NewHTTPClient(timeout time.Duration, userAgent string) HTTPClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &httpClient{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
	}
}

func (c *httpClient) Get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &TransportError{URL: url, Err: fmt.Errorf("failed to create request: %w", err)}
	}

	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &TransportError{URL: url, Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, &TransportError{URL: url, StatusCode: resp.StatusCode, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, &TransportError{URL: url, Err: fmt.Errorf("failed to read response body: %w", err)}
	}
	if int64(len(data)) > MaxResponseSize {
		return nil, &TransportError{URL: url, Err: fmt.Errorf("response exceeds %d bytes", MaxResponseSize)}
	}

	return data, nil
}
