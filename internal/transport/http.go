// Package transport performs the HTTP exchange for a built provider request.
package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/shineum/anymail-lite/internal/provider"
)

// DefaultTimeout bounds one provider call when no timeout is configured.
const DefaultTimeout = 30 * time.Second

// maxResponseBytes caps how much of a provider response is read.
const maxResponseBytes = 4 << 20

// HTTP sends requests over an instrumented http.Client.
type HTTP struct {
	client *http.Client
}

// NewHTTP returns a transport whose client times out after timeout. A
// non-positive timeout uses DefaultTimeout.
func NewHTTP(timeout time.Duration) *HTTP {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return NewHTTPWithClient(&http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	})
}

// NewHTTPWithClient wraps an existing client, used for testing.
func NewHTTPWithClient(client *http.Client) *HTTP {
	return &HTTP{client: client}
}

// Do performs the request and reads the whole response body. Cancelling
// ctx aborts the call.
func (t *HTTP) Do(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header = req.Header.Clone()
	if httpReq.Header == nil {
		httpReq.Header = make(http.Header)
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &provider.Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}
