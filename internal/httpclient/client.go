// Package httpclient provides the HTTP transport used to probe and talk to
// media servers.
//
// Two paths are exposed: a retrying client for authenticated API calls, and
// a single-shot probe path used for address racing, where retries would only
// add latency and the caller already races multiple candidates.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
)

// Default configuration values.
const (
	DefaultTimeout       = 20 * time.Second
	DefaultRetryAttempts = 3
	defaultUserAgent     = "playhead/1.0"
)

// HeaderAuthToken carries the media server access token.
const HeaderAuthToken = "X-MediaBrowser-Token"

// Request describes a single HTTP request.
type Request struct {
	URL     string
	Method  string
	Header  http.Header
	Body    []byte
	Timeout time.Duration // overrides the client default if non-zero
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Body       []byte
}

// JSON unmarshals the response body into v.
func (r *Response) JSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	return nil
}

// StatusError is returned for responses with status >= 400.
type StatusError struct {
	StatusCode int
	Body       []byte
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status: %d", e.StatusCode)
}

// Doer is the transport contract consumed by the connection manager.
type Doer interface {
	// Do performs a request with retries on transient failures.
	Do(ctx context.Context, req Request) (*Response, error)
	// Probe performs a single-shot request with no retries.
	Probe(ctx context.Context, req Request) (*Response, error)
}

// Client is the default Doer implementation.
type Client struct {
	retry     *retryablehttp.Client
	probe     *http.Client
	timeout   time.Duration
	userAgent string
}

// NewParams contains the parameters for building a new Client.
type NewParams struct {
	Timeout       time.Duration // defaults to 20 seconds
	RetryAttempts int           // defaults to 3
	UserAgent     string
	Logger        *slog.Logger
}

// New creates a new Client.
func New(params NewParams) *Client {
	timeout := params.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	retryAttempts := params.RetryAttempts
	if retryAttempts == 0 {
		retryAttempts = DefaultRetryAttempts
	}
	userAgent := params.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient = cleanhttp.DefaultPooledClient()
	retryClient.RetryMax = retryAttempts
	retryClient.Logger = nil
	if params.Logger != nil {
		retryClient.Logger = &slogAdapter{logger: params.Logger}
	}

	return &Client{
		retry:     retryClient,
		probe:     cleanhttp.DefaultPooledClient(),
		timeout:   timeout,
		userAgent: userAgent,
	}
}

// Do performs a request with retries on transient failures.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	ctx, cancel := c.withTimeout(ctx, req.Timeout)
	defer cancel()

	httpReq, err := retryablehttp.NewRequestWithContext(ctx, c.method(req), req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	c.applyHeader(httpReq.Header, req.Header)

	resp, err := c.retry.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("do: %w", err)
	}

	return readResponse(resp)
}

// Probe performs a single-shot request with no retries.
func (c *Client) Probe(ctx context.Context, req Request) (*Response, error) {
	ctx, cancel := c.withTimeout(ctx, req.Timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, c.method(req), req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	c.applyHeader(httpReq.Header, req.Header)

	resp, err := c.probe.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("do: %w", err)
	}

	return readResponse(resp)
}

func (c *Client) method(req Request) string {
	if req.Method == "" {
		return http.MethodGet
	}
	return req.Method
}

func (c *Client) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout == 0 {
		timeout = c.timeout
	}
	return context.WithTimeout(ctx, timeout)
}

func (c *Client) applyHeader(dst http.Header, src http.Header) {
	dst.Set("User-Agent", c.userAgent)
	for key, values := range src {
		for _, value := range values {
			dst.Add(key, value)
		}
	}
}

func readResponse(resp *http.Response) (*Response, error) {
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: body}
	}

	return &Response{StatusCode: resp.StatusCode, Body: body}, nil
}

// slogAdapter adapts slog.Logger to the retryablehttp leveled logger
// interface.
type slogAdapter struct {
	logger *slog.Logger
}

func (a *slogAdapter) Error(msg string, keysAndValues ...any) {
	a.logger.Error(msg, keysAndValues...)
}

func (a *slogAdapter) Info(msg string, keysAndValues ...any) {
	a.logger.Info(msg, keysAndValues...)
}

func (a *slogAdapter) Debug(msg string, keysAndValues ...any) {
	a.logger.Debug(msg, keysAndValues...)
}

func (a *slogAdapter) Warn(msg string, keysAndValues ...any) {
	a.logger.Warn(msg, keysAndValues...)
}
