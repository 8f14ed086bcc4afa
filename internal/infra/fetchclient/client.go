// Package fetchclient provides a resilient HTTP client for outbound calls.
// It composes a per-attempt timeout, retry with backoff, and a circuit breaker
// around one logical request: the retries run inside a single breaker
// execution, so one logical request counts as exactly one pass or fail toward
// the breaker regardless of how many attempts it took internally.
package fetchclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"manga-notify/internal/resilience/circuitbreaker"
	"manga-notify/internal/resilience/retry"
)

// ErrNotFound indicates the upstream returned 404 for the requested resource.
// It is terminal: never retried and never counted against the circuit breaker.
var ErrNotFound = errors.New("upstream resource not found")

// maxErrorBodyBytes bounds how much of an error response body is kept for diagnostics.
const maxErrorBodyBytes = 2048

// Config holds the configuration for a resilient fetch client.
type Config struct {
	// Timeout is the per-attempt request timeout. Each retry gets a fresh
	// timeout; caller cancellation composes with it (either aborts the call).
	// Default: 15s
	Timeout time.Duration

	// DefaultHeaders are applied to every request; per-call headers override
	// them key by key.
	DefaultHeaders map[string]string

	// Retry configures the backoff policy applied inside the breaker.
	Retry retry.Config

	// MaxBodySize limits how many response bytes are read.
	// Default: 10 MiB
	MaxBodySize int64
}

// DefaultConfig returns a fetch client configuration with conservative limits.
func DefaultConfig() Config {
	return Config{
		Timeout:     15 * time.Second,
		Retry:       retry.DefaultConfig(),
		MaxBodySize: 10 << 20,
	}
}

// Client is a resilient HTTP client bound to one circuit breaker target.
// It is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	breaker    *circuitbreaker.CircuitBreaker
	cfg        Config
}

// New creates a resilient fetch client. The breaker is owned by the caller's
// registry so its state is shared across every client for the same target.
func New(cfg Config, breaker *circuitbreaker.CircuitBreaker) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = 10 << 20
	}
	return &Client{
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
				TLSClientConfig: &tls.Config{
					MinVersion: tls.VersionTLS12,
				},
			},
		},
		breaker: breaker,
		cfg:     cfg,
	}
}

// Request describes one outbound logical request.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
}

// Response is the successful (2xx) outcome of a request.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Do performs the request with retry inside one circuit breaker execution.
// 404 maps to ErrNotFound; other non-2xx statuses map to *retry.HTTPError
// carrying the status, a body excerpt, and any Retry-After hint.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	var resp *Response
	start := time.Now()
	err := c.breaker.Execute(func() error {
		return retry.Do(ctx, c.cfg.Retry, func() error {
			r, err := c.attempt(ctx, req)
			if err != nil {
				return err
			}
			resp = r
			return nil
		})
	})
	observeRequest(c.breaker.Name(), req.Method, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Get is shorthand for Do with GET and no body.
func (c *Client) Get(ctx context.Context, url string, headers map[string]string) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodGet, URL: url, Headers: headers})
}

// attempt executes a single HTTP attempt under its own timeout.
func (c *Client) attempt(ctx context.Context, req Request) (*Response, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(attemptCtx, method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, v := range c.cfg.DefaultHeaders {
		httpReq.Header.Set(k, v)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		// A tripped per-attempt deadline is a retryable timeout as long as
		// the caller itself has not given up.
		if attemptCtx.Err() != nil && ctx.Err() == nil {
			return nil, &timeoutError{url: req.URL, limit: c.cfg.Timeout}
		}
		return nil, fmt.Errorf("%s %s: %w", method, req.URL, err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	if httpResp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%s %s: %w", method, req.URL, ErrNotFound)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		excerpt, _ := io.ReadAll(io.LimitReader(httpResp.Body, maxErrorBodyBytes))
		httpErr := &retry.HTTPError{
			StatusCode: httpResp.StatusCode,
			Body:       string(excerpt),
		}
		if ra, ok := retry.ParseRetryAfter(httpResp.Header.Get("Retry-After"), time.Now()); ok {
			httpErr.RetryAfter = ra
			httpErr.HasRetryAfter = true
		}
		return nil, httpErr
	}

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, c.cfg.MaxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       data,
	}, nil
}

// IsCircuitFailure classifies which request outcomes should count toward
// opening the circuit: connectivity problems, timeouts, and retryable
// upstream statuses. Terminal application errors (404, other 4xx) pass
// through without penalizing the upstream target.
func IsCircuitFailure(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotFound) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var httpErr *retry.HTTPError
	if errors.As(err, &httpErr) {
		return retry.IsRetryable(httpErr)
	}
	// Everything else (timeouts, DNS, connection resets) is an upstream
	// health signal.
	return true
}

// timeoutError marks a per-attempt timeout. It satisfies net.Error so the
// retry policy classifies it as retryable.
type timeoutError struct {
	url   string
	limit time.Duration
}

func (e *timeoutError) Error() string {
	return fmt.Sprintf("request to %s timed out after %s", e.url, e.limit)
}

func (e *timeoutError) Timeout() bool   { return true }
func (e *timeoutError) Temporary() bool { return true }
