// Package httpx is the shared HTTP client for external providers. It retries
// transient failures and reports per-call latency to the metrics sink.
package httpx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/kilianp07/ambudispatch/core/metrics"
)

const (
	DefaultMaxAttempts = 3
	DefaultBackoff     = 200 * time.Millisecond
	defaultUserAgent   = "ambudispatch/1.0"
)

// StatusError is returned for 4xx/5xx responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("Code %d: %s", e.Code, e.Body)
}

// Options configures a Client. Zero values pick defaults.
type Options struct {
	Provider    string
	UserAgent   string
	Headers     map[string]string
	Timeout     time.Duration
	MaxAttempts int
	Backoff     time.Duration
	HTTPClient  *http.Client
	Recorder    metrics.ProviderCallRecorder
}

// Client wraps http.Client with retry and metrics.
type Client struct {
	session     *http.Client
	provider    string
	userAgent   string
	headers     map[string]string
	maxAttempts int
	backoff     time.Duration
	recorder    metrics.ProviderCallRecorder
}

func New(opts Options) *Client {
	c := &Client{
		session:     opts.HTTPClient,
		provider:    opts.Provider,
		userAgent:   opts.UserAgent,
		headers:     opts.Headers,
		maxAttempts: opts.MaxAttempts,
		backoff:     opts.Backoff,
		recorder:    opts.Recorder,
	}
	if c.session == nil {
		c.session = &http.Client{Timeout: opts.Timeout}
	}
	if c.userAgent == "" {
		c.userAgent = defaultUserAgent
	}
	if c.maxAttempts <= 0 {
		c.maxAttempts = DefaultMaxAttempts
	}
	if c.backoff <= 0 {
		c.backoff = DefaultBackoff
	}
	if c.provider == "" {
		c.provider = "http"
	}
	return c
}

// SetRecorder installs the provider call recorder.
func (c *Client) SetRecorder(r metrics.ProviderCallRecorder) { c.recorder = r }

// NewRequest builds a request with the client's default headers.
func (c *Client) NewRequest(ctx context.Context, method, url string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	resp, err := c.session.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	return resp, nil
}

// Do executes the request built by makeReq, retrying network errors and
// 429/5xx responses with exponential backoff while ctx is alive. makeReq is
// called once per attempt so request bodies can be rebuilt.
func (c *Client) Do(ctx context.Context, makeReq func() (*http.Request, error)) (*http.Response, error) {
	start := time.Now()
	resp, err := c.doWithRetry(ctx, makeReq)
	c.record(start, err)
	return resp, err
}

// DoOnce executes the request exactly once. Non-idempotent writes go through
// here: a 502 or timeout may still mean the server committed.
func (c *Client) DoOnce(ctx context.Context, makeReq func() (*http.Request, error)) (*http.Response, error) {
	start := time.Now()
	resp, err := c.attempts(ctx, makeReq, 1)
	c.record(start, err)
	return resp, err
}

func (c *Client) doWithRetry(ctx context.Context, makeReq func() (*http.Request, error)) (*http.Response, error) {
	return c.attempts(ctx, makeReq, c.maxAttempts)
}

func (c *Client) attempts(ctx context.Context, makeReq func() (*http.Request, error), maxAttempts int) (*http.Response, error) {
	backoff := c.backoff
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		req, err := makeReq()
		if err != nil {
			return nil, fmt.Errorf("make request: %w", err)
		}
		resp, err := c.do(req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !Retryable(err) || attempt == maxAttempts {
			return nil, lastErr
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		backoff *= 2
	}
	return nil, lastErr
}

// Retryable reports whether err is worth another attempt.
func Retryable(err error) bool {
	var he *StatusError
	if errors.As(err, &he) {
		switch he.Code {
		case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var he *StatusError
	return errors.As(err, &he) && he.Code == code
}

func (c *Client) record(start time.Time, err error) {
	if c.recorder == nil {
		return
	}
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, context.DeadlineExceeded):
		outcome = "timeout"
	default:
		outcome = "error"
	}
	_ = c.recorder.RecordProviderCall(metrics.ProviderCallEvent{
		Provider: c.provider,
		Outcome:  outcome,
		Latency:  time.Since(start),
		Time:     start,
	})
}
