// Package httpx provides the authenticated HTTP client used by wholesaler
// adapters. Retry policy lives here, at the transport level; adapter
// operations stay idempotent from the caller's perspective.
package httpx

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	"github.com/anucha1993/tour-api-sub001/internal/errs"
)

// Options configures a Client.
type Options struct {
	// Timeout bounds each request (connect + read).
	Timeout time.Duration

	// RateLimit caps requests per second against the wholesaler. 0 means
	// unlimited.
	RateLimit float64

	// RetryMax is the number of transport-level retries. Defaults to 3.
	RetryMax int

	// Auth injects credentials into outgoing requests. Nil means no auth.
	Auth Authenticator

	Logger *slog.Logger
}

// Client wraps a retrying HTTP client with auth injection and per-wholesaler
// rate limiting.
type Client struct {
	http    *http.Client
	auth    Authenticator
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewClient builds a Client from Options.
func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RetryMax == 0 {
		opts.RetryMax = 3
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = opts.RetryMax
	rc.HTTPClient.Timeout = opts.Timeout
	rc.Logger = nil

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}

	return &Client{
		http:    rc.StandardClient(),
		auth:    opts.Auth,
		limiter: limiter,
		logger:  opts.Logger,
	}
}

// Get performs an authenticated GET and returns the response body.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, url, nil, "")
}

// PostJSON performs an authenticated POST with a JSON body.
func (c *Client) PostJSON(ctx context.Context, url string, body []byte) ([]byte, error) {
	return c.do(ctx, http.MethodPost, url, body, "application/json")
}

func (c *Client) do(ctx context.Context, method, url string, body []byte, contentType string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, errs.Wrap(err, errs.KindConnection, "rate limiter interrupted")
		}
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, errs.Wrap(err, errs.KindConfiguration, "building request")
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	if c.auth != nil {
		if err := c.auth.Apply(ctx, req); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errs.Wrap(err, errs.KindConnection, "request failed").
			WithContext("url", url)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.Wrap(err, errs.KindConnection, "reading response body").
			WithContext("url", url)
	}

	c.logger.Debug("upstream request",
		"method", method,
		"url", url,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errs.NewUpstream(resp.StatusCode, string(data), url)
	}

	return data, nil
}
