// Package httpclient provides the HTTP client used for every upstream feed,
// geocoder and attachment request, with context management, default timeouts,
// bounded retries and optional rate limiting.
package httpclient

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/hazardwatch/hazardwatch/internal/errors"
)

const (
	// DefaultTimeout is the default timeout for HTTP requests if not specified.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxRetries is the number of additional attempts after a retryable failure.
	DefaultMaxRetries = 3

	// DefaultRetryDelay is the base delay between attempts, doubled after each failure.
	DefaultRetryDelay = 2 * time.Second

	// Default connection pool settings
	defaultMaxIdleConns        = 100
	defaultMaxIdleConnsPerHost = 10
	defaultIdleConnTimeout     = 90 * time.Second

	// Default timeouts for various HTTP operations
	defaultTLSHandshakeTimeout   = 10 * time.Second
	defaultResponseHeaderTimeout = 20 * time.Second
	defaultExpectContinueTimeout = 1 * time.Second
	defaultDialTimeout           = 30 * time.Second
	defaultDialKeepAlive         = 30 * time.Second

	// maxErrorBodyBytes bounds how much of an error response is kept for diagnostics
	maxErrorBodyBytes = 512

	defaultUserAgent = "hazardwatch/1.0"
)

// Client wraps http.Client with per-request deadlines, retries and rate limiting.
//
// Thread-safe for concurrent use.
type Client struct {
	client         *http.Client
	defaultTimeout time.Duration
	userAgent      string
	maxRetries     int
	retryDelay     time.Duration
	limiter        *rate.Limiter
	tempDir        string

	hookMu        sync.RWMutex
	beforeRequest func(*http.Request)
	afterResponse func(*http.Request, *http.Response, error)
}

// Config holds configuration for creating an HTTP client.
type Config struct {
	// DefaultTimeout is the timeout applied if request context has no deadline
	DefaultTimeout time.Duration

	// UserAgent is added to all requests
	UserAgent string

	// MaxRetries is the number of retries after a retryable failure; negative disables retries
	MaxRetries int

	// RetryDelay is the base backoff between attempts
	RetryDelay time.Duration

	// RateLimit caps requests per second; zero disables limiting
	RateLimit float64

	// Transport replaces the tuned default transport (tests, oauth2)
	Transport http.RoundTripper

	// TempDir receives downloads; empty uses os.TempDir
	TempDir string

	MaxIdleConns          int
	MaxIdleConnsPerHost   int
	IdleConnTimeout       time.Duration
	TLSHandshakeTimeout   time.Duration
	ResponseHeaderTimeout time.Duration
}

// DefaultConfig returns a Config with sensible production defaults.
func DefaultConfig() Config {
	return Config{
		DefaultTimeout:        DefaultTimeout,
		UserAgent:             defaultUserAgent,
		MaxRetries:            DefaultMaxRetries,
		RetryDelay:            DefaultRetryDelay,
		MaxIdleConns:          defaultMaxIdleConns,
		MaxIdleConnsPerHost:   defaultMaxIdleConnsPerHost,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   defaultTLSHandshakeTimeout,
		ResponseHeaderTimeout: defaultResponseHeaderTimeout,
	}
}

// New creates a new HTTP client with the given configuration.
// Accepts nil cfg (falls back to DefaultConfig) and does not mutate the caller's config.
func New(cfg *Config) *Client {
	var c Config
	if cfg == nil {
		c = DefaultConfig()
	} else {
		c = *cfg
		d := DefaultConfig()
		if c.DefaultTimeout == 0 {
			c.DefaultTimeout = d.DefaultTimeout
		}
		if c.UserAgent == "" {
			c.UserAgent = d.UserAgent
		}
		if c.RetryDelay == 0 {
			c.RetryDelay = d.RetryDelay
		}
		if c.MaxIdleConns == 0 {
			c.MaxIdleConns = d.MaxIdleConns
		}
		if c.MaxIdleConnsPerHost == 0 {
			c.MaxIdleConnsPerHost = d.MaxIdleConnsPerHost
		}
		if c.IdleConnTimeout == 0 {
			c.IdleConnTimeout = d.IdleConnTimeout
		}
		if c.TLSHandshakeTimeout == 0 {
			c.TLSHandshakeTimeout = d.TLSHandshakeTimeout
		}
		if c.ResponseHeaderTimeout == 0 {
			c.ResponseHeaderTimeout = d.ResponseHeaderTimeout
		}
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}

	transport := c.Transport
	if transport == nil {
		transport = &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   defaultDialTimeout,
				KeepAlive: defaultDialKeepAlive,
			}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          c.MaxIdleConns,
			MaxIdleConnsPerHost:   c.MaxIdleConnsPerHost,
			IdleConnTimeout:       c.IdleConnTimeout,
			TLSHandshakeTimeout:   c.TLSHandshakeTimeout,
			ResponseHeaderTimeout: c.ResponseHeaderTimeout,
			ExpectContinueTimeout: defaultExpectContinueTimeout,
		}
	}

	client := &Client{
		client:         &http.Client{Transport: transport},
		defaultTimeout: c.DefaultTimeout,
		userAgent:      c.UserAgent,
		maxRetries:     c.MaxRetries,
		retryDelay:     c.RetryDelay,
		tempDir:        c.TempDir,
	}
	if c.RateLimit > 0 {
		client.limiter = rate.NewLimiter(rate.Limit(c.RateLimit), 1)
	}
	return client
}

// HTTPClient exposes the underlying client, for httpmock.ActivateNonDefault in tests.
func (c *Client) HTTPClient() *http.Client {
	return c.client
}

// cancelOnCloseBody releases the per-request timeout once the caller is done with the body.
type cancelOnCloseBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelOnCloseBody) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

// Do executes a single HTTP request with context management and timeout enforcement.
//
// Context handling:
//   - If ctx has a deadline, it's used as-is
//   - If ctx has no deadline, defaultTimeout is applied until the body is closed
//   - Context cancellation immediately stops the request
//
// The response body must be closed by the caller if err is nil.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, fmt.Errorf("nil request")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	cancel := context.CancelFunc(func() {})
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && c.defaultTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, c.defaultTimeout)
	}
	req = req.WithContext(ctx)

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			cancel()
			return nil, err
		}
	}

	if req.Header.Get("User-Agent") == "" && c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	c.hookMu.RLock()
	beforeHook := c.beforeRequest
	c.hookMu.RUnlock()
	if beforeHook != nil {
		beforeHook(req)
	}

	resp, err := c.client.Do(req)

	c.hookMu.RLock()
	afterHook := c.afterResponse
	c.hookMu.RUnlock()
	if afterHook != nil {
		afterHook(req, resp, err)
	}

	if err != nil {
		cancel()
		return nil, err
	}
	resp.Body = &cancelOnCloseBody{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// Get performs a single GET request with context.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create GET request: %w", err)
	}
	return c.Do(ctx, req)
}

// RequestOption customizes a request built by Fetch or Download.
type RequestOption func(*http.Request)

// WithHeader sets a request header.
func WithHeader(key, value string) RequestOption {
	return func(r *http.Request) { r.Header.Set(key, value) }
}

// WithQuery replaces the request query string.
func WithQuery(values map[string]string) RequestOption {
	return func(r *http.Request) {
		q := r.URL.Query()
		for k, v := range values {
			q.Set(k, v)
		}
		r.URL.RawQuery = q.Encode()
	}
}

// StatusError reports a non-2xx response.
type StatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

// retryable reports whether another attempt could succeed.
func retryable(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || statusCode >= http.StatusInternalServerError
}

// Fetch performs a GET with bounded retries and returns the body.
// Network errors, 429 and 5xx responses are retried with exponential backoff;
// other non-2xx responses fail immediately. The returned error is categorized
// as a network failure.
func (c *Client) Fetch(ctx context.Context, url string, opts ...RequestOption) ([]byte, error) {
	resp, err := c.getWithRetry(ctx, url, opts...)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.New(fmt.Errorf("reading response from %s: %w", url, err)).
			Component("httpclient").
			Category(errors.CategoryNetwork).
			NetworkContext(url, c.defaultTimeout).
			Build()
	}
	return body, nil
}

// getWithRetry returns a 2xx response whose body the caller must close.
func (c *Client) getWithRetry(ctx context.Context, url string, opts ...RequestOption) (*http.Response, error) {
	var lastErr error
	delay := c.retryDelay

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, c.wrapFailure(url, attempt, ctx.Err())
			case <-time.After(delay):
			}
			delay *= 2
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
		if err != nil {
			return nil, errors.New(fmt.Errorf("invalid request url %s: %w", url, err)).
				Component("httpclient").
				Category(errors.CategoryValidation).
				Build()
		}
		for _, opt := range opts {
			opt(req)
		}

		resp, err := c.Do(ctx, req)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return nil, c.wrapFailure(url, attempt+1, err)
			}
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}

		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		_ = resp.Body.Close()
		statusErr := &StatusError{StatusCode: resp.StatusCode, URL: url, Body: string(snippet)}
		if !retryable(resp.StatusCode) {
			return nil, c.wrapFailure(url, attempt+1, statusErr)
		}
		lastErr = statusErr
	}

	return nil, c.wrapFailure(url, c.maxRetries+1, lastErr)
}

func (c *Client) wrapFailure(url string, attempts int, err error) error {
	category := errors.CategoryNetwork
	if errors.Is(err, context.DeadlineExceeded) {
		category = errors.CategoryTimeout
	} else if errors.Is(err, context.Canceled) {
		category = errors.CategoryCancellation
	}
	return errors.New(fmt.Errorf("GET %s failed after %d attempt(s): %w", url, attempts, err)).
		Component("httpclient").
		Category(category).
		Context("attempts", attempts).
		NetworkContext(url, c.defaultTimeout).
		Build()
}

// SetBeforeRequestHook sets a function to be called before each request.
// Safe to call concurrently with Do() and other hook setters.
func (c *Client) SetBeforeRequestHook(fn func(*http.Request)) {
	c.hookMu.Lock()
	defer c.hookMu.Unlock()
	c.beforeRequest = fn
}

// SetAfterResponseHook sets a function to be called after each request.
// Safe to call concurrently with Do() and other hook setters.
func (c *Client) SetAfterResponseHook(fn func(*http.Request, *http.Response, error)) {
	c.hookMu.Lock()
	defer c.hookMu.Unlock()
	c.afterResponse = fn
}

// Close closes idle connections in the connection pool.
func (c *Client) Close() {
	c.client.CloseIdleConnections()
}
