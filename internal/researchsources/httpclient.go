package researchsources

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// HTTPClientConfig configures the HTTP client.
type HTTPClientConfig struct {
	// Timeout is the request timeout for HTTP operations.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	BurstSize int

	// MaxRetries is the maximum number of retry attempts on 429/5xx and
	// network errors. Ignored when DisableRetries is set.
	MaxRetries int

	// DisableRetries makes every request a single attempt. Adapters that run
	// their own retry policy set this so that attempts are not multiplied.
	DisableRetries bool

	// RetryDelay is the base delay between retries.
	RetryDelay time.Duration

	// UserAgents is the pool a User-Agent is drawn from for each request that
	// does not set one. Defaults to a single service identifier.
	UserAgents []string
}

// DefaultUserAgent identifies the service when no browser pool is configured.
const DefaultUserAgent = "Helixir-ResearcherLookup/1.0"

type proxyKey struct{}

// WithProxy returns a context that routes requests made with it through proxy.
// A nil proxy means a direct connection.
func WithProxy(ctx context.Context, proxy *url.URL) context.Context {
	return context.WithValue(ctx, proxyKey{}, proxy)
}

// ProxyFromContext returns the proxy attached with WithProxy, if any.
func ProxyFromContext(ctx context.Context) *url.URL {
	proxy, _ := ctx.Value(proxyKey{}).(*url.URL)
	return proxy
}

// proxyForRequest is the transport Proxy func: the context proxy wins, and
// the environment (HTTPS_PROXY etc.) applies otherwise.
func proxyForRequest(req *http.Request) (*url.URL, error) {
	if proxy := ProxyFromContext(req.Context()); proxy != nil {
		return proxy, nil
	}
	return http.ProxyFromEnvironment(req)
}

// HTTPClient wraps http.Client with rate limiting, retries and per-request
// proxy selection. It is safe for concurrent use.
type HTTPClient struct {
	client      *http.Client
	rateLimiter *RateLimiter
	config      HTTPClientConfig
}

// NewHTTPClient creates a new HTTP client with rate limiting.
// Unless DisableRetries is set, the client retries on 429 (Too Many Requests),
// 5xx server errors and network failures.
func NewHTTPClient(cfg HTTPClientConfig) *HTTPClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 10
	}
	if cfg.BurstSize == 0 {
		cfg.BurstSize = 10
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.DisableRetries {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Second
	}
	if len(cfg.UserAgents) == 0 {
		cfg.UserAgents = []string{DefaultUserAgent}
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = proxyForRequest

	return &HTTPClient{
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		rateLimiter: NewRateLimiter(cfg.RateLimit, cfg.BurstSize),
		config:      cfg,
	}
}

// Do executes an HTTP request with rate limiting and, unless disabled, retries.
// It waits for the rate limiter before each attempt and sets a User-Agent from
// the pool when the request has none. The proxy is taken from the request
// context (see WithProxy).
func (c *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent())
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if err := c.rateLimiter.Wait(req.Context()); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			lastErr = fmt.Errorf("request failed: %w", err)
			if attempt < c.config.MaxRetries {
				if err := c.waitForRetry(req.Context(), c.config.RetryDelay); err != nil {
					return nil, err
				}
				continue
			}
			return nil, lastErr
		}

		if c.config.MaxRetries > 0 && c.shouldRetry(resp.StatusCode) {
			retryDelay := c.getRetryDelay(resp)

			if attempt < c.config.MaxRetries {
				if resp.Body != nil {
					_, _ = io.Copy(io.Discard, resp.Body)
					resp.Body.Close()
				}
				lastErr = fmt.Errorf("server returned status %d", resp.StatusCode)
				if err := c.waitForRetry(req.Context(), retryDelay); err != nil {
					return nil, err
				}
				continue
			}
		}

		// Success, non-retryable status, or retries exhausted: the caller
		// maps the status to a domain error.
		return resp, nil
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, errors.New("unexpected error: no response received")
}

func (c *HTTPClient) userAgent() string {
	pool := c.config.UserAgents
	if len(pool) == 1 {
		return pool[0]
	}
	return pool[rand.IntN(len(pool))]
}

// shouldRetry returns true if the status code indicates we should retry.
func (c *HTTPClient) shouldRetry(statusCode int) bool {
	if statusCode == http.StatusTooManyRequests {
		return true
	}
	return statusCode >= 500 && statusCode < 600
}

// getRetryDelay respects the Retry-After header if present, otherwise uses
// the configured retry delay.
func (c *HTTPClient) getRetryDelay(resp *http.Response) time.Duration {
	retryAfter := resp.Header.Get("Retry-After")
	if retryAfter == "" {
		return c.config.RetryDelay
	}

	if seconds, err := strconv.ParseInt(retryAfter, 10, 64); err == nil {
		if seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
		return c.config.RetryDelay
	}

	if t, err := http.ParseTime(retryAfter); err == nil {
		if delay := time.Until(t); delay > 0 {
			return delay
		}
	}

	return c.config.RetryDelay
}

// waitForRetry waits for the specified duration, respecting context cancellation.
func (c *HTTPClient) waitForRetry(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
