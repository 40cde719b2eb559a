package serpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/helixir/researcher-lookup-service/internal/domain"
	"github.com/helixir/researcher-lookup-service/internal/observability"
	"github.com/helixir/researcher-lookup-service/internal/researchsources"
)

const (
	// DefaultBaseURL is the SerpAPI endpoint root.
	DefaultBaseURL = "https://serpapi.com"

	// DefaultEngine is the Google Scholar author search engine.
	DefaultEngine = "google_scholar_author"

	// DefaultTimeout bounds the single search request.
	DefaultTimeout = 30 * time.Second

	// DefaultRateLimit is the client-side request rate.
	DefaultRateLimit = 5.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 5

	// sourceName is the human-readable name for this source.
	sourceName = "SerpAPI"

	// searchEndpoint labels request metrics.
	searchEndpoint = "search"
)

// Config contains configuration options for the SerpAPI client.
type Config struct {
	// BaseURL is the API root. Defaults to DefaultBaseURL if empty.
	BaseURL string

	// Engine is the SerpAPI engine. Defaults to DefaultEngine if empty.
	Engine string

	// Timeout is the HTTP request timeout. Defaults to DefaultTimeout if zero.
	Timeout time.Duration

	// RateLimit is the maximum requests per second. Defaults to DefaultRateLimit if zero.
	RateLimit float64

	// BurstSize is the maximum burst of requests. Defaults to DefaultBurstSize if zero.
	BurstSize int

	// Enabled indicates whether this source is enabled.
	Enabled bool

	// Metrics records request counts and latency when set.
	Metrics *observability.Metrics
}

// Client implements researchsources.ResearcherSource for SerpAPI.
type Client struct {
	httpClient *researchsources.HTTPClient
	config     Config
}

var _ researchsources.ResearcherSource = (*Client)(nil)

// NewClient creates a new SerpAPI client. If httpClient is nil a single-attempt
// client is created from the configuration.
func NewClient(cfg Config, httpClient *researchsources.HTTPClient) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Engine == "" {
		cfg.Engine = DefaultEngine
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = DefaultRateLimit
	}
	if cfg.BurstSize == 0 {
		cfg.BurstSize = DefaultBurstSize
	}

	if httpClient == nil {
		httpClient = researchsources.NewHTTPClient(researchsources.HTTPClientConfig{
			Timeout:        cfg.Timeout,
			RateLimit:      cfg.RateLimit,
			BurstSize:      cfg.BurstSize,
			DisableRetries: true,
		})
	}

	return &Client{
		httpClient: httpClient,
		config:     cfg,
	}
}

// Fetch runs one author search and returns at most q.MaxResults records in
// the order SerpAPI returned them.
func (c *Client) Fetch(ctx context.Context, q researchsources.Query) researchsources.Outcome {
	start := time.Now()
	out := researchsources.Outcome{Source: domain.SourceTypeSerpAPI}

	apiKey := strings.TrimSpace(q.APIKey)
	if apiKey == "" {
		out.Fail(researchsources.OutcomeConfigError, domain.ErrMissingCredential,
			"SerpAPI error: no API key configured.")
		out.Finish(start)
		return out
	}

	resp, err := c.search(ctx, q.Area, apiKey)
	if err != nil {
		out.Fail(researchsources.OutcomeUpstreamError, err, "SerpAPI error: %v", err)
		out.Finish(start)
		return out
	}

	entries := resp.Entries()
	limit := q.MaxResults
	if limit > len(entries) {
		limit = len(entries)
	}
	if limit < 0 {
		limit = 0
	}
	out.Records = make([]domain.ResearcherRecord, 0, limit)
	for _, author := range entries[:limit] {
		out.Records = append(out.Records, author.ToRecord())
	}

	out.Finish(start)
	return out
}

// search performs the GET and decodes the body. A JSON "error" field is an
// upstream error even when the status is 200.
func (c *Client) search(ctx context.Context, area, apiKey string) (*SearchResponse, error) {
	searchURL, err := c.buildSearchURL(area, apiKey)
	if err != nil {
		return nil, fmt.Errorf("building search URL: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.recordFailure("transport")
		return nil, domain.NewExternalAPIError(sourceName, 0, "request failed", redactKey(err, apiKey))
	}
	defer resp.Body.Close()
	if c.config.Metrics != nil {
		c.config.Metrics.RecordSourceRequest(domain.SourceTypeSerpAPI.String(), searchEndpoint, time.Since(start).Seconds())
	}

	if err := c.handleErrorResponse(resp); err != nil {
		c.recordFailure(fmt.Sprintf("status_%d", resp.StatusCode))
		return nil, err
	}

	var searchResp SearchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&searchResp); err != nil {
		return nil, domain.NewExternalAPIError(sourceName, resp.StatusCode, "decoding response",
			fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err))
	}

	if searchResp.Error != "" {
		c.recordFailure("api_error")
		return nil, domain.NewExternalAPIError(sourceName, 0, searchResp.Error, nil)
	}

	return &searchResp, nil
}

func (c *Client) recordFailure(errorType string) {
	if c.config.Metrics != nil {
		c.config.Metrics.RecordSourceRequestFailed(domain.SourceTypeSerpAPI.String(), searchEndpoint, errorType)
	}
}

// SourceType returns the source type identifier.
func (c *Client) SourceType() domain.SourceType {
	return domain.SourceTypeSerpAPI
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// IsEnabled returns whether this source is currently enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// buildSearchURL constructs {base}/search?engine=...&q=...&api_key=...
func (c *Client) buildSearchURL(area, apiKey string) (string, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}

	searchURL := baseURL.JoinPath(searchEndpoint)
	q := searchURL.Query()
	q.Set("engine", c.config.Engine)
	q.Set("q", area)
	q.Set("api_key", apiKey)
	searchURL.RawQuery = q.Encode()

	return searchURL.String(), nil
}

// handleErrorResponse maps non-2xx responses to ExternalAPIError, using the
// JSON "error" field as the message when present.
func (c *Client) handleErrorResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.NewExternalAPIError(sourceName, resp.StatusCode, "failed to read error response", err)
	}

	var cause error
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		cause = domain.NewRateLimitError(sourceName, 0)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		cause = domain.ErrMissingCredential
	case resp.StatusCode >= 500:
		cause = domain.ErrServiceUnavailable
	}

	var errResp SearchResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		return domain.NewExternalAPIError(sourceName, resp.StatusCode, errResp.Error, cause)
	}

	message := strings.TrimSpace(string(body))
	if message == "" || len(message) > 200 {
		message = http.StatusText(resp.StatusCode)
	}
	return domain.NewExternalAPIError(sourceName, resp.StatusCode, message, cause)
}

// redactedError hides the API key in a transport error message while keeping
// the cause reachable for errors.Is.
type redactedError struct {
	msg   string
	cause error
}

func (e *redactedError) Error() string { return e.msg }
func (e *redactedError) Unwrap() error { return e.cause }

// redactKey strips the API key from transport errors, which embed the URL.
func redactKey(err error, apiKey string) error {
	var urlErr *url.Error
	if !errors.As(err, &urlErr) {
		return err
	}
	msg := strings.ReplaceAll(err.Error(), url.QueryEscape(apiKey), "REDACTED")
	return &redactedError{msg: msg, cause: urlErr.Err}
}
