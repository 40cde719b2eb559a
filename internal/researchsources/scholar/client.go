package scholar

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/researcher-lookup-service/internal/domain"
	"github.com/helixir/researcher-lookup-service/internal/observability"
	"github.com/helixir/researcher-lookup-service/internal/researchsources"
	"github.com/helixir/researcher-lookup-service/internal/resilience"
)

const (
	// DefaultTimeout is the per-page HTTP timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultRateLimit keeps page requests to one per second.
	DefaultRateLimit = 1.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 1

	// DefaultAbandonThreshold is the number of consecutive failures, with no
	// result collected yet, after which the fetch is abandoned.
	DefaultAbandonThreshold = 3

	// DefaultFailureFactor and DefaultFailureCeiling shape the delay after
	// the n-th consecutive failure: min(ceiling, factor^n seconds).
	DefaultFailureFactor  = 1.5
	DefaultFailureCeiling = 6 * time.Second

	// DefaultPaceMin and DefaultPaceMax bound the random pause after each
	// collected author.
	DefaultPaceMin = 800 * time.Millisecond
	DefaultPaceMax = 1800 * time.Millisecond

	// sourceName is the human-readable name for this source.
	sourceName = "Google Scholar"
)

// Config contains configuration options for the Scholar client.
type Config struct {
	// BaseURL is the Scholar root. Defaults to DefaultBaseURL if empty.
	BaseURL string

	// Timeout is the per-page HTTP timeout. Defaults to DefaultTimeout if zero.
	Timeout time.Duration

	// RateLimit is the maximum page requests per second. Defaults to DefaultRateLimit if zero.
	RateLimit float64

	// BurstSize is the maximum burst of requests. Defaults to DefaultBurstSize if zero.
	BurstSize int

	// Proxies lists the proxy URLs rotated through when a fetch asks for proxies.
	Proxies []string

	// UserAgents is the browser User-Agent pool. Defaults to DefaultUserAgents.
	UserAgents []string

	// Retry configures the per-author retry executor.
	Retry resilience.RetryConfig

	// AbandonThreshold defaults to DefaultAbandonThreshold if zero.
	AbandonThreshold int

	// FailureBackoff defaults to DefaultFailureFactor / DefaultFailureCeiling.
	FailureBackoff resilience.CappedBackoff

	// Pace defaults to DefaultPaceMin / DefaultPaceMax.
	Pace resilience.Pacer

	// Enabled indicates whether this source is enabled.
	Enabled bool
}

// Client implements researchsources.ResearcherSource by driving a Backend.
type Client struct {
	backend  Backend
	executor *resilience.Executor
	sleep    resilience.SleepFunc
	metrics  *observability.Metrics
	config   Config
}

var _ researchsources.ResearcherSource = (*Client)(nil)

// Option customizes a Client.
type Option func(*Client)

// WithBackend replaces the web backend, typically with a fake in tests.
func WithBackend(b Backend) Option {
	return func(c *Client) { c.backend = b }
}

// WithSleep replaces the sleep used for pacing and failure backoff.
func WithSleep(fn resilience.SleepFunc) Option {
	return func(c *Client) { c.sleep = fn }
}

// WithExecutor replaces the per-author retry executor.
func WithExecutor(e *resilience.Executor) Option {
	return func(c *Client) { c.executor = e }
}

// WithMetrics records retries, abandons and page requests.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient creates a Scholar client. Without WithBackend it scrapes the live
// site through a single-attempt HTTP client.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
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
	if len(cfg.UserAgents) == 0 {
		cfg.UserAgents = DefaultUserAgents
	}
	if cfg.AbandonThreshold == 0 {
		cfg.AbandonThreshold = DefaultAbandonThreshold
	}
	if cfg.FailureBackoff.Factor == 0 {
		cfg.FailureBackoff.Factor = DefaultFailureFactor
	}
	if cfg.FailureBackoff.Ceiling == 0 {
		cfg.FailureBackoff.Ceiling = DefaultFailureCeiling
	}
	if cfg.Pace.Min == 0 && cfg.Pace.Max == 0 {
		cfg.Pace.Min = DefaultPaceMin
		cfg.Pace.Max = DefaultPaceMax
	}

	c := &Client{
		sleep:  resilience.Sleep,
		config: cfg,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.backend == nil {
		pool, err := NewProxyPool(cfg.Proxies)
		if err != nil {
			return nil, err
		}
		httpClient := researchsources.NewHTTPClient(researchsources.HTTPClientConfig{
			Timeout:        cfg.Timeout,
			RateLimit:      cfg.RateLimit,
			BurstSize:      cfg.BurstSize,
			DisableRetries: true,
			UserAgents:     cfg.UserAgents,
		})
		c.backend = NewWebBackend(cfg.BaseURL, httpClient, pool, c.metrics)
	}
	if c.executor == nil {
		c.executor = resilience.NewExecutor(cfg.Retry, resilience.WithOnRetry(c.onRetry))
	}

	return c, nil
}

// Fetch collects up to q.MaxResults authors for q.Area.
//
// Each candidate is filled through the retry executor. Any failure other than
// exhaustion bumps the consecutive failure counter, emits a warning notice and
// sleeps min(ceiling, factor^n). Once AbandonThreshold consecutive failures
// have happened with nothing collected the fetch is abandoned as likely
// blocked; after the first result it keeps going until max results or
// exhaustion.
func (c *Client) Fetch(ctx context.Context, q researchsources.Query) researchsources.Outcome {
	start := time.Now()
	out := researchsources.Outcome{Source: domain.SourceTypeScholar}
	logger := zerolog.Ctx(ctx).With().Str("source", domain.SourceTypeScholar.String()).Str("area", q.Area).Logger()

	status := c.backend.ConfigureProxies(q.UseProxies)
	if status.Enabled {
		ctx = WithProxies(ctx)
	}
	if !status.OK {
		out.Err = domain.ErrProxyUnavailable
		logger.Warn().Str("proxy_status", status.Message).Msg("proxies unavailable, continuing direct")
	}

	stream, err := c.backend.SearchAuthors(ctx, q.Area)
	if err != nil {
		out.Fail(researchsources.OutcomeUpstreamError, err, "Failed to start Google Scholar search: %v", err)
		out.Notify(domain.NoticeInfo, "Google Scholar proxy status: %s", status.Message)
		out.Finish(start)
		return out
	}

	consecutive := 0
	for len(out.Records) < q.MaxResults {
		if ctx.Err() != nil {
			out.Err = ctx.Err()
			if len(out.Records) == 0 {
				out.Kind = researchsources.OutcomeUpstreamError
			}
			break
		}

		record, ok, err := c.next(ctx, stream)
		if err == nil && !ok {
			break
		}
		if err == nil {
			out.Records = append(out.Records, record)
			consecutive = 0
			_ = c.sleep(ctx, c.config.Pace.Next())
			continue
		}

		consecutive++
		out.Notify(domain.NoticeWarning, "Error fetching author (attempt %d): %v", consecutive, err)
		logger.Warn().Err(err).Int("consecutive_errors", consecutive).Msg("author fetch failed")
		_ = c.sleep(ctx, c.config.FailureBackoff.Delay(consecutive))

		if consecutive >= c.config.AbandonThreshold && len(out.Records) == 0 {
			out.Kind = researchsources.OutcomeLikelyBlocked
			out.Err = domain.ErrLikelyBlocked
			out.Notify(domain.NoticeInfo, "Google Scholar appears to be blocking requests; giving up after %d consecutive errors.", consecutive)
			if c.metrics != nil {
				c.metrics.RecordEarlyAbandon(domain.SourceTypeScholar.String())
			}
			logger.Info().Int("consecutive_errors", consecutive).Msg("abandoning scholar fetch, likely blocked")
			break
		}
	}

	// proxy status is reported last, below the results
	out.Notify(domain.NoticeInfo, "Google Scholar proxy status: %s", status.Message)
	out.Finish(start)
	return out
}

// next pulls one candidate and fills it through the executor.
func (c *Client) next(ctx context.Context, stream AuthorStream) (domain.ResearcherRecord, bool, error) {
	candidate, ok, err := stream.Next(ctx)
	if err != nil || !ok {
		return domain.ResearcherRecord{}, ok, err
	}

	profile, err := resilience.Retry(ctx, c.executor, func(ctx context.Context) (Profile, error) {
		p, err := c.backend.Fill(ctx, candidate)
		if err != nil && resilience.Classify(err) == resilience.Permanent {
			return p, resilience.MarkPermanent(err)
		}
		return p, err
	})
	if err != nil {
		return domain.ResearcherRecord{}, false, err
	}
	return profile.Record(candidate), true, nil
}

func (c *Client) onRetry(int, time.Duration, error) {
	if c.metrics != nil {
		c.metrics.RecordRetry(domain.SourceTypeScholar.String())
	}
}

// SourceType returns the source type identifier.
func (c *Client) SourceType() domain.SourceType {
	return domain.SourceTypeScholar
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// IsEnabled returns whether this source is currently enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}
