// Package lookup orchestrates researcher fetches across the source adapters.
//
// A fetch picks a primary adapter from the source preference and the
// available SerpAPI key, falls back from SerpAPI to Google Scholar once in
// AUTO mode when SerpAPI yields nothing, and reports everything that happened
// as notices. Fetch never returns an error.
package lookup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/helixir/researcher-lookup-service/internal/cache"
	"github.com/helixir/researcher-lookup-service/internal/domain"
	"github.com/helixir/researcher-lookup-service/internal/events"
	"github.com/helixir/researcher-lookup-service/internal/observability"
	"github.com/helixir/researcher-lookup-service/internal/repository"
	"github.com/helixir/researcher-lookup-service/internal/researchsources"
)

// User-facing messages produced by the orchestrator.
const (
	MsgInvalidArea   = "Enter a valid research area."
	MsgFallback      = "SerpAPI returned no results. Trying Google Scholar as fallback..."
	MsgFound         = "Found %d researchers for '%s'."
	MsgSourceMissing = "%s is not available in this deployment."
)

// EmptyResultHints is shown when a fetch ends without records.
var EmptyResultHints = []string{
	"Enable proxies (Google Scholar) or configure a SerpAPI key",
	"Try more general keywords",
	"Request fewer results at first",
}

// sideEffectTimeout bounds audit writes and event publishes.
const sideEffectTimeout = 5 * time.Second

// Attempt records one adapter invocation within a fetch.
type Attempt struct {
	Source   domain.SourceType
	Kind     researchsources.OutcomeKind
	Records  int
	Err      error
	Duration time.Duration
}

// Result is what a fetch hands to the presentation layer.
type Result struct {
	// SearchID identifies the fetch in logs, audit rows and events.
	SearchID uuid.UUID

	// Request is the normalized request.
	Request domain.FetchRequest

	// Records is the first non-empty record list, in source order.
	Records []domain.ResearcherRecord

	// Notices are the status messages in the order they were produced.
	Notices []domain.Notice

	// SourceUsed is the last adapter attempted; empty for cache hits and
	// invalid requests.
	SourceUsed domain.SourceType

	// FellBack is true when AUTO mode fell back from SerpAPI to Scholar.
	FellBack bool

	// Cached is true when the records were served from the result cache.
	Cached bool

	// Attempts lists the adapters invoked, in order.
	Attempts []Attempt

	// Duration is the wall-clock time of the fetch.
	Duration time.Duration
}

// HasRecords reports whether the fetch produced any record.
func (r *Result) HasRecords() bool {
	return len(r.Records) > 0
}

// SelectSource applies the source selection rules: SCRAPE_ONLY and API_ONLY
// pin their adapter (API_ONLY even without a key); AUTO uses SerpAPI when a
// key is present and Scholar otherwise. The second value reports whether an
// empty SerpAPI result may fall back to Scholar.
func SelectSource(pref domain.SourcePreference, hasKey bool) (domain.SourceType, bool) {
	switch pref {
	case domain.PreferenceScrapeOnly:
		return domain.SourceTypeScholar, false
	case domain.PreferenceAPIOnly:
		return domain.SourceTypeSerpAPI, false
	default:
		if hasKey {
			return domain.SourceTypeSerpAPI, true
		}
		return domain.SourceTypeScholar, false
	}
}

// Service runs fetches.
type Service struct {
	registry  *researchsources.Registry
	cache     *cache.ResultCache
	repo      repository.SearchRepository
	publisher events.Publisher
	emitter   *events.Emitter
	metrics   *observability.Metrics
	logger    zerolog.Logger
	apiKey    string
	newID     func() uuid.UUID
}

// Option configures a Service.
type Option func(*Service)

// WithCache enables the result cache.
func WithCache(c *cache.ResultCache) Option {
	return func(s *Service) { s.cache = c }
}

// WithRepository enables search audit rows.
func WithRepository(r repository.SearchRepository) Option {
	return func(s *Service) { s.repo = r }
}

// WithPublisher enables search.completed events.
func WithPublisher(p events.Publisher, e *events.Emitter) Option {
	return func(s *Service) {
		s.publisher = p
		s.emitter = e
	}
}

// WithMetrics records fetch metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger sets the base logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithServerAPIKey sets the SerpAPI key used when a request carries none.
func WithServerAPIKey(key string) Option {
	return func(s *Service) { s.apiKey = strings.TrimSpace(key) }
}

// WithIDGenerator overrides search ID generation.
func WithIDGenerator(fn func() uuid.UUID) Option {
	return func(s *Service) { s.newID = fn }
}

// NewService creates a Service over the registered sources.
func NewService(registry *researchsources.Registry, opts ...Option) *Service {
	s := &Service{
		registry: registry,
		logger:   zerolog.Nop(),
		newID:    uuid.New,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With().Str("component", "lookup").Logger()
	if s.publisher != nil && s.emitter == nil {
		s.emitter = events.NewEmitter(events.EmitterConfig{})
	}
	return s
}

// HasServerAPIKey reports whether a server-side SerpAPI key is configured.
func (s *Service) HasServerAPIKey() bool {
	return s.apiKey != ""
}

// Fetch looks up researchers for req. It never returns an error: invalid
// requests and adapter failures are reported as notices with no records.
func (s *Service) Fetch(ctx context.Context, req domain.FetchRequest) *Result {
	start := time.Now()
	req = req.Normalize()

	res := &Result{
		SearchID: s.newID(),
		Request:  req,
	}
	logger := observability.WithSearchContext(s.logger, res.SearchID.String(), req.Area, string(req.Preference))
	if reqID := observability.RequestIDFromContext(ctx); reqID != "" {
		logger = observability.WithRequestContext(logger, reqID)
	}
	ctx = observability.WithSearchID(ctx, res.SearchID.String())
	ctx = logger.WithContext(ctx)

	if err := req.Validate(); err != nil {
		res.Notices = append(res.Notices, invalidRequestNotice(req, err))
		res.Duration = time.Since(start)
		logger.Warn().Err(err).Msg("rejected invalid fetch request")
		return res
	}

	if s.serveFromCache(res) {
		logger.Debug().Int("records", len(res.Records)).Msg("served fetch from cache")
	} else {
		s.fetchFromSources(ctx, logger, res)
	}

	if res.HasRecords() {
		res.Notices = append(res.Notices, domain.NewNotice(domain.NoticeSuccess, "", MsgFound, len(res.Records), req.Area))
	} else {
		res.Notices = append(res.Notices, domain.Notice{
			Level:   domain.NoticeWarning,
			Message: "No results. Tips:\n• " + strings.Join(EmptyResultHints, "\n• "),
		})
	}
	res.Duration = time.Since(start)

	if s.metrics != nil {
		s.metrics.RecordFetch(string(req.Preference), len(res.Records), res.Duration.Seconds())
	}
	logger.Info().
		Int("records", len(res.Records)).
		Str("source_used", res.SourceUsed.String()).
		Bool("fell_back", res.FellBack).
		Bool("cached", res.Cached).
		Dur("duration", res.Duration).
		Msg("fetch completed")

	s.recordSideEffects(ctx, logger, res)
	return res
}

func (s *Service) serveFromCache(res *Result) bool {
	if s.cache == nil {
		return false
	}
	records, ok := s.cache.Get(res.Request.Area, res.Request.MaxResults)
	if s.metrics != nil {
		if ok {
			s.metrics.RecordCacheHit()
		} else {
			s.metrics.RecordCacheMiss()
		}
	}
	if !ok {
		return false
	}
	res.Records = records
	res.Cached = true
	return true
}

func (s *Service) fetchFromSources(ctx context.Context, logger zerolog.Logger, res *Result) {
	req := res.Request
	key := req.APIKey
	if key == "" {
		key = s.apiKey
	}
	q := researchsources.Query{
		Area:       req.Area,
		MaxResults: req.MaxResults,
		APIKey:     key,
		UseProxies: req.UseProxies,
	}

	primary, canFallBack := SelectSource(req.Preference, key != "")
	outcome := s.run(ctx, logger, primary, q, res)

	if !outcome.HasRecords() && canFallBack && ctx.Err() == nil {
		res.Notices = append(res.Notices, domain.NewNotice(domain.NoticeInfo, domain.SourceTypeSerpAPI, MsgFallback))
		res.FellBack = true
		if s.metrics != nil {
			s.metrics.RecordFallback()
		}
		logger.Info().Str("outcome", string(outcome.Kind)).Msg("falling back to Google Scholar")
		outcome = s.run(ctx, logger, domain.SourceTypeScholar, q, res)
	}

	if outcome.HasRecords() {
		res.Records = domain.TruncateRecords(outcome.Records, req.MaxResults)
		if s.cache != nil {
			s.cache.Put(req.Area, req.MaxResults, res.Records)
		}
	}
}

// run invokes one adapter and folds its outcome into res.
func (s *Service) run(ctx context.Context, logger zerolog.Logger, st domain.SourceType, q researchsources.Query, res *Result) researchsources.Outcome {
	res.SourceUsed = st
	logger = observability.WithSourceContext(logger, st.String())

	var outcome researchsources.Outcome
	source, ok := s.registry.Enabled(st)
	if ok {
		outcome = source.Fetch(logger.WithContext(ctx), q)
	} else {
		outcome = researchsources.Outcome{Source: st}
		outcome.Fail(researchsources.OutcomeConfigError, domain.ErrServiceUnavailable, MsgSourceMissing, sourceLabel(st))
	}
	if outcome.Kind == "" {
		outcome.Kind = researchsources.OutcomeEmpty
		if outcome.HasRecords() {
			outcome.Kind = researchsources.OutcomeOK
		}
	}

	res.Notices = append(res.Notices, outcome.Notices...)
	res.Attempts = append(res.Attempts, Attempt{
		Source:   st,
		Kind:     outcome.Kind,
		Records:  len(outcome.Records),
		Err:      outcome.Err,
		Duration: outcome.Duration,
	})
	if s.metrics != nil {
		s.metrics.RecordSourceOutcome(st.String(), string(outcome.Kind), outcome.Duration.Seconds())
	}

	event := logger.Info()
	if outcome.Err != nil {
		event = logger.Warn().Err(outcome.Err)
	}
	event.
		Str("outcome", string(outcome.Kind)).
		Int("records", len(outcome.Records)).
		Dur("duration", outcome.Duration).
		Msg("source fetch finished")

	return outcome
}

func (s *Service) recordSideEffects(ctx context.Context, logger zerolog.Logger, res *Result) {
	if s.repo == nil && s.publisher == nil {
		return
	}

	rec := domain.NewSearchRecord(res.SearchID, res.Request)
	rec.SourceUsed = res.SourceUsed
	rec.FellBack = res.FellBack
	rec.Cached = res.Cached
	rec.ResultCount = len(res.Records)
	rec.DurationMs = res.Duration.Milliseconds()

	// Side effects outlive a disconnected client but not the timeout.
	sideCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()

	if s.repo != nil {
		if err := s.repo.Record(sideCtx, rec); err != nil {
			s.sideEffectFailed(logger, "audit", err)
		}
	}

	if s.publisher != nil {
		ev, err := s.emitter.EmitSearchCompleted(rec, observability.RequestIDFromContext(ctx))
		if err == nil {
			err = s.publisher.Publish(sideCtx, ev)
		}
		if err != nil {
			s.sideEffectFailed(logger, "events", err)
		}
	}
}

func (s *Service) sideEffectFailed(logger zerolog.Logger, channel string, err error) {
	logger.Error().Err(err).Str("channel", channel).Msg("search side effect failed")
	if s.metrics != nil {
		s.metrics.RecordSideEffectFailure(channel)
	}
}

// ListRecent returns recent audit rows, or an empty list when persistence
// is disabled.
func (s *Service) ListRecent(ctx context.Context, limit int) ([]*domain.SearchRecord, error) {
	if s.repo == nil {
		return []*domain.SearchRecord{}, nil
	}
	records, err := s.repo.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent searches: %w", err)
	}
	return records, nil
}

// GetSearch returns one audit row. Without persistence every ID is unknown.
func (s *Service) GetSearch(ctx context.Context, id uuid.UUID) (*domain.SearchRecord, error) {
	if s.repo == nil {
		return nil, domain.NewNotFoundError("search", id.String())
	}
	return s.repo.Get(ctx, id)
}

func invalidRequestNotice(req domain.FetchRequest, err error) domain.Notice {
	msg := err.Error()
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		if verr.Field == "area" && req.Area == "" {
			msg = MsgInvalidArea
		} else {
			msg = fmt.Sprintf("Invalid %s: %s.", strings.ReplaceAll(verr.Field, "_", " "), verr.Message)
		}
	}
	return domain.Notice{Level: domain.NoticeWarning, Message: msg}
}

func sourceLabel(st domain.SourceType) string {
	switch st {
	case domain.SourceTypeSerpAPI:
		return "SerpAPI"
	case domain.SourceTypeScholar:
		return "Google Scholar"
	default:
		return st.String()
	}
}
