package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the researcher lookup service.
// Metrics are organized by subsystem: fetches, sources, cache, and side
// channels. All counters and histograms are registered via promauto with the
// default Prometheus registry.
type Metrics struct {
	// FetchesTotal counts orchestrated fetches, labeled by source preference.
	FetchesTotal *prometheus.CounterVec

	// FetchesEmpty counts fetches that ended without any record.
	FetchesEmpty prometheus.Counter

	// FetchDuration observes end-to-end fetch duration in seconds, labeled by preference.
	FetchDuration *prometheus.HistogramVec

	// RecordsPerFetch observes the number of records returned per fetch.
	RecordsPerFetch prometheus.Histogram

	// Fallbacks counts AUTO fetches that fell back from SerpAPI to Scholar.
	Fallbacks prometheus.Counter

	// SourceOutcomes counts adapter outcomes, labeled by source and outcome kind.
	SourceOutcomes *prometheus.CounterVec

	// SourceDuration observes adapter fetch duration in seconds, labeled by source.
	SourceDuration *prometheus.HistogramVec

	// SourceRequestsTotal counts HTTP requests to backends, labeled by source and endpoint.
	SourceRequestsTotal *prometheus.CounterVec

	// SourceRequestsFailed counts failed HTTP requests, labeled by source, endpoint, and error type.
	SourceRequestsFailed *prometheus.CounterVec

	// SourceRequestDuration observes backend HTTP request duration in seconds.
	SourceRequestDuration *prometheus.HistogramVec

	// Retries counts per-item retries performed by the retry executor, labeled by source.
	Retries *prometheus.CounterVec

	// EarlyAbandons counts scraping fetches abandoned as likely blocked, labeled by source.
	EarlyAbandons *prometheus.CounterVec

	// CacheHits counts result cache hits.
	CacheHits prometheus.Counter

	// CacheMisses counts result cache misses.
	CacheMisses prometheus.Counter

	// SideEffectFailures counts failed audit writes and event publishes, labeled by channel.
	SideEffectFailures *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		// Fetches
		FetchesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetches_total",
			Help:      "Total number of researcher fetches by source preference",
		}, []string{"preference"}),
		FetchesEmpty: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetches_empty_total",
			Help:      "Total number of fetches that returned no researchers",
		}),
		FetchDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Duration of researcher fetches in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"preference"}),
		RecordsPerFetch: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "records_per_fetch",
			Help:      "Number of researcher records returned per fetch",
			Buckets:   []float64{0, 1, 5, 10, 20, 30, 40, 50},
		}),
		Fallbacks: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallbacks_total",
			Help:      "Total number of AUTO fetches that fell back to scraping",
		}),

		// Sources
		SourceOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_outcomes_total",
			Help:      "Total number of source adapter outcomes by kind",
		}, []string{"source", "kind"}),
		SourceDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_fetch_duration_seconds",
			Help:      "Duration of source adapter fetches in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"source"}),
		SourceRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_requests_total",
			Help:      "Total number of HTTP requests to researcher sources",
		}, []string{"source", "endpoint"}),
		SourceRequestsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_requests_failed_total",
			Help:      "Total number of failed HTTP requests to researcher sources",
		}, []string{"source", "endpoint", "error_type"}),
		SourceRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_request_duration_seconds",
			Help:      "Duration of HTTP requests to researcher sources in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source", "endpoint"}),
		Retries: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Total number of retries performed by the retry executor",
		}, []string{"source"}),
		EarlyAbandons: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "early_abandons_total",
			Help:      "Total number of fetches abandoned as likely blocked",
		}, []string{"source"}),

		// Cache
		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of result cache hits",
		}),
		CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of result cache misses",
		}),

		// Side channels
		SideEffectFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "side_effect_failures_total",
			Help:      "Total number of failed audit writes and event publishes",
		}, []string{"channel"}),
	}
}

// RecordFetch records a completed fetch.
func (m *Metrics) RecordFetch(preference string, recordCount int, durationSeconds float64) {
	m.FetchesTotal.WithLabelValues(preference).Inc()
	m.FetchDuration.WithLabelValues(preference).Observe(durationSeconds)
	m.RecordsPerFetch.Observe(float64(recordCount))
	if recordCount == 0 {
		m.FetchesEmpty.Inc()
	}
}

// RecordFallback records an AUTO fallback from SerpAPI to Scholar.
func (m *Metrics) RecordFallback() {
	m.Fallbacks.Inc()
}

// RecordSourceOutcome records how an adapter fetch ended.
func (m *Metrics) RecordSourceOutcome(source, kind string, durationSeconds float64) {
	m.SourceOutcomes.WithLabelValues(source, kind).Inc()
	m.SourceDuration.WithLabelValues(source).Observe(durationSeconds)
}

// RecordSourceRequest records a backend HTTP request.
func (m *Metrics) RecordSourceRequest(source, endpoint string, durationSeconds float64) {
	m.SourceRequestsTotal.WithLabelValues(source, endpoint).Inc()
	m.SourceRequestDuration.WithLabelValues(source, endpoint).Observe(durationSeconds)
}

// RecordSourceRequestFailed records a failed backend HTTP request.
func (m *Metrics) RecordSourceRequestFailed(source, endpoint, errorType string) {
	m.SourceRequestsFailed.WithLabelValues(source, endpoint, errorType).Inc()
}

// RecordRetry records one executor retry.
func (m *Metrics) RecordRetry(source string) {
	m.Retries.WithLabelValues(source).Inc()
}

// RecordEarlyAbandon records a fetch abandoned as likely blocked.
func (m *Metrics) RecordEarlyAbandon(source string) {
	m.EarlyAbandons.WithLabelValues(source).Inc()
}

// RecordCacheHit records a result cache hit.
func (m *Metrics) RecordCacheHit() {
	m.CacheHits.Inc()
}

// RecordCacheMiss records a result cache miss.
func (m *Metrics) RecordCacheMiss() {
	m.CacheMisses.Inc()
}

// RecordSideEffectFailure records a failed audit write or event publish.
func (m *Metrics) RecordSideEffectFailure(channel string) {
	m.SideEffectFailures.WithLabelValues(channel).Inc()
}
