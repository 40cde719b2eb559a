// Package researchsources provides the abstractions shared by researcher source adapters.
//
// Each backend (Google Scholar scraping, SerpAPI) implements the ResearcherSource
// interface. Adapters never return errors to their caller: every failure mode is
// folded into an Outcome whose Kind tells the orchestrator what happened and whose
// Notices carry the user-facing status text.
//
// Example usage:
//
//	source := serpapi.New(cfg, httpClient)
//	outcome := source.Fetch(ctx, researchsources.Query{
//		Area:       "climate change",
//		MaxResults: 10,
//		APIKey:     key,
//	})
//	if outcome.HasRecords() {
//		render(outcome.Records)
//	}
package researchsources

import (
	"context"
	"fmt"
	"time"

	"github.com/helixir/researcher-lookup-service/internal/domain"
)

// Query defines the parameters of one adapter fetch.
type Query struct {
	// Area is the research area to search for (required).
	Area string

	// MaxResults bounds the number of records returned.
	MaxResults int

	// APIKey is the credential for paid sources. Ignored by scraping sources.
	APIKey string

	// UseProxies routes scraping traffic through the configured proxy pool.
	UseProxies bool
}

// OutcomeKind classifies how an adapter fetch ended.
type OutcomeKind string

const (
	// OutcomeOK means at least one record was produced.
	OutcomeOK OutcomeKind = "ok"

	// OutcomeEmpty means the source answered but had nothing for the query.
	OutcomeEmpty OutcomeKind = "empty"

	// OutcomeLikelyBlocked means the scraping source failed repeatedly before
	// yielding anything and the fetch was abandoned.
	OutcomeLikelyBlocked OutcomeKind = "likely_blocked"

	// OutcomeUpstreamError means the backend could not be reached or answered
	// with an error or an unparseable body.
	OutcomeUpstreamError OutcomeKind = "upstream_error"

	// OutcomeConfigError means the adapter is not usable as configured,
	// e.g. a missing API key.
	OutcomeConfigError OutcomeKind = "config_error"
)

// Outcome is the result of one adapter fetch.
type Outcome struct {
	// Source identifies the adapter that produced the outcome.
	Source domain.SourceType

	// Records holds the normalized records in backend order, len <= MaxResults.
	Records []domain.ResearcherRecord

	// Kind classifies how the fetch ended.
	Kind OutcomeKind

	// Err is the underlying failure for non-OK kinds, if any.
	Err error

	// Notices are the user-facing status messages emitted during the fetch.
	Notices []domain.Notice

	// Duration is the wall-clock time spent in the adapter.
	Duration time.Duration
}

// HasRecords reports whether the outcome carries at least one record.
func (o *Outcome) HasRecords() bool {
	return len(o.Records) > 0
}

// Notify appends a notice attributed to the outcome's source.
func (o *Outcome) Notify(level domain.NoticeLevel, format string, args ...any) {
	o.Notices = append(o.Notices, domain.NewNotice(level, o.Source, format, args...))
}

// Finish sets Kind from the collected records when no failure kind was
// recorded, and stamps the duration since start.
func (o *Outcome) Finish(start time.Time) {
	if o.Kind == "" {
		if o.HasRecords() {
			o.Kind = OutcomeOK
		} else {
			o.Kind = OutcomeEmpty
		}
	}
	o.Duration = time.Since(start)
}

// Fail records a failure kind, its cause and an error notice.
func (o *Outcome) Fail(kind OutcomeKind, err error, format string, args ...any) {
	o.Kind = kind
	o.Err = err
	msg := fmt.Sprintf(format, args...)
	o.Notices = append(o.Notices, domain.Notice{Level: domain.NoticeError, Source: o.Source, Message: msg})
}

// ResearcherSource defines the interface that all researcher source adapters implement.
type ResearcherSource interface {
	// Fetch queries the source and returns at most q.MaxResults records.
	//
	// Implementations must:
	//   - Respect context cancellation
	//   - Never panic and never surface errors except through the Outcome
	//   - Normalize backend shapes with domain.NewResearcherRecord
	Fetch(ctx context.Context, q Query) Outcome

	// SourceType returns the type identifier for this source.
	SourceType() domain.SourceType

	// Name returns a human-readable name used in logs and notices.
	Name() string

	// IsEnabled returns whether this source is enabled by configuration.
	IsEnabled() bool
}
