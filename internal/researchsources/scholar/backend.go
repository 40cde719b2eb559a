// Package scholar scrapes researcher profiles from Google Scholar's author search.
//
// The package is split in two layers. Backend is the scraping protocol: open a
// lazy author stream for an area, pull candidates one at a time, and fill each
// candidate from its profile page. Client drives a Backend under the fetch
// policy: per-author retries with jittered backoff, random pacing between
// requests, a capped backoff on consecutive failures, and early abandonment
// when the first few attempts all fail.
package scholar

import (
	"context"
	"fmt"
	"strings"

	"github.com/helixir/researcher-lookup-service/internal/domain"
)

// Candidate is an author entry from a search result page, before enrichment.
type Candidate struct {
	// ID is the Scholar user identifier (the "user" query parameter).
	ID string

	// Name is the display name shown on the result card.
	Name string

	// Affiliation is the affiliation line shown on the result card.
	Affiliation string

	// CitedBy is the raw "Cited by N" text shown on the result card.
	CitedBy string
}

// Profile is a filled author profile.
type Profile struct {
	Name        string
	Affiliation string
	Citations   domain.Citations
}

// Record merges the profile with the candidate it was filled from. Profile
// values win; candidate values fill the gaps.
func (p Profile) Record(c Candidate) domain.ResearcherRecord {
	name := p.Name
	if strings.TrimSpace(name) == "" {
		name = c.Name
	}
	affiliation := p.Affiliation
	if strings.TrimSpace(affiliation) == "" {
		affiliation = c.Affiliation
	}
	citations := p.Citations
	if !citations.Available() {
		citations = domain.CitationsFromText(c.CitedBy)
	}
	return domain.NewResearcherRecord(name, citations, affiliation)
}

// ProxyStatus reports the outcome of proxy configuration.
type ProxyStatus struct {
	// OK is false when proxies were requested but could not be configured.
	OK bool

	// Enabled is true when requests will be routed through proxies.
	Enabled bool

	// Message is the human-readable status shown to the user.
	Message string
}

// AuthorStream is a lazy, finite sequence of candidates.
type AuthorStream interface {
	// Next returns the next candidate. ok is false once the stream is
	// exhausted; exhaustion is not an error. A non-nil error reports a failed
	// attempt to produce the next candidate; the caller may call Next again.
	Next(ctx context.Context) (c Candidate, ok bool, err error)
}

// Backend is the scraping protocol the Client drives.
type Backend interface {
	// SearchAuthors opens a lazy author stream for the area.
	SearchAuthors(ctx context.Context, area string) (AuthorStream, error)

	// Fill loads the candidate's full profile.
	Fill(ctx context.Context, c Candidate) (Profile, error)

	// ConfigureProxies checks whether requests can be routed through proxies.
	// It never mutates shared state: the Client attaches the decision to the
	// request context with WithProxies.
	ConfigureProxies(enabled bool) ProxyStatus
}

// BlockedError reports that Scholar answered with a CAPTCHA, an "unusual
// traffic" interstitial or HTTP 429 instead of the requested page.
type BlockedError struct {
	URL    string
	Reason string
}

func (e *BlockedError) Error() string {
	if e == nil || strings.TrimSpace(e.Reason) == "" {
		return "blocked by Google Scholar"
	}
	return fmt.Sprintf("blocked by Google Scholar: %s", e.Reason)
}

// Unwrap lets callers treat blocks as rate limiting.
func (e *BlockedError) Unwrap() error {
	return domain.ErrRateLimited
}

type proxiesKey struct{}

// WithProxies marks ctx so that backend requests made with it rotate through
// the proxy pool.
func WithProxies(ctx context.Context) context.Context {
	return context.WithValue(ctx, proxiesKey{}, true)
}

// ProxiesEnabled reports whether ctx was marked with WithProxies.
func ProxiesEnabled(ctx context.Context) bool {
	enabled, _ := ctx.Value(proxiesKey{}).(bool)
	return enabled
}
