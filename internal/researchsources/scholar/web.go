package scholar

import (
	"context"
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
	// DefaultBaseURL is the Google Scholar root.
	DefaultBaseURL = "https://scholar.google.com"

	// DefaultLanguage pins the interface language so selectors and texts are stable.
	DefaultLanguage = "en"

	// maxPageFailures is how many consecutive page fetch failures a stream
	// tolerates before it reports exhaustion.
	maxPageFailures = 3

	// maxPageBytes bounds how much of a page is read.
	maxPageBytes = 5 << 20
)

// DefaultUserAgents is the browser pool requests draw a User-Agent from.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 13_6) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.3 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
}

// WebBackend implements Backend against the live Scholar pages.
type WebBackend struct {
	httpClient *researchsources.HTTPClient
	baseURL    string
	language   string
	proxies    *ProxyPool
	metrics    *observability.Metrics
}

var _ Backend = (*WebBackend)(nil)

// NewWebBackend creates a backend. httpClient should have retries disabled;
// the Client owns the retry policy.
func NewWebBackend(baseURL string, httpClient *researchsources.HTTPClient, proxies *ProxyPool, metrics *observability.Metrics) *WebBackend {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &WebBackend{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		language:   DefaultLanguage,
		proxies:    proxies,
		metrics:    metrics,
	}
}

// ConfigureProxies reports whether the proxy pool can serve requests.
func (b *WebBackend) ConfigureProxies(enabled bool) ProxyStatus {
	return b.proxies.Status(enabled)
}

// SearchAuthors opens a stream over the paged author search. The first page
// is fetched lazily by the first Next call.
func (b *WebBackend) SearchAuthors(ctx context.Context, area string) (AuthorStream, error) {
	area = strings.TrimSpace(area)
	if area == "" {
		return nil, domain.NewValidationError("area", "enter a valid research area")
	}
	return &webStream{backend: b, area: area}, nil
}

// Fill loads the candidate's profile page.
func (b *WebBackend) Fill(ctx context.Context, c Candidate) (Profile, error) {
	if c.ID == "" {
		// No profile link: the card is all we have.
		return Profile{Name: c.Name, Affiliation: c.Affiliation, Citations: domain.CitationsFromText(c.CitedBy)}, nil
	}

	q := url.Values{}
	q.Set("hl", b.language)
	q.Set("user", c.ID)
	html, err := b.get(ctx, "profile", "/citations", q)
	if err != nil {
		return Profile{}, err
	}
	return ParseProfile(html)
}

func (b *WebBackend) searchPage(ctx context.Context, area, token, start string) (SearchPage, error) {
	q := url.Values{}
	q.Set("view_op", "search_authors")
	q.Set("hl", b.language)
	q.Set("mauthors", area)
	if token != "" {
		q.Set("after_author", token)
		if start != "" {
			q.Set("astart", start)
		}
	}
	html, err := b.get(ctx, "search_authors", "/citations", q)
	if err != nil {
		return SearchPage{}, err
	}
	return ParseSearchPage(html)
}

// get fetches one page through the shared client, rotating proxies when the
// context asks for it, and maps blocks and bad statuses to errors.
func (b *WebBackend) get(ctx context.Context, endpoint, path string, q url.Values) ([]byte, error) {
	pageURL := b.baseURL + path + "?" + q.Encode()

	if ProxiesEnabled(ctx) {
		if proxy := b.proxies.Next(); proxy != nil {
			ctx = researchsources.WithProxy(ctx, proxy)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", b.language)

	start := time.Now()
	resp, err := b.httpClient.Do(req)
	if err != nil {
		b.recordFailure(endpoint, "transport")
		return nil, fmt.Errorf("fetching %s: %w", endpoint, err)
	}
	defer resp.Body.Close()
	b.recordRequest(endpoint, time.Since(start))

	if resp.StatusCode == http.StatusTooManyRequests {
		b.recordFailure(endpoint, "blocked")
		return nil, &BlockedError{URL: pageURL, Reason: "HTTP 429"}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		b.recordFailure(endpoint, "read")
		return nil, fmt.Errorf("reading %s: %w", endpoint, err)
	}

	if blocked := DetectBlock(pageURL, body); blocked != nil {
		b.recordFailure(endpoint, "blocked")
		return nil, blocked
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b.recordFailure(endpoint, "status")
		var cause error
		if resp.StatusCode == http.StatusNotFound {
			cause = domain.ErrNotFound
		}
		return nil, domain.NewExternalAPIError(sourceName, resp.StatusCode, http.StatusText(resp.StatusCode), cause)
	}

	return body, nil
}

func (b *WebBackend) recordRequest(endpoint string, d time.Duration) {
	if b.metrics != nil {
		b.metrics.RecordSourceRequest(domain.SourceTypeScholar.String(), endpoint, d.Seconds())
	}
}

func (b *WebBackend) recordFailure(endpoint, errorType string) {
	if b.metrics != nil {
		b.metrics.RecordSourceRequestFailed(domain.SourceTypeScholar.String(), endpoint, errorType)
	}
}

// webStream pages through search results on demand.
type webStream struct {
	backend *WebBackend
	area    string

	buffer   []Candidate
	token    string
	start    string
	started  bool
	done     bool
	failures int
}

// Next returns buffered candidates and fetches the next page when the buffer
// runs dry. A failed page fetch is retried by the following Next call; after
// maxPageFailures consecutive failures the stream reports exhaustion.
func (s *webStream) Next(ctx context.Context) (Candidate, bool, error) {
	for len(s.buffer) == 0 {
		if s.done || (s.started && s.token == "") {
			return Candidate{}, false, nil
		}
		if s.failures >= maxPageFailures {
			s.done = true
			return Candidate{}, false, nil
		}

		page, err := s.backend.searchPage(ctx, s.area, s.token, s.start)
		if err != nil {
			s.failures++
			return Candidate{}, false, err
		}
		s.failures = 0
		s.started = true
		s.buffer = page.Candidates
		s.token = page.NextToken
		s.start = page.NextStart
		if len(page.Candidates) == 0 {
			s.done = true
		}
	}

	c := s.buffer[0]
	s.buffer = s.buffer[1:]
	return c, true, nil
}
