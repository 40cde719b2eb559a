package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/helixir/researcher-lookup-service/internal/database"
	"github.com/helixir/researcher-lookup-service/internal/domain"
	"github.com/helixir/researcher-lookup-service/internal/lookup"
)

// ---------------------------------------------------------------------------
// Mock implementations
// ---------------------------------------------------------------------------

// mockSearcher implements Searcher for HTTP handler tests.
type mockSearcher struct {
	mu        sync.Mutex
	requests  []domain.FetchRequest
	fetchFn   func(ctx context.Context, req domain.FetchRequest) *lookup.Result
	listFn    func(ctx context.Context, limit int) ([]*domain.SearchRecord, error)
	getFn     func(ctx context.Context, id uuid.UUID) (*domain.SearchRecord, error)
	serverKey bool
}

func (m *mockSearcher) Fetch(ctx context.Context, req domain.FetchRequest) *lookup.Result {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	if m.fetchFn != nil {
		return m.fetchFn(ctx, req)
	}
	return &lookup.Result{SearchID: uuid.New(), Request: req.Normalize()}
}

func (m *mockSearcher) ListRecent(ctx context.Context, limit int) ([]*domain.SearchRecord, error) {
	if m.listFn != nil {
		return m.listFn(ctx, limit)
	}
	return []*domain.SearchRecord{}, nil
}

func (m *mockSearcher) GetSearch(ctx context.Context, id uuid.UUID) (*domain.SearchRecord, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, domain.NewNotFoundError("search", id.String())
}

func (m *mockSearcher) HasServerAPIKey() bool { return m.serverKey }

func (m *mockSearcher) lastRequest(t *testing.T) domain.FetchRequest {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		t.Fatal("expected Fetch to be called")
	}
	return m.requests[len(m.requests)-1]
}

// mockHealth implements HealthChecker.
type mockHealth struct {
	status database.HealthStatus
}

func (m *mockHealth) Health(context.Context) database.HealthStatus { return m.status }

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func newTestHTTPServer(searcher Searcher, health HealthChecker) *Server {
	return NewServer(Config{Address: ":0", DefaultUseProxies: true}, searcher, health, zerolog.Nop())
}

func serveHTTP(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)
	return rr
}

func postJSON(t *testing.T, srv *Server, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal request body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return serveHTTP(srv, req)
}

func postForm(srv *Server, values url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/search", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return serveHTTP(srv, req)
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to decode response %q: %v", rr.Body.String(), err)
	}
}

func sampleResult(req domain.FetchRequest) *lookup.Result {
	req = req.Normalize()
	return &lookup.Result{
		SearchID: uuid.MustParse("0b0f7f2e-3f4c-4e8e-9c61-1c2f5d6a7b8c"),
		Request:  req,
		Records: []domain.ResearcherRecord{
			domain.NewResearcherRecord("Jane Doe", domain.CitationsFromInt(1200), "MIT"),
			domain.NewResearcherRecord("John Roe", domain.Citations{}, ""),
		},
		Notices: []domain.Notice{
			domain.NewNotice(domain.NoticeSuccess, "", lookup.MsgFound, 2, req.Area),
		},
		SourceUsed: domain.SourceTypeSerpAPI,
		Duration:   1500 * time.Millisecond,
	}
}

// ---------------------------------------------------------------------------
// JSON API
// ---------------------------------------------------------------------------

func TestSearchResearchers_Success(t *testing.T) {
	searcher := &mockSearcher{fetchFn: func(_ context.Context, req domain.FetchRequest) *lookup.Result {
		return sampleResult(req)
	}}
	srv := newTestHTTPServer(searcher, nil)

	rr := postJSON(t, srv, "/api/v1/researchers/search", map[string]any{
		"area":        "  climate change ",
		"max_results": 5,
		"source":      "api_only",
		"api_key":     "secret",
		"use_proxies": false,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	got := searcher.lastRequest(t)
	if got.Area != "climate change" || got.MaxResults != 5 || got.Preference != domain.PreferenceAPIOnly {
		t.Errorf("unexpected fetch request: %+v", got)
	}
	if got.APIKey != "secret" || got.UseProxies {
		t.Errorf("expected key and proxies off to be passed through, got %+v", got)
	}

	var resp searchResponse
	decodeBody(t, rr, &resp)
	if len(resp.Records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(resp.Records))
	}
	if resp.Records[1].Affiliation != domain.NotAvailable {
		t.Errorf("expected N/A affiliation, got %q", resp.Records[1].Affiliation)
	}
	if resp.SourceUsed != "serpapi" || resp.DurationMs != 1500 {
		t.Errorf("unexpected response metadata: %+v", resp)
	}
	if !strings.Contains(rr.Body.String(), `"citations":"N/A"`) {
		t.Errorf("expected missing citations to serialize as N/A, got %s", rr.Body.String())
	}
}

func TestSearchResearchers_Defaults(t *testing.T) {
	searcher := &mockSearcher{}
	srv := newTestHTTPServer(searcher, nil)

	rr := postJSON(t, srv, "/api/v1/researchers/search", map[string]any{"area": "graph theory"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	got := searcher.lastRequest(t)
	if got.MaxResults != domain.DefaultResults {
		t.Errorf("expected default max results %d, got %d", domain.DefaultResults, got.MaxResults)
	}
	if got.Preference != domain.PreferenceAuto || !got.UseProxies {
		t.Errorf("expected AUTO with proxies on, got %+v", got)
	}

	var resp searchResponse
	decodeBody(t, rr, &resp)
	if resp.Records == nil || resp.Notices == nil {
		t.Error("expected empty arrays rather than null")
	}
}

func TestSearchResearchers_ProxyDefaultFromConfig(t *testing.T) {
	searcher := &mockSearcher{}
	srv := NewServer(Config{Address: ":0"}, searcher, nil, zerolog.Nop())

	postJSON(t, srv, "/api/v1/researchers/search", map[string]any{"area": "x"})
	if searcher.lastRequest(t).UseProxies {
		t.Error("expected proxies off when disabled in config")
	}

	rr := serveHTTP(srv, httptest.NewRequest(http.MethodGet, "/", nil))
	if strings.Contains(rr.Body.String(), `value="on" checked`) {
		t.Error("expected proxy checkbox unchecked")
	}
}

func TestSearchResearchers_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"invalid json", `{"area":`, "invalid JSON request body"},
		{"empty area", `{"area":"   "}`, "area"},
		{"zero results", `{"area":"x","max_results":0}`, "max_results"},
		{"too many results", `{"area":"x","max_results":51}`, "max_results"},
		{"unknown source", `{"area":"x","source":"bing"}`, "source"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			searcher := &mockSearcher{}
			srv := newTestHTTPServer(searcher, nil)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/researchers/search", strings.NewReader(tc.body))
			rr := serveHTTP(srv, req)

			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rr.Code, rr.Body.String())
			}
			var resp map[string]string
			decodeBody(t, rr, &resp)
			if !strings.Contains(resp["error"], tc.want) {
				t.Errorf("expected error mentioning %q, got %q", tc.want, resp["error"])
			}
			if len(searcher.requests) != 0 {
				t.Error("expected no fetch for an invalid request")
			}
		})
	}
}

func TestListSearches(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var gotLimit int
	searcher := &mockSearcher{listFn: func(_ context.Context, limit int) ([]*domain.SearchRecord, error) {
		gotLimit = limit
		return []*domain.SearchRecord{{
			ID:          uuid.MustParse("6c3e1b9a-2d4f-4f7a-8e1b-3c5d7e9f1a2b"),
			Area:        "climate change",
			MaxResults:  5,
			Preference:  domain.PreferenceAuto,
			SourceUsed:  domain.SourceTypeScholar,
			FellBack:    true,
			ResultCount: 5,
			DurationMs:  4200,
			CreatedAt:   created,
		}}, nil
	}}
	srv := newTestHTTPServer(searcher, nil)

	t.Run("default limit", func(t *testing.T) {
		rr := serveHTTP(srv, httptest.NewRequest(http.MethodGet, "/api/v1/searches", nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
		if gotLimit != 20 {
			t.Errorf("expected default limit 20, got %d", gotLimit)
		}

		var resp listSearchesResponse
		decodeBody(t, rr, &resp)
		if resp.Count != 1 || resp.Searches[0].Area != "climate change" || !resp.Searches[0].FellBack {
			t.Errorf("unexpected response: %+v", resp)
		}
		if !resp.Searches[0].CreatedAt.Equal(created) {
			t.Errorf("expected created_at %v, got %v", created, resp.Searches[0].CreatedAt)
		}
	})

	t.Run("limit is clamped", func(t *testing.T) {
		rr := serveHTTP(srv, httptest.NewRequest(http.MethodGet, "/api/v1/searches?limit=5000", nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
		if gotLimit != 200 {
			t.Errorf("expected clamped limit 200, got %d", gotLimit)
		}
	})

	t.Run("invalid limit", func(t *testing.T) {
		rr := serveHTTP(srv, httptest.NewRequest(http.MethodGet, "/api/v1/searches?limit=abc", nil))
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rr.Code)
		}
	})

	t.Run("repository failure", func(t *testing.T) {
		failing := &mockSearcher{listFn: func(context.Context, int) ([]*domain.SearchRecord, error) {
			return nil, errors.New("pgx: connection refused to 10.0.0.5:5432")
		}}
		rr := serveHTTP(newTestHTTPServer(failing, nil), httptest.NewRequest(http.MethodGet, "/api/v1/searches", nil))
		if rr.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rr.Code)
		}
	})
}

func TestGetSearch(t *testing.T) {
	id := uuid.MustParse("6c3e1b9a-2d4f-4f7a-8e1b-3c5d7e9f1a2b")
	searcher := &mockSearcher{getFn: func(_ context.Context, got uuid.UUID) (*domain.SearchRecord, error) {
		if got != id {
			return nil, domain.NewNotFoundError("search", got.String())
		}
		return &domain.SearchRecord{ID: id, Area: "graph theory", Preference: domain.PreferenceScrapeOnly}, nil
	}}
	srv := newTestHTTPServer(searcher, nil)

	rr := serveHTTP(srv, httptest.NewRequest(http.MethodGet, "/api/v1/searches/"+id.String(), nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp searchRecordResponse
	decodeBody(t, rr, &resp)
	if resp.SearchID != id.String() || resp.Source != "scrape_only" {
		t.Errorf("unexpected response: %+v", resp)
	}

	rr = serveHTTP(srv, httptest.NewRequest(http.MethodGet, "/api/v1/searches/"+uuid.NewString(), nil))
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rr.Code)
	}

	rr = serveHTTP(srv, httptest.NewRequest(http.MethodGet, "/api/v1/searches/not-a-uuid", nil))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rr.Code)
	}
}

// ---------------------------------------------------------------------------
// HTML pages
// ---------------------------------------------------------------------------

func TestIndexPage(t *testing.T) {
	srv := newTestHTTPServer(&mockSearcher{}, nil)

	rr := serveHTTP(srv, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("expected text/html, got %q", ct)
	}

	body := rr.Body.String()
	for _, want := range []string{
		`name="area"`,
		`name="max_results" min="1" max="50" value="10"`,
		`<option value="auto" selected>`,
		`<option value="api_only">`,
		`<option value="scrape_only">`,
		`name="use_proxies" value="on" checked`,
		`type="password" name="api_key"`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected page to contain %q", want)
		}
	}
}

func TestSearchPage_RendersResults(t *testing.T) {
	searcher := &mockSearcher{fetchFn: func(_ context.Context, req domain.FetchRequest) *lookup.Result {
		return sampleResult(req)
	}}
	srv := newTestHTTPServer(searcher, nil)

	rr := postForm(srv, url.Values{
		"area":        {"climate change"},
		"max_results": {"5"},
		"source":      {"scrape_only"},
		"use_proxies": {"on"},
		"api_key":     {"do-not-echo"},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	got := searcher.lastRequest(t)
	if got.MaxResults != 5 || got.Preference != domain.PreferenceScrapeOnly || !got.UseProxies {
		t.Errorf("unexpected fetch request: %+v", got)
	}

	body := rr.Body.String()
	janeAt := strings.Index(body, "Jane Doe")
	johnAt := strings.Index(body, "John Roe")
	if janeAt < 0 || johnAt < 0 || janeAt > johnAt {
		t.Errorf("expected records in order, got body %s", body)
	}
	for _, want := range []string{"(1200 citations)", "(N/A citations)", "Found 2 researchers for &#39;climate change&#39;.", `notice-success`} {
		if !strings.Contains(body, want) {
			t.Errorf("expected page to contain %q", want)
		}
	}
	if strings.Contains(body, "do-not-echo") {
		t.Error("API key must not be echoed back")
	}
}

func TestSearchPage_FormParsing(t *testing.T) {
	tests := []struct {
		name    string
		values  url.Values
		wantMax int
		wantPx  bool
		wantSrc domain.SourcePreference
	}{
		{"defaults", url.Values{"area": {"x"}}, domain.DefaultResults, false, domain.PreferenceAuto},
		{"unparsable max", url.Values{"area": {"x"}, "max_results": {"ten"}}, 0, false, domain.PreferenceAuto},
		{"unknown engine kept", url.Values{"area": {"x"}, "source": {"bing"}}, domain.DefaultResults, false, "bing"},
		{"proxies on", url.Values{"area": {"x"}, "use_proxies": {"on"}, "source": {"api_only"}}, domain.DefaultResults, true, domain.PreferenceAPIOnly},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			searcher := &mockSearcher{}
			rr := postForm(newTestHTTPServer(searcher, nil), tc.values)
			if rr.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", rr.Code)
			}
			got := searcher.lastRequest(t)
			if got.MaxResults != tc.wantMax || got.UseProxies != tc.wantPx || got.Preference != tc.wantSrc {
				t.Errorf("unexpected fetch request: %+v", got)
			}
		})
	}
}

func TestSearchPage_EmptyArea(t *testing.T) {
	srv := newTestHTTPServer(&mockSearcher{fetchFn: func(_ context.Context, req domain.FetchRequest) *lookup.Result {
		return &lookup.Result{
			Request: req.Normalize(),
			Notices: []domain.Notice{{Level: domain.NoticeWarning, Message: lookup.MsgInvalidArea}},
		}
	}}, nil)

	rr := postForm(srv, url.Values{"area": {"   "}})
	body := rr.Body.String()
	if !strings.Contains(body, "Enter a valid research area.") || !strings.Contains(body, "notice-warning") {
		t.Errorf("expected invalid area warning, got %s", body)
	}
	if strings.Contains(body, `<ol class="results">`) {
		t.Error("expected no result list")
	}
}

// ---------------------------------------------------------------------------
// Health
// ---------------------------------------------------------------------------

func TestHealthEndpoints(t *testing.T) {
	t.Run("liveness", func(t *testing.T) {
		rr := serveHTTP(newTestHTTPServer(&mockSearcher{}, nil), httptest.NewRequest(http.MethodGet, "/healthz", nil))
		if rr.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rr.Code)
		}
	})

	t.Run("ready without database", func(t *testing.T) {
		rr := serveHTTP(newTestHTTPServer(&mockSearcher{}, nil), httptest.NewRequest(http.MethodGet, "/readyz", nil))
		var resp map[string]string
		decodeBody(t, rr, &resp)
		if rr.Code != http.StatusOK || resp["database"] != "disabled" {
			t.Errorf("expected ready with database disabled, got %d %v", rr.Code, resp)
		}
	})

	t.Run("ready with healthy database", func(t *testing.T) {
		health := &mockHealth{status: database.HealthStatus{Status: database.StatusHealthy}}
		rr := serveHTTP(newTestHTTPServer(&mockSearcher{}, health), httptest.NewRequest(http.MethodGet, "/readyz", nil))
		if rr.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rr.Code)
		}
	})

	t.Run("not ready with unhealthy database", func(t *testing.T) {
		health := &mockHealth{status: database.HealthStatus{Status: database.StatusUnhealthy, Error: "ping failed"}}
		rr := serveHTTP(newTestHTTPServer(&mockSearcher{}, health), httptest.NewRequest(http.MethodGet, "/readyz", nil))
		if rr.Code != http.StatusServiceUnavailable {
			t.Errorf("expected 503, got %d", rr.Code)
		}
		var resp map[string]string
		decodeBody(t, rr, &resp)
		if resp["status"] != "not_ready" {
			t.Errorf("expected not_ready, got %v", resp)
		}
	})
}
