package httpserver

import (
	"time"

	"github.com/helixir/researcher-lookup-service/internal/domain"
	"github.com/helixir/researcher-lookup-service/internal/lookup"
)

// searchRequest is the JSON request body for a researcher search.
type searchRequest struct {
	Area       string `json:"area"`
	MaxResults *int   `json:"max_results,omitempty"`
	Source     string `json:"source,omitempty"`
	APIKey     string `json:"api_key,omitempty"`
	UseProxies *bool  `json:"use_proxies,omitempty"`
}

type searchResponse struct {
	SearchID   string                    `json:"search_id"`
	Area       string                    `json:"area"`
	MaxResults int                       `json:"max_results"`
	Source     string                    `json:"source"`
	SourceUsed string                    `json:"source_used,omitempty"`
	FellBack   bool                      `json:"fell_back"`
	Cached     bool                      `json:"cached"`
	Records    []domain.ResearcherRecord `json:"records"`
	Notices    []domain.Notice           `json:"notices"`
	DurationMs int64                     `json:"duration_ms"`
}

type searchRecordResponse struct {
	SearchID    string    `json:"search_id"`
	Area        string    `json:"area"`
	MaxResults  int       `json:"max_results"`
	Source      string    `json:"source"`
	SourceUsed  string    `json:"source_used,omitempty"`
	FellBack    bool      `json:"fell_back"`
	Cached      bool      `json:"cached"`
	ResultCount int       `json:"result_count"`
	DurationMs  int64     `json:"duration_ms"`
	CreatedAt   time.Time `json:"created_at"`
}

type listSearchesResponse struct {
	Searches []searchRecordResponse `json:"searches"`
	Count    int                    `json:"count"`
}

// Converter functions

func resultToResponse(res *lookup.Result) searchResponse {
	records := res.Records
	if records == nil {
		records = []domain.ResearcherRecord{}
	}
	notices := res.Notices
	if notices == nil {
		notices = []domain.Notice{}
	}
	return searchResponse{
		SearchID:   res.SearchID.String(),
		Area:       res.Request.Area,
		MaxResults: res.Request.MaxResults,
		Source:     string(res.Request.Preference),
		SourceUsed: res.SourceUsed.String(),
		FellBack:   res.FellBack,
		Cached:     res.Cached,
		Records:    records,
		Notices:    notices,
		DurationMs: res.Duration.Milliseconds(),
	}
}

func domainSearchToResponse(rec *domain.SearchRecord) searchRecordResponse {
	return searchRecordResponse{
		SearchID:    rec.ID.String(),
		Area:        rec.Area,
		MaxResults:  rec.MaxResults,
		Source:      string(rec.Preference),
		SourceUsed:  rec.SourceUsed.String(),
		FellBack:    rec.FellBack,
		Cached:      rec.Cached,
		ResultCount: rec.ResultCount,
		DurationMs:  rec.DurationMs,
		CreatedAt:   rec.CreatedAt,
	}
}
