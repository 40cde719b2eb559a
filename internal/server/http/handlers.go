package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/helixir/researcher-lookup-service/internal/domain"
	"github.com/helixir/researcher-lookup-service/internal/repository"
)

const maxRequestBodySize = 1 << 20 // 1 MB limit for request bodies

// searchResearchers handles POST /api/v1/researchers/search.
func (s *Server) searchResearchers(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	var payload searchRequest
	if err := json.Unmarshal(body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}

	req, err := payload.toFetchRequest(s.defaultUseProxies)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		writeDomainError(w, err)
		return
	}

	res := s.searcher.Fetch(r.Context(), req)
	writeJSON(w, http.StatusOK, resultToResponse(res))
}

// toFetchRequest applies defaults for omitted fields: ten results, AUTO and
// the configured proxy setting.
func (b searchRequest) toFetchRequest(useProxies bool) (domain.FetchRequest, error) {
	pref, err := domain.ParseSourcePreference(b.Source)
	if err != nil {
		return domain.FetchRequest{}, err
	}
	req := domain.FetchRequest{
		Area:       b.Area,
		MaxResults: domain.DefaultResults,
		Preference: pref,
		APIKey:     b.APIKey,
		UseProxies: useProxies,
	}
	if b.MaxResults != nil {
		req.MaxResults = *b.MaxResults
	}
	if b.UseProxies != nil {
		req.UseProxies = *b.UseProxies
	}
	return req.Normalize(), nil
}

// listSearches handles GET /api/v1/searches.
func (s *Server) listSearches(w http.ResponseWriter, r *http.Request) {
	limit := repository.DefaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = repository.ClampLimit(parsed)
	}

	records, err := s.searcher.ListRecent(r.Context(), limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list searches")
		writeDomainError(w, err)
		return
	}

	searches := make([]searchRecordResponse, len(records))
	for i, rec := range records {
		searches[i] = domainSearchToResponse(rec)
	}
	writeJSON(w, http.StatusOK, listSearchesResponse{
		Searches: searches,
		Count:    len(searches),
	})
}

// getSearch handles GET /api/v1/searches/{searchID}.
func (s *Server) getSearch(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUID(w, chi.URLParam(r, "searchID"), "search_id")
	if !ok {
		return
	}

	rec, err := s.searcher.GetSearch(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domainSearchToResponse(rec))
}

// writeDomainError maps domain errors to HTTP status codes and writes a JSON
// error response. Internal error details are not leaked to clients.
func writeDomainError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "resource not found")
	case errors.Is(err, domain.ErrInvalidInput):
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			writeError(w, http.StatusBadRequest, ve.Error())
		} else {
			writeError(w, http.StatusBadRequest, "invalid input")
		}
	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "rate limited")
	case errors.Is(err, domain.ErrServiceUnavailable):
		writeError(w, http.StatusServiceUnavailable, "service unavailable")
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// parseUUID parses a UUID from a string, writing a 400 error response if invalid.
// The parse error details are not included to avoid echoing potentially malicious input.
func parseUUID(w http.ResponseWriter, s, fieldName string) (uuid.UUID, bool) {
	id, err := uuid.Parse(s)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("%s must be a valid UUID", fieldName))
		return uuid.Nil, false
	}
	return id, true
}
