package httpserver

import (
	"embed"
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"github.com/helixir/researcher-lookup-service/internal/domain"
	"github.com/helixir/researcher-lookup-service/internal/lookup"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

type sourceOption struct {
	Value    domain.SourcePreference
	Label    string
	Selected bool
}

// pageData feeds templates/index.html. The API key is never echoed back.
type pageData struct {
	Area            string
	MaxResults      int
	MinResults      int
	MaxResultsLimit int
	UseProxies      bool
	HasServerKey    bool
	Sources         []sourceOption
	Result          *lookup.Result
}

func (s *Server) newPageData(req domain.FetchRequest) pageData {
	options := []sourceOption{
		{Value: domain.PreferenceAuto, Label: "Auto (SerpAPI, then Google Scholar)"},
		{Value: domain.PreferenceAPIOnly, Label: "SerpAPI only"},
		{Value: domain.PreferenceScrapeOnly, Label: "Google Scholar only"},
	}
	for i := range options {
		options[i].Selected = options[i].Value == req.Preference
	}
	return pageData{
		Area:            req.Area,
		MaxResults:      req.MaxResults,
		MinResults:      domain.MinResults,
		MaxResultsLimit: domain.MaxResults,
		UseProxies:      req.UseProxies,
		HasServerKey:    s.searcher.HasServerAPIKey(),
		Sources:         options,
	}
}

// indexPage handles GET /.
func (s *Server) indexPage(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, http.StatusOK, s.newPageData(domain.FetchRequest{
		MaxResults: domain.DefaultResults,
		Preference: domain.PreferenceAuto,
		UseProxies: s.defaultUseProxies,
	}))
}

// searchPage handles POST /search. Validation problems are reported as
// notices on the page rather than as HTTP errors.
func (s *Server) searchPage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form submission", http.StatusBadRequest)
		return
	}

	req := formToFetchRequest(r)
	res := s.searcher.Fetch(r.Context(), req)

	data := s.newPageData(res.Request)
	data.Result = res
	s.renderPage(w, http.StatusOK, data)
}

// formToFetchRequest reads the form fields. An unparsable max_results is
// passed through as zero so that validation reports it.
func formToFetchRequest(r *http.Request) domain.FetchRequest {
	req := domain.FetchRequest{
		Area:       r.PostFormValue("area"),
		MaxResults: domain.DefaultResults,
		APIKey:     r.PostFormValue("api_key"),
		UseProxies: r.PostFormValue("use_proxies") != "",
	}
	if raw := strings.TrimSpace(r.PostFormValue("max_results")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			n = 0
		}
		req.MaxResults = n
	}
	// unknown engines fall through as-is and fail validation with a notice
	pref, err := domain.ParseSourcePreference(r.PostFormValue("source"))
	if err != nil {
		pref = domain.SourcePreference(r.PostFormValue("source"))
	}
	req.Preference = pref
	return req
}

func (s *Server) renderPage(w http.ResponseWriter, status int, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.pages.ExecuteTemplate(w, "index.html", data); err != nil {
		s.logger.Error().Err(err).Msg("failed to render page")
	}
}
