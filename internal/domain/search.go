package domain

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// whitespaceRegex matches one or more whitespace characters (spaces, tabs, newlines).
var whitespaceRegex = regexp.MustCompile(`\s+`)

// NormalizeArea normalizes a research area for cache keys and audit rows by:
// - Trimming leading/trailing whitespace
// - Converting to lowercase
// - Collapsing multiple whitespace characters into a single space
func NormalizeArea(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	s = strings.ToLower(s)
	return whitespaceRegex.ReplaceAllString(s, " ")
}

// SearchRecord is the audit row written for every completed fetch when
// persistence is enabled.
type SearchRecord struct {
	// ID identifies the fetch; it is also attached to logs and events.
	ID uuid.UUID

	// Area is the trimmed research area as entered by the user.
	Area string

	// MaxResults is the requested result bound.
	MaxResults int

	// Preference is the requested source preference.
	Preference SourcePreference

	// SourceUsed is the adapter that produced the final records.
	// Empty when the result came from the cache or nothing was attempted.
	SourceUsed SourceType

	// FellBack is true when AUTO mode fell back from SerpAPI to Scholar.
	FellBack bool

	// Cached is true when the records were served from the result cache.
	Cached bool

	// ResultCount is the number of records returned.
	ResultCount int

	// DurationMs is the wall-clock duration of the fetch in milliseconds.
	DurationMs int64

	// CreatedAt records when the fetch completed.
	CreatedAt time.Time
}

// NewSearchRecord creates a SearchRecord for the fetch identified by id.
func NewSearchRecord(id uuid.UUID, req FetchRequest) *SearchRecord {
	return &SearchRecord{
		ID:         id,
		Area:       req.Area,
		MaxResults: req.MaxResults,
		Preference: req.Preference,
		CreatedAt:  time.Now().UTC(),
	}
}
