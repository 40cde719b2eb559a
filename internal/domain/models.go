// Package domain provides domain models and business logic for the Researcher Lookup Service.
package domain

import (
	"fmt"
	"strings"
)

// SourceType identifies the backend that produced researcher records.
type SourceType string

const (
	// SourceTypeScholar is the Google Scholar author search, scraped page by page.
	SourceTypeScholar SourceType = "scholar"
	// SourceTypeSerpAPI is the paid SerpAPI Google Scholar author engine.
	SourceTypeSerpAPI SourceType = "serpapi"
)

// String returns the source type as a plain string.
func (s SourceType) String() string {
	return string(s)
}

// SourcePreference selects which source adapter a fetch should use.
type SourcePreference string

const (
	// PreferenceAuto uses SerpAPI when a key is available and falls back to
	// Scholar scraping when SerpAPI returns nothing.
	PreferenceAuto SourcePreference = "auto"
	// PreferenceScrapeOnly always scrapes Google Scholar.
	PreferenceScrapeOnly SourcePreference = "scrape_only"
	// PreferenceAPIOnly always calls SerpAPI, even without a key.
	PreferenceAPIOnly SourcePreference = "api_only"
)

// ParseSourcePreference converts user input into a SourcePreference.
// The empty string maps to PreferenceAuto.
func ParseSourcePreference(s string) (SourcePreference, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return PreferenceAuto, nil
	case "scrape_only", "scholar", "scrape":
		return PreferenceScrapeOnly, nil
	case "api_only", "serpapi", "api":
		return PreferenceAPIOnly, nil
	default:
		return "", NewValidationError("source", fmt.Sprintf("unknown source preference %q", s))
	}
}

// NoticeLevel is the severity of a user-facing status message.
type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeSuccess NoticeLevel = "success"
	NoticeWarning NoticeLevel = "warning"
	NoticeError   NoticeLevel = "error"
)

// Notice is a human-readable status message produced while fetching.
// Notices are shown to the user next to (or instead of) results.
type Notice struct {
	Level   NoticeLevel `json:"level"`
	Source  SourceType  `json:"source,omitempty"`
	Message string      `json:"message"`
}

// NewNotice builds a notice with a formatted message.
func NewNotice(level NoticeLevel, source SourceType, format string, args ...any) Notice {
	return Notice{
		Level:   level,
		Source:  source,
		Message: fmt.Sprintf(format, args...),
	}
}
