// Package serpapi provides a client for the SerpAPI Google Scholar author engine.
//
// SerpAPI is a paid search API; every call consumes one search credit. The
// client issues a single GET per fetch and never retries at the HTTP level.
//
// API Documentation: https://serpapi.com/google-scholar-profiles-api
package serpapi

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/helixir/researcher-lookup-service/internal/domain"
)

// SearchResponse represents the subset of the SerpAPI response this client reads.
type SearchResponse struct {
	// Authors is the list returned by the google_scholar_author engine.
	Authors []Author `json:"authors"`

	// Profiles is the list returned by the google_scholar_profiles engine.
	// It is read when Authors is absent.
	Profiles []Author `json:"profiles"`

	// Error is set by SerpAPI on failures reported with a 200 status,
	// e.g. "Invalid API key." or "Google hasn't returned any results".
	Error string `json:"error"`

	// SearchMetadata carries the request status.
	SearchMetadata *SearchMetadata `json:"search_metadata,omitempty"`
}

// SearchMetadata describes the SerpAPI search execution.
type SearchMetadata struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Entries returns the author list, preferring "authors" over "profiles".
func (r *SearchResponse) Entries() []Author {
	if len(r.Authors) > 0 {
		return r.Authors
	}
	return r.Profiles
}

// Author represents a single author entry.
type Author struct {
	// Name is the author's display name.
	Name string `json:"name"`

	// AuthorID is the Google Scholar user identifier.
	AuthorID string `json:"author_id"`

	// Affiliations is the free-text affiliation line.
	Affiliations string `json:"affiliations"`

	// Email is the verified email domain line, if any.
	Email string `json:"email"`

	// CitedBy is either an object with a "table" of citation rows or a scalar.
	CitedBy CitedBy `json:"cited_by"`
}

// CitedBy accepts the shapes SerpAPI uses for citation counts:
//
//	"cited_by": {"table": [{"citations": 42}]}
//	"cited_by": {"table": [{"citations": {"all": 42, "since_2019": 10}}]}
//	"cited_by": 42
//	"cited_by": "42"
type CitedBy struct {
	value domain.Citations
}

type citedByObject struct {
	Table []map[string]json.RawMessage `json:"table"`
}

type citationsAll struct {
	All json.RawMessage `json:"all"`
}

// UnmarshalJSON decodes any supported cited_by shape. Unknown shapes decode
// to "not available" rather than failing the whole response.
func (c *CitedBy) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	if data[0] == '{' {
		var obj citedByObject
		if err := json.Unmarshal(data, &obj); err != nil || len(obj.Table) == 0 {
			return nil
		}
		raw, ok := obj.Table[0]["citations"]
		if !ok {
			return nil
		}
		raw = bytes.TrimSpace(raw)
		if len(raw) > 0 && raw[0] == '{' {
			var all citationsAll
			if err := json.Unmarshal(raw, &all); err != nil {
				return nil
			}
			raw = all.All
		}
		c.value = scalarCitations(raw)
		return nil
	}

	c.value = scalarCitations(data)
	return nil
}

// Citations returns the normalized citation value.
func (c CitedBy) Citations() domain.Citations {
	return c.value
}

// scalarCitations interprets a JSON number or string.
func scalarCitations(raw json.RawMessage) domain.Citations {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return domain.Citations{}
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if i, err := n.Int64(); err == nil {
			return domain.CitationsFromInt(int(i))
		}
		return domain.CitationsFromText(n.String())
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return domain.CitationsFromText(strings.TrimSpace(s))
	}
	return domain.Citations{}
}

// ToRecord normalizes the author into a domain record.
func (a Author) ToRecord() domain.ResearcherRecord {
	return domain.NewResearcherRecord(a.Name, a.CitedBy.Citations(), a.Affiliations)
}
