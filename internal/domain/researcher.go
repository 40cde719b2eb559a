package domain

import (
	"encoding/json"
	"strconv"
	"strings"
)

// NotAvailable is the sentinel substituted for any researcher field the
// backend did not provide.
const NotAvailable = "N/A"

// Citations is a citation figure as reported by a backend. It is either a
// known integer count, a raw textual figure the backend returned verbatim,
// or not available.
type Citations struct {
	count int
	raw   string
	known bool
}

// CitationsFromInt returns a known citation count.
func CitationsFromInt(n int) Citations {
	return Citations{count: n, known: true}
}

// CitationsFromText parses a textual citation figure such as "1,234" or
// "Cited by 42". Text without digits is kept verbatim; blank text is
// treated as not available.
func CitationsFromText(s string) Citations {
	s = strings.TrimSpace(s)
	if s == "" || s == NotAvailable {
		return Citations{}
	}
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		if r == ',' || r == '.' || r == ' ' || r == '\u00a0' {
			return -1
		}
		return r
	}, strings.TrimPrefix(s, "Cited by"))
	if n, err := strconv.Atoi(strings.TrimSpace(digits)); err == nil {
		return CitationsFromInt(n)
	}
	return Citations{raw: s}
}

// Count returns the citation count and whether it is known.
func (c Citations) Count() (int, bool) {
	return c.count, c.known
}

// Available reports whether the backend provided any citation figure.
func (c Citations) Available() bool {
	return c.known || c.raw != ""
}

// String renders the figure, or NotAvailable.
func (c Citations) String() string {
	switch {
	case c.known:
		return strconv.Itoa(c.count)
	case c.raw != "":
		return c.raw
	default:
		return NotAvailable
	}
}

// MarshalJSON encodes a known count as a number and anything else as a string.
func (c Citations) MarshalJSON() ([]byte, error) {
	if c.known {
		return json.Marshal(c.count)
	}
	return json.Marshal(c.String())
}

// UnmarshalJSON accepts both the numeric and the string encodings.
func (c *Citations) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*c = CitationsFromInt(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*c = CitationsFromText(s)
	return nil
}

// ResearcherRecord is the canonical researcher triple every source adapter
// produces. Every field is always populated: absent values are NotAvailable.
// Records are values; build them with NewResearcherRecord.
type ResearcherRecord struct {
	Name        string    `json:"name"`
	Citations   Citations `json:"citations"`
	Affiliation string    `json:"affiliation"`
}

// NewResearcherRecord normalizes the given fields into a record, collapsing
// whitespace and substituting NotAvailable for blanks.
func NewResearcherRecord(name string, citations Citations, affiliation string) ResearcherRecord {
	return ResearcherRecord{
		Name:        orNotAvailable(name),
		Citations:   citations,
		Affiliation: orNotAvailable(affiliation),
	}
}

func orNotAvailable(s string) string {
	s = whitespaceRegex.ReplaceAllString(strings.TrimSpace(s), " ")
	if s == "" {
		return NotAvailable
	}
	return s
}

// TruncateRecords returns at most max records, preserving order.
func TruncateRecords(records []ResearcherRecord, max int) []ResearcherRecord {
	if max < 0 {
		max = 0
	}
	if len(records) <= max {
		return records
	}
	return records[:max]
}
