package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Bounds on the number of researchers a single fetch may return.
const (
	MinResults     = 1
	MaxResults     = 50
	DefaultResults = 10
)

// FetchRequest describes one user-triggered researcher lookup.
// It is created per request and never persisted.
type FetchRequest struct {
	// Area is the research area to search for, e.g. "climate change".
	Area string `validate:"required,max=256"`

	// MaxResults bounds the number of records returned.
	MaxResults int `validate:"min=1,max=50"`

	// Preference selects the source adapter.
	Preference SourcePreference `validate:"oneof=auto scrape_only api_only"`

	// APIKey is the optional SerpAPI key supplied by the user.
	APIKey string

	// UseProxies asks the scraping adapter to route through the proxy pool.
	UseProxies bool
}

var requestValidator = validator.New(validator.WithRequiredStructEnabled())

// Normalize trims the area and applies defaults for unset fields.
func (r FetchRequest) Normalize() FetchRequest {
	r.Area = whitespaceRegex.ReplaceAllString(strings.TrimSpace(r.Area), " ")
	r.APIKey = strings.TrimSpace(r.APIKey)
	if r.Preference == "" {
		r.Preference = PreferenceAuto
	}
	return r
}

// Validate checks the request constraints and returns a *ValidationError
// describing the first violation.
func (r FetchRequest) Validate() error {
	err := requestValidator.Struct(r)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("validating fetch request: %w", err)
	}
	fe := verrs[0]
	switch fe.Field() {
	case "Area":
		if fe.Tag() == "required" {
			return NewValidationError("area", "enter a valid research area")
		}
		return NewValidationError("area", "research area is too long")
	case "MaxResults":
		return NewValidationError("max_results", fmt.Sprintf("must be between %d and %d", MinResults, MaxResults))
	case "Preference":
		return NewValidationError("source", fmt.Sprintf("unknown source preference %q", r.Preference))
	default:
		return NewValidationError(strings.ToLower(fe.Field()), fe.Error())
	}
}
