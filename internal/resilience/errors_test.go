package resilience

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/helixir/researcher-lookup-service/internal/domain"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorCategory
	}{
		{name: "nil", err: nil, expected: Permanent},
		{name: "explicit permanent", err: MarkPermanent(errors.New("timeout")), expected: Permanent},
		{name: "context canceled", err: context.Canceled, expected: Permanent},
		{name: "deadline exceeded", err: context.DeadlineExceeded, expected: Transient},
		{name: "rate limit error", err: domain.NewRateLimitError("Google Scholar", 0), expected: Transient},
		{name: "likely blocked", err: fmt.Errorf("fetch: %w", domain.ErrLikelyBlocked), expected: Transient},
		{name: "service unavailable", err: domain.ErrServiceUnavailable, expected: Transient},
		{name: "validation error", err: domain.NewValidationError("area", "required"), expected: Permanent},
		{name: "missing credential", err: domain.ErrMissingCredential, expected: Permanent},
		{name: "connection reset", err: errors.New("read tcp: connection reset by peer"), expected: Transient},
		{name: "unauthorized", err: errors.New("401 Unauthorized"), expected: Permanent},
		{name: "invalid api key", err: errors.New("Invalid API key. Your API key should be here"), expected: Permanent},
		{name: "author is not auth", err: errors.New("author card missing"), expected: Transient},
		{name: "unknown defaults to transient", err: errors.New("something odd"), expected: Transient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Classify(tt.err))
		})
	}
}

func TestErrorCategory_String(t *testing.T) {
	assert.Equal(t, "transient", Transient.String())
	assert.Equal(t, "permanent", Permanent.String())
	assert.Equal(t, "unknown", ErrorCategory(42).String())
}

func TestMarkPermanent_Nil(t *testing.T) {
	assert.NoError(t, MarkPermanent(nil))
}
