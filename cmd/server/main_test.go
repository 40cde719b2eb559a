package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/researcher-lookup-service/internal/config"
	"github.com/helixir/researcher-lookup-service/internal/domain"
)

func testConfig() *config.Config {
	return &config.Config{
		Sources: config.SourcesConfig{
			SerpAPI: config.SerpAPIConfig{Enabled: true, Timeout: 30 * time.Second},
			Scholar: config.ScholarConfig{Enabled: false, Proxies: []string{"http://proxy.local:3128"}},
		},
		Retry: config.RetryConfig{
			MaxAttempts:      4,
			Base:             2,
			MaxJitter:        time.Second,
			FailureFactor:    1.5,
			FailureCeiling:   6 * time.Second,
			AbandonThreshold: 3,
			PaceMin:          800 * time.Millisecond,
			PaceMax:          1800 * time.Millisecond,
		},
	}
}

func TestBuildRegistry(t *testing.T) {
	registry, err := buildRegistry(testConfig(), nil)
	require.NoError(t, err)

	assert.Len(t, registry.AllSources(), 2)

	_, ok := registry.Enabled(domain.SourceTypeSerpAPI)
	assert.True(t, ok)

	_, ok = registry.Enabled(domain.SourceTypeScholar)
	assert.False(t, ok, "disabled sources stay registered but are not enabled")
	assert.NotNil(t, registry.Get(domain.SourceTypeScholar))
}

func TestBuildRegistry_InvalidProxy(t *testing.T) {
	cfg := testConfig()
	cfg.Sources.Scholar.Proxies = []string{"://bad"}

	_, err := buildRegistry(cfg, nil)
	assert.Error(t, err)
}

func TestScholarConfig(t *testing.T) {
	sc := scholarConfig(testConfig())

	assert.Equal(t, 4, sc.Retry.MaxAttempts)
	assert.Equal(t, 2.0, sc.Retry.Base)
	assert.Equal(t, 3, sc.AbandonThreshold)
	assert.Equal(t, 6*time.Second, sc.FailureBackoff.Ceiling)
	assert.Equal(t, 800*time.Millisecond, sc.Pace.Min)
	assert.Equal(t, []string{"http://proxy.local:3128"}, sc.Proxies)
	assert.False(t, sc.Enabled)
}
