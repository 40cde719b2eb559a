package database

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/researcher-lookup-service/internal/config"
)

func testDatabaseConfig() *config.DatabaseConfig {
	return &config.DatabaseConfig{
		Host:              "localhost",
		Port:              5432,
		User:              "researchers",
		Password:          "secret",
		Name:              "researcher_lookup_service",
		SSLMode:           config.SSLModeDisable,
		MaxConns:          8,
		MinConns:          2,
		MaxConnLifetime:   time.Hour,
		MaxConnIdleTime:   30 * time.Minute,
		HealthCheckPeriod: 15 * time.Second,
		ConnectTimeout:    3 * time.Second,
	}
}

func TestPoolConfig(t *testing.T) {
	t.Run("applies pool settings", func(t *testing.T) {
		pc, err := PoolConfig(testDatabaseConfig())
		require.NoError(t, err)

		assert.Equal(t, int32(8), pc.MaxConns)
		assert.Equal(t, int32(2), pc.MinConns)
		assert.Equal(t, time.Hour, pc.MaxConnLifetime)
		assert.Equal(t, 30*time.Minute, pc.MaxConnIdleTime)
		assert.Equal(t, 15*time.Second, pc.HealthCheckPeriod)
		assert.Equal(t, 3*time.Second, pc.ConnConfig.ConnectTimeout)
		assert.Equal(t, "localhost", pc.ConnConfig.Host)
		assert.Equal(t, uint16(5432), pc.ConnConfig.Port)
		assert.Equal(t, "researcher_lookup_service", pc.ConnConfig.Database)
	})

	t.Run("zero values keep pgx defaults", func(t *testing.T) {
		cfg := testDatabaseConfig()
		cfg.MaxConns = 0
		cfg.MaxConnLifetime = 0

		pc, err := PoolConfig(cfg)
		require.NoError(t, err)
		assert.Greater(t, pc.MaxConns, int32(0))
		assert.Greater(t, pc.MaxConnLifetime, time.Duration(0))
	})

	t.Run("invalid ssl mode is rejected", func(t *testing.T) {
		cfg := testDatabaseConfig()
		cfg.SSLMode = "sometimes"

		_, err := PoolConfig(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse database config")
	})
}

func TestHealthStatus(t *testing.T) {
	t.Run("error is included when populated", func(t *testing.T) {
		hs := HealthStatus{
			Status:     StatusUnhealthy,
			Error:      "connection refused",
			TotalConns: 4,
			MaxConns:   10,
		}
		assert.False(t, hs.Healthy())

		data, err := json.Marshal(hs)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"error":"connection refused"`)
	})

	t.Run("empty error is omitted", func(t *testing.T) {
		hs := HealthStatus{Status: StatusHealthy, MaxConns: 10}
		assert.True(t, hs.Healthy())

		data, err := json.Marshal(hs)
		require.NoError(t, err)
		assert.NotContains(t, string(data), `"error"`)
		assert.Contains(t, string(data), `"status":"healthy"`)
	})
}

func TestHealthCheckTimeout(t *testing.T) {
	assert.Equal(t, 5*time.Second, HealthCheckTimeout)
}

func TestNew_Unreachable(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	// 192.0.2.1 is TEST-NET-1 (RFC 5737), guaranteed unroutable.
	cfg := testDatabaseConfig()
	cfg.Host = "192.0.2.1"
	cfg.MinConns = 0
	cfg.ConnectTimeout = time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	db, err := New(ctx, cfg, zerolog.Nop())
	require.Error(t, err)
	assert.Nil(t, db)
}

func TestDB_Health(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := setupTestDB(t)
	defer db.Close()

	health := db.Health(context.Background())
	assert.True(t, health.Healthy())
	assert.Greater(t, health.MaxConns, int32(0))
}

// setupTestDB connects to the database described by RESEARCHERS_TEST_DATABASE_HOST
// and friends, skipping the test when none is reachable.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	host := os.Getenv("RESEARCHERS_TEST_DATABASE_HOST")
	if host == "" {
		t.Skip("Skipping integration test: RESEARCHERS_TEST_DATABASE_HOST not set")
	}

	cfg := testDatabaseConfig()
	cfg.Host = host
	cfg.Password = os.Getenv("RESEARCHERS_TEST_DATABASE_PASSWORD")
	cfg.MinConns = 1

	db, err := New(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		t.Skipf("Skipping integration test: cannot connect to database: %v", err)
	}
	return db
}
