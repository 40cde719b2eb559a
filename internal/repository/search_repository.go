// Package repository provides data access for the researcher lookup service.
//
// The only persisted entity is the search audit row written after each fetch
// when PostgreSQL is enabled. Implementations take a DBTX so they run against
// a pool, a transaction, or pgxmock in tests.
package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/helixir/researcher-lookup-service/internal/database"
	"github.com/helixir/researcher-lookup-service/internal/domain"
)

// DBTX is the database interface supporting both pool and transaction contexts.
type DBTX = database.DBTX

// Bounds applied to ListRecent.
const (
	DefaultListLimit = 20
	MaxListLimit     = 200
)

// SearchRepository stores and reads search audit rows.
type SearchRepository interface {
	// Record inserts one audit row.
	Record(ctx context.Context, rec *domain.SearchRecord) error

	// Get returns the audit row with the given ID or a *domain.NotFoundError.
	Get(ctx context.Context, id uuid.UUID) (*domain.SearchRecord, error)

	// ListRecent returns the newest rows first. Non-positive limits use
	// DefaultListLimit; limits above MaxListLimit are clamped.
	ListRecent(ctx context.Context, limit int) ([]*domain.SearchRecord, error)
}

// ClampLimit applies the ListRecent bounds.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > MaxListLimit:
		return MaxListLimit
	default:
		return limit
	}
}
