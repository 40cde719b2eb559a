package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/helixir/researcher-lookup-service/internal/domain"
)

// Compile-time interface verification.
var _ SearchRepository = (*PgSearchRepository)(nil)

const searchColumns = `id, area, max_results, preference, source_used, fell_back, cached, result_count, duration_ms, created_at`

// PgSearchRepository is a PostgreSQL implementation of SearchRepository.
type PgSearchRepository struct {
	db DBTX
}

// NewPgSearchRepository creates a new PostgreSQL search repository.
func NewPgSearchRepository(db DBTX) *PgSearchRepository {
	return &PgSearchRepository{db: db}
}

// Record inserts the audit row. Re-recording the same ID is a no-op.
func (r *PgSearchRepository) Record(ctx context.Context, rec *domain.SearchRecord) error {
	if rec == nil {
		return domain.NewValidationError("search", "search record is required")
	}
	if rec.ID == uuid.Nil {
		return domain.NewValidationError("id", "search id is required")
	}

	query := `
		INSERT INTO researcher_searches (` + searchColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING`

	_, err := r.db.Exec(ctx, query,
		rec.ID,
		rec.Area,
		rec.MaxResults,
		string(rec.Preference),
		string(rec.SourceUsed),
		rec.FellBack,
		rec.Cached,
		rec.ResultCount,
		rec.DurationMs,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record search: %w", err)
	}
	return nil
}

// Get returns a single audit row.
func (r *PgSearchRepository) Get(ctx context.Context, id uuid.UUID) (*domain.SearchRecord, error) {
	query := `
		SELECT ` + searchColumns + `
		FROM researcher_searches
		WHERE id = $1`

	rec, err := scanSearch(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("search", id.String())
		}
		return nil, fmt.Errorf("failed to get search: %w", err)
	}
	return rec, nil
}

// ListRecent returns the newest audit rows first.
func (r *PgSearchRepository) ListRecent(ctx context.Context, limit int) ([]*domain.SearchRecord, error) {
	query := `
		SELECT ` + searchColumns + `
		FROM researcher_searches
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := r.db.Query(ctx, query, ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list searches: %w", err)
	}
	defer rows.Close()

	records := make([]*domain.SearchRecord, 0)
	for rows.Next() {
		rec, err := scanSearch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan search: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate searches: %w", err)
	}
	return records, nil
}

func scanSearch(row pgx.Row) (*domain.SearchRecord, error) {
	var (
		rec        domain.SearchRecord
		preference string
		sourceUsed string
	)
	err := row.Scan(
		&rec.ID,
		&rec.Area,
		&rec.MaxResults,
		&preference,
		&sourceUsed,
		&rec.FellBack,
		&rec.Cached,
		&rec.ResultCount,
		&rec.DurationMs,
		&rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.Preference = domain.SourcePreference(preference)
	rec.SourceUsed = domain.SourceType(sourceUsed)
	return &rec, nil
}
