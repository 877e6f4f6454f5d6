// Package searchlog appends to the write-once search audit trail.
package searchlog

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vistra-labs/vistra/internal/db/postgres"
	"github.com/vistra-labs/vistra/internal/domain"
)

// Repo writes search audit rows.
type Repo struct {
	store *postgres.Store
}

// New creates a search log repository.
func New(store *postgres.Store) *Repo {
	return &Repo{store: store}
}

// Append writes one audit record. Rows are never updated or deleted.
func (r *Repo) Append(ctx context.Context, entry domain.SearchLog) error {
	_, err := r.store.Execute(ctx, `
		INSERT INTO search_logs (query_type, query_text, query_image_url, results_count, execution_time_ms, user_id, session_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		string(entry.QueryType),
		nullIfEmpty(entry.QueryText),
		nullIfEmpty(entry.QueryImageURL),
		entry.ResultsCount,
		entry.ExecutionTimeMS,
		nullIfEmpty(entry.UserID),
		nullIfEmpty(entry.SessionID),
	)
	if err != nil {
		return fmt.Errorf("append search log: %w", err)
	}
	return nil
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
