package search

import (
	"context"

	"github.com/vistra-labs/vistra/internal/domain"
	"github.com/vistra-labs/vistra/internal/domain/filter"
)

// Index defines the vector search contract.
type Index interface {
	Search(
		ctx context.Context, vector []float32, limit int, threshold float32, f filter.Filter,
	) ([]domain.VectorHit, error)
}

// ProductReader resolves join keys into product rows. Keys with no matching
// row are absent from the returned map, not errors.
type ProductReader interface {
	GetByExternalIDs(ctx context.Context, externalIDs []string) (map[string]domain.Product, error)
}

// LogAppender writes search audit records.
type LogAppender interface {
	Append(ctx context.Context, entry domain.SearchLog) error
}
