package product

import (
	"context"

	"github.com/google/uuid"

	"github.com/vistra-labs/vistra/internal/domain"
)

// Repository defines the relational storage contract for products.
type Repository interface {
	Upsert(ctx context.Context, p domain.Product) (domain.Product, error)
	GetByExternalID(ctx context.Context, externalID string) (domain.Product, error)
	List(ctx context.Context, limit, offset int) ([]domain.Product, error)
	Delete(ctx context.Context, externalID string) error
}

// IndexWriter keeps the vector index in step with the relational rows.
type IndexWriter interface {
	Upsert(ctx context.Context, points []domain.VectorPoint) error
	Delete(ctx context.Context, ids []uuid.UUID) error
}
