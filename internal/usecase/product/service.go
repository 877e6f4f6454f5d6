// Package product manages product records and keeps the vector index in sync
// with the relational rows.
package product

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/vistra-labs/vistra/internal/domain"
)

// Service handles product CRUD with index synchronization.
type Service struct {
	repo            Repository
	index           IndexWriter
	embedder        domain.Embedder
	defaultPageSize int
	maxPageSize     int
}

// New creates a product service.
func New(repo Repository, index IndexWriter, embedder domain.Embedder) *Service {
	return &Service{
		repo:            repo,
		index:           index,
		embedder:        embedder,
		defaultPageSize: 20,
		maxPageSize:     100,
	}
}

// WithPagination overrides the list page size bounds.
func (s *Service) WithPagination(defaultSize, maxSize int) *Service {
	if defaultSize > 0 {
		s.defaultPageSize = defaultSize
	}
	if maxSize > 0 {
		s.maxPageSize = maxSize
	}
	return s
}

// Create stores a product row and indexes its embedding. Re-creating an
// existing external_id replaces both the row and the vector point.
func (s *Service) Create(ctx context.Context, p domain.Product) (domain.Product, error) {
	if err := p.Validate(); err != nil {
		return domain.Product{}, err
	}

	saved, err := s.repo.Upsert(ctx, p)
	if err != nil {
		return domain.Product{}, fmt.Errorf("store product: %w", err)
	}

	vector, err := s.embedder.EmbedText(ctx, saved.EmbeddingText())
	if err != nil {
		return domain.Product{}, fmt.Errorf("embed product: %w", err)
	}

	point := domain.VectorPoint{
		ID:      domain.PointID(saved.ExternalID),
		Vector:  vector,
		Payload: indexPayload(saved),
	}
	if err := s.index.Upsert(ctx, []domain.VectorPoint{point}); err != nil {
		return domain.Product{}, fmt.Errorf("index product: %w", err)
	}

	return saved, nil
}

// Get fetches a product by external id.
func (s *Service) Get(ctx context.Context, externalID string) (domain.Product, error) {
	if externalID == "" {
		return domain.Product{}, fmt.Errorf("%w: external_id is required", domain.ErrValidation)
	}
	return s.repo.GetByExternalID(ctx, externalID)
}

// List returns a page of products, newest first.
func (s *Service) List(ctx context.Context, limit, offset int) ([]domain.Product, error) {
	if limit <= 0 {
		limit = s.defaultPageSize
	}
	if limit > s.maxPageSize {
		return nil, fmt.Errorf("%w: limit must not exceed %d, got %d",
			domain.ErrValidation, s.maxPageSize, limit)
	}
	if offset < 0 {
		return nil, fmt.Errorf("%w: offset must not be negative, got %d", domain.ErrValidation, offset)
	}
	return s.repo.List(ctx, limit, offset)
}

// Delete removes the product row and its vector point. A vector point with no
// surviving row would only degrade search completeness, so the row goes first.
func (s *Service) Delete(ctx context.Context, externalID string) error {
	if externalID == "" {
		return fmt.Errorf("%w: external_id is required", domain.ErrValidation)
	}

	if err := s.repo.Delete(ctx, externalID); err != nil {
		return fmt.Errorf("delete product: %w", err)
	}

	if err := s.index.Delete(ctx, []uuid.UUID{domain.PointID(externalID)}); err != nil {
		return fmt.Errorf("delete product vector: %w", err)
	}
	return nil
}

// indexPayload builds the vector payload: the join key plus the fields the
// search API can filter on.
func indexPayload(p domain.Product) map[string]any {
	payload := map[string]any{
		domain.PayloadProductID: p.ExternalID,
	}
	if p.Category != nil && *p.Category != "" {
		payload["category"] = *p.Category
	}
	if p.Price.Valid {
		payload["price"] = p.Price.Decimal.InexactFloat64()
	}
	return payload
}
