// Package product persists product records keyed by external_id.
package product

import (
	"context"
	"fmt"

	"github.com/vistra-labs/vistra/internal/db/postgres"
	"github.com/vistra-labs/vistra/internal/domain"
)

const productColumns = `id, external_id, title, description, category, price, currency, image_url, metadata, created_at, updated_at`

// Repo reads and writes product rows.
type Repo struct {
	store *postgres.Store
}

// New creates a product repository.
func New(store *postgres.Store) *Repo {
	return &Repo{store: store}
}

// GetByExternalID fetches a single product. Returns domain.ErrNotFound for a
// missing row.
func (r *Repo) GetByExternalID(ctx context.Context, externalID string) (domain.Product, error) {
	var p domain.Product
	found, err := r.store.FetchOne(ctx, &p,
		`SELECT `+productColumns+` FROM products WHERE external_id = $1`, externalID)
	if err != nil {
		return domain.Product{}, fmt.Errorf("%w: get product: %w", domain.ErrStoreUnavailable, err)
	}
	if !found {
		return domain.Product{}, fmt.Errorf("product %q: %w", externalID, domain.ErrNotFound)
	}
	return p, nil
}

// GetByExternalIDs fetches products for a set of join keys in a single
// IN-query. Keys with no matching row are simply absent from the result map;
// the caller decides what a miss means.
func (r *Repo) GetByExternalIDs(ctx context.Context, externalIDs []string) (map[string]domain.Product, error) {
	if len(externalIDs) == 0 {
		return map[string]domain.Product{}, nil
	}

	query, args, err := r.store.In(
		`SELECT `+productColumns+` FROM products WHERE external_id IN (?)`, externalIDs)
	if err != nil {
		return nil, fmt.Errorf("build products query: %w", err)
	}

	var rows []domain.Product
	if err := r.store.FetchAll(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("%w: get products: %w", domain.ErrStoreUnavailable, err)
	}

	byID := make(map[string]domain.Product, len(rows))
	for _, p := range rows {
		byID[p.ExternalID] = p
	}
	return byID, nil
}

// Upsert inserts a product or replaces the row with the same external_id.
func (r *Repo) Upsert(ctx context.Context, p domain.Product) (domain.Product, error) {
	var saved domain.Product
	found, err := r.store.FetchOne(ctx, &saved, `
		INSERT INTO products (external_id, title, description, category, price, currency, image_url, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (external_id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			category = EXCLUDED.category,
			price = EXCLUDED.price,
			currency = EXCLUDED.currency,
			image_url = EXCLUDED.image_url,
			metadata = EXCLUDED.metadata,
			updated_at = CURRENT_TIMESTAMP
		RETURNING `+productColumns,
		p.ExternalID, p.Title, p.Description, p.Category, p.Price, p.Currency, p.ImageURL, p.Metadata)
	if err != nil {
		return domain.Product{}, fmt.Errorf("%w: upsert product: %w", domain.ErrStoreUnavailable, err)
	}
	if !found {
		return domain.Product{}, fmt.Errorf("%w: upsert product returned no row", domain.ErrStoreUnavailable)
	}
	return saved, nil
}

// List returns products ordered by creation time, newest first.
func (r *Repo) List(ctx context.Context, limit, offset int) ([]domain.Product, error) {
	var rows []domain.Product
	err := r.store.FetchAll(ctx, &rows,
		`SELECT `+productColumns+` FROM products ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: list products: %w", domain.ErrStoreUnavailable, err)
	}
	return rows, nil
}

// Delete removes a product row. Returns domain.ErrNotFound when nothing
// matched.
func (r *Repo) Delete(ctx context.Context, externalID string) error {
	n, err := r.store.Execute(ctx, `DELETE FROM products WHERE external_id = $1`, externalID)
	if err != nil {
		return fmt.Errorf("%w: delete product: %w", domain.ErrStoreUnavailable, err)
	}
	if n == 0 {
		return fmt.Errorf("product %q: %w", externalID, domain.ErrNotFound)
	}
	return nil
}
