package domain

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/shopspring/decimal"
)

// Product is a relational product record. ExternalID is the stable identity
// and the join key against the vector index; the surrogate ID never leaves
// the storage layer.
type Product struct {
	ID          int64               `db:"id" json:"-"`
	ExternalID  string              `db:"external_id"`
	Title       string              `db:"title"`
	Description *string             `db:"description"`
	Category    *string             `db:"category"`
	Price       decimal.NullDecimal `db:"price"`
	Currency    *string             `db:"currency"`
	ImageURL    *string             `db:"image_url"`
	Metadata    types.JSONText      `db:"metadata"`
	CreatedAt   time.Time           `db:"created_at"`
	UpdatedAt   time.Time           `db:"updated_at"`
}

// Validate checks the fields required to store and index a product.
func (p *Product) Validate() error {
	if p.ExternalID == "" {
		return fmt.Errorf("%w: external_id is required", ErrValidation)
	}
	if p.Title == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if p.Price.Valid && p.Price.Decimal.IsNegative() {
		return fmt.Errorf("%w: price must not be negative", ErrValidation)
	}
	return nil
}

// EmbeddingText is the text representation indexed for a product.
func (p *Product) EmbeddingText() string {
	if p.Description != nil && *p.Description != "" {
		return p.Title + "\n" + *p.Description
	}
	return p.Title
}

// SearchLog is a write-once audit record of a single search request.
type SearchLog struct {
	QueryType       QueryType
	QueryText       string
	QueryImageURL   string
	ResultsCount    int
	ExecutionTimeMS int64
	UserID          string
	SessionID       string
}
