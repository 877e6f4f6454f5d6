package domain

import (
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
)

// PayloadProductID is the vector payload field carrying the join key into the
// relational store's external_id column.
const PayloadProductID = "product_id"

// pointNamespace scopes deterministic point IDs to this service.
var pointNamespace = uuid.MustParse("1f39cc2e-7a65-4a43-9ed8-55cf1d8e2f14")

// PointID derives a stable vector point ID from a product's external_id.
// Re-indexing the same product always lands on the same point.
func PointID(externalID string) uuid.UUID {
	return uuid.NewSHA1(pointNamespace, []byte(externalID))
}

// VectorPoint is a single (id, vector, payload) triple for index upsert.
type VectorPoint struct {
	ID      uuid.UUID
	Vector  []float32
	Payload map[string]any
}

// VectorHit is a single similarity-search match from the vector index,
// ordered descending by score within a result set.
type VectorHit struct {
	ID      string
	Score   float32
	Payload map[string]any
}

// ProductID extracts the join key from the hit payload.
// Returns false for a hit without one (a dangling index entry).
func (h VectorHit) ProductID() (string, bool) {
	v, ok := h.Payload[PayloadProductID]
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// SearchResult is an enriched hit: vector-search score joined with the
// relational display fields. Constructed per request, never persisted.
type SearchResult struct {
	ProductID   string
	Title       string
	Description *string
	ImageURL    *string
	Score       float32
	Metadata    types.JSONText
}

// SearchResponse is the assembled, ranked result of one retrieval run.
// Results keep the vector-search rank order; Total counts only the
// successfully enriched hits.
type SearchResponse struct {
	Query     string
	QueryType QueryType
	Results   []SearchResult
	Total     int
}

// CollectionInfo is vector collection introspection, used by health and ops.
type CollectionInfo struct {
	Name        string
	VectorCount uint64
	PointCount  uint64
	Status      string
}
