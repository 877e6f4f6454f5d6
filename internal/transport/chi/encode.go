package chi

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/shopspring/decimal"

	"github.com/vistra-labs/vistra/internal/domain"
)

type searchResultJSON struct {
	ProductID   string          `json:"product_id"`
	Title       string          `json:"title"`
	Description *string         `json:"description,omitempty"`
	ImageURL    *string         `json:"image_url,omitempty"`
	Score       float32         `json:"score"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
}

type searchResponseJSON struct {
	Query     string             `json:"query"`
	QueryType string             `json:"query_type"`
	Results   []searchResultJSON `json:"results"`
	Total     int                `json:"total"`
}

func searchResponseToJSON(resp domain.SearchResponse) searchResponseJSON {
	results := make([]searchResultJSON, len(resp.Results))
	for i, res := range resp.Results {
		results[i] = searchResultJSON{
			ProductID:   res.ProductID,
			Title:       res.Title,
			Description: res.Description,
			ImageURL:    res.ImageURL,
			Score:       res.Score,
			Metadata:    json.RawMessage(res.Metadata),
		}
	}
	return searchResponseJSON{
		Query:     resp.Query,
		QueryType: string(resp.QueryType),
		Results:   results,
		Total:     resp.Total,
	}
}

// productRequest is the create/update payload. Price accepts a JSON number
// or a numeric string so clients can send exact decimals either way.
type productRequest struct {
	ExternalID  string          `json:"external_id"`
	Title       string          `json:"title"`
	Description *string         `json:"description"`
	Category    *string         `json:"category"`
	Price       *json.Number    `json:"price"`
	Currency    *string         `json:"currency"`
	ImageURL    *string         `json:"image_url"`
	Metadata    json.RawMessage `json:"metadata"`
}

func (r productRequest) toDomain() (domain.Product, error) {
	p := domain.Product{
		ExternalID:  r.ExternalID,
		Title:       r.Title,
		Description: r.Description,
		Category:    r.Category,
		Currency:    r.Currency,
		ImageURL:    r.ImageURL,
	}

	if r.Price != nil {
		d, err := decimal.NewFromString(r.Price.String())
		if err != nil {
			return domain.Product{}, fmt.Errorf("%w: price must be a number", domain.ErrValidation)
		}
		p.Price = decimal.NewNullDecimal(d)
	}

	if len(r.Metadata) > 0 {
		if !json.Valid(r.Metadata) {
			return domain.Product{}, fmt.Errorf("%w: metadata must be valid JSON", domain.ErrValidation)
		}
		p.Metadata = types.JSONText(r.Metadata)
	}

	return p, nil
}

type productJSON struct {
	ExternalID  string          `json:"external_id"`
	Title       string          `json:"title"`
	Description *string         `json:"description,omitempty"`
	Category    *string         `json:"category,omitempty"`
	Price       *string         `json:"price,omitempty"`
	Currency    *string         `json:"currency,omitempty"`
	ImageURL    *string         `json:"image_url,omitempty"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type productListJSON struct {
	Items []productJSON `json:"items"`
	Total int           `json:"total"`
}

func productToJSON(p domain.Product) productJSON {
	out := productJSON{
		ExternalID:  p.ExternalID,
		Title:       p.Title,
		Description: p.Description,
		Category:    p.Category,
		Currency:    p.Currency,
		ImageURL:    p.ImageURL,
		Metadata:    json.RawMessage(p.Metadata),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	if p.Price.Valid {
		s := p.Price.Decimal.String()
		out.Price = &s
	}
	return out
}
