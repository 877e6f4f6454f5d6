// Package search implements the retrieval pipeline: embed the query, run a
// thresholded similarity search, then enrich the hits from the relational
// store while preserving vector-search rank order.
package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vistra-labs/vistra/internal/domain"
	"github.com/vistra-labs/vistra/internal/domain/filter"
	"github.com/vistra-labs/vistra/internal/logger"
	"github.com/vistra-labs/vistra/internal/metrics"
)

// Timeouts bound each pipeline stage. A hung downstream call fails the
// request, never the process.
type Timeouts struct {
	Embed time.Duration
	Index time.Duration
	Store time.Duration
}

// Limits hold the caller-facing parameter bounds.
type Limits struct {
	MaxLimit int
}

// Options are per-request search parameters. Transport fills in defaults for
// omitted parameters; out-of-range values are rejected here, never clamped.
type Options struct {
	Limit     int
	Threshold float32
	Filter    filter.Filter
	UserID    string
	SessionID string
}

// Service orchestrates one retrieval run per request. Stateless across
// requests; safe for concurrent use.
type Service struct {
	embedder domain.Embedder
	index    Index
	products ProductReader
	logs     LogAppender
	limits   Limits
	timeouts Timeouts
}

// New creates a search service.
func New(embedder domain.Embedder, index Index, products ProductReader, limits Limits) *Service {
	if limits.MaxLimit <= 0 {
		limits.MaxLimit = 100
	}
	return &Service{
		embedder: embedder,
		index:    index,
		products: products,
		limits:   limits,
		timeouts: Timeouts{Embed: 15 * time.Second, Index: 5 * time.Second, Store: 5 * time.Second},
	}
}

// WithAuditLog enables best-effort search audit logging.
func (s *Service) WithAuditLog(logs LogAppender) *Service {
	s.logs = logs
	return s
}

// WithTimeouts overrides the per-stage timeouts.
func (s *Service) WithTimeouts(t Timeouts) *Service {
	if t.Embed > 0 {
		s.timeouts.Embed = t.Embed
	}
	if t.Index > 0 {
		s.timeouts.Index = t.Index
	}
	if t.Store > 0 {
		s.timeouts.Store = t.Store
	}
	return s
}

// SearchText runs the pipeline for a text query.
func (s *Service) SearchText(ctx context.Context, query string, opts Options) (domain.SearchResponse, error) {
	if strings.TrimSpace(query) == "" {
		return domain.SearchResponse{}, fmt.Errorf("%w: query must not be empty", domain.ErrValidation)
	}
	if err := s.validateOptions(opts); err != nil {
		return domain.SearchResponse{}, err
	}

	return s.run(ctx, domain.QueryText, query, opts, func(ctx context.Context) ([]float32, error) {
		return s.embedder.EmbedText(ctx, query)
	})
}

// SearchImage runs the pipeline for an uploaded image. The image is decoded
// here, before it reaches the model; corrupt data fails as a client error.
func (s *Service) SearchImage(
	ctx context.Context, filename string, data []byte, opts Options,
) (domain.SearchResponse, error) {
	if len(data) == 0 {
		return domain.SearchResponse{}, fmt.Errorf("%w: image data must not be empty", domain.ErrValidation)
	}
	if err := s.validateOptions(opts); err != nil {
		return domain.SearchResponse{}, err
	}

	img, err := domain.DecodeImage(data)
	if err != nil {
		return domain.SearchResponse{}, err
	}

	return s.run(ctx, domain.QueryImage, filename, opts, func(ctx context.Context) ([]float32, error) {
		return s.embedder.EmbedImage(ctx, img)
	})
}

func (s *Service) validateOptions(opts Options) error {
	if opts.Limit < 1 || opts.Limit > s.limits.MaxLimit {
		return fmt.Errorf("%w: limit must be between 1 and %d, got %d",
			domain.ErrValidation, s.limits.MaxLimit, opts.Limit)
	}
	if opts.Threshold < 0 || opts.Threshold > 1 {
		return fmt.Errorf("%w: threshold must be within [0, 1], got %v",
			domain.ErrValidation, opts.Threshold)
	}
	return nil
}

// run executes the three pipeline stages and assembles the response.
func (s *Service) run(
	ctx context.Context,
	queryType domain.QueryType,
	queryLabel string,
	opts Options,
	embed func(ctx context.Context) ([]float32, error),
) (domain.SearchResponse, error) {
	start := time.Now()
	modality := string(queryType)

	resp, err := s.pipeline(ctx, queryType, queryLabel, opts, embed)
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues(modality, "error").Inc()
		return domain.SearchResponse{}, err
	}

	metrics.SearchRequestsTotal.WithLabelValues(modality, "success").Inc()
	metrics.SearchResultsCount.Observe(float64(resp.Total))

	s.appendLog(ctx, domain.SearchLog{
		QueryType:       queryType,
		QueryText:       textQueryOnly(queryType, queryLabel),
		QueryImageURL:   imageQueryOnly(queryType, queryLabel),
		ResultsCount:    resp.Total,
		ExecutionTimeMS: time.Since(start).Milliseconds(),
		UserID:          opts.UserID,
		SessionID:       opts.SessionID,
	})

	return resp, nil
}

func (s *Service) pipeline(
	ctx context.Context,
	queryType domain.QueryType,
	queryLabel string,
	opts Options,
	embed func(ctx context.Context) ([]float32, error),
) (domain.SearchResponse, error) {
	embedCtx, cancelEmbed := context.WithTimeout(ctx, s.timeouts.Embed)
	defer cancelEmbed()

	vector, err := embed(embedCtx)
	if err != nil {
		return domain.SearchResponse{}, fmt.Errorf("embed query: %w", err)
	}

	indexCtx, cancelIndex := context.WithTimeout(ctx, s.timeouts.Index)
	defer cancelIndex()

	hits, err := s.index.Search(indexCtx, vector, opts.Limit, opts.Threshold, opts.Filter)
	if err != nil {
		return domain.SearchResponse{}, fmt.Errorf("vector search: %w", err)
	}

	resp := domain.SearchResponse{
		Query:     queryLabel,
		QueryType: queryType,
		Results:   []domain.SearchResult{},
	}
	if len(hits) == 0 {
		return resp, nil
	}

	results, err := s.enrich(ctx, hits)
	if err != nil {
		return domain.SearchResponse{}, err
	}

	resp.Results = results
	resp.Total = len(results)
	return resp, nil
}

// enrich resolves hits into full product records, in hit order. Hits whose
// join key has no matching row are dropped silently: a dangling index entry
// degrades completeness, never availability. Duplicate join keys keep only
// the highest-ranked hit.
func (s *Service) enrich(ctx context.Context, hits []domain.VectorHit) ([]domain.SearchResult, error) {
	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		if pid, ok := h.ProductID(); ok {
			ids = append(ids, pid)
		}
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.timeouts.Store)
	defer cancel()

	products, err := s.products.GetByExternalIDs(storeCtx, ids)
	if err != nil {
		return nil, fmt.Errorf("enrich results: %w", err)
	}

	log := logger.FromContext(ctx)
	results := make([]domain.SearchResult, 0, len(hits))
	seen := make(map[string]bool, len(hits))

	for _, h := range hits {
		pid, ok := h.ProductID()
		if !ok {
			metrics.EnrichmentSkipsTotal.Inc()
			log.Debug("vector hit without product_id payload", zap.String("point_id", h.ID))
			continue
		}
		if seen[pid] {
			continue
		}

		p, ok := products[pid]
		if !ok {
			metrics.EnrichmentSkipsTotal.Inc()
			log.Debug("vector hit without matching product row",
				zap.String("point_id", h.ID), zap.String("product_id", pid))
			continue
		}

		seen[pid] = true
		results = append(results, domain.SearchResult{
			ProductID:   p.ExternalID,
			Title:       p.Title,
			Description: p.Description,
			ImageURL:    p.ImageURL,
			Score:       h.Score,
			Metadata:    p.Metadata,
		})
	}

	return results, nil
}

// appendLog writes the audit record. Failures are logged and swallowed: the
// audit trail never breaks a search.
func (s *Service) appendLog(ctx context.Context, entry domain.SearchLog) {
	if s.logs == nil {
		return
	}

	logCtx, cancel := context.WithTimeout(ctx, s.timeouts.Store)
	defer cancel()

	if err := s.logs.Append(logCtx, entry); err != nil {
		logger.FromContext(ctx).Warn("Failed to append search log", zap.Error(err))
	}
}

func textQueryOnly(qt domain.QueryType, label string) string {
	if qt == domain.QueryText {
		return label
	}
	return ""
}

func imageQueryOnly(qt domain.QueryType, label string) string {
	if qt == domain.QueryImage {
		return label
	}
	return ""
}
