// Package qdrant implements the vector index client over the Qdrant gRPC SDK.
// It manages a single named collection of (id, vector, payload) points with a
// cosine distance metric and a fixed vector size.
package qdrant

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/vistra-labs/vistra/internal/domain"
	"github.com/vistra-labs/vistra/internal/domain/filter"
)

// Config holds connection and collection settings.
type Config struct {
	Host       string
	Port       int
	Collection string
	VectorSize int
}

// Client wraps the Qdrant SDK for one collection.
type Client struct {
	qc         *qdrant.Client
	collection string
	vectorSize int
}

// New creates a vector index client.
func New(cfg Config) (*Client, error) {
	qc, err := qdrant.NewClient(&qdrant.Config{
		Host: cfg.Host,
		Port: cfg.Port,
	})
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}

	return &Client{
		qc:         qc,
		collection: cfg.Collection,
		vectorSize: cfg.VectorSize,
	}, nil
}

// Ping checks index connectivity.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.qc.HealthCheck(ctx); err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	return nil
}

// Close shuts down the underlying gRPC connection.
func (c *Client) Close() {
	_ = c.qc.Close()
}

// WaitForReady polls Ping until the index responds or the timeout expires.
func (c *Client) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for vector index: %w", ctx.Err())
		case <-ticker.C:
			if err := c.Ping(ctx); err == nil {
				return nil
			}
		}
	}
}

// EnsureCollection creates the collection if it does not exist. With recreate
// set, an existing collection is dropped first. Called once at startup, never
// by query paths.
func (c *Client) EnsureCollection(ctx context.Context, recreate bool) error {
	exists, err := c.qc.CollectionExists(ctx, c.collection)
	if err != nil {
		return fmt.Errorf("%w: collection exists check: %w", domain.ErrIndexUnavailable, err)
	}

	if exists && recreate {
		if err := c.qc.DeleteCollection(ctx, c.collection); err != nil {
			return fmt.Errorf("%w: delete collection: %w", domain.ErrIndexUnavailable, err)
		}
		exists = false
	}

	if exists {
		return nil
	}

	err = c.qc.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: c.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(c.vectorSize),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("%w: create collection: %w", domain.ErrIndexUnavailable, err)
	}
	return nil
}

// Upsert inserts or replaces points by id. All-or-nothing per call.
func (c *Client) Upsert(ctx context.Context, points []domain.VectorPoint) error {
	if len(points) == 0 {
		return nil
	}

	structs := make([]*qdrant.PointStruct, len(points))
	for i, p := range points {
		if err := domain.CheckDimension(p.Vector, c.vectorSize); err != nil {
			return fmt.Errorf("point %s: %w", p.ID, err)
		}
		structs[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(p.ID.String()),
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: toPayload(p.Payload),
		}
	}

	_, err := c.qc.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: c.collection,
		Points:         structs,
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("%w: upsert points: %w", domain.ErrIndexUnavailable, err)
	}
	return nil
}

// Search runs a similarity query and returns hits descending by score, at most
// limit entries, each with score >= threshold. Filter conditions AND together
// over payload fields.
func (c *Client) Search(
	ctx context.Context, vector []float32, limit int, threshold float32, f filter.Filter,
) ([]domain.VectorHit, error) {
	if err := domain.CheckDimension(vector, c.vectorSize); err != nil {
		return nil, err
	}

	req := &qdrant.QueryPoints{
		CollectionName: c.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		ScoreThreshold: qdrant.PtrOf(threshold),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if !f.IsEmpty() {
		req.Filter = translateFilter(f)
	}

	resp, err := c.qc.Query(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: query points: %w", domain.ErrIndexUnavailable, err)
	}

	hits := make([]domain.VectorHit, len(resp))
	for i, scored := range resp {
		hits[i] = domain.VectorHit{
			ID:      scored.Id.GetUuid(),
			Score:   scored.Score,
			Payload: fromPayload(scored.Payload),
		}
	}
	return hits, nil
}

// Delete removes points by id.
func (c *Client) Delete(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}

	pointIds := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pointIds[i] = qdrant.NewID(id.String())
	}

	_, err := c.qc.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: c.collection,
		Points:         qdrant.NewPointsSelector(pointIds...),
	})
	if err != nil {
		return fmt.Errorf("%w: delete points: %w", domain.ErrIndexUnavailable, err)
	}
	return nil
}

// Info returns collection introspection for health checks and ops.
func (c *Client) Info(ctx context.Context) (domain.CollectionInfo, error) {
	info, err := c.qc.GetCollectionInfo(ctx, c.collection)
	if err != nil {
		return domain.CollectionInfo{}, fmt.Errorf("%w: collection info: %w", domain.ErrIndexUnavailable, err)
	}

	ci := domain.CollectionInfo{
		Name:   c.collection,
		Status: info.GetStatus().String(),
	}
	if v := info.GetVectorsCount(); v > 0 {
		ci.VectorCount = v
	}
	if p := info.GetPointsCount(); p > 0 {
		ci.PointCount = p
	}
	return ci, nil
}
