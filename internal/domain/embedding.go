package domain

import (
	"context"
	"fmt"
	"image"

	"golang.org/x/sync/semaphore"
)

// Embedder is the shared vectorization contract between layers. Text and image
// embeddings land in the same vector space (joint embedding model), which is
// what makes cross-modal retrieval work.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
	EmbedImage(ctx context.Context, img image.Image) ([]float32, error)
}

// HealthChecker verifies embedding provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// CheckDimension validates an embedding against the configured collection size.
func CheckDimension(vec []float32, want int) error {
	if want > 0 && len(vec) != want {
		return fmt.Errorf("%w: got %d, collection expects %d", ErrVectorDimMismatch, len(vec), want)
	}
	return nil
}

// BoundedEmbedder caps concurrent calls to the underlying provider with a
// weighted semaphore. The inference backend has a fixed concurrency capacity;
// excess requests queue here instead of overloading it.
type BoundedEmbedder struct {
	inner Embedder
	sem   *semaphore.Weighted
}

// NewBoundedEmbedder creates a concurrency-bounding decorator.
func NewBoundedEmbedder(inner Embedder, maxConcurrent int64) *BoundedEmbedder {
	return &BoundedEmbedder{inner: inner, sem: semaphore.NewWeighted(maxConcurrent)}
}

// EmbedText acquires a slot and delegates to the inner embedder.
func (b *BoundedEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if err := b.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquire embed slot: %w", err)
	}
	defer b.sem.Release(1)
	return b.inner.EmbedText(ctx, text)
}

// EmbedImage acquires a slot and delegates to the inner embedder.
func (b *BoundedEmbedder) EmbedImage(ctx context.Context, img image.Image) ([]float32, error) {
	if err := b.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquire embed slot: %w", err)
	}
	defer b.sem.Release(1)
	return b.inner.EmbedImage(ctx, img)
}

// HealthCheck delegates to the inner embedder when it supports health checks.
func (b *BoundedEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := b.inner.(HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}
