package embcache

import (
	"context"
	"image"
	"testing"

	"go.uber.org/zap"

	"github.com/vistra-labs/vistra/internal/db/redis"
)

type mockEmbedder struct {
	vec        []float32
	err        error
	textCalls  int
	imageCalls int
}

func (m *mockEmbedder) EmbedText(_ context.Context, _ string) ([]float32, error) {
	m.textCalls++
	return m.vec, m.err
}

func (m *mockEmbedder) EmbedImage(_ context.Context, _ image.Image) ([]float32, error) {
	m.imageCalls++
	return m.vec, m.err
}

// mockKVStore implements the consumer interface for tests.
type mockKVStore struct {
	getFn func(ctx context.Context, key string) ([]byte, error)
	setFn func(ctx context.Context, key string, value []byte) error
}

func (m *mockKVStore) Get(ctx context.Context, key string) ([]byte, error) {
	if m.getFn != nil {
		return m.getFn(ctx, key)
	}
	return nil, redis.ErrKeyNotFound
}

func (m *mockKVStore) Set(ctx context.Context, key string, value []byte) error {
	if m.setFn != nil {
		return m.setFn(ctx, key, value)
	}
	return nil
}

func nopLogger() *zap.Logger { return zap.NewNop() }

func newTestCachedEmbedder(t *testing.T, inner *mockEmbedder) (*CachedEmbedder, *mockKVStore) {
	t.Helper()
	ms := &mockKVStore{}
	return New(inner, ms, "clip-test", nil, nopLogger()), ms
}
