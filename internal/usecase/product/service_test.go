package product

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/google/uuid"

	"github.com/vistra-labs/vistra/internal/domain"
)

// --- Mocks ---

type mockRepo struct {
	saved      domain.Product
	getResult  domain.Product
	listResult []domain.Product
	err        error

	upsertCalled bool
	deleteCalled bool
	lastLimit    int
	lastOffset   int
}

func (m *mockRepo) Upsert(_ context.Context, p domain.Product) (domain.Product, error) {
	m.upsertCalled = true
	if m.err != nil {
		return domain.Product{}, m.err
	}
	m.saved = p
	return p, nil
}

func (m *mockRepo) GetByExternalID(_ context.Context, _ string) (domain.Product, error) {
	return m.getResult, m.err
}

func (m *mockRepo) List(_ context.Context, limit, offset int) ([]domain.Product, error) {
	m.lastLimit = limit
	m.lastOffset = offset
	return m.listResult, m.err
}

func (m *mockRepo) Delete(_ context.Context, _ string) error {
	m.deleteCalled = true
	return m.err
}

type mockIndex struct {
	upsertErr    error
	deleteErr    error
	lastPoints   []domain.VectorPoint
	lastDeleted  []uuid.UUID
	upsertCalled bool
}

func (m *mockIndex) Upsert(_ context.Context, points []domain.VectorPoint) error {
	m.upsertCalled = true
	m.lastPoints = points
	return m.upsertErr
}

func (m *mockIndex) Delete(_ context.Context, ids []uuid.UUID) error {
	m.lastDeleted = ids
	return m.deleteErr
}

type mockEmbedder struct {
	vec      []float32
	err      error
	lastText string
}

func (m *mockEmbedder) EmbedText(_ context.Context, text string) ([]float32, error) {
	m.lastText = text
	return m.vec, m.err
}

func (m *mockEmbedder) EmbedImage(_ context.Context, _ image.Image) ([]float32, error) {
	return m.vec, m.err
}

func strPtr(s string) *string { return &s }

// --- Tests ---

func TestCreate_IndexesEmbedding(t *testing.T) {
	repo := &mockRepo{}
	index := &mockIndex{}
	embed := &mockEmbedder{vec: []float32{0.1, 0.2}}
	svc := New(repo, index, embed)

	p := domain.Product{
		ExternalID:  "sku-1",
		Title:       "Red shoes",
		Description: strPtr("Leather"),
		Category:    strPtr("shoes"),
	}
	if _, err := svc.Create(context.Background(), p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if embed.lastText != "Red shoes\nLeather" {
		t.Errorf("unexpected embedding text: %q", embed.lastText)
	}
	if len(index.lastPoints) != 1 {
		t.Fatalf("expected 1 indexed point, got %d", len(index.lastPoints))
	}

	point := index.lastPoints[0]
	if point.ID != domain.PointID("sku-1") {
		t.Errorf("expected deterministic point id, got %s", point.ID)
	}
	if point.Payload[domain.PayloadProductID] != "sku-1" {
		t.Errorf("expected join key in payload, got %v", point.Payload)
	}
	if point.Payload["category"] != "shoes" {
		t.Errorf("expected category in payload, got %v", point.Payload)
	}
}

func TestCreate_Invalid(t *testing.T) {
	repo := &mockRepo{}
	svc := New(repo, &mockIndex{}, &mockEmbedder{})

	_, err := svc.Create(context.Background(), domain.Product{Title: "no external id"})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if repo.upsertCalled {
		t.Error("invalid products must not reach the repository")
	}
}

func TestCreate_EmbedFailure(t *testing.T) {
	index := &mockIndex{}
	embed := &mockEmbedder{err: domain.ErrEmbedding}
	svc := New(&mockRepo{}, index, embed)

	_, err := svc.Create(context.Background(), domain.Product{ExternalID: "sku-1", Title: "x"})
	if !errors.Is(err, domain.ErrEmbedding) {
		t.Fatalf("expected embedding error, got %v", err)
	}
	if index.upsertCalled {
		t.Error("index must not be written when embedding fails")
	}
}

func TestList_Pagination(t *testing.T) {
	repo := &mockRepo{}
	svc := New(repo, &mockIndex{}, &mockEmbedder{}).WithPagination(25, 50)

	if _, err := svc.List(context.Background(), 0, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.lastLimit != 25 {
		t.Errorf("expected default limit 25, got %d", repo.lastLimit)
	}

	if _, err := svc.List(context.Background(), 51, 0); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected validation error above max page size, got %v", err)
	}
	if _, err := svc.List(context.Background(), 10, -1); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected validation error for negative offset, got %v", err)
	}
}

func TestDelete_RemovesRowAndVector(t *testing.T) {
	repo := &mockRepo{}
	index := &mockIndex{}
	svc := New(repo, index, &mockEmbedder{})

	if err := svc.Delete(context.Background(), "sku-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !repo.deleteCalled {
		t.Error("expected row deletion")
	}
	if len(index.lastDeleted) != 1 || index.lastDeleted[0] != domain.PointID("sku-1") {
		t.Errorf("expected matching vector deletion, got %v", index.lastDeleted)
	}
}

func TestDelete_NotFound(t *testing.T) {
	repo := &mockRepo{err: domain.ErrNotFound}
	index := &mockIndex{}
	svc := New(repo, index, &mockEmbedder{})

	if err := svc.Delete(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if index.lastDeleted != nil {
		t.Error("vector must not be deleted when the row is missing")
	}
}

func TestGet_EmptyID(t *testing.T) {
	svc := New(&mockRepo{}, &mockIndex{}, &mockEmbedder{})
	if _, err := svc.Get(context.Background(), ""); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
