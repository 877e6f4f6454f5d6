package search

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"testing"

	"github.com/vistra-labs/vistra/internal/domain"
	"github.com/vistra-labs/vistra/internal/domain/filter"
)

// --- Mocks ---

type mockEmbedder struct {
	vec         []float32
	err         error
	textCalled  bool
	imageCalled bool
	lastText    string
}

func (m *mockEmbedder) EmbedText(_ context.Context, text string) ([]float32, error) {
	m.textCalled = true
	m.lastText = text
	return m.vec, m.err
}

func (m *mockEmbedder) EmbedImage(_ context.Context, _ image.Image) ([]float32, error) {
	m.imageCalled = true
	return m.vec, m.err
}

type mockIndex struct {
	hits          []domain.VectorHit
	err           error
	called        bool
	lastVector    []float32
	lastLimit     int
	lastThreshold float32
	lastFilter    filter.Filter
}

func (m *mockIndex) Search(
	_ context.Context, vector []float32, limit int, threshold float32, f filter.Filter,
) ([]domain.VectorHit, error) {
	m.called = true
	m.lastVector = vector
	m.lastLimit = limit
	m.lastThreshold = threshold
	m.lastFilter = f
	return m.hits, m.err
}

type mockProducts struct {
	rows    map[string]domain.Product
	err     error
	called  bool
	lastIDs []string
}

func (m *mockProducts) GetByExternalIDs(_ context.Context, ids []string) (map[string]domain.Product, error) {
	m.called = true
	m.lastIDs = ids
	return m.rows, m.err
}

type mockLogs struct {
	entries []domain.SearchLog
	err     error
}

func (m *mockLogs) Append(_ context.Context, entry domain.SearchLog) error {
	m.entries = append(m.entries, entry)
	return m.err
}

func hit(pid string, score float32) domain.VectorHit {
	return domain.VectorHit{
		ID:      domain.PointID(pid).String(),
		Score:   score,
		Payload: map[string]any{domain.PayloadProductID: pid},
	}
}

func product(pid, title string) domain.Product {
	return domain.Product{ExternalID: pid, Title: title}
}

func defaultOptions() Options {
	return Options{Limit: 10, Threshold: 0.5}
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

// --- Tests ---

func TestSearchText_PreservesHitOrder(t *testing.T) {
	index := &mockIndex{hits: []domain.VectorHit{
		hit("p2", 0.95),
		hit("p1", 0.80),
		hit("p3", 0.61),
	}}
	products := &mockProducts{rows: map[string]domain.Product{
		"p1": product("p1", "first"),
		"p2": product("p2", "second"),
		"p3": product("p3", "third"),
	}}
	svc := New(&mockEmbedder{vec: []float32{0.1, 0.2}}, index, products, Limits{MaxLimit: 100})

	resp, err := svc.SearchText(context.Background(), "red shoes", defaultOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantOrder := []string{"p2", "p1", "p3"}
	if len(resp.Results) != len(wantOrder) {
		t.Fatalf("expected %d results, got %d", len(wantOrder), len(resp.Results))
	}
	for i, want := range wantOrder {
		if resp.Results[i].ProductID != want {
			t.Errorf("result[%d]: expected product %q, got %q", i, want, resp.Results[i].ProductID)
		}
	}
	if resp.Results[0].Score != 0.95 {
		t.Errorf("expected top score 0.95, got %v", resp.Results[0].Score)
	}
	if resp.Total != 3 {
		t.Errorf("expected total 3, got %d", resp.Total)
	}
	if resp.Query != "red shoes" || resp.QueryType != domain.QueryText {
		t.Errorf("unexpected query echo: %q / %q", resp.Query, resp.QueryType)
	}
}

func TestSearchText_PassesOptionsToIndex(t *testing.T) {
	index := &mockIndex{}
	cond, err := filter.NewMatch("category", "shoes")
	if err != nil {
		t.Fatalf("filter.NewMatch: %v", err)
	}
	f, err := filter.New(cond)
	if err != nil {
		t.Fatalf("filter.New: %v", err)
	}
	svc := New(&mockEmbedder{vec: []float32{0.3}}, index, &mockProducts{}, Limits{MaxLimit: 100})

	_, err = svc.SearchText(context.Background(), "q", Options{Limit: 7, Threshold: 0.8, Filter: f})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if index.lastLimit != 7 {
		t.Errorf("expected limit 7, got %d", index.lastLimit)
	}
	if index.lastThreshold != 0.8 {
		t.Errorf("expected threshold 0.8, got %v", index.lastThreshold)
	}
	if len(index.lastFilter.Conditions()) != 1 {
		t.Errorf("expected 1 filter condition, got %d", len(index.lastFilter.Conditions()))
	}
}

func TestSearchText_SkipsHitsWithoutMatchingRow(t *testing.T) {
	index := &mockIndex{hits: []domain.VectorHit{
		hit("p1", 0.9),
		hit("gone", 0.8),
		hit("p2", 0.7),
	}}
	products := &mockProducts{rows: map[string]domain.Product{
		"p1": product("p1", "first"),
		"p2": product("p2", "second"),
	}}
	svc := New(&mockEmbedder{vec: []float32{0.1}}, index, products, Limits{MaxLimit: 100})

	resp, err := svc.SearchText(context.Background(), "q", defaultOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Total != 2 {
		t.Fatalf("expected total 2, got %d", resp.Total)
	}
	if resp.Results[0].ProductID != "p1" || resp.Results[1].ProductID != "p2" {
		t.Errorf("unexpected results: %+v", resp.Results)
	}
}

func TestSearchText_SkipsHitsWithoutJoinKey(t *testing.T) {
	index := &mockIndex{hits: []domain.VectorHit{
		{ID: "dangling", Score: 0.9, Payload: map[string]any{"other": "x"}},
		hit("p1", 0.8),
	}}
	products := &mockProducts{rows: map[string]domain.Product{
		"p1": product("p1", "first"),
	}}
	svc := New(&mockEmbedder{vec: []float32{0.1}}, index, products, Limits{MaxLimit: 100})

	resp, err := svc.SearchText(context.Background(), "q", defaultOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Total != 1 || resp.Results[0].ProductID != "p1" {
		t.Errorf("expected only p1, got %+v", resp.Results)
	}
}

func TestSearchText_DeduplicatesJoinKeys(t *testing.T) {
	index := &mockIndex{hits: []domain.VectorHit{
		hit("p1", 0.9),
		hit("p1", 0.7),
		hit("p2", 0.6),
	}}
	products := &mockProducts{rows: map[string]domain.Product{
		"p1": product("p1", "first"),
		"p2": product("p2", "second"),
	}}
	svc := New(&mockEmbedder{vec: []float32{0.1}}, index, products, Limits{MaxLimit: 100})

	resp, err := svc.SearchText(context.Background(), "q", defaultOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Total != 2 {
		t.Fatalf("expected total 2, got %d", resp.Total)
	}
	if resp.Results[0].ProductID != "p1" || resp.Results[0].Score != 0.9 {
		t.Errorf("expected p1 at rank 0 with its highest score, got %+v", resp.Results[0])
	}
}

func TestSearchText_EmptyHits(t *testing.T) {
	products := &mockProducts{}
	svc := New(&mockEmbedder{vec: []float32{0.1}}, &mockIndex{}, products, Limits{MaxLimit: 100})

	resp, err := svc.SearchText(context.Background(), "q", defaultOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Results == nil {
		t.Error("expected empty slice, got nil")
	}
	if len(resp.Results) != 0 || resp.Total != 0 {
		t.Errorf("expected empty response, got %+v", resp)
	}
	if products.called {
		t.Error("store should not be queried when there are no hits")
	}
}

func TestSearchText_EmptyQuery(t *testing.T) {
	svc := New(&mockEmbedder{}, &mockIndex{}, &mockProducts{}, Limits{MaxLimit: 100})

	for _, q := range []string{"", "   ", "\t\n"} {
		_, err := svc.SearchText(context.Background(), q, defaultOptions())
		if !errors.Is(err, domain.ErrValidation) {
			t.Errorf("query %q: expected validation error, got %v", q, err)
		}
	}
}

func TestSearchText_OptionBounds(t *testing.T) {
	embed := &mockEmbedder{vec: []float32{0.1}}
	svc := New(embed, &mockIndex{}, &mockProducts{}, Limits{MaxLimit: 100})

	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{"zero limit", Options{Limit: 0, Threshold: 0.5}, true},
		{"negative limit", Options{Limit: -1, Threshold: 0.5}, true},
		{"limit above max", Options{Limit: 101, Threshold: 0.5}, true},
		{"limit at max", Options{Limit: 100, Threshold: 0.5}, false},
		{"negative threshold", Options{Limit: 10, Threshold: -0.1}, true},
		{"threshold above one", Options{Limit: 10, Threshold: 1.1}, true},
		{"threshold zero", Options{Limit: 10, Threshold: 0}, false},
		{"threshold one", Options{Limit: 10, Threshold: 1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SearchText(context.Background(), "q", tt.opts)
			if tt.wantErr && !errors.Is(err, domain.ErrValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestSearchText_EmbedError(t *testing.T) {
	embedErr := errors.New("model down")
	index := &mockIndex{}
	svc := New(&mockEmbedder{err: embedErr}, index, &mockProducts{}, Limits{MaxLimit: 100})

	_, err := svc.SearchText(context.Background(), "q", defaultOptions())
	if !errors.Is(err, embedErr) {
		t.Fatalf("expected embed error, got %v", err)
	}
	if index.called {
		t.Error("index should not be queried after an embed failure")
	}
}

func TestSearchText_IndexError(t *testing.T) {
	index := &mockIndex{err: domain.ErrIndexUnavailable}
	products := &mockProducts{}
	svc := New(&mockEmbedder{vec: []float32{0.1}}, index, products, Limits{MaxLimit: 100})

	_, err := svc.SearchText(context.Background(), "q", defaultOptions())
	if !errors.Is(err, domain.ErrIndexUnavailable) {
		t.Fatalf("expected index error, got %v", err)
	}
	if products.called {
		t.Error("store should not be queried after an index failure")
	}
}

func TestSearchText_StoreError(t *testing.T) {
	index := &mockIndex{hits: []domain.VectorHit{hit("p1", 0.9)}}
	products := &mockProducts{err: domain.ErrStoreUnavailable}
	svc := New(&mockEmbedder{vec: []float32{0.1}}, index, products, Limits{MaxLimit: 100})

	_, err := svc.SearchText(context.Background(), "q", defaultOptions())
	if !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("expected store error, got %v", err)
	}
}

func TestSearchText_BatchedEnrichment(t *testing.T) {
	index := &mockIndex{hits: []domain.VectorHit{
		hit("p1", 0.9),
		hit("p2", 0.8),
		hit("p3", 0.7),
	}}
	products := &mockProducts{rows: map[string]domain.Product{
		"p1": product("p1", "a"), "p2": product("p2", "b"), "p3": product("p3", "c"),
	}}
	svc := New(&mockEmbedder{vec: []float32{0.1}}, index, products, Limits{MaxLimit: 100})

	if _, err := svc.SearchText(context.Background(), "q", defaultOptions()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(products.lastIDs) != 3 {
		t.Errorf("expected one batched lookup with 3 ids, got %v", products.lastIDs)
	}
}

func TestSearchText_AuditLog(t *testing.T) {
	index := &mockIndex{hits: []domain.VectorHit{hit("p1", 0.9)}}
	products := &mockProducts{rows: map[string]domain.Product{"p1": product("p1", "a")}}
	logs := &mockLogs{}
	svc := New(&mockEmbedder{vec: []float32{0.1}}, index, products, Limits{MaxLimit: 100}).
		WithAuditLog(logs)

	opts := defaultOptions()
	opts.UserID = "u-1"
	opts.SessionID = "s-1"
	if _, err := svc.SearchText(context.Background(), "red shoes", opts); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(logs.entries) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(logs.entries))
	}
	entry := logs.entries[0]
	if entry.QueryType != domain.QueryText || entry.QueryText != "red shoes" {
		t.Errorf("unexpected query fields: %+v", entry)
	}
	if entry.ResultsCount != 1 {
		t.Errorf("expected results_count 1, got %d", entry.ResultsCount)
	}
	if entry.UserID != "u-1" || entry.SessionID != "s-1" {
		t.Errorf("unexpected requester fields: %+v", entry)
	}
}

func TestSearchText_AuditLogFailureIsIgnored(t *testing.T) {
	index := &mockIndex{hits: []domain.VectorHit{hit("p1", 0.9)}}
	products := &mockProducts{rows: map[string]domain.Product{"p1": product("p1", "a")}}
	logs := &mockLogs{err: errors.New("log table gone")}
	svc := New(&mockEmbedder{vec: []float32{0.1}}, index, products, Limits{MaxLimit: 100}).
		WithAuditLog(logs)

	resp, err := svc.SearchText(context.Background(), "q", defaultOptions())
	if err != nil {
		t.Fatalf("audit failure must not fail the search: %v", err)
	}
	if resp.Total != 1 {
		t.Errorf("expected total 1, got %d", resp.Total)
	}
}

func TestSearchImage_Success(t *testing.T) {
	embed := &mockEmbedder{vec: []float32{0.1}}
	index := &mockIndex{hits: []domain.VectorHit{hit("p1", 0.9)}}
	products := &mockProducts{rows: map[string]domain.Product{"p1": product("p1", "a")}}
	svc := New(embed, index, products, Limits{MaxLimit: 100})

	resp, err := svc.SearchImage(context.Background(), "query.png", pngBytes(t), defaultOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !embed.imageCalled {
		t.Error("expected EmbedImage to be called")
	}
	if embed.textCalled {
		t.Error("EmbedText should not be called for an image query")
	}
	if resp.QueryType != domain.QueryImage || resp.Query != "query.png" {
		t.Errorf("unexpected query echo: %+v", resp)
	}
}

func TestSearchImage_EmptyData(t *testing.T) {
	svc := New(&mockEmbedder{}, &mockIndex{}, &mockProducts{}, Limits{MaxLimit: 100})

	_, err := svc.SearchImage(context.Background(), "q.png", nil, defaultOptions())
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSearchImage_CorruptData(t *testing.T) {
	embed := &mockEmbedder{}
	svc := New(embed, &mockIndex{}, &mockProducts{}, Limits{MaxLimit: 100})

	_, err := svc.SearchImage(context.Background(), "q.png", []byte("not an image"), defaultOptions())
	if !errors.Is(err, domain.ErrImageDecode) {
		t.Fatalf("expected image decode error, got %v", err)
	}
	if embed.imageCalled {
		t.Error("embedder should not be called for undecodable data")
	}
}
