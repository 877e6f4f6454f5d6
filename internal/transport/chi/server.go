// Package chi maps the HTTP surface onto the use case services.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/vistra-labs/vistra/internal/domain"
	"github.com/vistra-labs/vistra/internal/domain/filter"
	healthuc "github.com/vistra-labs/vistra/internal/usecase/health"
	productuc "github.com/vistra-labs/vistra/internal/usecase/product"
	searchuc "github.com/vistra-labs/vistra/internal/usecase/search"
	"github.com/vistra-labs/vistra/internal/version"
)

// maxImageBytes caps uploaded query images.
const maxImageBytes = 16 << 20

// SearchDefaults are applied when the caller omits a query parameter.
type SearchDefaults struct {
	Limit     int
	Threshold float64
}

// Server exposes the HTTP API.
type Server struct {
	search   *searchuc.Service
	products *productuc.Service
	health   *healthuc.Service
	index    IndexInfo
	defaults SearchDefaults
	logger   *zap.Logger
}

// IndexInfo provides vector collection introspection for the ops endpoint.
type IndexInfo interface {
	Info(ctx context.Context) (domain.CollectionInfo, error)
}

// NewServer creates an HTTP API server.
func NewServer(
	search *searchuc.Service,
	products *productuc.Service,
	health *healthuc.Service,
	index IndexInfo,
	defaults SearchDefaults,
	logger *zap.Logger,
) *Server {
	if defaults.Limit <= 0 {
		defaults.Limit = 20
	}
	if defaults.Threshold <= 0 {
		defaults.Threshold = 0.5
	}
	return &Server{
		search:   search,
		products: products,
		health:   health,
		index:    index,
		defaults: defaults,
		logger:   logger,
	}
}

// Register mounts all routes on the router.
func (s *Server) Register(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/health/detailed", s.DetailedHealthCheck)
	r.Get("/metrics", s.Metrics)
	r.Get("/index/info", s.IndexInfo)

	r.Post("/search/text", s.SearchText)
	r.Post("/search/image", s.SearchImage)

	r.Route("/products", func(r chi.Router) {
		r.Post("/", s.CreateProduct)
		r.Get("/", s.ListProducts)
		r.Get("/{externalID}", s.GetProduct)
		r.Delete("/{externalID}", s.DeleteProduct)
	})
}

// SearchText handles POST /search/text.
func (s *Server) SearchText(w http.ResponseWriter, r *http.Request) {
	opts, err := s.parseSearchOptions(r)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	query := r.URL.Query().Get("query")
	if query == "" {
		writeError(w, http.StatusUnprocessableEntity, "query parameter is required")
		return
	}

	resp, err := s.search.SearchText(r.Context(), query, opts)
	if err != nil {
		s.handleSearchError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, searchResponseToJSON(resp))
}

// SearchImage handles POST /search/image (multipart upload, field "image").
func (s *Server) SearchImage(w http.ResponseWriter, r *http.Request) {
	opts, err := s.parseSearchOptions(r)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxImageBytes)

	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "image file is required")
		return
	}
	defer func() { _ = file.Close() }()

	if !domain.ValidImageContentType(header.Header.Get("Content-Type")) {
		writeError(w, http.StatusBadRequest, "File must be an image")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read image: "+err.Error())
		return
	}

	resp, err := s.search.SearchImage(r.Context(), header.Filename, data, opts)
	if err != nil {
		s.handleSearchError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, searchResponseToJSON(resp))
}

// CreateProduct handles POST /products.
func (s *Server) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	p, err := req.toDomain()
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	saved, err := s.products.Create(r.Context(), p)
	if err != nil {
		s.handleProductError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, productToJSON(saved))
}

// GetProduct handles GET /products/{externalID}.
func (s *Server) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := s.products.Get(r.Context(), chi.URLParam(r, "externalID"))
	if err != nil {
		s.handleProductError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, productToJSON(p))
}

// ListProducts handles GET /products.
func (s *Server) ListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "limit must be an integer")
			return
		}
		limit = n
	}

	offset := 0
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "offset must be an integer")
			return
		}
		offset = n
	}

	products, err := s.products.List(r.Context(), limit, offset)
	if err != nil {
		s.handleProductError(w, err)
		return
	}

	items := make([]productJSON, len(products))
	for i, p := range products {
		items[i] = productToJSON(p)
	}
	writeJSON(w, http.StatusOK, productListJSON{Items: items, Total: len(items)})
}

// DeleteProduct handles DELETE /products/{externalID}.
func (s *Server) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := s.products.Delete(r.Context(), chi.URLParam(r, "externalID")); err != nil {
		s.handleProductError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HealthCheck handles GET /health. Always 200 while the process is alive.
func (s *Server) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  string(healthuc.Healthy),
		"service": version.Service,
		"version": version.Version,
	})
}

// DetailedHealthCheck handles GET /health/detailed. Component failures show
// up in the body; the HTTP status stays 200 so probes can read the report.
func (s *Server) DetailedHealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	writeJSON(w, http.StatusOK, map[string]any{
		"status":     string(report.Status),
		"service":    version.Service,
		"version":    version.Version,
		"components": report.Components,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// IndexInfo handles GET /index/info.
func (s *Server) IndexInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.index.Info(r.Context())
	if err != nil {
		s.logger.Error("collection info failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, safeMessage(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"name":          info.Name,
		"status":        info.Status,
		"points_count":  info.PointCount,
		"vectors_count": info.VectorCount,
	})
}

// parseSearchOptions reads limit, threshold, filter params and requester
// headers. Parse failures reject the request; nothing is clamped.
func (s *Server) parseSearchOptions(r *http.Request) (searchuc.Options, error) {
	q := r.URL.Query()

	opts := searchuc.Options{
		Limit:     s.defaults.Limit,
		Threshold: float32(s.defaults.Threshold),
		UserID:    r.Header.Get("X-User-ID"),
		SessionID: r.Header.Get("X-Session-ID"),
	}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return searchuc.Options{}, errors.New("limit must be an integer")
		}
		opts.Limit = n
	}

	if v := q.Get("threshold"); v != "" {
		f, err := strconv.ParseFloat(v, 32)
		if err != nil {
			return searchuc.Options{}, errors.New("threshold must be a number")
		}
		opts.Threshold = float32(f)
	}

	f, err := parseFilter(q.Get("category"), q.Get("min_price"), q.Get("max_price"))
	if err != nil {
		return searchuc.Options{}, err
	}
	opts.Filter = f

	return opts, nil
}

func parseFilter(category, minPrice, maxPrice string) (filter.Filter, error) {
	var conditions []filter.Condition

	if category != "" {
		c, err := filter.NewMatch("category", category)
		if err != nil {
			return filter.Filter{}, err
		}
		conditions = append(conditions, c)
	}

	if minPrice != "" || maxPrice != "" {
		var gte, lte *float64
		if minPrice != "" {
			v, err := strconv.ParseFloat(minPrice, 64)
			if err != nil {
				return filter.Filter{}, errors.New("min_price must be a number")
			}
			gte = &v
		}
		if maxPrice != "" {
			v, err := strconv.ParseFloat(maxPrice, 64)
			if err != nil {
				return filter.Filter{}, errors.New("max_price must be a number")
			}
			lte = &v
		}

		bounds, err := filter.NewRangeBounds(gte, lte)
		if err != nil {
			return filter.Filter{}, err
		}
		c, err := filter.NewRange("price", bounds)
		if err != nil {
			return filter.Filter{}, err
		}
		conditions = append(conditions, c)
	}

	return filter.New(conditions...)
}

func (s *Server) handleSearchError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrImageDecode):
		writeError(w, http.StatusBadRequest, "File must be a readable image")
	default:
		s.logger.Error("search failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Search failed: "+safeMessage(err))
	}
}

func (s *Server) handleProductError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "Product not found")
	default:
		s.logger.Error("product operation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, safeMessage(err))
	}
}

// safeMessage maps an error to a client-facing message without leaking
// internals. Known sentinels keep their text; everything else is generic.
func safeMessage(err error) string {
	sentinels := []error{
		domain.ErrEmbedding,
		domain.ErrIndexUnavailable,
		domain.ErrStoreUnavailable,
		domain.ErrVectorDimMismatch,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error body in the {"detail": ...} shape.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"detail": message})
}
