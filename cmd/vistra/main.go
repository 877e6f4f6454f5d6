package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/vistra-labs/vistra/internal/config"
	"github.com/vistra-labs/vistra/internal/db/postgres"
	dbRedis "github.com/vistra-labs/vistra/internal/db/redis"
	"github.com/vistra-labs/vistra/internal/domain"
	qdrantIndex "github.com/vistra-labs/vistra/internal/index/qdrant"
	logpkg "github.com/vistra-labs/vistra/internal/logger"
	"github.com/vistra-labs/vistra/internal/metrics"
	"github.com/vistra-labs/vistra/internal/repository/embcache"
	productrepo "github.com/vistra-labs/vistra/internal/repository/product"
	searchlogrepo "github.com/vistra-labs/vistra/internal/repository/searchlog"
	chiTransport "github.com/vistra-labs/vistra/internal/transport/chi"
	"github.com/vistra-labs/vistra/internal/transport/clip"
	healthuc "github.com/vistra-labs/vistra/internal/usecase/health"
	productuc "github.com/vistra-labs/vistra/internal/usecase/product"
	searchuc "github.com/vistra-labs/vistra/internal/usecase/search"
	"github.com/vistra-labs/vistra/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting vistra API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("qdrant_collection", cfg.Qdrant.Collection),
		zap.String("embedding_model", cfg.Embedding.Model),
	)

	ctx := context.Background()

	// Relational product store
	store, err := postgres.Open(postgres.Config{
		DSN:          cfg.Postgres.DSN,
		MaxOpenConns: cfg.Postgres.MaxOpenConns,
		MaxIdleConns: cfg.Postgres.MaxIdleConns,
	})
	if err != nil {
		logger.Fatal("Failed to open postgres", zap.Error(err))
	}
	defer store.Close()

	if err := store.WaitForReady(ctx, time.Duration(cfg.Postgres.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Postgres not ready", zap.Error(err))
	}
	if err := store.CreateTables(ctx); err != nil {
		logger.Fatal("Failed to create tables", zap.Error(err))
	}
	logger.Info("Connected to postgres")

	// Vector index
	index, err := qdrantIndex.New(qdrantIndex.Config{
		Host:       cfg.Qdrant.Host,
		Port:       cfg.Qdrant.Port,
		Collection: cfg.Qdrant.Collection,
		VectorSize: cfg.Qdrant.VectorSize,
	})
	if err != nil {
		logger.Fatal("Failed to create qdrant client", zap.Error(err))
	}
	defer index.Close()

	if err := index.WaitForReady(ctx, time.Duration(cfg.Qdrant.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Qdrant not ready", zap.Error(err))
	}
	if err := index.EnsureCollection(ctx, cfg.Qdrant.RecreateCollection); err != nil {
		logger.Fatal("Failed to ensure collection", zap.Error(err))
	}
	logger.Info("Connected to qdrant",
		zap.String("collection", cfg.Qdrant.Collection),
		zap.Int("vector_size", cfg.Qdrant.VectorSize),
	)

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterSearchMetrics()

	// Optional embedding cache
	var cache *dbRedis.Store
	if len(cfg.Cache.Addrs) > 0 {
		cache, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Cache.Addrs,
			Password: cfg.Cache.Password,
		})
		if err != nil {
			logger.Fatal("Failed to create cache store", zap.Error(err))
		}
		defer cache.Close()
		logger.Info("Embedding cache enabled", zap.Strings("addrs", cfg.Cache.Addrs))
	}

	embedder := buildEmbedder(cfg, cache, logger)

	// Repositories
	productRepo := productrepo.New(store)
	searchLogRepo := searchlogrepo.New(store)

	// Use case services
	searchSvc := searchuc.New(embedder, index, productRepo, searchuc.Limits{
		MaxLimit: cfg.Search.MaxLimit,
	}).
		WithAuditLog(searchLogRepo).
		WithTimeouts(searchuc.Timeouts{
			Embed: time.Duration(cfg.Search.EmbedTimeoutSec) * time.Second,
			Index: time.Duration(cfg.Search.IndexTimeoutSec) * time.Second,
			Store: time.Duration(cfg.Search.StoreTimeoutSec) * time.Second,
		})
	productSvc := productuc.New(productRepo, index, embedder)
	healthSvc := healthuc.New(store, index, newEmbeddingHealthChecker(embedder))

	server := chiTransport.NewServer(searchSvc, productSvc, healthSvc, index, chiTransport.SearchDefaults{
		Limit:     cfg.Search.DefaultLimit,
		Threshold: cfg.Search.DefaultThreshold,
	}, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(metrics.Middleware())
	server.Register(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// buildEmbedder assembles the decorator chain: CLIP -> Cached -> Bounded.
func buildEmbedder(cfg config.Config, cache *dbRedis.Store, logger *zap.Logger) domain.Embedder {
	base := clip.NewEmbedder(&clip.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		VectorSize: cfg.Qdrant.VectorSize,
		Provider:   cfg.Embedding.Provider,
		ImageEdge:  cfg.Embedding.ImageEdge,
		Logger:     logger,
	})

	var embedder domain.Embedder = base
	if cache != nil {
		embedder = embcache.New(base, cache, cfg.Embedding.Model, metrics.EmbeddingCacheTotal, logger)
	}

	// Concurrency cap on provider calls (outermost so cache hits bypass it)
	return domain.NewBoundedEmbedder(embedder, int64(cfg.Embedding.MaxConcurrent))
}

// embeddingHealthChecker wraps domain.Embedder to implement health.EmbeddingChecker.
type embeddingHealthChecker struct {
	embedder domain.Embedder
}

func newEmbeddingHealthChecker(embedder domain.Embedder) *embeddingHealthChecker {
	return &embeddingHealthChecker{embedder: embedder}
}

func (h *embeddingHealthChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := h.embedder.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("embedding health check: %w", err)
		}
	}
	return nil
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"detail": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
