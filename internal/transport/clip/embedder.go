// Package clip is an embedding provider for OpenAI-compatible endpoints
// serving a joint text/image model (CLIP-family inference servers). Text goes
// through the embeddings API as-is; images are preprocessed and submitted as
// base64 data URIs, which multimodal embedding servers accept as input.
package clip

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/disintegration/imaging"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/vistra-labs/vistra/internal/domain"
	"github.com/vistra-labs/vistra/internal/metrics"
)

// Embedder calls an OpenAI-compatible embeddings endpoint.
type Embedder struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	vectorSize int
	provider   string
	imageEdge  int
	logger     *zap.Logger
}

// Config holds the embedding provider settings.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	VectorSize int
	Provider   string
	ImageEdge  int
	Logger     *zap.Logger
}

// NewEmbedder creates a CLIP embedding provider.
func NewEmbedder(cfg *Config) *Embedder {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = cfg.BaseURL

	edge := cfg.ImageEdge
	if edge <= 0 {
		edge = 224
	}

	return &Embedder{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      openai.EmbeddingModel(cfg.Model),
		vectorSize: cfg.VectorSize,
		provider:   cfg.Provider,
		imageEdge:  edge,
		logger:     cfg.Logger,
	}
}

// EmbedText implements domain.Embedder for text queries.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return e.embed(ctx, "text", text)
}

// EmbedImage implements domain.Embedder for image queries. The decoded image
// is downscaled to the model's input edge and re-encoded as a JPEG data URI.
func (e *Embedder) EmbedImage(ctx context.Context, img image.Image) ([]float32, error) {
	uri, err := e.imageDataURI(img)
	if err != nil {
		return nil, err
	}
	return e.embed(ctx, "image", uri)
}

func (e *Embedder) embed(ctx context.Context, modality, input string) ([]float32, error) {
	req := openai.EmbeddingRequest{
		Input:          []string{input},
		Model:          e.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	}

	start := time.Now()

	resp, err := e.client.CreateEmbeddings(ctx, req)

	duration := time.Since(start)

	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, string(e.model), modality, "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues(e.provider, string(e.model), "api_error").Inc()
		return nil, parseAPIError(err)
	}

	if len(resp.Data) == 0 {
		metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, string(e.model), modality, "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues(e.provider, string(e.model), "empty_response").Inc()
		return nil, fmt.Errorf("%w: empty embedding response", domain.ErrEmbedding)
	}

	vec := resp.Data[0].Embedding
	if err := domain.CheckDimension(vec, e.vectorSize); err != nil {
		// Model output size disagrees with the configured collection size:
		// a deployment fault, surfaced loudly.
		metrics.EmbeddingErrorsTotal.WithLabelValues(e.provider, string(e.model), "dim_mismatch").Inc()
		return nil, err
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, string(e.model), modality, "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(e.provider, string(e.model), modality).Observe(duration.Seconds())

	return vec, nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (e *Embedder) HealthCheck(ctx context.Context) error {
	if _, err := e.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// imageDataURI downscales the image and encodes it as a JPEG data URI.
func (e *Embedder) imageDataURI(img image.Image) (string, error) {
	bounds := img.Bounds()
	if bounds.Dx() > e.imageEdge || bounds.Dy() > e.imageEdge {
		img = imaging.Fit(img, e.imageEdge, e.imageEdge, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(90)); err != nil {
		return "", fmt.Errorf("%w: re-encode image: %w", domain.ErrImageDecode, err)
	}

	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// parseAPIError extracts a human-readable error from the API response.
// All errors are wrapped with domain.ErrEmbedding for request-scoped handling.
func parseAPIError(err error) error {
	wrap := domain.ErrEmbedding

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail != "" {
			return fmt.Errorf("%w: embedding API error %d: %s", wrap, reqErr.HTTPStatusCode, detail)
		}
		return fmt.Errorf("%w: embedding API error %d: %s", wrap, reqErr.HTTPStatusCode, string(reqErr.Body))
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%w: embedding API error %d: %s", wrap, apiErr.HTTPStatusCode, apiErr.Message)
	}

	return fmt.Errorf("%w: %w", wrap, err)
}

// extractDetail extracts the "detail" field from a JSON error body.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
