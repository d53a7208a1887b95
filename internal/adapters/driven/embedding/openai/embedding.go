// Package openai provides an embedding service adapter using OpenAI API.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/docqa/internal/adapters/driven/embedding"
	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// Default configuration values.
const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "text-embedding-3-small"
	DefaultTimeout = 60 * time.Second
)

// Config holds configuration for the OpenAI embedding service.
type Config struct {
	// APIKey is the OpenAI API key (required).
	APIKey string

	// BaseURL is the API base URL (default: https://api.openai.com/v1).
	// Can be changed for Azure OpenAI or compatible APIs.
	BaseURL string

	// Model is the embedding model to use (default: text-embedding-3-small).
	Model string

	// Timeout is the request timeout (default: 60s).
	Timeout time.Duration

	// Dimensions overrides the default dimension for the model.
	// Only sent to the API for text-embedding-3-* models.
	Dimensions int

	// MaxRetries is the retry budget for 429 and 5xx responses.
	// Zero uses the default; negative disables retries.
	MaxRetries int
}

// EmbeddingService generates embeddings using OpenAI API.
type EmbeddingService struct {
	client     *http.Client
	baseURL    string
	apiKey     string
	model      string
	dimensions int
	maxRetries int
}

// embeddingRequest is the OpenAI API request format.
type embeddingRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

// embeddingResponse is the OpenAI API response format.
type embeddingResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewEmbeddingService creates a new OpenAI embedding service.
func NewEmbeddingService(cfg Config) (*EmbeddingService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: openai: API key is required", domain.ErrInvalidConfig)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = embedding.DefaultMaxRetries
	}

	dimensions := cfg.Dimensions
	if dimensions == 0 {
		dimensions = domain.EmbeddingDimensions()[cfg.Model]
	}
	if dimensions == 0 {
		return nil, fmt.Errorf("%w: openai: unknown dimensions for model %q", domain.ErrInvalidConfig, cfg.Model)
	}

	return &EmbeddingService{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		dimensions: dimensions,
		maxRetries: cfg.MaxRetries,
	}, nil
}

// Embed generates a vector embedding for the given text.
func (s *EmbeddingService) Embed(ctx context.Context, text string, task domain.EmbeddingTask) ([]float32, error) {
	embeddings, err := s.EmbedBatch(ctx, []string{text}, task)
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// EmbedBatch generates embeddings for multiple texts in one request.
// OpenAI models are symmetric, so task is ignored.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string, _ domain.EmbeddingTask) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	reqBody := embeddingRequest{
		Model: s.model,
		Input: texts,
	}
	if strings.HasPrefix(s.model, "text-embedding-3-") {
		reqBody.Dimensions = s.dimensions
	}

	payload, err := embedding.PostJSON(ctx, s.client, s.baseURL+"/embeddings",
		map[string]string{"Authorization": "Bearer " + s.apiKey}, reqBody, s.maxRetries)
	if err != nil {
		return nil, fmt.Errorf("%w: openai: %v", domain.ErrEmbeddingFailed, err)
	}

	var resp embeddingResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, fmt.Errorf("%w: openai: decode response: %v", domain.ErrEmbeddingFailed, err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("%w: openai: %s", domain.ErrEmbeddingFailed, resp.Error.Message)
	}

	return s.mapResponse(resp, len(texts))
}

// mapResponse orders vectors by their index field. Every index in
// [0, n) must appear exactly once.
func (s *EmbeddingService) mapResponse(resp embeddingResponse, n int) ([][]float32, error) {
	if len(resp.Data) != n {
		return nil, fmt.Errorf("%w: openai: got %d embeddings for %d inputs", domain.ErrEmbeddingFailed, len(resp.Data), n)
	}

	embeddings := make([][]float32, n)
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= n {
			return nil, fmt.Errorf("%w: openai: index %d out of range", domain.ErrEmbeddingFailed, d.Index)
		}
		if embeddings[d.Index] != nil {
			return nil, fmt.Errorf("%w: openai: duplicate index %d", domain.ErrEmbeddingFailed, d.Index)
		}
		embeddings[d.Index] = embedding.ToFloat32(d.Embedding)
	}

	if err := embedding.CheckShape(embeddings, n, s.dimensions); err != nil {
		return nil, err
	}
	return embeddings, nil
}

// Dimensions returns the embedding vector size.
func (s *EmbeddingService) Dimensions() int {
	return s.dimensions
}

// ModelName returns the name of the embedding model being used.
func (s *EmbeddingService) ModelName() string {
	return s.model
}

// Ping validates the service is reachable by checking the /models endpoint.
// This is a lightweight check that validates the API key without running inference.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/models", http.NoBody)
	if err != nil {
		return fmt.Errorf("openai: failed to create ping request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: openai: ping failed: %v", domain.ErrEmbeddingFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: openai: API returned status %d", domain.ErrEmbeddingFailed, resp.StatusCode)
	}
	return nil
}

// Close releases resources.
func (s *EmbeddingService) Close() error {
	s.client.CloseIdleConnections()
	return nil
}
