// Package ollama provides an embedding service adapter using Ollama.
package ollama

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
	DefaultBaseURL    = "http://localhost:11434"
	DefaultModel      = "nomic-embed-text"
	DefaultTimeout    = 60 * time.Second
	DefaultDimensions = 768 // nomic-embed-text default
)

// Task prefixes expected by nomic-embed models.
const (
	nomicDocumentPrefix = "search_document: "
	nomicQueryPrefix    = "search_query: "
)

// Config holds configuration for the Ollama embedding service.
type Config struct {
	// BaseURL is the Ollama API base URL (default: http://localhost:11434).
	BaseURL string

	// Model is the embedding model to use (default: nomic-embed-text).
	Model string

	// Timeout is the request timeout (default: 60s).
	Timeout time.Duration

	// Dimensions is the embedding vector size (model-dependent).
	Dimensions int

	// MaxRetries is the retry budget for 429 and 5xx responses.
	// Zero uses the default; negative disables retries.
	MaxRetries int
}

// EmbeddingService generates embeddings using Ollama's batch endpoint.
type EmbeddingService struct {
	client     *http.Client
	baseURL    string
	model      string
	dimensions int
	maxRetries int
}

// embedRequest is the /api/embed request format.
type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// embedResponse is the /api/embed response format.
type embedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
	Error      string      `json:"error,omitempty"`
}

// NewEmbeddingService creates a new Ollama embedding service.
func NewEmbeddingService(cfg Config) *EmbeddingService {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = domain.EmbeddingDimensions()[cfg.Model]
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = DefaultDimensions
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = embedding.DefaultMaxRetries
	}

	return &EmbeddingService{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		maxRetries: cfg.MaxRetries,
	}
}

// Embed generates a vector embedding for the given text.
func (s *EmbeddingService) Embed(ctx context.Context, text string, task domain.EmbeddingTask) ([]float32, error) {
	embeddings, err := s.EmbedBatch(ctx, []string{text}, task)
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// EmbedBatch embeds all texts in one /api/embed request.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string, task domain.EmbeddingTask) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	input := make([]string, len(texts))
	prefix := s.taskPrefix(task)
	for i, t := range texts {
		input[i] = prefix + t
	}

	payload, err := embedding.PostJSON(ctx, s.client, s.baseURL+"/api/embed", nil,
		embedRequest{Model: s.model, Input: input}, s.maxRetries)
	if err != nil {
		return nil, fmt.Errorf("%w: ollama: %v", domain.ErrEmbeddingFailed, err)
	}

	var resp embedResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, fmt.Errorf("%w: ollama: decode response: %v", domain.ErrEmbeddingFailed, err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("%w: ollama: %s", domain.ErrEmbeddingFailed, resp.Error)
	}

	embeddings := make([][]float32, len(resp.Embeddings))
	for i, v := range resp.Embeddings {
		embeddings[i] = embedding.ToFloat32(v)
	}
	if err := embedding.CheckShape(embeddings, len(texts), s.dimensions); err != nil {
		return nil, fmt.Errorf("ollama: %w", err)
	}
	return embeddings, nil
}

// taskPrefix returns the instruction prefix for asymmetric nomic models.
func (s *EmbeddingService) taskPrefix(task domain.EmbeddingTask) string {
	if !strings.HasPrefix(s.model, "nomic-embed") {
		return ""
	}
	switch task {
	case domain.TaskQuery:
		return nomicQueryPrefix
	case domain.TaskDocument:
		return nomicDocumentPrefix
	default:
		return ""
	}
}

// Dimensions returns the embedding vector size.
func (s *EmbeddingService) Dimensions() int {
	return s.dimensions
}

// ModelName returns the name of the embedding model being used.
func (s *EmbeddingService) ModelName() string {
	return s.model
}

// Ping validates the service is reachable by checking the /api/tags endpoint.
// This is a lightweight check that validates connectivity without running inference.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/api/tags", http.NoBody)
	if err != nil {
		return fmt.Errorf("ollama: failed to create ping request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: ollama: ping failed: %v", domain.ErrEmbeddingFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: ollama: API returned status %d", domain.ErrEmbeddingFailed, resp.StatusCode)
	}
	return nil
}

// Close releases resources.
func (s *EmbeddingService) Close() error {
	s.client.CloseIdleConnections()
	return nil
}
