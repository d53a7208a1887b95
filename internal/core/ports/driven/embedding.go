// Package driven provides interfaces for infrastructure adapters (secondary/outbound ports).
package driven

import (
	"context"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// EmbeddingService generates vector embeddings from text.
//
// Note: This is separate from VectorIndex which stores and searches vectors.
// EmbeddingService generates vectors; VectorIndex stores them.
//
// Implementations may include:
//   - OpenAI (text-embedding-3-small, text-embedding-3-large)
//   - Ollama (nomic-embed-text, all-minilm)
//
// Every returned vector has exactly Dimensions() elements. A provider
// response of any other shape fails with domain.ErrEmbeddingFailed;
// there is no partial success.
type EmbeddingService interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string, task domain.EmbeddingTask) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, in input order.
	// An empty input returns an empty result without a provider call.
	EmbedBatch(ctx context.Context, texts []string, task domain.EmbeddingTask) ([][]float32, error)

	// Dimensions returns the embedding vector size (e.g., 384, 768, 1536).
	// This is determined by the model and must match VectorIndex configuration.
	Dimensions() int

	// ModelName returns the name of the embedding model being used.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight test request.
	// This is used at startup to fail fast on a misconfigured provider.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
