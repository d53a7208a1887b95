// Package ai provides factory functions for creating AI service adapters.
package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/docqa/internal/adapters/driven/config/file"
	"github.com/custodia-labs/docqa/internal/adapters/driven/embedding/batch"
	ollamaembed "github.com/custodia-labs/docqa/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/docqa/internal/adapters/driven/embedding/openai"
	ollamallm "github.com/custodia-labs/docqa/internal/adapters/driven/llm/ollama"
	openaillm "github.com/custodia-labs/docqa/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/docqa/internal/adapters/driven/vector/memory"
	"github.com/custodia-labs/docqa/internal/adapters/driven/vector/qdrant"
	"github.com/custodia-labs/docqa/internal/adapters/driven/vector/sqlite"
	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/logger"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// initialiser is implemented by indexes that must prepare remote state
// before first use.
type initialiser interface {
	Init(ctx context.Context) error
}

// Services holds every provider-backed service of one process.
type Services struct {
	Embedder driven.EmbeddingService
	Index    driven.VectorIndex
	LLM      driven.LLMService
	Prompts  driven.PromptStore // User-customisable prompt templates.
}

// Build constructs all services from settings without contacting any
// provider. It fails when the index and embedder disagree on dimensions.
func Build(settings domain.AppSettings) (*Services, error) {
	embedder, err := CreateEmbeddingService(settings.Embedding)
	if err != nil {
		return nil, err
	}

	index, err := CreateVectorIndex(settings.Vector, embedder.Dimensions())
	if err != nil {
		embedder.Close()
		return nil, err
	}
	if index.Dimensions() != embedder.Dimensions() {
		embedder.Close()
		index.Close()
		return nil, fmt.Errorf("%w: index has %d dimensions, embedding model %s produces %d",
			domain.ErrDimensionMismatch, index.Dimensions(), embedder.ModelName(), embedder.Dimensions())
	}

	llm, err := CreateLLMService(settings.LLM)
	if err != nil {
		embedder.Close()
		index.Close()
		return nil, err
	}

	return &Services{
		Embedder: embedder,
		Index:    index,
		LLM:      llm,
		Prompts:  file.NewPromptStore(settings.Answering.PromptDir),
	}, nil
}

// Init prepares the index and checks every provider is reachable.
func (s *Services) Init(ctx context.Context) error {
	if in, ok := s.Index.(initialiser); ok {
		if err := in.Init(ctx); err != nil {
			return err
		}
	}

	checks := []struct {
		name string
		ping func(context.Context) error
		kind error
	}{
		{"embedding " + s.Embedder.ModelName(), s.Embedder.Ping, domain.ErrEmbeddingFailed},
		{"vector index", s.Index.Ping, domain.ErrIndexUnavailable},
		{"llm " + s.LLM.ModelName(), s.LLM.Ping, domain.ErrGenerationFailed},
	}
	for _, c := range checks {
		pctx, cancel := context.WithTimeout(ctx, pingTimeout)
		err := c.ping(pctx)
		cancel()
		if err != nil {
			if errors.Is(err, c.kind) {
				return fmt.Errorf("%s unreachable: %w", c.name, err)
			}
			return fmt.Errorf("%w: %s unreachable: %v", c.kind, c.name, err)
		}
		logger.Debug("%s reachable", c.name)
	}
	return nil
}

// Close releases all resources held by Services.
func (s *Services) Close() {
	if s.Embedder != nil {
		s.Embedder.Close()
	}
	if s.Index != nil {
		s.Index.Close()
	}
	if s.LLM != nil {
		s.LLM.Close()
	}
}

// CreateEmbeddingService creates the embedding service for settings,
// wrapped in a batching and rate-limiting layer.
func CreateEmbeddingService(settings domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if !settings.IsConfigured() {
		return nil, fmt.Errorf("%w: embedding provider %q is not configured",
			domain.ErrInvalidConfig, settings.Provider)
	}
	dimensions := settings.EffectiveDimensions()
	if dimensions <= 0 {
		return nil, fmt.Errorf("%w: unknown dimensions for embedding model %q; set embedding.dimensions",
			domain.ErrInvalidConfig, settings.Model)
	}

	var inner driven.EmbeddingService
	switch settings.Provider {
	case domain.AIProviderOllama:
		inner = ollamaembed.NewEmbeddingService(ollamaembed.Config{
			BaseURL:    settings.BaseURL,
			Model:      settings.Model,
			Timeout:    settings.Timeout,
			Dimensions: dimensions,
		})

	case domain.AIProviderOpenAI:
		svc, err := openaiembed.NewEmbeddingService(openaiembed.Config{
			APIKey:     settings.APIKey,
			BaseURL:    settings.BaseURL,
			Model:      settings.Model,
			Timeout:    settings.Timeout,
			Dimensions: dimensions,
		})
		if err != nil {
			return nil, err
		}
		inner = svc

	default:
		return nil, fmt.Errorf("%w: %s does not support embeddings, use ollama or openai",
			domain.ErrInvalidConfig, settings.Provider)
	}

	return batch.New(inner, batch.Config{
		BatchSize:         settings.BatchSize,
		Concurrency:       settings.Concurrency,
		RequestsPerSecond: settings.RequestsPerSecond,
	}), nil
}

// CreateVectorIndex creates the vector index for settings. A zero
// settings.Dimensions adopts embedderDims.
func CreateVectorIndex(settings domain.VectorIndexSettings, embedderDims int) (driven.VectorIndex, error) {
	dimensions := settings.Dimensions
	if dimensions == 0 {
		dimensions = embedderDims
	}

	switch settings.Provider {
	case domain.VectorProviderMemory:
		return memory.NewIndex(dimensions, memory.WithMinScore(settings.MinScore))

	case domain.VectorProviderSQLite:
		return sqlite.NewIndex(sqlite.Config{
			DataDir:    settings.DataDir,
			Dimensions: dimensions,
			MinScore:   settings.MinScore,
		})

	case domain.VectorProviderQdrant:
		return qdrant.NewIndex(qdrant.Config{
			URL:        settings.QdrantURL,
			APIKey:     settings.QdrantAPIKey,
			Collection: settings.Collection,
			Dimensions: dimensions,
			MinScore:   settings.MinScore,
			Timeout:    settings.Timeout,
		})

	default:
		return nil, fmt.Errorf("%w: unsupported vector provider: %s", domain.ErrInvalidConfig, settings.Provider)
	}
}

// CreateLLMService creates the appropriate LLM service based on settings.
func CreateLLMService(settings domain.LLMSettings) (driven.LLMService, error) {
	if !settings.IsConfigured() {
		return nil, fmt.Errorf("%w: llm provider %q is not configured", domain.ErrInvalidConfig, settings.Provider)
	}

	switch settings.Provider {
	case domain.AIProviderOllama:
		return ollamallm.NewLLMService(ollamallm.LLMConfig{
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
			Timeout: settings.Timeout,
		}), nil

	case domain.AIProviderOpenAI, domain.AIProviderGroq:
		return openaillm.NewLLMService(openaillm.LLMConfig{
			Name:    settings.Provider.String(),
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
			Timeout: settings.Timeout,
		})

	default:
		return nil, fmt.Errorf("%w: unsupported LLM provider: %s", domain.ErrInvalidConfig, settings.Provider)
	}
}
