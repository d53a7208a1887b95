// Package batch wraps an embedding service so large inputs are split into
// fixed-size requests sent concurrently under a rate limit.
package batch

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/docqa/internal/adapters/driven/embedding"
	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/logger"
)

// Ensure Service implements the interface.
var _ driven.EmbeddingService = (*Service)(nil)

// Config controls how inputs are grouped and dispatched.
type Config struct {
	// BatchSize is the number of texts per provider request.
	BatchSize int

	// Concurrency bounds in-flight provider requests.
	Concurrency int

	// RequestsPerSecond limits request starts. Zero means unlimited.
	RequestsPerSecond float64
}

// Service batches calls to an inner embedding service.
type Service struct {
	inner       driven.EmbeddingService
	batchSize   int
	concurrency int
	limiter     *rate.Limiter
}

// New wraps inner. Non-positive sizes fall back to the domain defaults.
func New(inner driven.EmbeddingService, cfg Config) *Service {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = domain.DefaultEmbeddingBatchSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = domain.DefaultEmbeddingConcurrency
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &Service{
		inner:       inner,
		batchSize:   cfg.BatchSize,
		concurrency: cfg.Concurrency,
		limiter:     limiter,
	}
}

// Embed passes a single text straight through.
func (s *Service) Embed(ctx context.Context, text string, task domain.EmbeddingTask) ([]float32, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return s.inner.Embed(ctx, text, task)
}

// EmbedBatch splits texts into groups of BatchSize and embeds them
// concurrently. Output order matches input order; the first failing group
// cancels the rest.
func (s *Service) EmbedBatch(ctx context.Context, texts []string, task domain.EmbeddingTask) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	out := make([][]float32, len(texts))
	groups := (len(texts) + s.batchSize - 1) / s.batchSize
	logger.Debug("embedding %d texts in %d batches", len(texts), groups)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for start := 0; start < len(texts); start += s.batchSize {
		end := min(start+s.batchSize, len(texts))
		g.Go(func() error {
			if err := s.limiter.Wait(gctx); err != nil {
				return err
			}
			vecs, err := s.inner.EmbedBatch(gctx, texts[start:end], task)
			if err != nil {
				return fmt.Errorf("batch %d-%d: %w", start, end, err)
			}
			if err := embedding.CheckShape(vecs, end-start, s.inner.Dimensions()); err != nil {
				return fmt.Errorf("batch %d-%d: %w", start, end, err)
			}
			copy(out[start:end], vecs)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Dimensions returns the inner service's vector size.
func (s *Service) Dimensions() int { return s.inner.Dimensions() }

// ModelName returns the inner service's model.
func (s *Service) ModelName() string { return s.inner.ModelName() }

// Ping checks the inner service.
func (s *Service) Ping(ctx context.Context) error { return s.inner.Ping(ctx) }

// Close closes the inner service.
func (s *Service) Close() error { return s.inner.Close() }
