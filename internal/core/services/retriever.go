package services

import (
	"context"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/logger"
)

// Retriever finds the chunks most similar to a question.
type Retriever struct {
	embedder driven.EmbeddingService
	index    driven.VectorIndex
}

// NewRetriever creates a retriever over the given embedder and index.
func NewRetriever(embedder driven.EmbeddingService, index driven.VectorIndex) *Retriever {
	return &Retriever{embedder: embedder, index: index}
}

// Retrieve returns up to topK chunks from namespace ordered by descending
// similarity. Failures are logged and yield no chunks, so the caller
// answers with the no-context reply instead of failing.
func (r *Retriever) Retrieve(ctx context.Context, query, namespace string, topK int) []domain.ScoredChunk {
	vec, err := r.embedder.Embed(ctx, query, domain.TaskQuery)
	if err != nil {
		logger.Warn("retrieve: embedding query failed: %v", err)
		return []domain.ScoredChunk{}
	}

	matches, err := r.index.Query(ctx, namespace, vec, topK)
	if err != nil {
		logger.Warn("retrieve: querying namespace %q failed: %v", namespace, err)
		return []domain.ScoredChunk{}
	}

	chunks := make([]domain.ScoredChunk, 0, len(matches))
	for _, m := range matches {
		chunks = append(chunks, domain.ScoredChunk{
			Chunk: domain.ChunkFromRecord(m.Record),
			Score: m.Score,
		})
	}
	logger.Debug("retrieve: %d chunks for %q", len(chunks), truncate(query, 60))
	return chunks
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
