// Package memory provides an in-memory vector index for tests and
// ephemeral runs.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/custodia-labs/docqa/internal/adapters/driven/vector"
	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// Index is an in-memory implementation of driven.VectorIndex.
type Index struct {
	mu         sync.RWMutex
	dimensions int
	minScore   float64
	namespaces map[string]map[string]domain.IndexRecord
}

// Option configures an Index.
type Option func(*Index)

// WithMinScore drops query matches scoring below score.
func WithMinScore(score float64) Option {
	return func(i *Index) { i.minScore = score }
}

// NewIndex creates an empty index accepting vectors of the given size.
func NewIndex(dimensions int, opts ...Option) (*Index, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("%w: memory index: dimensions must be positive", domain.ErrInvalidConfig)
	}
	idx := &Index{
		dimensions: dimensions,
		namespaces: make(map[string]map[string]domain.IndexRecord),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx, nil
}

// Upsert stores records, replacing any with the same ID.
func (i *Index) Upsert(ctx context.Context, namespace string, records []domain.IndexRecord) error {
	if err := vector.CheckNamespace(namespace); err != nil {
		return err
	}
	prepared, err := vector.PrepareRecords(records, i.dimensions)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	ns, ok := i.namespaces[namespace]
	if !ok {
		ns = make(map[string]domain.IndexRecord)
		i.namespaces[namespace] = ns
	}
	for _, rec := range prepared {
		rec.Vector = append([]float32(nil), rec.Vector...)
		rec.Metadata = vector.CopyMetadata(rec.Metadata)
		ns[rec.ID] = rec
	}
	return nil
}

// Query scores every record in the namespace.
func (i *Index) Query(ctx context.Context, namespace string, vec []float32, topK int) ([]domain.ScoredRecord, error) {
	if err := vector.CheckVector(vec, i.dimensions); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	i.mu.RLock()
	defer i.mu.RUnlock()
	ns := i.namespaces[namespace]
	matches := make([]domain.ScoredRecord, 0, len(ns))
	for _, rec := range ns {
		matches = append(matches, domain.ScoredRecord{
			Record: rec,
			Score:  vector.Cosine(vec, rec.Vector),
		})
	}
	return vector.TopK(matches, topK, i.minScore), nil
}

// Count returns the number of records in a namespace.
func (i *Index) Count(namespace string) int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.namespaces[namespace])
}

// Dimensions returns the accepted vector size.
func (i *Index) Dimensions() int { return i.dimensions }

// Ping always succeeds.
func (i *Index) Ping(_ context.Context) error { return nil }

// Close discards all records.
func (i *Index) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.namespaces = make(map[string]map[string]domain.IndexRecord)
	return nil
}
