package driven

import (
	"context"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// VectorIndex stores embeddings and answers nearest-neighbour queries.
// Records in one namespace are never visible to queries in another.
//
// Implementations may include:
//   - Qdrant (remote ANN service)
//   - SQLite (local, brute-force cosine)
//   - Memory (tests and ephemeral runs)
type VectorIndex interface {
	// Upsert inserts or replaces records in the namespace. Records with an
	// empty ID are assigned a UUID. When Upsert returns nil every record is
	// visible to subsequent Query calls.
	Upsert(ctx context.Context, namespace string, records []domain.IndexRecord) error

	// Query returns up to topK records ordered by descending cosine
	// similarity. An empty namespace yields an empty slice, not an error.
	Query(ctx context.Context, namespace string, vector []float32, topK int) ([]domain.ScoredRecord, error)

	// Dimensions returns the vector size the index accepts.
	Dimensions() int

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
