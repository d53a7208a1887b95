// Package vector holds helpers shared by the vector index adapters:
// record validation, cosine scoring and top-k selection.
package vector

import (
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// CheckNamespace rejects an empty namespace.
func CheckNamespace(namespace string) error {
	if namespace == "" {
		return fmt.Errorf("%w: namespace is required", domain.ErrInvalidRequest)
	}
	return nil
}

// CheckVector verifies v has dim elements.
func CheckVector(v []float32, dim int) error {
	if len(v) != dim {
		return fmt.Errorf("%w: vector has %d dimensions, index expects %d", domain.ErrDimensionMismatch, len(v), dim)
	}
	return nil
}

// PrepareRecords validates every record against dim and returns a copy
// with empty IDs replaced by fresh UUIDs.
func PrepareRecords(records []domain.IndexRecord, dim int) ([]domain.IndexRecord, error) {
	out := make([]domain.IndexRecord, len(records))
	for i, rec := range records {
		if err := CheckVector(rec.Vector, dim); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		out[i] = rec
	}
	return out, nil
}

// Cosine returns the cosine similarity of a and b, or 0 when either is a
// zero vector. Slices must be the same length.
func Cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// TopK drops matches under a positive minScore, sorts by descending score and keeps
// at most k. Ties are broken by ID for stable output.
func TopK(matches []domain.ScoredRecord, k int, minScore float64) []domain.ScoredRecord {
	kept := make([]domain.ScoredRecord, 0, len(matches))
	for _, m := range matches {
		if minScore > 0 && m.Score < minScore {
			continue
		}
		kept = append(kept, m)
	}
	sort.Slice(kept, func(i, j int) bool {
		if kept[i].Score != kept[j].Score {
			return kept[i].Score > kept[j].Score
		}
		return kept[i].Record.ID < kept[j].Record.ID
	})
	if k >= 0 && len(kept) > k {
		kept = kept[:k]
	}
	return kept
}

// CopyMetadata returns a shallow copy of m that callers may mutate.
func CopyMetadata(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
