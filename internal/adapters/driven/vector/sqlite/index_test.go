package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// setupTestIndex creates a 3-dimensional index in a temporary directory.
func setupTestIndex(t *testing.T, dir string) *Index {
	t.Helper()
	idx, err := NewIndex(Config{DataDir: dir, Dimensions: 3})
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func TestNewIndex_InvalidDimensions(t *testing.T) {
	_, err := NewIndex(Config{DataDir: t.TempDir()})
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestUpsertThenQuery_RoundTrip(t *testing.T) {
	ctx := context.Background()
	idx := setupTestIndex(t, t.TempDir())

	require.NoError(t, idx.Upsert(ctx, "ns", []domain.IndexRecord{
		{Vector: []float32{1, 0, 0}, Text: "hello", Metadata: map[string]any{"position": 0, "source_url": "http://x"}},
		{Vector: []float32{0, 1, 0}, Text: "world"},
	}))

	got, err := idx.Query(ctx, "ns", []float32{1, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "hello", got[0].Record.Text)
	assert.Equal(t, "http://x", got[0].Record.Metadata["source_url"])
	assert.Equal(t, float64(0), got[0].Record.Metadata["position"])
	assert.Equal(t, []float32{1, 0, 0}, got[0].Record.Vector)
	assert.InDelta(t, 1.0, got[0].Score, 1e-6)
}

func TestQuery_NamespaceIsolation(t *testing.T) {
	ctx := context.Background()
	idx := setupTestIndex(t, t.TempDir())

	require.NoError(t, idx.Upsert(ctx, "b", []domain.IndexRecord{{Vector: []float32{1, 0, 0}, Text: "b only"}}))

	got, err := idx.Query(ctx, "a", []float32{1, 0, 0}, 3)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestUpsert_ReplacesExistingID(t *testing.T) {
	ctx := context.Background()
	idx := setupTestIndex(t, t.TempDir())

	require.NoError(t, idx.Upsert(ctx, "ns", []domain.IndexRecord{{ID: "c1", Vector: []float32{1, 0, 0}, Text: "v1"}}))
	require.NoError(t, idx.Upsert(ctx, "ns", []domain.IndexRecord{{ID: "c1", Vector: []float32{0, 0, 1}, Text: "v2"}}))

	n, err := idx.Count(ctx, "ns")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := idx.Query(ctx, "ns", []float32{0, 0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "v2", got[0].Record.Text)
}

func TestUpsert_RejectsWrongDimension(t *testing.T) {
	ctx := context.Background()
	idx := setupTestIndex(t, t.TempDir())

	err := idx.Upsert(ctx, "ns", []domain.IndexRecord{
		{Vector: []float32{1, 0, 0}},
		{Vector: []float32{1, 0}},
	})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

	n, err := idx.Count(ctx, "ns")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestUpsert_RequiresNamespace(t *testing.T) {
	idx := setupTestIndex(t, t.TempDir())
	err := idx.Upsert(context.Background(), "", []domain.IndexRecord{{Vector: []float32{1, 0, 0}}})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestQuery_TopKOrdering(t *testing.T) {
	ctx := context.Background()
	idx := setupTestIndex(t, t.TempDir())

	require.NoError(t, idx.Upsert(ctx, "ns", []domain.IndexRecord{
		{ID: "far", Vector: []float32{0, 1, 0}},
		{ID: "near", Vector: []float32{1, 0.1, 0}},
		{ID: "mid", Vector: []float32{1, 1, 0}},
	}))

	got, err := idx.Query(ctx, "ns", []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "near", got[0].Record.ID)
	assert.Equal(t, "mid", got[1].Record.ID)
	assert.GreaterOrEqual(t, got[0].Score, got[1].Score)
}

func TestNewIndex_PersistsAndChecksDimensions(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	idx, err := NewIndex(Config{DataDir: dir, Dimensions: 3})
	require.NoError(t, err)
	require.NoError(t, idx.Upsert(ctx, "ns", []domain.IndexRecord{{ID: "keep", Vector: []float32{1, 0, 0}}}))
	require.NoError(t, idx.Close())

	reopened, err := NewIndex(Config{DataDir: dir, Dimensions: 3})
	require.NoError(t, err)
	n, err := reopened.Count(ctx, "ns")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.NoError(t, reopened.Close())

	_, err = NewIndex(Config{DataDir: dir, Dimensions: 4})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestMinScore(t *testing.T) {
	ctx := context.Background()
	idx, err := NewIndex(Config{DataDir: t.TempDir(), Dimensions: 3, MinScore: 0.9})
	require.NoError(t, err)
	defer idx.Close()

	require.NoError(t, idx.Upsert(ctx, "ns", []domain.IndexRecord{{Vector: []float32{0, 1, 0}}}))
	got, err := idx.Query(ctx, "ns", []float32{1, 0, 0}, 3)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPing(t *testing.T) {
	idx := setupTestIndex(t, t.TempDir())
	assert.NoError(t, idx.Ping(context.Background()))
	assert.Equal(t, 3, idx.Dimensions())
}

func TestFloat32Blob(t *testing.T) {
	in := []float32{0, 1.5, -2.25, 3e-7}
	assert.Equal(t, in, bytesToFloat32Slice(float32SliceToBytes(in)))
	assert.Empty(t, bytesToFloat32Slice(nil))
}
