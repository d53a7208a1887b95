package mcp

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

func TestServer_handleAsk(t *testing.T) {
	ctx := context.Background()

	t.Run("returns answers", func(t *testing.T) {
		qa := &mockQAService{result: &domain.RunResult{
			Answers:    []string{"Thirty days."},
			ChunkCount: 4,
		}}
		server, err := NewServer(&Ports{QA: qa}, "test")
		require.NoError(t, err)

		_, output, err := server.handleAsk(ctx, nil, AskInput{
			Documents: "https://example.com/policy.pdf",
			Questions: []string{"What is the grace period?"},
			Namespace: "policies",
			TopK:      5,
		})

		require.NoError(t, err)
		assert.Equal(t, []string{"Thirty days."}, output.Answers)
		assert.Equal(t, 4, output.ChunkCount)
		assert.Equal(t, domain.RunRequest{
			DocumentURL: "https://example.com/policy.pdf",
			Questions:   []string{"What is the grace period?"},
			Namespace:   "policies",
			TopK:        5,
		}, qa.got)
	})

	t.Run("stage error hides internals", func(t *testing.T) {
		qa := &mockQAService{err: &domain.StageError{
			Stage: domain.StageEmbedding,
			Err:   fmt.Errorf("%w: POST http://10.0.0.5:11434/api/embed: connection refused", domain.ErrEmbeddingFailed),
		}}
		server, err := NewServer(&Ports{QA: qa}, "test")
		require.NoError(t, err)

		_, _, err = server.handleAsk(ctx, nil, AskInput{Documents: "https://x/y.pdf", Questions: []string{"q"}})

		require.Error(t, err)
		assert.Equal(t, "embedding: embedding failed", err.Error())
	})

	t.Run("invalid request message is kept", func(t *testing.T) {
		qa := &mockQAService{err: fmt.Errorf("%w: at least one question is required", domain.ErrInvalidRequest)}
		server, err := NewServer(&Ports{QA: qa}, "test")
		require.NoError(t, err)

		_, _, err = server.handleAsk(ctx, nil, AskInput{Documents: "https://x/y.pdf"})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "at least one question is required")
	})
}
