package driving

import (
	"context"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// QAService answers questions about a document. It is used by the HTTP
// API, CLI and MCP adapters.
type QAService interface {
	// Run fetches, indexes and answers one request. Ingestion failures
	// return a *domain.StageError; individual generation failures are
	// reported as placeholder answers instead.
	Run(ctx context.Context, req domain.RunRequest) (*domain.RunResult, error)
}
