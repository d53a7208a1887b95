package driven

import (
	"context"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// Fetcher downloads a document and classifies its format.
//
// Implementations must enforce a size cap while streaming, so a document
// larger than the cap is never fully buffered. Errors wrap one of
// domain.ErrDownloadFailed, domain.ErrDocumentTooLarge,
// domain.ErrUnsupportedFormat or domain.ErrInvalidRequest.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*domain.RawDocument, error)
}
