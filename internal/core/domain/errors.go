package domain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Domain errors represent pipeline failures.
// Adapters wrap their causes with one of these so callers can classify
// failures with errors.Is without knowing which provider produced them.
var (
	// ErrInvalidRequest indicates a malformed or out-of-range request.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrInvalidConfig indicates settings failed validation.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrUnauthorized indicates a missing or wrong bearer token.
	ErrUnauthorized = errors.New("unauthorized")

	// Ingestion Errors.

	// ErrDownloadFailed indicates the document could not be fetched.
	ErrDownloadFailed = errors.New("document download failed")

	// ErrDocumentTooLarge indicates the download exceeded the size cap.
	ErrDocumentTooLarge = errors.New("document too large")

	// ErrUnsupportedFormat indicates the document is not PDF, DOCX or EML.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrExtractionFailed indicates the bytes could not be parsed.
	ErrExtractionFailed = errors.New("text extraction failed")

	// ErrEmptyDocument indicates extraction produced no usable text.
	ErrEmptyDocument = fmt.Errorf("%w: document contains no text", ErrExtractionFailed)

	// Provider Errors.

	// ErrEmbeddingFailed indicates the embedding provider failed or
	// returned a response of the wrong shape.
	ErrEmbeddingFailed = errors.New("embedding failed")

	// ErrIndexUnavailable indicates the vector index could not be reached.
	ErrIndexUnavailable = errors.New("vector index unavailable")

	// ErrDimensionMismatch indicates a vector does not match the index dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrGenerationFailed indicates the language model call failed.
	ErrGenerationFailed = errors.New("answer generation failed")
)

// StageError records which pipeline stage failed.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// FailedStage returns the stage recorded in err, or StageFailed if err
// carries no stage.
func FailedStage(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return StageFailed
}

// HTTPStatus maps an error class to the HTTP status returned to clients.
// Client-side document problems are 400, provider failures are 500.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, ErrDownloadFailed),
		errors.Is(err, ErrDocumentTooLarge),
		errors.Is(err, ErrUnsupportedFormat),
		errors.Is(err, ErrExtractionFailed):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns a client-safe message for err, prefixed with the
// failed stage when err is a StageError. It never includes wrapped
// causes, which may carry provider URLs or response bodies. Request
// validation messages are built locally and returned as is.
func PublicMessage(err error) string {
	msg := publicReason(err)
	var se *StageError
	if errors.As(err, &se) && se.Stage != "" {
		return string(se.Stage) + ": " + msg
	}
	return msg
}

func publicReason(err error) string {
	if errors.Is(err, ErrInvalidRequest) {
		return err.Error()
	}
	for _, known := range []error{
		ErrUnauthorized,
		ErrEmptyDocument,
		ErrDocumentTooLarge,
		ErrUnsupportedFormat,
		ErrDownloadFailed,
		ErrExtractionFailed,
		ErrEmbeddingFailed,
		ErrDimensionMismatch,
		ErrIndexUnavailable,
		ErrGenerationFailed,
	} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "request timed out"
	}
	return "internal error"
}
