package domain

import (
	"fmt"
	"strings"
	"time"
)

// Stage is a step of the question-answering pipeline.
type Stage string

// Pipeline stages in execution order.
const (
	StageFetching   Stage = "fetching"
	StageExtracting Stage = "extracting"
	StageChunking   Stage = "chunking"
	StageEmbedding  Stage = "embedding"
	StageIndexing   Stage = "indexing"
	StageAnswering  Stage = "answering"
	StageDone       Stage = "done"
	StageFailed     Stage = "failed"
)

// String returns the string representation.
func (s Stage) String() string {
	return string(s)
}

// Fixed answers used instead of model output.
const (
	// NoContextAnswer is returned when retrieval finds nothing.
	NoContextAnswer = "No relevant documents found."

	// GenerationFailedAnswer is the placeholder for a question whose
	// generation failed while others succeeded.
	GenerationFailedAnswer = "Unable to generate an answer for this question."
)

// Request defaults and limits.
const (
	DefaultNamespace = "default"
	DefaultTopK      = 3
	MaxTopK          = 20
)

// RunRequest is one question-answering request.
type RunRequest struct {
	// DocumentURL is the http(s) URL of a PDF, DOCX or EML document.
	DocumentURL string

	// Questions are answered independently, in order.
	Questions []string

	// Namespace isolates this request's vectors. Defaults to "default".
	Namespace string

	// TopK is the number of chunks retrieved per question. Defaults to 3.
	TopK int
}

// RunResult is the outcome of a successful run.
type RunResult struct {
	// Answers has one entry per question, in question order.
	Answers []string

	// ChunkCount is the number of chunks indexed.
	ChunkCount int

	// Latency is the total pipeline duration.
	Latency time.Duration
}

// WithDefaults returns a copy of r with an empty namespace and a zero
// TopK replaced by their defaults.
func (r RunRequest) WithDefaults() RunRequest {
	if r.Namespace == "" {
		r.Namespace = DefaultNamespace
	}
	if r.TopK == 0 {
		r.TopK = DefaultTopK
	}
	return r
}

// Validate checks the request shape. maxQuestions <= 0 disables the
// question count limit.
func (r RunRequest) Validate(maxQuestions int) error {
	if strings.TrimSpace(r.DocumentURL) == "" {
		return fmt.Errorf("%w: documents is required", ErrInvalidRequest)
	}
	if len(r.Questions) == 0 {
		return fmt.Errorf("%w: at least one question is required", ErrInvalidRequest)
	}
	if maxQuestions > 0 && len(r.Questions) > maxQuestions {
		return fmt.Errorf("%w: at most %d questions are allowed", ErrInvalidRequest, maxQuestions)
	}
	for i, q := range r.Questions {
		if strings.TrimSpace(q) == "" {
			return fmt.Errorf("%w: question %d is empty", ErrInvalidRequest, i+1)
		}
	}
	if r.TopK < 1 || r.TopK > MaxTopK {
		return fmt.Errorf("%w: top_k must be between 1 and %d", ErrInvalidRequest, MaxTopK)
	}
	return nil
}
