// Package postprocessors turns extracted documents into index-ready chunks.
package postprocessors

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

var _ driven.PostProcessorPipeline = (*Pipeline)(nil)

var errNilDocument = errors.New("document is nil")

// Pipeline runs PostProcessors in order. The first processor receives no
// chunks and creates them; later ones may rewrite or filter them.
type Pipeline struct {
	processors []driven.PostProcessor
}

// NewPipeline creates a pipeline running processors in the given order.
func NewPipeline(processors ...driven.PostProcessor) *Pipeline {
	return &Pipeline{processors: processors}
}

// Process runs doc through every processor. It stops between processors
// when ctx is done.
func (p *Pipeline) Process(ctx context.Context, doc *domain.Document) ([]domain.Chunk, error) {
	if doc == nil {
		return nil, errNilDocument
	}

	var chunks []domain.Chunk
	for _, proc := range p.processors {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var err error
		if chunks, err = proc.Process(ctx, doc, chunks); err != nil {
			return nil, fmt.Errorf("processor %s: %w", proc.Name(), err)
		}
	}
	return chunks, nil
}

// Add appends a processor.
func (p *Pipeline) Add(proc driven.PostProcessor) {
	p.processors = append(p.processors, proc)
}

// Len returns the number of processors.
func (p *Pipeline) Len() int {
	return len(p.processors)
}
