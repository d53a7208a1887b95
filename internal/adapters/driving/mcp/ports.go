package mcp

import (
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/core/ports/driving"
)

// Ports aggregates the ports required by the MCP server.
type Ports struct {
	// QA runs the question-answering pipeline.
	QA driving.QAService

	// Prompts exposes the answer templates as resources. Optional.
	Prompts driven.PromptStore
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.QA == nil {
		return ErrMissingQAService
	}
	return nil
}
