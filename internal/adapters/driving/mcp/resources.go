package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

const (
	// uriScheme is the custom URI scheme for docqa resources.
	uriScheme = "docqa://"
)

// registerResources registers the prompt template resources.
func (s *Server) registerResources() {
	if s.ports.Prompts == nil {
		return
	}

	for _, name := range []string{driven.PromptAnswerSystem, driven.PromptAnswerUser} {
		s.server.AddResource(&mcp.Resource{
			URI:         uriScheme + "prompts/" + name,
			Name:        name,
			Description: "Prompt template used for answering",
			MIMEType:    "text/plain",
		}, s.handlePromptResource)
	}
}

// handlePromptResource returns the current text of a prompt template.
func (s *Server) handlePromptResource(
	_ context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	name := extractPromptName(req.Params.URI)
	if name == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	prompt, err := s.ports.Prompts.Load(name)
	if err != nil {
		return nil, fmt.Errorf("loading prompt: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "text/plain",
			Text:     prompt,
		}},
	}, nil
}

// extractPromptName extracts the prompt name from a URI like
// "docqa://prompts/answer_system".
func extractPromptName(uri string) string {
	name, ok := strings.CutPrefix(uri, uriScheme+"prompts/")
	if !ok || name == "" || strings.Contains(name, "/") {
		return ""
	}
	return name
}
