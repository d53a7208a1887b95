package mcp

import (
	"context"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// AskInput is the input schema for the ask_document tool. It mirrors the
// HTTP request body.
type AskInput struct {
	Documents string   `json:"documents" jsonschema:"http(s) URL of a PDF, DOCX or EML document"`
	Questions []string `json:"questions" jsonschema:"questions to answer from the document"`
	Namespace string   `json:"namespace,omitempty" jsonschema:"vector namespace isolating this document (default: default)"`
	TopK      int      `json:"top_k,omitempty" jsonschema:"chunks retrieved per question, 1 to 20 (default 3)"`
}

// AskOutput is the output schema for the ask_document tool.
type AskOutput struct {
	Answers    []string `json:"answers"`
	ChunkCount int      `json:"chunk_count"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ask_document",
		Description: "Download a document, index it and answer questions about its content",
	}, s.handleAsk)
}

// handleAsk handles the ask_document tool invocation.
func (s *Server) handleAsk(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	res, err := s.ports.QA.Run(ctx, domain.RunRequest{
		DocumentURL: input.Documents,
		Questions:   input.Questions,
		Namespace:   input.Namespace,
		TopK:        input.TopK,
	})
	if err != nil {
		return nil, AskOutput{}, toolError(err)
	}

	return nil, AskOutput{
		Answers:    res.Answers,
		ChunkCount: res.ChunkCount,
	}, nil
}

// toolError reduces err to a client-safe message naming the failed stage.
func toolError(err error) error {
	return errors.New(domain.PublicMessage(err))
}
