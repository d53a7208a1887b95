// Package mcp provides an MCP (Model Context Protocol) server adapter for docqa.
// It lets AI assistants ask questions about a remote document through the
// same pipeline as the HTTP API.
package mcp

import "errors"

// ErrMissingQAService is returned when the QA service is not provided.
var ErrMissingQAService = errors.New("mcp: qa service is required")
