package cli

import (
	"github.com/spf13/cobra"

	"github.com/custodia-labs/docqa/internal/adapters/driving/mcp"
)

var mcpHTTPAddr string

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server for AI assistant integration.

The server exposes one tool, ask_document, which takes the same input as
the HTTP API, and the answer prompt templates as resources.

By default the server communicates over stdio. Use --http to serve the
streamable HTTP transport instead.

Examples:
  # Stdio mode (default)
  docqa mcp

  # HTTP mode (for MCP Inspector, remote access)
  docqa mcp --http :8080

Client configuration:
  {
    "mcpServers": {
      "docqa": {
        "command": "/path/to/docqa",
        "args": ["mcp"]
      }
    }
  }`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func init() {
	mcpCmd.Flags().StringVar(&mcpHTTPAddr, "http", "", "HTTP listen address (empty = use stdio)")
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, _ []string) error {
	if err := requireSettings(); err != nil {
		return err
	}

	a, err := buildApp(cmd.Context(), settings)
	if err != nil {
		return err
	}
	defer a.Close()

	server, err := mcp.NewServer(&mcp.Ports{
		QA:      a.qa,
		Prompts: a.services.Prompts,
	}, version)
	if err != nil {
		return err
	}

	if mcpHTTPAddr != "" {
		return server.RunHTTP(cmd.Context(), mcpHTTPAddr)
	}
	return server.Run(cmd.Context())
}
