package cli

import (
	"github.com/spf13/cobra"

	"github.com/custodia-labs/docqa/internal/adapters/driving/api"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the question-answering API.

Endpoints:
  POST /hackrx/run          answer questions about a document (bearer auth)
  POST /api/v1/hackrx/run   same as above
  GET  /health              liveness, version and uptime

The server stops accepting connections on SIGINT or SIGTERM and lets
in-flight requests finish.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if err := requireSettings(); err != nil {
		return err
	}
	addr := settings.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	a, err := buildApp(cmd.Context(), settings)
	if err != nil {
		return err
	}
	defer a.Close()

	server := api.NewServer(a.qa, api.Config{
		Addr:           addr,
		APIKeys:        settings.Server.APIKeys,
		AuthDisabled:   settings.Server.AuthDisabled,
		RequestTimeout: settings.Server.RequestTimeout,
		Version:        version,
	})
	return server.Run(cmd.Context())
}
