// Package cli provides the docqa command line: the API server, the MCP
// server, one-shot questions and configuration inspection.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docqa/internal/adapters/driven/config/file"
	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/logger"
)

// version is set by Execute from build metadata.
var version = "dev"

var (
	configPath string
	envFiles   []string
	verbose    bool
)

// settings holds the loaded configuration. settingsErr is the load or
// validation error; commands that run the pipeline refuse to start on it.
var (
	settings    domain.AppSettings
	settingsErr error
)

var rootCmd = &cobra.Command{
	Use:   "docqa",
	Short: "Answer questions about remote documents",
	Long: `docqa downloads a PDF, DOCX or EML document, indexes it in a vector
store and answers natural-language questions from its content.

Configuration is read from defaults, an optional TOML or YAML file
(--config or DOCQA_CONFIG), a .env file and the environment, in that order.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadSettings,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (.toml, .yaml or .yml)")
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", []string{file.DefaultEnvFile}, "dotenv files to load")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the root command. It cancels the command context on
// SIGINT or SIGTERM.
func Execute(v string) error {
	if v != "" {
		version = v
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func loadSettings(_ *cobra.Command, _ []string) error {
	settings, settingsErr = file.NewLoader(configPath, file.WithEnvFiles(envFiles...)).Load()

	if err := logger.Configure(settings.Log.Level, settings.Log.Format); err != nil {
		logger.Warn("%v; using info level", err)
	}
	if verbose {
		logger.SetVerbose(true)
	}
	return nil
}
