package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docqa/internal/adapters/driven/ai"
	"github.com/custodia-labs/docqa/internal/adapters/driven/config/file"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

var (
	configFormat string
	configCheck  bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long: `Print the configuration docqa would run with, after defaults, the
config file, .env files and environment variables are applied. Secrets
are masked.

With --check, the embedding and LLM providers and the vector index are
contacted to confirm they are reachable.`,
	Args: cobra.NoArgs,
	RunE: runConfig,
}

func init() {
	configCmd.Flags().StringVarP(&configFormat, "format", "f", "toml", "output format (toml or yaml)")
	configCmd.Flags().BoolVar(&configCheck, "check", false, "check provider connectivity")
	rootCmd.AddCommand(configCmd)
}

func runConfig(cmd *cobra.Command, _ []string) error {
	if err := file.Encode(cmd.OutOrStdout(), settings, configFormat); err != nil {
		return err
	}

	if settingsErr != nil {
		cmd.Println()
		cmd.Println(errorStyle.Render("Configuration errors:"))
		for _, e := range unwrapJoined(settingsErr) {
			cmd.Printf("  - %v\n", e)
		}
		return errors.New("configuration is invalid")
	}

	if !configCheck {
		return nil
	}
	cmd.Println()
	return checkProviders(cmd, ai.NewConfigValidator())
}

// checkProviders pings each configured provider and reports every result
// before returning the first failure.
func checkProviders(cmd *cobra.Command, validator driven.AIConfigValidator) error {
	checks := []struct {
		name string
		run  func() error
	}{
		{fmt.Sprintf("Embedding (%s %s)", settings.Embedding.Provider, settings.Embedding.Model), func() error {
			return validator.ValidateEmbedding(settings.Embedding)
		}},
		{fmt.Sprintf("Vector index (%s)", settings.Vector.Provider), checkIndex},
		{fmt.Sprintf("LLM (%s %s)", settings.LLM.Provider, settings.LLM.Model), func() error {
			return validator.ValidateLLM(settings.LLM)
		}},
	}

	var first error
	for _, c := range checks {
		cmd.Printf("%s... ", c.name)
		if err := c.run(); err != nil {
			cmd.Println(errorStyle.Render("FAILED: " + err.Error()))
			if first == nil {
				first = fmt.Errorf("%s: %w", c.name, err)
			}
			continue
		}
		cmd.Println(okStyle.Render("OK"))
	}
	return first
}

func checkIndex() error {
	index, err := ai.CreateVectorIndex(settings.Vector, settings.Embedding.EffectiveDimensions())
	if err != nil {
		return err
	}
	defer index.Close()

	ctx, cancel := context.WithTimeout(context.Background(), settings.Vector.Timeout)
	defer cancel()
	return index.Ping(ctx)
}

// unwrapJoined flattens an errors.Join result into its parts.
func unwrapJoined(err error) []error {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return joined.Unwrap()
	}
	return []error{err}
}
