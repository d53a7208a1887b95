package cli

import (
	"context"
	"fmt"

	"github.com/custodia-labs/docqa/internal/adapters/driven/ai"
	"github.com/custodia-labs/docqa/internal/adapters/driven/fetcher/web"
	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/services"
	"github.com/custodia-labs/docqa/internal/logger"
	"github.com/custodia-labs/docqa/internal/normalisers"
	"github.com/custodia-labs/docqa/internal/normalisers/docx"
	"github.com/custodia-labs/docqa/internal/normalisers/eml"
	"github.com/custodia-labs/docqa/internal/normalisers/pdf"
	"github.com/custodia-labs/docqa/internal/postprocessors"
)

// app owns the provider services and the pipeline built on them.
type app struct {
	services *ai.Services
	qa       *services.Orchestrator
}

// buildApp constructs and checks every service for s. The caller must
// Close the result.
func buildApp(ctx context.Context, s domain.AppSettings) (*app, error) {
	logger.Section("Initialisation")

	svcs, err := ai.Build(s)
	if err != nil {
		return nil, err
	}
	if err := svcs.Init(ctx); err != nil {
		svcs.Close()
		return nil, err
	}
	logger.Info("Embedding %s/%s (%d dimensions), index %s, llm %s/%s",
		s.Embedding.Provider, svcs.Embedder.ModelName(), svcs.Embedder.Dimensions(),
		s.Vector.Provider, s.LLM.Provider, svcs.LLM.ModelName())

	registry := postprocessors.NewRegistry()
	postprocessors.RegisterDefaults(registry)
	chunker, err := postprocessors.BuildPipeline(registry, domain.PipelineConfigFor(s.Chunking))
	if err != nil {
		svcs.Close()
		return nil, fmt.Errorf("building chunker: %w", err)
	}

	qa := services.NewOrchestrator(services.Dependencies{
		Fetcher: web.New(web.Config{
			MaxBytes:  s.Fetch.MaxBytes(),
			Timeout:   s.Fetch.Timeout,
			UserAgent: s.Fetch.UserAgent,
		}),
		Normalisers: normalisers.NewRegistry(pdf.New(), docx.New(), eml.New()),
		Chunker:     chunker,
		Embedder:    svcs.Embedder,
		Index:       svcs.Index,
		LLM:         svcs.LLM,
	}, services.OrchestratorConfig{
		MaxQuestions: s.Server.MaxQuestions,
		Concurrency:  s.Answering.Concurrency,
		DefaultTopK:  s.Answering.DefaultTopK,
		Answer: services.AnswerConfig{
			Temperature: s.LLM.Temperature,
			MaxTokens:   s.LLM.MaxTokens,
			Timeout:     s.LLM.Timeout,
		},
	})
	qa.SetPromptStore(svcs.Prompts)

	return &app{services: svcs, qa: qa}, nil
}

// Close releases the provider services.
func (a *app) Close() {
	a.services.Close()
}

// requireSettings returns the settings error, if any, with guidance.
func requireSettings() error {
	if settingsErr != nil {
		return fmt.Errorf("configuration: %w\nRun 'docqa config' to inspect the effective settings", settingsErr)
	}
	return nil
}
