package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/logger"
)

// Ensure AnswerGenerator implements the interface.
var _ driven.PromptStoreAware = (*AnswerGenerator)(nil)

// Fallback prompts used when no PromptStore is set.
const (
	fallbackSystemPrompt = "Answer the question using only the context provided. " +
		"If the context does not contain the answer, say so. Be concise."
	fallbackUserPrompt = "Context:\n%s\n\nQuestion: %s"
)

// AnswerConfig configures answer generation.
type AnswerConfig struct {
	// Temperature is the sampling temperature (default: 0.2).
	Temperature float64

	// MaxTokens caps the answer length (default: 512).
	MaxTokens int

	// Timeout bounds one model call (default: 30s).
	Timeout time.Duration
}

// AnswerGenerator produces grounded answers from retrieved chunks.
type AnswerGenerator struct {
	llm     driven.LLMService
	prompts driven.PromptStore
	cfg     AnswerConfig
}

// NewAnswerGenerator creates an answer generator. Zero config values use
// the defaults.
func NewAnswerGenerator(llm driven.LLMService, cfg AnswerConfig) *AnswerGenerator {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = domain.DefaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = domain.DefaultLLMTimeout
	}
	return &AnswerGenerator{llm: llm, cfg: cfg}
}

// SetPromptStore sets the prompt store for loading customisable prompts.
func (g *AnswerGenerator) SetPromptStore(store driven.PromptStore) {
	g.prompts = store
}

// Answer asks the model to answer question from chunks. Without chunks
// it returns domain.NoContextAnswer and never calls the model.
func (g *AnswerGenerator) Answer(ctx context.Context, question string, chunks []domain.ScoredChunk) (string, error) {
	if len(chunks) == 0 {
		return domain.NoContextAnswer, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Chunk.Content
	}
	contextText := strings.Join(texts, "\n\n")

	messages := []driven.ChatMessage{
		{Role: driven.RoleSystem, Content: g.loadPrompt(driven.PromptAnswerSystem, fallbackSystemPrompt)},
		{Role: driven.RoleUser, Content: fmt.Sprintf(g.loadPrompt(driven.PromptAnswerUser, fallbackUserPrompt),
			contextText, question)},
	}

	callCtx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	start := time.Now()
	answer, err := g.llm.Chat(callCtx, messages, driven.ChatOptions{
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: g.cfg.Temperature,
	})
	if err != nil {
		if errors.Is(err, domain.ErrGenerationFailed) {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", domain.ErrGenerationFailed, err)
	}

	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", fmt.Errorf("%w: empty completion from %s", domain.ErrGenerationFailed, g.llm.ModelName())
	}
	logger.Debug("answer: %d chunks, %d chars in %s", len(chunks), len(answer), time.Since(start).Round(time.Millisecond))
	return answer, nil
}

// loadPrompt returns the named template from the store, or fallback.
func (g *AnswerGenerator) loadPrompt(name, fallback string) string {
	if g.prompts == nil {
		return fallback
	}
	prompt, err := g.prompts.Load(name)
	if err != nil {
		logger.Debug("answer: prompt %s unavailable, using built-in: %v", name, err)
		return fallback
	}
	return prompt
}
