// Package openai provides an LLM service adapter for OpenAI and
// OpenAI-compatible chat completion APIs such as Groq.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

// Ensure LLMService implements the interface.
var _ driven.LLMService = (*LLMService)(nil)

// Default configuration values.
const (
	DefaultBaseURL    = "https://api.openai.com/v1"
	DefaultLLMModel   = "gpt-4o-mini"
	DefaultLLMTimeout = 120 * time.Second
	DefaultMaxRetries = 2
)

// LLMConfig holds configuration for the OpenAI LLM service.
type LLMConfig struct {
	// Name labels errors, e.g. "openai" or "groq" (default: openai).
	Name string

	// APIKey is the API key (required).
	APIKey string

	// BaseURL is the API base URL (default: https://api.openai.com/v1).
	// Point it at https://api.groq.com/openai/v1 for Groq.
	BaseURL string

	// Model is the LLM model to use (default: gpt-4o-mini).
	Model string

	// Timeout is the per-request timeout (default: 120s).
	Timeout time.Duration

	// MaxRetries is the SDK retry budget for 429 and 5xx responses.
	// Zero uses the default; negative disables retries.
	MaxRetries int
}

// LLMService provides chat completions through the openai-go SDK.
type LLMService struct {
	client openai.Client
	name   string
	model  string
}

// NewLLMService creates a new OpenAI-compatible LLM service.
func NewLLMService(cfg LLMConfig) (*LLMService, error) {
	if cfg.Name == "" {
		cfg.Name = "openai"
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: %s: API key is required", domain.ErrInvalidConfig, cfg.Name)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultLLMModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultLLMTimeout
	}
	retries := cfg.MaxRetries
	switch {
	case retries == 0:
		retries = DefaultMaxRetries
	case retries < 0:
		retries = 0
	}

	client := openai.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/")+"/"),
		option.WithRequestTimeout(cfg.Timeout),
		option.WithMaxRetries(retries),
	)

	return &LLMService{
		client: client,
		name:   cfg.Name,
		model:  cfg.Model,
	}, nil
}

// Chat requests a single non-streaming completion. An empty reply is
// reported as a failure.
func (s *LLMService) Chat(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(s.model),
		Messages:    toParams(messages),
		Temperature: openai.Float(opts.Temperature),
	}
	if opts.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(opts.MaxTokens))
	}

	completion, err := s.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", s.wrap(err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("%w: %s: response has no choices", domain.ErrGenerationFailed, s.name)
	}

	answer := strings.TrimSpace(completion.Choices[0].Message.Content)
	if answer == "" {
		return "", fmt.Errorf("%w: %s: empty completion", domain.ErrGenerationFailed, s.name)
	}
	return answer, nil
}

func toParams(messages []driven.ChatMessage) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case driven.RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case driven.RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

// wrap maps SDK errors onto ErrGenerationFailed, keeping context
// cancellation visible to callers.
func (s *LLMService) wrap(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %s: %w", domain.ErrGenerationFailed, s.name, err)
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%w: %s: status %d: %s", domain.ErrGenerationFailed, s.name, apiErr.StatusCode, apiErr.Message)
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrGenerationFailed, s.name, err)
}

// ModelName returns the name of the LLM model being used.
func (s *LLMService) ModelName() string {
	return s.model
}

// Ping lists models, which validates the API key without running inference.
func (s *LLMService) Ping(ctx context.Context) error {
	if _, err := s.client.Models.List(ctx); err != nil {
		return s.wrap(err)
	}
	return nil
}

// Close releases resources.
func (s *LLMService) Close() error {
	return nil
}
