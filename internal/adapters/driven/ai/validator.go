package ai

import (
	"context"
	"time"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

// Ensure ConfigValidator implements the interface.
var _ driven.AIConfigValidator = (*ConfigValidator)(nil)

// ConfigValidator validates AI provider configurations.
type ConfigValidator struct {
	timeout time.Duration
}

// NewConfigValidator creates a new AI config validator.
func NewConfigValidator() *ConfigValidator {
	return &ConfigValidator{timeout: pingTimeout}
}

// ValidateEmbedding builds the embedding service and pings it.
func (v *ConfigValidator) ValidateEmbedding(config domain.EmbeddingSettings) error {
	svc, err := CreateEmbeddingService(config)
	if err != nil {
		return err
	}
	defer svc.Close()
	return v.ping(svc.Ping)
}

// ValidateLLM builds the LLM service and pings it.
func (v *ConfigValidator) ValidateLLM(config domain.LLMSettings) error {
	svc, err := CreateLLMService(config)
	if err != nil {
		return err
	}
	defer svc.Close()
	return v.ping(svc.Ping)
}

func (v *ConfigValidator) ping(fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), v.timeout)
	defer cancel()
	return fn(ctx)
}
