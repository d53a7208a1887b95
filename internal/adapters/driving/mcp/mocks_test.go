package mcp

import (
	"context"
	"errors"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// mockQAService is a mock implementation of driving.QAService.
type mockQAService struct {
	result *domain.RunResult
	err    error
	got    domain.RunRequest
}

func (m *mockQAService) Run(_ context.Context, req domain.RunRequest) (*domain.RunResult, error) {
	m.got = req
	return m.result, m.err
}

// mockPromptStore is a mock implementation of driven.PromptStore.
type mockPromptStore struct {
	prompts map[string]string
}

func (m *mockPromptStore) Load(name string) (string, error) {
	p, ok := m.prompts[name]
	if !ok {
		return "", errors.New("unknown prompt")
	}
	return p, nil
}

func (m *mockPromptStore) Reload() {}
