package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSettings() AppSettings {
	s := DefaultAppSettings()
	s.Server.APIKeys = []string{"secret"}
	s.LLM.APIKey = "sk-test"
	return s
}

func TestAIProvider(t *testing.T) {
	tests := []struct {
		provider AIProvider
		valid    bool
		needsKey bool
		local    bool
	}{
		{AIProviderOllama, true, false, true},
		{AIProviderOpenAI, true, true, false},
		{AIProviderGroq, true, true, false},
		{AIProvider("anthropic"), false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.provider.String(), func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.provider.IsValid())
			assert.Equal(t, tt.needsKey, tt.provider.RequiresAPIKey())
			assert.Equal(t, tt.local, tt.provider.IsLocal())
			if tt.valid {
				assert.NotEqual(t, unknownDescription, tt.provider.Description())
			} else {
				assert.Equal(t, unknownDescription, tt.provider.Description())
			}
		})
	}
}

func TestVectorProvider_IsValid(t *testing.T) {
	assert.True(t, VectorProviderMemory.IsValid())
	assert.True(t, VectorProviderSQLite.IsValid())
	assert.True(t, VectorProviderQdrant.IsValid())
	assert.False(t, VectorProvider("pinecone").IsValid())
}

func TestDefaultAppSettings(t *testing.T) {
	s := DefaultAppSettings()

	assert.Equal(t, 500, s.Chunking.ChunkSize)
	assert.Equal(t, 100, s.Chunking.Overlap)
	assert.Equal(t, int64(20*1024*1024), s.Fetch.MaxBytes())
	assert.Equal(t, 768, s.Embedding.EffectiveDimensions())
	assert.LessOrEqual(t, s.LLM.Temperature, 0.3)
	assert.Equal(t, VectorProviderSQLite, s.Vector.Provider)
}

func TestAppSettings_Validate(t *testing.T) {
	require.NoError(t, validSettings().Validate())

	tests := []struct {
		name   string
		mutate func(s *AppSettings)
	}{
		{"no api keys", func(s *AppSettings) { s.Server.APIKeys = nil }},
		{"overlap equals size", func(s *AppSettings) { s.Chunking.Overlap = s.Chunking.ChunkSize }},
		{"negative overlap", func(s *AppSettings) { s.Chunking.Overlap = -1 }},
		{"zero doc cap", func(s *AppSettings) { s.Fetch.MaxDocumentMB = 0 }},
		{"groq embeddings", func(s *AppSettings) { s.Embedding.Provider = AIProviderGroq }},
		{"unknown model dims", func(s *AppSettings) { s.Embedding.Model = "custom" }},
		{"unknown vector provider", func(s *AppSettings) { s.Vector.Provider = "pinecone" }},
		{"llm key missing", func(s *AppSettings) { s.LLM.APIKey = "" }},
		{"temperature too high", func(s *AppSettings) { s.LLM.Temperature = 1.5 }},
		{"zero concurrency", func(s *AppSettings) { s.Answering.Concurrency = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSettings()
			tt.mutate(&s)
			err := s.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestAppSettings_Validate_AuthDisabled(t *testing.T) {
	s := validSettings()
	s.Server.APIKeys = nil
	s.Server.AuthDisabled = true
	assert.NoError(t, s.Validate())
}

func TestEmbeddingSettings_EffectiveDimensions(t *testing.T) {
	assert.Equal(t, 1536, EmbeddingSettings{Model: "text-embedding-3-small"}.EffectiveDimensions())
	assert.Equal(t, 256, EmbeddingSettings{Model: "text-embedding-3-small", Dimensions: 256}.EffectiveDimensions())
	assert.Equal(t, 0, EmbeddingSettings{Model: "unknown"}.EffectiveDimensions())
}

func TestPipelineConfigFor(t *testing.T) {
	cfg := PipelineConfigFor(ChunkingSettings{ChunkSize: 300, Overlap: 30})
	assert.Equal(t, []string{"chunker"}, cfg.Processors)
	assert.Equal(t, 300, cfg.GetProcessorConfig("chunker")["chunk_size"])
	assert.Equal(t, 30, cfg.GetProcessorConfig("chunker")["overlap"])
	assert.Nil(t, cfg.GetProcessorConfig("missing"))

	var empty PipelineConfig
	assert.Nil(t, empty.GetProcessorConfig("chunker"))
}
