package domain

import (
	"errors"
	"fmt"
	"time"
)

const unknownDescription = "Unknown"

// AIProvider identifies an AI service provider for embeddings or LLM.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is OpenAI cloud API, or any server speaking its wire format.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderGroq is Groq cloud API (OpenAI-compatible chat completions).
	AIProviderGroq AIProvider = "groq"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderGroq:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderGroq
}

// IsLocal returns true if this provider runs locally.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderGroq:
		return "Groq (cloud)"
	default:
		return unknownDescription
	}
}

// VectorProvider identifies a vector index backend.
type VectorProvider string

// Available vector index backends.
const (
	// VectorProviderMemory keeps vectors in process memory.
	VectorProviderMemory VectorProvider = "memory"

	// VectorProviderSQLite persists vectors in a local SQLite file.
	VectorProviderSQLite VectorProvider = "sqlite"

	// VectorProviderQdrant uses a Qdrant server over REST.
	VectorProviderQdrant VectorProvider = "qdrant"
)

// IsValid returns true if the vector provider is recognised.
func (p VectorProvider) IsValid() bool {
	switch p {
	case VectorProviderMemory, VectorProviderSQLite, VectorProviderQdrant:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (p VectorProvider) String() string {
	return string(p)
}

// ServerSettings holds HTTP API configuration.
type ServerSettings struct {
	// Addr is the listen address, e.g. ":8000".
	Addr string

	// APIKeys are the accepted bearer tokens.
	APIKeys []string

	// AuthDisabled turns off bearer authentication. Development only.
	AuthDisabled bool

	// RequestTimeout bounds one whole run.
	RequestTimeout time.Duration

	// MaxQuestions caps the questions per request.
	MaxQuestions int
}

// FetchSettings holds document download configuration.
type FetchSettings struct {
	// MaxDocumentMB is the download size cap in megabytes.
	MaxDocumentMB int

	// Timeout bounds one download.
	Timeout time.Duration

	// UserAgent is sent with every download.
	UserAgent string
}

// MaxBytes returns the size cap in bytes.
func (f FetchSettings) MaxBytes() int64 {
	return int64(f.MaxDocumentMB) * 1024 * 1024
}

// ChunkingSettings holds splitter configuration. Sizes are in characters.
type ChunkingSettings struct {
	ChunkSize int
	Overlap   int
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint.
	BaseURL string

	// APIKey is the API key (for OpenAI).
	APIKey string

	// Dimensions is the vector size. Zero derives it from the model.
	Dimensions int

	// BatchSize is the number of texts per provider request.
	BatchSize int

	// Concurrency is the number of batches in flight.
	Concurrency int

	// RequestsPerSecond throttles provider requests. Zero disables it.
	RequestsPerSecond float64

	// Timeout bounds one provider request.
	Timeout time.Duration
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() || e.Provider == AIProviderGroq {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// EffectiveDimensions returns Dimensions, or the known size for Model.
func (e EmbeddingSettings) EffectiveDimensions() int {
	if e.Dimensions > 0 {
		return e.Dimensions
	}
	return EmbeddingDimensions()[e.Model]
}

// LLMSettings holds LLM provider configuration.
type LLMSettings struct {
	// Provider is the LLM service provider.
	Provider AIProvider

	// Model is the LLM model name.
	Model string

	// BaseURL is the API endpoint.
	BaseURL string

	// APIKey is the API key (for OpenAI/Groq).
	APIKey string

	// Temperature is the sampling temperature.
	Temperature float64

	// MaxTokens caps the answer length.
	MaxTokens int

	// Timeout bounds one completion.
	Timeout time.Duration
}

// IsConfigured returns true if the LLM provider is set up.
func (l LLMSettings) IsConfigured() bool {
	if !l.Provider.IsValid() {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// VectorIndexSettings holds vector index configuration.
type VectorIndexSettings struct {
	// Provider is the vector index backend.
	Provider VectorProvider

	// Dimensions is the index vector size. Zero adopts the embedder's.
	Dimensions int

	// MinScore drops matches scoring below it. Zero keeps everything.
	MinScore float64

	// DataDir holds the SQLite database.
	DataDir string

	// QdrantURL is the Qdrant REST endpoint.
	QdrantURL string

	// QdrantAPIKey is sent as the api-key header when set.
	QdrantAPIKey string

	// Collection is the Qdrant collection name.
	Collection string

	// Timeout bounds one index request.
	Timeout time.Duration
}

// AnsweringSettings holds retrieval and generation configuration.
type AnsweringSettings struct {
	// Concurrency is the number of questions answered in parallel.
	Concurrency int

	// DefaultTopK applies when a request omits top_k.
	DefaultTopK int

	// PromptDir holds prompt template overrides. Empty uses built-ins.
	PromptDir string
}

// LogSettings holds logging configuration.
type LogSettings struct {
	// Level is one of debug, info, warn, error.
	Level string

	// Format is text or json.
	Format string
}

// AppSettings holds all application settings.
type AppSettings struct {
	Server    ServerSettings
	Fetch     FetchSettings
	Chunking  ChunkingSettings
	Embedding EmbeddingSettings
	Vector    VectorIndexSettings
	LLM       LLMSettings
	Answering AnsweringSettings
	Log       LogSettings
}

// Default values.
const (
	DefaultAddr           = ":8000"
	DefaultRequestTimeout = 5 * time.Minute
	DefaultMaxQuestions   = 50

	DefaultMaxDocumentMB = 20
	DefaultFetchTimeout  = 30 * time.Second
	DefaultUserAgent     = "docqa/1.0"

	DefaultChunkSize    = 500
	DefaultChunkOverlap = 100

	DefaultEmbeddingBatchSize   = 32
	DefaultEmbeddingConcurrency = 4
	DefaultEmbeddingTimeout     = 60 * time.Second

	DefaultCollection   = "docqa"
	DefaultIndexTimeout = 30 * time.Second

	DefaultTemperature = 0.2
	DefaultMaxTokens   = 512
	DefaultLLMTimeout  = 30 * time.Second

	DefaultAnswerConcurrency = 4
)

// DefaultAppSettings returns settings with sensible defaults: a local
// Ollama embedder, a SQLite index and an OpenAI-compatible chat model.
// API keys are left empty and must come from the environment.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Server: ServerSettings{
			Addr:           DefaultAddr,
			RequestTimeout: DefaultRequestTimeout,
			MaxQuestions:   DefaultMaxQuestions,
		},
		Fetch: FetchSettings{
			MaxDocumentMB: DefaultMaxDocumentMB,
			Timeout:       DefaultFetchTimeout,
			UserAgent:     DefaultUserAgent,
		},
		Chunking: ChunkingSettings{
			ChunkSize: DefaultChunkSize,
			Overlap:   DefaultChunkOverlap,
		},
		Embedding: EmbeddingSettings{
			Provider:    AIProviderOllama,
			Model:       DefaultEmbeddingModels()[AIProviderOllama],
			BaseURL:     DefaultBaseURLs()[AIProviderOllama],
			BatchSize:   DefaultEmbeddingBatchSize,
			Concurrency: DefaultEmbeddingConcurrency,
			Timeout:     DefaultEmbeddingTimeout,
		},
		Vector: VectorIndexSettings{
			Provider:   VectorProviderSQLite,
			DataDir:    "data",
			QdrantURL:  "http://localhost:6333",
			Collection: DefaultCollection,
			Timeout:    DefaultIndexTimeout,
		},
		LLM: LLMSettings{
			Provider:    AIProviderOpenAI,
			Model:       DefaultLLMModels()[AIProviderOpenAI],
			BaseURL:     DefaultBaseURLs()[AIProviderOpenAI],
			Temperature: DefaultTemperature,
			MaxTokens:   DefaultMaxTokens,
			Timeout:     DefaultLLMTimeout,
		},
		Answering: AnsweringSettings{
			Concurrency: DefaultAnswerConcurrency,
			DefaultTopK: DefaultTopK,
		},
		Log: LogSettings{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks the settings for values the pipeline cannot run with.
func (s AppSettings) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	if !s.Server.AuthDisabled && len(s.Server.APIKeys) == 0 {
		add("server.api_keys is empty; set API_KEYS or server.auth_disabled")
	}
	if s.Server.MaxQuestions < 1 {
		add("server.max_questions must be positive")
	}
	if s.Fetch.MaxDocumentMB < 1 {
		add("fetch.max_document_mb must be positive")
	}
	if s.Chunking.ChunkSize < 1 {
		add("chunking.chunk_size must be positive")
	}
	if s.Chunking.Overlap < 0 || s.Chunking.Overlap >= s.Chunking.ChunkSize {
		add("chunking.overlap must be in [0, chunk_size)")
	}
	if !s.Embedding.IsConfigured() {
		add("embedding provider %q is not configured", s.Embedding.Provider)
	}
	if s.Embedding.EffectiveDimensions() < 1 {
		add("embedding.dimensions unknown for model %q", s.Embedding.Model)
	}
	if s.Embedding.BatchSize < 1 || s.Embedding.Concurrency < 1 {
		add("embedding.batch_size and embedding.concurrency must be positive")
	}
	if !s.Vector.Provider.IsValid() {
		add("unknown vector provider %q", s.Vector.Provider)
	}
	if s.Vector.MinScore < -1 || s.Vector.MinScore > 1 {
		add("vector.min_score must be in [-1, 1]")
	}
	if !s.LLM.IsConfigured() {
		add("llm provider %q is not configured", s.LLM.Provider)
	}
	if s.LLM.Temperature < 0 || s.LLM.Temperature > 1 {
		add("llm.temperature must be in [0, 1]")
	}
	if s.LLM.MaxTokens < 1 {
		add("llm.max_tokens must be positive")
	}
	if s.Answering.Concurrency < 1 {
		add("answering.concurrency must be positive")
	}
	if s.Answering.DefaultTopK < 1 || s.Answering.DefaultTopK > MaxTopK {
		add("answering.default_top_k must be in [1, %d]", MaxTopK)
	}
	return errors.Join(errs...)
}

// AllEmbeddingProviders returns providers that support embeddings.
func AllEmbeddingProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
	}
}

// AllLLMProviders returns providers that support LLM operations.
func AllLLMProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
		AIProviderGroq,
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "nomic-embed-text",
		AIProviderOpenAI: "text-embedding-3-small",
	}
}

// DefaultLLMModels returns default models for each LLM provider.
func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "llama3.2",
		AIProviderOpenAI: "gpt-4o-mini",
		AIProviderGroq:   "llama-3.3-70b-versatile",
	}
}

// DefaultBaseURLs returns the API endpoint for each provider.
func DefaultBaseURLs() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "http://localhost:11434",
		AIProviderOpenAI: "https://api.openai.com/v1",
		AIProviderGroq:   "https://api.groq.com/openai/v1",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
	}
}

// PipelineConfig holds post-processor pipeline configuration.
// Uses generic map-based config so processors can be added
// without modifying this struct.
type PipelineConfig struct {
	// Processors is the ordered list of processor names to run.
	Processors []string

	// ProcessorConfigs holds per-processor configuration as generic maps.
	// Key is processor name, value is processor-specific config.
	ProcessorConfigs map[string]map[string]any
}

// GetProcessorConfig returns config for a specific processor, or nil if not set.
func (c *PipelineConfig) GetProcessorConfig(name string) map[string]any {
	if c.ProcessorConfigs == nil {
		return nil
	}
	return c.ProcessorConfigs[name]
}

// PipelineConfigFor returns the post-processor pipeline for chunking settings.
func PipelineConfigFor(c ChunkingSettings) PipelineConfig {
	return PipelineConfig{
		Processors: []string{"chunker"},
		ProcessorConfigs: map[string]map[string]any{
			"chunker": {
				"chunk_size": c.ChunkSize,
				"overlap":    c.Overlap,
			},
		},
	}
}

// DefaultPipelineConfig returns the default pipeline configuration.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfigFor(ChunkingSettings{
		ChunkSize: DefaultChunkSize,
		Overlap:   DefaultChunkOverlap,
	})
}
