package file

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// ConfigPathEnv names the environment variable holding the config file path.
const ConfigPathEnv = "DOCQA_CONFIG"

// DefaultEnvFile is read when no env files are configured.
const DefaultEnvFile = ".env"

// Loader builds AppSettings. Precedence, lowest first: defaults, config
// file, .env file, process environment.
type Loader struct {
	path     string
	envFiles []string
	lookup   func(string) (string, bool)
}

// Option configures a Loader.
type Option func(*Loader)

// WithEnvFiles replaces the default .env file list. Missing files are
// ignored.
func WithEnvFiles(files ...string) Option {
	return func(l *Loader) { l.envFiles = files }
}

// WithLookupEnv replaces os.LookupEnv, mainly for tests.
func WithLookupEnv(fn func(string) (string, bool)) Option {
	return func(l *Loader) { l.lookup = fn }
}

// NewLoader creates a loader. An empty path falls back to $DOCQA_CONFIG;
// when both are empty no config file is read.
func NewLoader(path string, opts ...Option) *Loader {
	l := &Loader{
		path:     path,
		envFiles: []string{DefaultEnvFile},
		lookup:   os.LookupEnv,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load returns validated settings.
func (l *Loader) Load() (domain.AppSettings, error) {
	settings := domain.DefaultAppSettings()
	explicit := make(map[string]bool)

	env, err := l.environment()
	if err != nil {
		return settings, err
	}

	path := l.path
	if path == "" {
		path, _ = env(ConfigPathEnv)
	}
	if path != "" {
		fc, err := readFile(path)
		if err != nil {
			return settings, err
		}
		if err := fc.apply(&settings, explicit); err != nil {
			return settings, err
		}
	}

	if err := applyEnv(&settings, env, explicit); err != nil {
		return settings, err
	}
	fillProviderDefaults(&settings, env, explicit)

	if err := settings.Validate(); err != nil {
		return settings, err
	}
	return settings, nil
}

// environment merges .env values under the process environment.
func (l *Loader) environment() (func(string) (string, bool), error) {
	dotenv := make(map[string]string)
	for _, f := range l.envFiles {
		values, err := godotenv.Read(f)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: reading %s: %v", domain.ErrInvalidConfig, f, err)
		}
		for k, v := range values {
			if _, ok := dotenv[k]; !ok {
				dotenv[k] = v
			}
		}
	}

	return func(key string) (string, bool) {
		if v, ok := l.lookup(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}, nil
}

// readFile decodes a TOML or YAML config file chosen by extension.
// Unknown keys are rejected so typos surface at startup.
func readFile(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading config file: %v", domain.ErrInvalidConfig, err)
	}

	var fc fileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(&fc)
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		err = dec.Decode(&fc)
		if errors.Is(err, io.EOF) {
			err = nil
		}
	default:
		return nil, fmt.Errorf("%w: unsupported config file type %q (use .toml, .yaml or .yml)", domain.ErrInvalidConfig, filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", domain.ErrInvalidConfig, path, err)
	}
	return &fc, nil
}

// envVar binds one setting to one or more environment variable names.
// The first name present wins.
type envVar struct {
	names []string
	key   string
	set   func(s *domain.AppSettings, v string) error
}

var envVars = []envVar{
	{[]string{"DOCQA_SERVER_ADDR"}, "server.addr", func(s *domain.AppSettings, v string) error {
		s.Server.Addr = v
		return nil
	}},
	{[]string{"PORT"}, "server.port", func(s *domain.AppSettings, v string) error {
		if _, err := strconv.Atoi(v); err != nil {
			return err
		}
		s.Server.Addr = ":" + v
		return nil
	}},
	{[]string{"DOCQA_SERVER_API_KEYS", "API_KEYS"}, "server.api_keys", func(s *domain.AppSettings, v string) error {
		s.Server.APIKeys = splitList(v)
		return nil
	}},
	{[]string{"DOCQA_SERVER_AUTH_DISABLED"}, "server.auth_disabled", setBool(func(s *domain.AppSettings) *bool { return &s.Server.AuthDisabled })},
	{[]string{"DOCQA_SERVER_REQUEST_TIMEOUT"}, "server.request_timeout", setDuration(func(s *domain.AppSettings) *time.Duration { return &s.Server.RequestTimeout })},
	{[]string{"DOCQA_SERVER_MAX_QUESTIONS"}, "server.max_questions", setInt(func(s *domain.AppSettings) *int { return &s.Server.MaxQuestions })},

	{[]string{"DOCQA_FETCH_MAX_DOCUMENT_MB", "MAX_DOCUMENT_SIZE_MB"}, "fetch.max_document_mb", setInt(func(s *domain.AppSettings) *int { return &s.Fetch.MaxDocumentMB })},
	{[]string{"DOCQA_FETCH_TIMEOUT"}, "fetch.timeout", setDuration(func(s *domain.AppSettings) *time.Duration { return &s.Fetch.Timeout })},
	{[]string{"DOCQA_FETCH_USER_AGENT"}, "fetch.user_agent", setString(func(s *domain.AppSettings) *string { return &s.Fetch.UserAgent })},

	{[]string{"DOCQA_CHUNKING_CHUNK_SIZE", "CHUNK_SIZE"}, "chunking.chunk_size", setInt(func(s *domain.AppSettings) *int { return &s.Chunking.ChunkSize })},
	{[]string{"DOCQA_CHUNKING_OVERLAP", "CHUNK_OVERLAP"}, "chunking.overlap", setInt(func(s *domain.AppSettings) *int { return &s.Chunking.Overlap })},

	{[]string{"DOCQA_EMBEDDING_PROVIDER"}, "embedding.provider", func(s *domain.AppSettings, v string) error {
		s.Embedding.Provider = domain.AIProvider(strings.ToLower(v))
		return nil
	}},
	{[]string{"DOCQA_EMBEDDING_MODEL"}, "embedding.model", setString(func(s *domain.AppSettings) *string { return &s.Embedding.Model })},
	{[]string{"DOCQA_EMBEDDING_BASE_URL"}, "embedding.base_url", setString(func(s *domain.AppSettings) *string { return &s.Embedding.BaseURL })},
	{[]string{"DOCQA_EMBEDDING_API_KEY"}, "embedding.api_key", setString(func(s *domain.AppSettings) *string { return &s.Embedding.APIKey })},
	{[]string{"DOCQA_EMBEDDING_DIMENSIONS"}, "embedding.dimensions", setInt(func(s *domain.AppSettings) *int { return &s.Embedding.Dimensions })},
	{[]string{"DOCQA_EMBEDDING_BATCH_SIZE"}, "embedding.batch_size", setInt(func(s *domain.AppSettings) *int { return &s.Embedding.BatchSize })},
	{[]string{"DOCQA_EMBEDDING_CONCURRENCY"}, "embedding.concurrency", setInt(func(s *domain.AppSettings) *int { return &s.Embedding.Concurrency })},
	{[]string{"DOCQA_EMBEDDING_REQUESTS_PER_SECOND"}, "embedding.requests_per_second", setFloat(func(s *domain.AppSettings) *float64 { return &s.Embedding.RequestsPerSecond })},
	{[]string{"DOCQA_EMBEDDING_TIMEOUT"}, "embedding.timeout", setDuration(func(s *domain.AppSettings) *time.Duration { return &s.Embedding.Timeout })},

	{[]string{"DOCQA_VECTOR_PROVIDER"}, "vector.provider", func(s *domain.AppSettings, v string) error {
		s.Vector.Provider = domain.VectorProvider(strings.ToLower(v))
		return nil
	}},
	{[]string{"DOCQA_VECTOR_DIMENSIONS"}, "vector.dimensions", setInt(func(s *domain.AppSettings) *int { return &s.Vector.Dimensions })},
	{[]string{"DOCQA_VECTOR_MIN_SCORE"}, "vector.min_score", setFloat(func(s *domain.AppSettings) *float64 { return &s.Vector.MinScore })},
	{[]string{"DOCQA_VECTOR_DATA_DIR"}, "vector.data_dir", setString(func(s *domain.AppSettings) *string { return &s.Vector.DataDir })},
	{[]string{"DOCQA_VECTOR_QDRANT_URL", "QDRANT_URL"}, "vector.qdrant_url", setString(func(s *domain.AppSettings) *string { return &s.Vector.QdrantURL })},
	{[]string{"DOCQA_VECTOR_QDRANT_API_KEY", "QDRANT_API_KEY"}, "vector.qdrant_api_key", setString(func(s *domain.AppSettings) *string { return &s.Vector.QdrantAPIKey })},
	{[]string{"DOCQA_VECTOR_COLLECTION"}, "vector.collection", setString(func(s *domain.AppSettings) *string { return &s.Vector.Collection })},
	{[]string{"DOCQA_VECTOR_TIMEOUT"}, "vector.timeout", setDuration(func(s *domain.AppSettings) *time.Duration { return &s.Vector.Timeout })},

	{[]string{"DOCQA_LLM_PROVIDER"}, "llm.provider", func(s *domain.AppSettings, v string) error {
		s.LLM.Provider = domain.AIProvider(strings.ToLower(v))
		return nil
	}},
	{[]string{"DOCQA_LLM_MODEL"}, "llm.model", setString(func(s *domain.AppSettings) *string { return &s.LLM.Model })},
	{[]string{"DOCQA_LLM_BASE_URL"}, "llm.base_url", setString(func(s *domain.AppSettings) *string { return &s.LLM.BaseURL })},
	{[]string{"DOCQA_LLM_API_KEY"}, "llm.api_key", setString(func(s *domain.AppSettings) *string { return &s.LLM.APIKey })},
	{[]string{"DOCQA_LLM_TEMPERATURE"}, "llm.temperature", setFloat(func(s *domain.AppSettings) *float64 { return &s.LLM.Temperature })},
	{[]string{"DOCQA_LLM_MAX_TOKENS"}, "llm.max_tokens", setInt(func(s *domain.AppSettings) *int { return &s.LLM.MaxTokens })},
	{[]string{"DOCQA_LLM_TIMEOUT"}, "llm.timeout", setDuration(func(s *domain.AppSettings) *time.Duration { return &s.LLM.Timeout })},

	{[]string{"DOCQA_ANSWERING_CONCURRENCY"}, "answering.concurrency", setInt(func(s *domain.AppSettings) *int { return &s.Answering.Concurrency })},
	{[]string{"DOCQA_ANSWERING_DEFAULT_TOP_K"}, "answering.default_top_k", setInt(func(s *domain.AppSettings) *int { return &s.Answering.DefaultTopK })},
	{[]string{"DOCQA_ANSWERING_PROMPT_DIR"}, "answering.prompt_dir", setString(func(s *domain.AppSettings) *string { return &s.Answering.PromptDir })},

	{[]string{"DOCQA_LOG_LEVEL", "LOG_LEVEL"}, "log.level", func(s *domain.AppSettings, v string) error {
		s.Log.Level = strings.ToLower(v)
		return nil
	}},
	{[]string{"DOCQA_LOG_FORMAT", "LOG_FORMAT"}, "log.format", func(s *domain.AppSettings, v string) error {
		s.Log.Format = strings.ToLower(v)
		return nil
	}},
}

// applyEnv overlays environment variables onto s.
func applyEnv(s *domain.AppSettings, env func(string) (string, bool), explicit map[string]bool) error {
	var errs []error
	for _, ev := range envVars {
		for _, name := range ev.names {
			v, ok := env(name)
			if !ok || strings.TrimSpace(v) == "" {
				continue
			}
			if err := ev.set(s, strings.TrimSpace(v)); err != nil {
				errs = append(errs, fmt.Errorf("%w: %s=%q: %v", domain.ErrInvalidConfig, name, v, err))
			}
			explicit[ev.key] = true
			break
		}
	}
	return errors.Join(errs...)
}

// fillProviderDefaults switches model and base URL to the chosen
// provider's defaults unless they were set explicitly, then fills API keys
// from the provider's conventional variable.
func fillProviderDefaults(s *domain.AppSettings, env func(string) (string, bool), explicit map[string]bool) {
	if !explicit["embedding.model"] {
		if m, ok := domain.DefaultEmbeddingModels()[s.Embedding.Provider]; ok {
			s.Embedding.Model = m
		}
	}
	if !explicit["embedding.base_url"] {
		s.Embedding.BaseURL = domain.DefaultBaseURLs()[s.Embedding.Provider]
	}
	if !explicit["llm.model"] {
		if m, ok := domain.DefaultLLMModels()[s.LLM.Provider]; ok {
			s.LLM.Model = m
		}
	}
	if !explicit["llm.base_url"] {
		s.LLM.BaseURL = domain.DefaultBaseURLs()[s.LLM.Provider]
	}

	if s.Embedding.APIKey == "" {
		s.Embedding.APIKey = providerKey(s.Embedding.Provider, env)
	}
	if s.LLM.APIKey == "" {
		s.LLM.APIKey = providerKey(s.LLM.Provider, env)
	}
}

func providerKey(p domain.AIProvider, env func(string) (string, bool)) string {
	var name string
	switch p {
	case domain.AIProviderOpenAI:
		name = "OPENAI_API_KEY"
	case domain.AIProviderGroq:
		name = "GROQ_API_KEY"
	default:
		return ""
	}
	v, _ := env(name)
	return strings.TrimSpace(v)
}

func setString(field func(*domain.AppSettings) *string) func(*domain.AppSettings, string) error {
	return func(s *domain.AppSettings, v string) error {
		*field(s) = v
		return nil
	}
}

func setInt(field func(*domain.AppSettings) *int) func(*domain.AppSettings, string) error {
	return func(s *domain.AppSettings, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*field(s) = n
		return nil
	}
}

func setFloat(field func(*domain.AppSettings) *float64) func(*domain.AppSettings, string) error {
	return func(s *domain.AppSettings, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		*field(s) = f
		return nil
	}
}

func setBool(field func(*domain.AppSettings) *bool) func(*domain.AppSettings, string) error {
	return func(s *domain.AppSettings, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*field(s) = b
		return nil
	}
}

func setDuration(field func(*domain.AppSettings) *time.Duration) func(*domain.AppSettings, string) error {
	return func(s *domain.AppSettings, v string) error {
		d, err := parseDuration(v)
		if err != nil {
			return err
		}
		*field(s) = d
		return nil
	}
}

// parseDuration accepts Go duration strings and bare integers as seconds.
func parseDuration(v string) (time.Duration, error) {
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(v)
}

// splitList splits a comma-separated list, dropping blanks.
func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
