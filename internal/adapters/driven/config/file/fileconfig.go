package file

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// fileConfig mirrors AppSettings for decoding. Pointer fields distinguish
// "absent" from zero values; durations are Go duration strings.
type fileConfig struct {
	Server    serverSection    `toml:"server" yaml:"server"`
	Fetch     fetchSection     `toml:"fetch" yaml:"fetch"`
	Chunking  chunkingSection  `toml:"chunking" yaml:"chunking"`
	Embedding embeddingSection `toml:"embedding" yaml:"embedding"`
	Vector    vectorSection    `toml:"vector" yaml:"vector"`
	LLM       llmSection       `toml:"llm" yaml:"llm"`
	Answering answeringSection `toml:"answering" yaml:"answering"`
	Log       logSection       `toml:"log" yaml:"log"`
}

type serverSection struct {
	Addr           *string  `toml:"addr,omitempty" yaml:"addr,omitempty"`
	APIKeys        []string `toml:"api_keys,omitempty" yaml:"api_keys,omitempty"`
	AuthDisabled   *bool    `toml:"auth_disabled,omitempty" yaml:"auth_disabled,omitempty"`
	RequestTimeout *string  `toml:"request_timeout,omitempty" yaml:"request_timeout,omitempty"`
	MaxQuestions   *int     `toml:"max_questions,omitempty" yaml:"max_questions,omitempty"`
}

type fetchSection struct {
	MaxDocumentMB *int    `toml:"max_document_mb,omitempty" yaml:"max_document_mb,omitempty"`
	Timeout       *string `toml:"timeout,omitempty" yaml:"timeout,omitempty"`
	UserAgent     *string `toml:"user_agent,omitempty" yaml:"user_agent,omitempty"`
}

type chunkingSection struct {
	ChunkSize *int `toml:"chunk_size,omitempty" yaml:"chunk_size,omitempty"`
	Overlap   *int `toml:"overlap,omitempty" yaml:"overlap,omitempty"`
}

type embeddingSection struct {
	Provider          *string  `toml:"provider,omitempty" yaml:"provider,omitempty"`
	Model             *string  `toml:"model,omitempty" yaml:"model,omitempty"`
	BaseURL           *string  `toml:"base_url,omitempty" yaml:"base_url,omitempty"`
	APIKey            *string  `toml:"api_key,omitempty" yaml:"api_key,omitempty"`
	Dimensions        *int     `toml:"dimensions,omitempty" yaml:"dimensions,omitempty"`
	BatchSize         *int     `toml:"batch_size,omitempty" yaml:"batch_size,omitempty"`
	Concurrency       *int     `toml:"concurrency,omitempty" yaml:"concurrency,omitempty"`
	RequestsPerSecond *float64 `toml:"requests_per_second,omitempty" yaml:"requests_per_second,omitempty"`
	Timeout           *string  `toml:"timeout,omitempty" yaml:"timeout,omitempty"`
}

type vectorSection struct {
	Provider     *string  `toml:"provider,omitempty" yaml:"provider,omitempty"`
	Dimensions   *int     `toml:"dimensions,omitempty" yaml:"dimensions,omitempty"`
	MinScore     *float64 `toml:"min_score,omitempty" yaml:"min_score,omitempty"`
	DataDir      *string  `toml:"data_dir,omitempty" yaml:"data_dir,omitempty"`
	QdrantURL    *string  `toml:"qdrant_url,omitempty" yaml:"qdrant_url,omitempty"`
	QdrantAPIKey *string  `toml:"qdrant_api_key,omitempty" yaml:"qdrant_api_key,omitempty"`
	Collection   *string  `toml:"collection,omitempty" yaml:"collection,omitempty"`
	Timeout      *string  `toml:"timeout,omitempty" yaml:"timeout,omitempty"`
}

type llmSection struct {
	Provider    *string  `toml:"provider,omitempty" yaml:"provider,omitempty"`
	Model       *string  `toml:"model,omitempty" yaml:"model,omitempty"`
	BaseURL     *string  `toml:"base_url,omitempty" yaml:"base_url,omitempty"`
	APIKey      *string  `toml:"api_key,omitempty" yaml:"api_key,omitempty"`
	Temperature *float64 `toml:"temperature,omitempty" yaml:"temperature,omitempty"`
	MaxTokens   *int     `toml:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
	Timeout     *string  `toml:"timeout,omitempty" yaml:"timeout,omitempty"`
}

type answeringSection struct {
	Concurrency *int    `toml:"concurrency,omitempty" yaml:"concurrency,omitempty"`
	DefaultTopK *int    `toml:"default_top_k,omitempty" yaml:"default_top_k,omitempty"`
	PromptDir   *string `toml:"prompt_dir,omitempty" yaml:"prompt_dir,omitempty"`
}

type logSection struct {
	Level  *string `toml:"level,omitempty" yaml:"level,omitempty"`
	Format *string `toml:"format,omitempty" yaml:"format,omitempty"`
}

// apply copies every present field onto s and records it in explicit.
func (fc *fileConfig) apply(s *domain.AppSettings, explicit map[string]bool) error {
	a := applier{explicit: explicit}

	a.str("server.addr", fc.Server.Addr, &s.Server.Addr)
	if fc.Server.APIKeys != nil {
		s.Server.APIKeys = fc.Server.APIKeys
		explicit["server.api_keys"] = true
	}
	a.boolean("server.auth_disabled", fc.Server.AuthDisabled, &s.Server.AuthDisabled)
	a.duration("server.request_timeout", fc.Server.RequestTimeout, &s.Server.RequestTimeout)
	a.integer("server.max_questions", fc.Server.MaxQuestions, &s.Server.MaxQuestions)

	a.integer("fetch.max_document_mb", fc.Fetch.MaxDocumentMB, &s.Fetch.MaxDocumentMB)
	a.duration("fetch.timeout", fc.Fetch.Timeout, &s.Fetch.Timeout)
	a.str("fetch.user_agent", fc.Fetch.UserAgent, &s.Fetch.UserAgent)

	a.integer("chunking.chunk_size", fc.Chunking.ChunkSize, &s.Chunking.ChunkSize)
	a.integer("chunking.overlap", fc.Chunking.Overlap, &s.Chunking.Overlap)

	if fc.Embedding.Provider != nil {
		s.Embedding.Provider = domain.AIProvider(strings.ToLower(*fc.Embedding.Provider))
		explicit["embedding.provider"] = true
	}
	a.str("embedding.model", fc.Embedding.Model, &s.Embedding.Model)
	a.str("embedding.base_url", fc.Embedding.BaseURL, &s.Embedding.BaseURL)
	a.str("embedding.api_key", fc.Embedding.APIKey, &s.Embedding.APIKey)
	a.integer("embedding.dimensions", fc.Embedding.Dimensions, &s.Embedding.Dimensions)
	a.integer("embedding.batch_size", fc.Embedding.BatchSize, &s.Embedding.BatchSize)
	a.integer("embedding.concurrency", fc.Embedding.Concurrency, &s.Embedding.Concurrency)
	a.float("embedding.requests_per_second", fc.Embedding.RequestsPerSecond, &s.Embedding.RequestsPerSecond)
	a.duration("embedding.timeout", fc.Embedding.Timeout, &s.Embedding.Timeout)

	if fc.Vector.Provider != nil {
		s.Vector.Provider = domain.VectorProvider(strings.ToLower(*fc.Vector.Provider))
		explicit["vector.provider"] = true
	}
	a.integer("vector.dimensions", fc.Vector.Dimensions, &s.Vector.Dimensions)
	a.float("vector.min_score", fc.Vector.MinScore, &s.Vector.MinScore)
	a.str("vector.data_dir", fc.Vector.DataDir, &s.Vector.DataDir)
	a.str("vector.qdrant_url", fc.Vector.QdrantURL, &s.Vector.QdrantURL)
	a.str("vector.qdrant_api_key", fc.Vector.QdrantAPIKey, &s.Vector.QdrantAPIKey)
	a.str("vector.collection", fc.Vector.Collection, &s.Vector.Collection)
	a.duration("vector.timeout", fc.Vector.Timeout, &s.Vector.Timeout)

	if fc.LLM.Provider != nil {
		s.LLM.Provider = domain.AIProvider(strings.ToLower(*fc.LLM.Provider))
		explicit["llm.provider"] = true
	}
	a.str("llm.model", fc.LLM.Model, &s.LLM.Model)
	a.str("llm.base_url", fc.LLM.BaseURL, &s.LLM.BaseURL)
	a.str("llm.api_key", fc.LLM.APIKey, &s.LLM.APIKey)
	a.float("llm.temperature", fc.LLM.Temperature, &s.LLM.Temperature)
	a.integer("llm.max_tokens", fc.LLM.MaxTokens, &s.LLM.MaxTokens)
	a.duration("llm.timeout", fc.LLM.Timeout, &s.LLM.Timeout)

	a.integer("answering.concurrency", fc.Answering.Concurrency, &s.Answering.Concurrency)
	a.integer("answering.default_top_k", fc.Answering.DefaultTopK, &s.Answering.DefaultTopK)
	a.str("answering.prompt_dir", fc.Answering.PromptDir, &s.Answering.PromptDir)

	a.str("log.level", fc.Log.Level, &s.Log.Level)
	a.str("log.format", fc.Log.Format, &s.Log.Format)

	return a.err
}

// applier copies optional values and keeps the first duration error.
type applier struct {
	explicit map[string]bool
	err      error
}

func (a *applier) str(key string, v *string, dst *string) {
	if v != nil {
		*dst = *v
		a.explicit[key] = true
	}
}

func (a *applier) integer(key string, v *int, dst *int) {
	if v != nil {
		*dst = *v
		a.explicit[key] = true
	}
}

func (a *applier) float(key string, v *float64, dst *float64) {
	if v != nil {
		*dst = *v
		a.explicit[key] = true
	}
}

func (a *applier) boolean(key string, v *bool, dst *bool) {
	if v != nil {
		*dst = *v
		a.explicit[key] = true
	}
}

func (a *applier) duration(key string, v *string, dst *time.Duration) {
	if v == nil {
		return
	}
	d, err := parseDuration(*v)
	if err != nil {
		if a.err == nil {
			a.err = fmt.Errorf("%w: %s: %v", domain.ErrInvalidConfig, key, err)
		}
		return
	}
	*dst = d
	a.explicit[key] = true
}

// Encode writes s as TOML or YAML with every secret masked.
func Encode(w io.Writer, s domain.AppSettings, format string) error {
	fc := fromSettings(Redacted(s))
	switch strings.ToLower(format) {
	case "", "toml":
		return toml.NewEncoder(w).Encode(fc)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(fc); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("%w: unknown output format %q", domain.ErrInvalidConfig, format)
	}
}

// Redacted returns a copy of s with API keys masked.
func Redacted(s domain.AppSettings) domain.AppSettings {
	keys := make([]string, len(s.Server.APIKeys))
	for i, k := range s.Server.APIKeys {
		keys[i] = mask(k)
	}
	s.Server.APIKeys = keys
	s.Embedding.APIKey = mask(s.Embedding.APIKey)
	s.Vector.QdrantAPIKey = mask(s.Vector.QdrantAPIKey)
	s.LLM.APIKey = mask(s.LLM.APIKey)
	return s
}

// mask keeps the last four characters of long secrets.
func mask(secret string) string {
	switch {
	case secret == "":
		return ""
	case len(secret) <= 8:
		return "****"
	default:
		return "****" + secret[len(secret)-4:]
	}
}

func fromSettings(s domain.AppSettings) fileConfig {
	str := func(v string) *string { return &v }
	num := func(v int) *int { return &v }
	flt := func(v float64) *float64 { return &v }
	dur := func(d time.Duration) *string { return str(d.String()) }

	return fileConfig{
		Server: serverSection{
			Addr:           str(s.Server.Addr),
			APIKeys:        s.Server.APIKeys,
			AuthDisabled:   &s.Server.AuthDisabled,
			RequestTimeout: dur(s.Server.RequestTimeout),
			MaxQuestions:   num(s.Server.MaxQuestions),
		},
		Fetch: fetchSection{
			MaxDocumentMB: num(s.Fetch.MaxDocumentMB),
			Timeout:       dur(s.Fetch.Timeout),
			UserAgent:     str(s.Fetch.UserAgent),
		},
		Chunking: chunkingSection{
			ChunkSize: num(s.Chunking.ChunkSize),
			Overlap:   num(s.Chunking.Overlap),
		},
		Embedding: embeddingSection{
			Provider:          str(s.Embedding.Provider.String()),
			Model:             str(s.Embedding.Model),
			BaseURL:           str(s.Embedding.BaseURL),
			APIKey:            str(s.Embedding.APIKey),
			Dimensions:        num(s.Embedding.EffectiveDimensions()),
			BatchSize:         num(s.Embedding.BatchSize),
			Concurrency:       num(s.Embedding.Concurrency),
			RequestsPerSecond: flt(s.Embedding.RequestsPerSecond),
			Timeout:           dur(s.Embedding.Timeout),
		},
		Vector: vectorSection{
			Provider:     str(string(s.Vector.Provider)),
			Dimensions:   num(s.Vector.Dimensions),
			MinScore:     flt(s.Vector.MinScore),
			DataDir:      str(s.Vector.DataDir),
			QdrantURL:    str(s.Vector.QdrantURL),
			QdrantAPIKey: str(s.Vector.QdrantAPIKey),
			Collection:   str(s.Vector.Collection),
			Timeout:      dur(s.Vector.Timeout),
		},
		LLM: llmSection{
			Provider:    str(s.LLM.Provider.String()),
			Model:       str(s.LLM.Model),
			BaseURL:     str(s.LLM.BaseURL),
			APIKey:      str(s.LLM.APIKey),
			Temperature: flt(s.LLM.Temperature),
			MaxTokens:   num(s.LLM.MaxTokens),
			Timeout:     dur(s.LLM.Timeout),
		},
		Answering: answeringSection{
			Concurrency: num(s.Answering.Concurrency),
			DefaultTopK: num(s.Answering.DefaultTopK),
			PromptDir:   str(s.Answering.PromptDir),
		},
		Log: logSection{
			Level:  str(s.Log.Level),
			Format: str(s.Log.Format),
		},
	}
}
