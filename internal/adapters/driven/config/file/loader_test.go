package file

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// envMap returns a lookup function over a fixed map.
func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

// baseEnv satisfies validation with the default providers.
func baseEnv() map[string]string {
	return map[string]string{
		"API_KEYS":       "key-one, key-two",
		"OPENAI_API_KEY": "sk-openai",
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	s, err := NewLoader("", WithEnvFiles(), WithLookupEnv(envMap(baseEnv()))).Load()
	require.NoError(t, err)

	assert.Equal(t, domain.DefaultAddr, s.Server.Addr)
	assert.Equal(t, []string{"key-one", "key-two"}, s.Server.APIKeys)
	assert.Equal(t, "sk-openai", s.LLM.APIKey)
	assert.Empty(t, s.Embedding.APIKey, "ollama needs no key")
	assert.Equal(t, domain.DefaultChunkSize, s.Chunking.ChunkSize)
	assert.Equal(t, domain.DefaultTopK, s.Answering.DefaultTopK)
}

func TestLoad_LegacyEnvNames(t *testing.T) {
	env := baseEnv()
	env["PORT"] = "9090"
	env["MAX_DOCUMENT_SIZE_MB"] = "5"
	env["CHUNK_SIZE"] = "800"
	env["CHUNK_OVERLAP"] = "80"
	env["LOG_LEVEL"] = "DEBUG"
	env["LOG_FORMAT"] = "json"

	s, err := NewLoader("", WithEnvFiles(), WithLookupEnv(envMap(env))).Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", s.Server.Addr)
	assert.Equal(t, 5, s.Fetch.MaxDocumentMB)
	assert.Equal(t, 800, s.Chunking.ChunkSize)
	assert.Equal(t, 80, s.Chunking.Overlap)
	assert.Equal(t, "debug", s.Log.Level)
	assert.Equal(t, "json", s.Log.Format)
}

func TestLoad_PrefixedEnvWinsOverLegacy(t *testing.T) {
	env := baseEnv()
	env["CHUNK_SIZE"] = "800"
	env["DOCQA_CHUNKING_CHUNK_SIZE"] = "600"

	s, err := NewLoader("", WithEnvFiles(), WithLookupEnv(envMap(env))).Load()
	require.NoError(t, err)
	assert.Equal(t, 600, s.Chunking.ChunkSize)
}

func TestLoad_TOMLFile(t *testing.T) {
	path := writeFile(t, "docqa.toml", `
[server]
addr = ":7000"
request_timeout = "90s"

[vector]
provider = "qdrant"
qdrant_url = "http://qdrant:6333"
min_score = 0.25

[llm]
provider = "groq"
temperature = 0.1
max_tokens = 256
`)
	env := baseEnv()
	env["GROQ_API_KEY"] = "gsk-test"

	s, err := NewLoader(path, WithEnvFiles(), WithLookupEnv(envMap(env))).Load()
	require.NoError(t, err)

	assert.Equal(t, ":7000", s.Server.Addr)
	assert.Equal(t, 90*time.Second, s.Server.RequestTimeout)
	assert.Equal(t, domain.VectorProviderQdrant, s.Vector.Provider)
	assert.Equal(t, "http://qdrant:6333", s.Vector.QdrantURL)
	assert.InDelta(t, 0.25, s.Vector.MinScore, 1e-9)
	assert.Equal(t, domain.AIProviderGroq, s.LLM.Provider)
	assert.Equal(t, domain.DefaultLLMModels()[domain.AIProviderGroq], s.LLM.Model)
	assert.Equal(t, domain.DefaultBaseURLs()[domain.AIProviderGroq], s.LLM.BaseURL)
	assert.Equal(t, "gsk-test", s.LLM.APIKey)
	assert.Equal(t, 256, s.LLM.MaxTokens)
}

func TestLoad_YAMLFileViaEnv(t *testing.T) {
	path := writeFile(t, "docqa.yaml", `
embedding:
  provider: openai
  model: text-embedding-3-large
  batch_size: 16
answering:
  concurrency: 2
  default_top_k: 5
`)
	env := baseEnv()
	env[ConfigPathEnv] = path

	s, err := NewLoader("", WithEnvFiles(), WithLookupEnv(envMap(env))).Load()
	require.NoError(t, err)

	assert.Equal(t, domain.AIProviderOpenAI, s.Embedding.Provider)
	assert.Equal(t, "text-embedding-3-large", s.Embedding.Model)
	assert.Equal(t, 3072, s.Embedding.EffectiveDimensions())
	assert.Equal(t, "sk-openai", s.Embedding.APIKey)
	assert.Equal(t, 16, s.Embedding.BatchSize)
	assert.Equal(t, 2, s.Answering.Concurrency)
	assert.Equal(t, 5, s.Answering.DefaultTopK)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "docqa.toml", "[chunking]\nchunk_size = 900\n")
	env := baseEnv()
	env["CHUNK_SIZE"] = "700"

	s, err := NewLoader(path, WithEnvFiles(), WithLookupEnv(envMap(env))).Load()
	require.NoError(t, err)
	assert.Equal(t, 700, s.Chunking.ChunkSize)
}

func TestLoad_DotEnvFile(t *testing.T) {
	dotenv := writeFile(t, ".env", "API_KEYS=from-dotenv\nOPENAI_API_KEY=sk-dotenv\nCHUNK_SIZE=640\n")
	env := map[string]string{"CHUNK_SIZE": "320"}

	s, err := NewLoader("", WithEnvFiles(dotenv), WithLookupEnv(envMap(env))).Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"from-dotenv"}, s.Server.APIKeys)
	assert.Equal(t, "sk-dotenv", s.LLM.APIKey)
	assert.Equal(t, 320, s.Chunking.ChunkSize, "process environment wins over .env")
}

func TestLoad_MissingDotEnvIgnored(t *testing.T) {
	_, err := NewLoader("", WithEnvFiles(filepath.Join(t.TempDir(), "nope.env")), WithLookupEnv(envMap(baseEnv()))).Load()
	assert.NoError(t, err)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		file string
		body string
		env  map[string]string
	}{
		{"unknown toml key", "c.toml", "[server]\nport = 1\n", nil},
		{"unknown yaml key", "c.yaml", "llm:\n  temprature: 0.5\n", nil},
		{"bad extension", "c.json", "{}", nil},
		{"bad duration", "c.toml", "[fetch]\ntimeout = \"soon\"\n", nil},
		{"bad int env", "", "", map[string]string{"CHUNK_SIZE": "big"}},
		{"overlap too large", "", "", map[string]string{"CHUNK_SIZE": "100", "CHUNK_OVERLAP": "100"}},
		{"temperature too high", "", "", map[string]string{"DOCQA_LLM_TEMPERATURE": "1.5"}},
		{"missing api keys", "", "", map[string]string{"API_KEYS": ""}},
		{"missing llm key", "", "", map[string]string{"OPENAI_API_KEY": ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := baseEnv()
			for k, v := range tt.env {
				if v == "" {
					delete(env, k)
					continue
				}
				env[k] = v
			}
			var path string
			if tt.file != "" {
				path = writeFile(t, tt.file, tt.body)
			}

			_, err := NewLoader(path, WithEnvFiles(), WithLookupEnv(envMap(env))).Load()
			assert.ErrorIs(t, err, domain.ErrInvalidConfig)
		})
	}
}

func TestLoad_AuthDisabledNeedsNoKeys(t *testing.T) {
	env := map[string]string{
		"DOCQA_SERVER_AUTH_DISABLED": "true",
		"OPENAI_API_KEY":             "sk",
	}
	s, err := NewLoader("", WithEnvFiles(), WithLookupEnv(envMap(env))).Load()
	require.NoError(t, err)
	assert.True(t, s.Server.AuthDisabled)
}

func TestParseDuration(t *testing.T) {
	d, err := parseDuration("45")
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, d)

	d, err = parseDuration("1m30s")
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)

	_, err = parseDuration("later")
	assert.Error(t, err)
}

func TestEncode_MasksSecrets(t *testing.T) {
	s := domain.DefaultAppSettings()
	s.Server.APIKeys = []string{"super-secret-token"}
	s.LLM.APIKey = "sk-abcdefghijkl"

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, s, "toml"))
	out := buf.String()
	assert.NotContains(t, out, "super-secret-token")
	assert.NotContains(t, out, "sk-abcdefghijkl")
	assert.Contains(t, out, "****ijkl")
	assert.Contains(t, out, "[llm]")

	buf.Reset()
	require.NoError(t, Encode(&buf, s, "yaml"))
	var decoded fileConfig
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	require.NotNil(t, decoded.LLM.APIKey)
	assert.Equal(t, "****ijkl", *decoded.LLM.APIKey)

	assert.ErrorIs(t, Encode(&buf, s, "xml"), domain.ErrInvalidConfig)
}

func TestMask(t *testing.T) {
	assert.Equal(t, "", mask(""))
	assert.Equal(t, "****", mask("short"))
	assert.Equal(t, "****6789", mask("0123456789"))
}
