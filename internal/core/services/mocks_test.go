package services

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"
	"sync"
	"sync/atomic"
	"unicode"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

// --- Mock implementations ---

// hashEmbedder implements driven.EmbeddingService with a bag-of-words
// hash, so texts sharing words are close in cosine space.
type hashEmbedder struct {
	dims     int
	err      error
	queryErr error
	calls    atomic.Int32
}

func (e *hashEmbedder) vector(text string) []float32 {
	v := make([]float32, e.dims)
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		v[h.Sum32()%uint32(e.dims)]++
	}
	return v
}

func (e *hashEmbedder) Embed(_ context.Context, text string, task domain.EmbeddingTask) ([]float32, error) {
	e.calls.Add(1)
	if task == domain.TaskQuery && e.queryErr != nil {
		return nil, e.queryErr
	}
	if e.err != nil {
		return nil, e.err
	}
	return e.vector(text), nil
}

func (e *hashEmbedder) EmbedBatch(_ context.Context, texts []string, _ domain.EmbeddingTask) ([][]float32, error) {
	e.calls.Add(1)
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.vector(t)
	}
	return out, nil
}

func (e *hashEmbedder) Dimensions() int              { return e.dims }
func (e *hashEmbedder) ModelName() string            { return "hash" }
func (e *hashEmbedder) Ping(_ context.Context) error { return nil }
func (e *hashEmbedder) Close() error                 { return nil }

// mockLLM implements driven.LLMService. It answers with the first line of
// the context unless the question appears in failOn.
type mockLLM struct {
	mu       sync.Mutex
	failOn   map[string]bool
	reply    string
	calls    int
	messages [][]driven.ChatMessage
	opts     []driven.ChatOptions
	block    bool
}

func (m *mockLLM) Chat(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (string, error) {
	m.mu.Lock()
	m.calls++
	m.messages = append(m.messages, messages)
	m.opts = append(m.opts, opts)
	m.mu.Unlock()

	if m.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	user := messages[len(messages)-1].Content
	for q := range m.failOn {
		if strings.HasSuffix(user, "Question: "+q) {
			return "", errors.New("model overloaded")
		}
	}
	if m.reply != "" {
		return m.reply, nil
	}
	return "answer: " + user[strings.LastIndex(user, "Question: ")+len("Question: "):], nil
}

func (m *mockLLM) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *mockLLM) ModelName() string            { return "mock" }
func (m *mockLLM) Ping(_ context.Context) error { return nil }
func (m *mockLLM) Close() error                 { return nil }

// mockIndex implements driven.VectorIndex returning fixed matches.
type mockIndex struct {
	matches   []domain.ScoredRecord
	queryErr  error
	upsertErr error
	upserted  []domain.IndexRecord
	namespace string

	upsertCalls int
}

func (m *mockIndex) Upsert(_ context.Context, namespace string, records []domain.IndexRecord) error {
	m.upsertCalls++
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.namespace = namespace
	m.upserted = append(m.upserted, records...)
	return nil
}

func (m *mockIndex) Query(_ context.Context, _ string, _ []float32, topK int) ([]domain.ScoredRecord, error) {
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	if topK < len(m.matches) {
		return m.matches[:topK], nil
	}
	return m.matches, nil
}

func (m *mockIndex) Dimensions() int              { return 8 }
func (m *mockIndex) Ping(_ context.Context) error { return nil }
func (m *mockIndex) Close() error                 { return nil }

// mockFetcher implements driven.Fetcher.
type mockFetcher struct {
	raw *domain.RawDocument
	err error
}

func (m *mockFetcher) Fetch(_ context.Context, url string) (*domain.RawDocument, error) {
	if m.err != nil {
		return nil, m.err
	}
	raw := *m.raw
	raw.URI = url
	return &raw, nil
}

// mockPrompts implements driven.PromptStore.
type mockPrompts struct {
	prompts map[string]string
}

func (m *mockPrompts) Load(name string) (string, error) {
	p, ok := m.prompts[name]
	if !ok {
		return "", errors.New("unknown prompt")
	}
	return p, nil
}

func (m *mockPrompts) Reload() {}
