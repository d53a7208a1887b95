package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docqa/internal/adapters/driven/fetcher/web"
	"github.com/custodia-labs/docqa/internal/adapters/driven/vector/memory"
	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/normalisers"
	"github.com/custodia-labs/docqa/internal/normalisers/docx"
	"github.com/custodia-labs/docqa/internal/normalisers/eml"
	"github.com/custodia-labs/docqa/internal/normalisers/pdf"
	"github.com/custodia-labs/docqa/internal/normalisers/pdf/pdftest"
	"github.com/custodia-labs/docqa/internal/postprocessors"
	"github.com/custodia-labs/docqa/internal/postprocessors/chunker"
)

const policyText = "Grace period for premium payment is thirty days.\n" +
	"Waiting period for pre-existing diseases is thirty six months.\n" +
	"Maternity expenses are covered after twenty four months of continuous coverage."

type harness struct {
	orch     *Orchestrator
	embedder *hashEmbedder
	index    *memory.Index
	llm      *mockLLM
}

func newHarness(t *testing.T, fetcher *mockFetcher, cfg OrchestratorConfig) *harness {
	t.Helper()
	index, err := memory.NewIndex(64)
	require.NoError(t, err)
	h := &harness{embedder: &hashEmbedder{dims: 64}, index: index, llm: &mockLLM{}}
	h.orch = NewOrchestrator(Dependencies{
		Fetcher:     fetcher,
		Normalisers: normalisers.NewRegistry(pdf.New(), docx.New(), eml.New()),
		Chunker:     postprocessors.NewPipeline(chunker.New(chunker.WithChunkSize(80), chunker.WithOverlap(10))),
		Embedder:    h.embedder,
		Index:       index,
		LLM:         h.llm,
	}, cfg)
	return h
}

func pdfFetcher(pages ...string) *mockFetcher {
	return &mockFetcher{raw: &domain.RawDocument{
		MIMEType: "application/pdf",
		Format:   domain.FormatPDF,
		Content:  pdftest.Document(pages...),
	}}
}

func TestOrchestrator_Run(t *testing.T) {
	h := newHarness(t, pdfFetcher(policyText), OrchestratorConfig{})

	res, err := h.orch.Run(context.Background(), domain.RunRequest{
		DocumentURL: "https://example.com/policy.pdf",
		Questions:   []string{"What is the grace period?", "Are maternity expenses covered?"},
		Namespace:   "policy",
	})

	require.NoError(t, err)
	require.Len(t, res.Answers, 2)
	assert.Equal(t, "answer: What is the grace period?", res.Answers[0])
	assert.Equal(t, "answer: Are maternity expenses covered?", res.Answers[1])
	assert.Equal(t, res.ChunkCount, h.index.Count("policy"))
	assert.Positive(t, res.ChunkCount)
	assert.Positive(t, res.Latency)

	// Each question is answered from retrieved context.
	for _, msgs := range h.llm.messages {
		assert.Contains(t, msgs[1].Content, "Context:\n")
	}
}

func TestOrchestrator_RetrievesRelevantChunk(t *testing.T) {
	h := newHarness(t, pdfFetcher(policyText), OrchestratorConfig{})

	_, err := h.orch.Run(context.Background(), domain.RunRequest{
		DocumentURL: "https://example.com/policy.pdf",
		Questions:   []string{"grace period premium payment"},
		TopK:        1,
	})

	require.NoError(t, err)
	require.Len(t, h.llm.messages, 1)
	assert.Contains(t, h.llm.messages[0][1].Content, "Grace period")
}

func TestOrchestrator_Defaults(t *testing.T) {
	index := &mockIndex{matches: []domain.ScoredRecord{
		{Record: domain.IndexRecord{ID: "1", Text: "best"}, Score: 0.9},
		{Record: domain.IndexRecord{ID: "2", Text: "other"}, Score: 0.5},
	}}
	llm := &mockLLM{}
	orch := NewOrchestrator(Dependencies{
		Fetcher:     pdfFetcher(policyText),
		Normalisers: normalisers.NewRegistry(pdf.New()),
		Chunker:     postprocessors.NewPipeline(chunker.New()),
		Embedder:    &hashEmbedder{dims: 8},
		Index:       index,
		LLM:         llm,
	}, OrchestratorConfig{DefaultTopK: 1})

	_, err := orch.Run(context.Background(), domain.RunRequest{
		DocumentURL: "https://example.com/policy.pdf",
		Questions:   []string{"grace period"},
	})

	require.NoError(t, err)
	assert.Equal(t, domain.DefaultNamespace, index.namespace)
	assert.Equal(t, "Context:\nbest\n\nQuestion: grace period", llm.messages[0][1].Content)
}

func TestOrchestrator_ReindexReplacesRecords(t *testing.T) {
	h := newHarness(t, pdfFetcher(policyText), OrchestratorConfig{})
	req := domain.RunRequest{DocumentURL: "https://example.com/policy.pdf", Questions: []string{"q"}}

	first, err := h.orch.Run(context.Background(), req)
	require.NoError(t, err)
	_, err = h.orch.Run(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.ChunkCount, h.index.Count(domain.DefaultNamespace))
}

func TestOrchestrator_PartialGenerationFailure(t *testing.T) {
	h := newHarness(t, pdfFetcher(policyText), OrchestratorConfig{})
	h.llm.failOn = map[string]bool{"Is dental covered?": true}

	res, err := h.orch.Run(context.Background(), domain.RunRequest{
		DocumentURL: "https://example.com/policy.pdf",
		Questions:   []string{"Is dental covered?", "What is the grace period?"},
	})

	require.NoError(t, err)
	assert.Equal(t, []string{
		domain.GenerationFailedAnswer,
		"answer: What is the grace period?",
	}, res.Answers)
}

func TestOrchestrator_NoContextAnswer(t *testing.T) {
	h := newHarness(t, pdfFetcher(policyText), OrchestratorConfig{})
	h.embedder.queryErr = domain.ErrEmbeddingFailed

	res, err := h.orch.Run(context.Background(), domain.RunRequest{
		DocumentURL: "https://example.com/policy.pdf",
		Questions:   []string{"anything"},
	})

	require.NoError(t, err)
	assert.Equal(t, []string{domain.NoContextAnswer}, res.Answers)
	assert.Zero(t, h.llm.callCount())
}

func TestOrchestrator_StageErrors(t *testing.T) {
	tests := []struct {
		name      string
		fetcher   *mockFetcher
		embedErr  error
		wantStage domain.Stage
		wantErr   error
		embedded  bool // whether the embedder is reached before the failure
	}{
		{
			name:      "download failure",
			fetcher:   &mockFetcher{err: fmt.Errorf("%w: status 404", domain.ErrDownloadFailed)},
			wantStage: domain.StageFetching,
			wantErr:   domain.ErrDownloadFailed,
		},
		{
			name: "unreadable pdf",
			fetcher: &mockFetcher{raw: &domain.RawDocument{
				Format:  domain.FormatPDF,
				Content: []byte("not a pdf"),
			}},
			wantStage: domain.StageExtracting,
			wantErr:   domain.ErrExtractionFailed,
		},
		{
			name:      "blank document",
			fetcher:   pdfFetcher("   "),
			wantStage: domain.StageChunking,
			wantErr:   domain.ErrEmptyDocument,
		},
		{
			name:      "embedding failure",
			fetcher:   pdfFetcher(policyText),
			embedErr:  domain.ErrEmbeddingFailed,
			wantStage: domain.StageEmbedding,
			wantErr:   domain.ErrEmbeddingFailed,
			embedded:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.fetcher, OrchestratorConfig{})
			h.embedder.err = tt.embedErr

			_, err := h.orch.Run(context.Background(), domain.RunRequest{
				DocumentURL: "https://example.com/doc.pdf",
				Questions:   []string{"q"},
			})

			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.wantStage, domain.FailedStage(err))
			assert.Zero(t, h.llm.callCount())
			assert.Zero(t, h.index.Count(domain.DefaultNamespace), "nothing may be upserted")
			if !tt.embedded {
				assert.Zero(t, h.embedder.calls.Load(), "embedder must not be called")
			}
		})
	}
}

func TestOrchestrator_IndexFailure(t *testing.T) {
	index := &mockIndex{upsertErr: fmt.Errorf("%w: connection refused", domain.ErrIndexUnavailable)}
	orch := NewOrchestrator(Dependencies{
		Fetcher:     pdfFetcher(policyText),
		Normalisers: normalisers.NewRegistry(pdf.New()),
		Chunker:     postprocessors.NewPipeline(chunker.New()),
		Embedder:    &hashEmbedder{dims: 8},
		Index:       index,
		LLM:         &mockLLM{},
	}, OrchestratorConfig{})

	_, err := orch.Run(context.Background(), domain.RunRequest{
		DocumentURL: "https://example.com/doc.pdf",
		Questions:   []string{"q"},
	})

	assert.ErrorIs(t, err, domain.ErrIndexUnavailable)
	assert.Equal(t, 1, index.upsertCalls)
	assert.Equal(t, domain.StageIndexing, domain.FailedStage(err))
}

func TestOrchestrator_RecordsCarryMetadata(t *testing.T) {
	index := &mockIndex{}
	orch := NewOrchestrator(Dependencies{
		Fetcher:     pdfFetcher(policyText),
		Normalisers: normalisers.NewRegistry(pdf.New()),
		Chunker:     postprocessors.NewPipeline(chunker.New(chunker.WithChunkSize(60), chunker.WithOverlap(5))),
		Embedder:    &hashEmbedder{dims: 8},
		Index:       index,
		LLM:         &mockLLM{},
	}, OrchestratorConfig{})

	_, err := orch.Run(context.Background(), domain.RunRequest{
		DocumentURL: "https://example.com/doc.pdf",
		Questions:   []string{"q"},
		Namespace:   "tenant-a",
	})

	require.NoError(t, err)
	assert.Equal(t, "tenant-a", index.namespace)
	require.NotEmpty(t, index.upserted)
	seen := make(map[string]bool)
	for i, rec := range index.upserted {
		assert.False(t, seen[rec.ID], "duplicate record id %s", rec.ID)
		seen[rec.ID] = true
		assert.Len(t, rec.Vector, 8)
		assert.NotEmpty(t, rec.Text)
		assert.Equal(t, "https://example.com/doc.pdf", rec.Metadata[domain.MetadataSourceURL])
		assert.Equal(t, i, rec.Metadata[domain.MetadataPosition])
	}
}

func TestOrchestrator_InvalidRequest(t *testing.T) {
	h := newHarness(t, pdfFetcher(policyText), OrchestratorConfig{MaxQuestions: 2})

	tests := []struct {
		name string
		req  domain.RunRequest
	}{
		{"missing document", domain.RunRequest{Questions: []string{"q"}}},
		{"no questions", domain.RunRequest{DocumentURL: "https://example.com/a.pdf"}},
		{"too many questions", domain.RunRequest{DocumentURL: "https://example.com/a.pdf", Questions: []string{"a", "b", "c"}}},
		{"blank question", domain.RunRequest{DocumentURL: "https://example.com/a.pdf", Questions: []string{" "}}},
		{"top_k too large", domain.RunRequest{DocumentURL: "https://example.com/a.pdf", Questions: []string{"q"}, TopK: 21}},
		{"negative top_k", domain.RunRequest{DocumentURL: "https://example.com/a.pdf", Questions: []string{"q"}, TopK: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.orch.Run(context.Background(), tt.req)
			assert.ErrorIs(t, err, domain.ErrInvalidRequest)
			assert.Equal(t, 0, h.index.Count(domain.DefaultNamespace))
		})
	}
}

func TestOrchestrator_CancelledDuringAnswering(t *testing.T) {
	h := newHarness(t, pdfFetcher(policyText), OrchestratorConfig{})
	h.llm.block = true
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		for h.llm.callCount() == 0 {
			time.Sleep(time.Millisecond)
		}
		cancel()
	}()

	_, err := h.orch.Run(ctx, domain.RunRequest{
		DocumentURL: "https://example.com/policy.pdf",
		Questions:   []string{"q1", "q2"},
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, domain.StageAnswering, domain.FailedStage(err))
}

func TestOrchestrator_BoundedConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	llm := &concurrencyLLM{inFlight: &inFlight, peak: &peak}
	index, err := memory.NewIndex(16)
	require.NoError(t, err)
	orch := NewOrchestrator(Dependencies{
		Fetcher:     pdfFetcher(policyText),
		Normalisers: normalisers.NewRegistry(pdf.New()),
		Chunker:     postprocessors.NewPipeline(chunker.New()),
		Embedder:    &hashEmbedder{dims: 16},
		Index:       index,
		LLM:         llm,
	}, OrchestratorConfig{Concurrency: 2})

	questions := make([]string, 8)
	for i := range questions {
		questions[i] = fmt.Sprintf("question %d about the grace period", i)
	}
	res, err := orch.Run(context.Background(), domain.RunRequest{
		DocumentURL: "https://example.com/policy.pdf",
		Questions:   questions,
	})

	require.NoError(t, err)
	assert.Len(t, res.Answers, 8)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

// concurrencyLLM records the peak number of concurrent Chat calls.
type concurrencyLLM struct {
	inFlight *atomic.Int32
	peak     *atomic.Int32
}

func (c *concurrencyLLM) Chat(_ context.Context, _ []driven.ChatMessage, _ driven.ChatOptions) (string, error) {
	n := c.inFlight.Add(1)
	defer c.inFlight.Add(-1)
	for {
		p := c.peak.Load()
		if n <= p || c.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(10 * time.Millisecond)
	return "ok", nil
}

func (c *concurrencyLLM) ModelName() string            { return "concurrency" }
func (c *concurrencyLLM) Ping(_ context.Context) error { return nil }
func (c *concurrencyLLM) Close() error                 { return nil }

// TestEndToEnd drives the real fetcher, extractors, chunker and memory
// index against an HTTP server.
func TestEndToEnd(t *testing.T) {
	doc := pdftest.Document(policyText)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/policy.pdf":
			w.Header().Set("Content-Type", "application/pdf")
			_, _ = w.Write(doc)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	index, err := memory.NewIndex(64)
	require.NoError(t, err)
	llm := &mockLLM{failOn: map[string]bool{"Is dental covered?": true}}
	orch := NewOrchestrator(Dependencies{
		Fetcher:     web.New(web.Config{MaxBytes: 1 << 20}),
		Normalisers: normalisers.NewRegistry(pdf.New(), docx.New(), eml.New()),
		Chunker:     postprocessors.NewPipeline(chunker.New(chunker.WithChunkSize(100), chunker.WithOverlap(20))),
		Embedder:    &hashEmbedder{dims: 64},
		Index:       index,
		LLM:         llm,
	}, OrchestratorConfig{MaxQuestions: 50})

	t.Run("answers in order with one failure", func(t *testing.T) {
		res, err := orch.Run(context.Background(), domain.RunRequest{
			DocumentURL: srv.URL + "/policy.pdf",
			Questions:   []string{"What is the grace period?", "Is dental covered?"},
			Namespace:   "e2e",
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"answer: What is the grace period?", domain.GenerationFailedAnswer}, res.Answers)
		assert.Equal(t, res.ChunkCount, index.Count("e2e"))
	})

	t.Run("missing document", func(t *testing.T) {
		_, err := orch.Run(context.Background(), domain.RunRequest{
			DocumentURL: srv.URL + "/missing.pdf",
			Questions:   []string{"q"},
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrDownloadFailed))
		assert.Equal(t, domain.StageFetching, domain.FailedStage(err))
		assert.Equal(t, http.StatusBadRequest, domain.HTTPStatus(err))
	})
}
