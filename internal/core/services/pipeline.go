package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/core/ports/driving"
	"github.com/custodia-labs/docqa/internal/logger"
)

// Ensure Orchestrator implements the interfaces.
var (
	_ driving.QAService       = (*Orchestrator)(nil)
	_ driven.PromptStoreAware = (*Orchestrator)(nil)
)

// OrchestratorConfig holds request limits and answering concurrency.
type OrchestratorConfig struct {
	// MaxQuestions caps the questions per request. Zero disables the cap.
	MaxQuestions int

	// Concurrency is the number of questions answered in parallel (default: 4).
	Concurrency int

	// DefaultTopK applies when a request omits top_k (default: 3).
	DefaultTopK int

	// Answer configures the model call for each question.
	Answer AnswerConfig
}

// Dependencies are the driven ports the pipeline runs on.
type Dependencies struct {
	Fetcher     driven.Fetcher
	Normalisers driven.NormaliserRegistry
	Chunker     driven.PostProcessorPipeline
	Embedder    driven.EmbeddingService
	Index       driven.VectorIndex
	LLM         driven.LLMService
}

// Orchestrator runs fetch, extract, chunk, embed, index and answer for
// one request.
type Orchestrator struct {
	deps      Dependencies
	cfg       OrchestratorConfig
	retriever *Retriever
	answerer  *AnswerGenerator
}

// NewOrchestrator creates the pipeline. Zero config values use the defaults.
func NewOrchestrator(deps Dependencies, cfg OrchestratorConfig) *Orchestrator {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = domain.DefaultAnswerConcurrency
	}
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = domain.DefaultTopK
	}
	return &Orchestrator{
		deps:      deps,
		cfg:       cfg,
		retriever: NewRetriever(deps.Embedder, deps.Index),
		answerer:  NewAnswerGenerator(deps.LLM, cfg.Answer),
	}
}

// SetPromptStore sets the prompt store used for answering.
func (o *Orchestrator) SetPromptStore(store driven.PromptStore) {
	o.answerer.SetPromptStore(store)
}

// Run indexes the request's document and answers every question.
// Answers are returned in question order. The document is fully indexed
// before any question is answered.
func (o *Orchestrator) Run(ctx context.Context, req domain.RunRequest) (*domain.RunResult, error) {
	if req.TopK == 0 {
		req.TopK = o.cfg.DefaultTopK
	}
	req = req.WithDefaults()
	if err := req.Validate(o.cfg.MaxQuestions); err != nil {
		return nil, err
	}

	r := &run{id: uuid.NewString(), req: req, start: time.Now()}
	logger.Info("run %s: namespace=%s questions=%d top_k=%d document=%s",
		r.id, req.Namespace, len(req.Questions), req.TopK, req.DocumentURL)

	count, err := o.ingest(ctx, r)
	if err != nil {
		logger.Warn("run %s: %s failed after %s: %v", r.id, domain.FailedStage(err), r.elapsed(), err)
		return nil, err
	}

	answers, err := o.answerAll(ctx, r)
	if err != nil {
		logger.Warn("run %s: answering failed after %s: %v", r.id, r.elapsed(), err)
		return nil, err
	}

	r.stage(domain.StageDone)
	logger.Info("run %s: done in %s", r.id, r.elapsed())
	return &domain.RunResult{
		Answers:    answers,
		ChunkCount: count,
		Latency:    time.Since(r.start),
	}, nil
}

// run carries per-request logging state.
type run struct {
	id        string
	req       domain.RunRequest
	start     time.Time
	stageFrom time.Time
	current   domain.Stage
}

func (r *run) stage(s domain.Stage) {
	now := time.Now()
	if r.current != "" {
		logger.Debug("run %s: %s took %s", r.id, r.current, now.Sub(r.stageFrom).Round(time.Millisecond))
	}
	r.current, r.stageFrom = s, now
	logger.Debug("run %s: stage %s", r.id, s)
}

func (r *run) fail(err error) error {
	return &domain.StageError{Stage: r.current, Err: err}
}

func (r *run) elapsed() time.Duration {
	return time.Since(r.start).Round(time.Millisecond)
}

// ingest fetches, extracts, chunks, embeds and upserts the document and
// returns the number of chunks indexed.
func (o *Orchestrator) ingest(ctx context.Context, r *run) (int, error) {
	r.stage(domain.StageFetching)
	raw, err := o.deps.Fetcher.Fetch(ctx, r.req.DocumentURL)
	if err != nil {
		return 0, r.fail(err)
	}
	logger.Info("run %s: fetched %d bytes (%s)", r.id, len(raw.Content), raw.Format)

	r.stage(domain.StageExtracting)
	result, err := o.deps.Normalisers.Normalise(ctx, raw)
	if err != nil {
		return 0, r.fail(err)
	}
	doc := result.Document

	r.stage(domain.StageChunking)
	if strings.TrimSpace(doc.Content) == "" {
		return 0, r.fail(domain.ErrEmptyDocument)
	}
	chunks, err := o.deps.Chunker.Process(ctx, &doc)
	if err != nil {
		return 0, r.fail(err)
	}
	if len(chunks) == 0 {
		return 0, r.fail(domain.ErrEmptyDocument)
	}
	logger.Info("run %s: %d chars in %d chunks", r.id, len([]rune(doc.Content)), len(chunks))

	r.stage(domain.StageEmbedding)
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := o.deps.Embedder.EmbedBatch(ctx, texts, domain.TaskDocument)
	if err != nil {
		return 0, r.fail(err)
	}
	if len(vectors) != len(chunks) {
		return 0, r.fail(fmt.Errorf("%w: got %d vectors for %d chunks",
			domain.ErrEmbeddingFailed, len(vectors), len(chunks)))
	}

	r.stage(domain.StageIndexing)
	records := make([]domain.IndexRecord, len(chunks))
	for i, c := range chunks {
		records[i] = domain.IndexRecord{
			ID:     chunkRecordID(r.req.DocumentURL, c.Position),
			Vector: vectors[i],
			Text:   c.Content,
			Metadata: map[string]any{
				domain.MetadataSourceURL:  r.req.DocumentURL,
				domain.MetadataPosition:   c.Position,
				domain.MetadataDocumentID: doc.ID,
			},
		}
	}
	if err := o.deps.Index.Upsert(ctx, r.req.Namespace, records); err != nil {
		return 0, r.fail(err)
	}
	return len(records), nil
}

// answerAll answers questions on a bounded worker pool. A failed question
// gets the placeholder answer; only cancellation fails the whole stage.
func (o *Orchestrator) answerAll(ctx context.Context, r *run) ([]string, error) {
	r.stage(domain.StageAnswering)
	answers := make([]string, len(r.req.Questions))

	var g errgroup.Group
	g.SetLimit(o.cfg.Concurrency)
	for i, q := range r.req.Questions {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			chunks := o.retriever.Retrieve(ctx, q, r.req.Namespace, r.req.TopK)
			answer, err := o.answerer.Answer(ctx, q, chunks)
			if err != nil {
				logger.Warn("run %s: question %d: %v", r.id, i+1, err)
				answer = domain.GenerationFailedAnswer
			}
			answers[i] = answer
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, r.fail(err)
	}
	return answers, nil
}

// chunkRecordID derives a stable record ID from the document URL and
// chunk position, so re-indexing a document replaces its records.
func chunkRecordID(documentURL string, position int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, fmt.Appendf(nil, "%s#%d", documentURL, position)).String()
}
