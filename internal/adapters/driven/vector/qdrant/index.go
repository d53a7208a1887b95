// Package qdrant provides a vector index adapter for the Qdrant REST API.
//
// All namespaces share one collection. Each point carries its namespace in
// the payload and every search applies a must-match filter on it.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/docqa/internal/adapters/driven/vector"
	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/logger"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// Default configuration values.
const (
	DefaultURL        = "http://localhost:6333"
	DefaultCollection = "docqa"
	DefaultTimeout    = 30 * time.Second
)

// Reserved payload keys.
const (
	payloadNamespace = "namespace"
	payloadRecordID  = "record_id"
)

// Config holds configuration for the Qdrant index.
type Config struct {
	// URL is the REST endpoint (default: http://localhost:6333).
	URL string

	// APIKey is sent as the api-key header when set.
	APIKey string

	// Collection is the collection name (default: docqa).
	Collection string

	// Dimensions is the vector size (required).
	Dimensions int

	// MinScore is passed to Qdrant as score_threshold when positive.
	MinScore float64

	// Timeout is the per-request timeout (default: 30s).
	Timeout time.Duration
}

// Index is a Qdrant-backed vector index.
type Index struct {
	client     *http.Client
	baseURL    string
	apiKey     string
	collection string
	dimensions int
	minScore   float64
}

// statusError is a non-2xx Qdrant response.
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("qdrant status %d: %s", e.status, e.body)
}

// NewIndex creates a client. It does not contact the server; call Init.
func NewIndex(cfg Config) (*Index, error) {
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("%w: qdrant: dimensions must be positive", domain.ErrInvalidConfig)
	}
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if _, err := url.ParseRequestURI(cfg.URL); err != nil {
		return nil, fmt.Errorf("%w: qdrant: invalid url %q", domain.ErrInvalidConfig, cfg.URL)
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Index{
		client:     &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		dimensions: cfg.Dimensions,
		minScore:   cfg.MinScore,
	}, nil
}

// Init creates the collection with cosine distance, or verifies that an
// existing collection has the configured vector size.
func (i *Index) Init(ctx context.Context) error {
	data, err := i.do(ctx, http.MethodGet, i.collectionPath(""), nil)
	if err == nil {
		return i.checkCollection(data)
	}

	var se *statusError
	if !errors.As(err, &se) || se.status != http.StatusNotFound {
		return fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, err)
	}

	logger.Info("Creating qdrant collection %s (%d dimensions)", i.collection, i.dimensions)
	create := map[string]any{
		"vectors": map[string]any{
			"size":     i.dimensions,
			"distance": "Cosine",
		},
	}
	if _, err := i.do(ctx, http.MethodPut, i.collectionPath(""), create); err != nil {
		return fmt.Errorf("%w: creating collection: %v", domain.ErrIndexUnavailable, err)
	}

	fieldIndex := map[string]any{
		"field_name":   payloadNamespace,
		"field_schema": "keyword",
	}
	if _, err := i.do(ctx, http.MethodPut, i.collectionPath("/index?wait=true"), fieldIndex); err != nil {
		return fmt.Errorf("%w: creating namespace index: %v", domain.ErrIndexUnavailable, err)
	}
	return nil
}

func (i *Index) checkCollection(data []byte) error {
	var info struct {
		Result struct {
			Config struct {
				Params struct {
					Vectors struct {
						Size     int    `json:"size"`
						Distance string `json:"distance"`
					} `json:"vectors"`
				} `json:"params"`
			} `json:"config"`
		} `json:"result"`
	}
	if err := json.Unmarshal(data, &info); err != nil {
		return fmt.Errorf("%w: decoding collection info: %v", domain.ErrIndexUnavailable, err)
	}

	vectors := info.Result.Config.Params.Vectors
	if vectors.Size != i.dimensions {
		return fmt.Errorf("%w: collection %s has %d dimensions, embedder produces %d",
			domain.ErrDimensionMismatch, i.collection, vectors.Size, i.dimensions)
	}
	if vectors.Distance != "" && !strings.EqualFold(vectors.Distance, "Cosine") {
		logger.Warn("qdrant collection %s uses %s distance, scores are not cosine", i.collection, vectors.Distance)
	}
	return nil
}

// Upsert writes all records and waits for Qdrant to apply them.
func (i *Index) Upsert(ctx context.Context, namespace string, records []domain.IndexRecord) error {
	if err := vector.CheckNamespace(namespace); err != nil {
		return err
	}
	prepared, err := vector.PrepareRecords(records, i.dimensions)
	if err != nil {
		return err
	}
	if len(prepared) == 0 {
		return nil
	}

	points := make([]map[string]any, 0, len(prepared))
	for _, rec := range prepared {
		payload := vector.CopyMetadata(rec.Metadata)
		payload[domain.MetadataText] = rec.Text
		payload[payloadNamespace] = namespace
		payload[payloadRecordID] = rec.ID
		points = append(points, map[string]any{
			"id":      pointID(namespace, rec.ID),
			"vector":  rec.Vector,
			"payload": payload,
		})
	}

	if _, err := i.do(ctx, http.MethodPut, i.collectionPath("/points?wait=true"), map[string]any{"points": points}); err != nil {
		return fmt.Errorf("%w: upsert: %v", domain.ErrIndexUnavailable, err)
	}
	return nil
}

// Query searches the namespace for the nearest records.
func (i *Index) Query(ctx context.Context, namespace string, vec []float32, topK int) ([]domain.ScoredRecord, error) {
	if err := vector.CheckVector(vec, i.dimensions); err != nil {
		return nil, err
	}
	if topK <= 0 {
		return []domain.ScoredRecord{}, nil
	}

	req := map[string]any{
		"vector":       vec,
		"limit":        topK,
		"with_payload": true,
		"filter": map[string]any{
			"must": []map[string]any{{
				"key":   payloadNamespace,
				"match": map[string]any{"value": namespace},
			}},
		},
	}
	if i.minScore > 0 {
		req["score_threshold"] = i.minScore
	}

	data, err := i.do(ctx, http.MethodPost, i.collectionPath("/points/search"), req)
	if err != nil {
		return nil, fmt.Errorf("%w: search: %v", domain.ErrIndexUnavailable, err)
	}

	var parsed struct {
		Result []struct {
			ID      any            `json:"id"`
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("%w: decoding search response: %v", domain.ErrIndexUnavailable, err)
	}

	matches := make([]domain.ScoredRecord, 0, len(parsed.Result))
	for _, item := range parsed.Result {
		if ns, _ := item.Payload[payloadNamespace].(string); ns != namespace {
			logger.Warn("qdrant returned point %v outside namespace %q, dropping", item.ID, namespace)
			continue
		}
		matches = append(matches, domain.ScoredRecord{
			Record: recordFromPayload(fmt.Sprintf("%v", item.ID), item.Payload),
			Score:  item.Score,
		})
	}
	return vector.TopK(matches, topK, i.minScore), nil
}

// recordFromPayload rebuilds an IndexRecord, preferring the caller's
// original ID over the Qdrant point ID.
func recordFromPayload(id string, payload map[string]any) domain.IndexRecord {
	rec := domain.IndexRecord{ID: id, Metadata: make(map[string]any, len(payload))}
	for k, v := range payload {
		switch k {
		case payloadNamespace:
		case payloadRecordID:
			if s, ok := v.(string); ok && s != "" {
				rec.ID = s
			}
		default:
			rec.Metadata[k] = v
		}
	}
	rec.Text, _ = payload[domain.MetadataText].(string)
	return rec
}

// pointID derives the Qdrant point ID as a UUIDv5 of namespace and id, so
// equal record IDs in different namespaces never share a point. The
// record ID itself is kept in the payload.
func pointID(namespace, id string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(namespace+"/"+id)).String()
}

// Dimensions returns the accepted vector size.
func (i *Index) Dimensions() int { return i.dimensions }

// Ping lists collections to verify connectivity and credentials.
func (i *Index) Ping(ctx context.Context) error {
	if _, err := i.do(ctx, http.MethodGet, "/collections", nil); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, err)
	}
	return nil
}

// Close releases idle connections.
func (i *Index) Close() error {
	i.client.CloseIdleConnections()
	return nil
}

func (i *Index) collectionPath(suffix string) string {
	return "/collections/" + url.PathEscape(i.collection) + suffix
}

func (i *Index) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	var buf io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		buf = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, i.baseURL+path, buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if i.apiKey != "" {
		req.Header.Set("api-key", i.apiKey)
	}

	resp, err := i.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &statusError{status: resp.StatusCode, body: strings.TrimSpace(string(data))}
	}
	return data, nil
}
