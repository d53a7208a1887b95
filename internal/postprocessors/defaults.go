package postprocessors

import (
	"fmt"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/postprocessors/chunker"
)

// RegisterDefaults registers the built-in processors.
func RegisterDefaults(r *Registry) {
	r.Register("chunker", buildChunker)
}

// BuildPipeline constructs the processors named in cfg, in order.
func BuildPipeline(r *Registry, cfg domain.PipelineConfig) (*Pipeline, error) {
	if len(cfg.Processors) == 0 {
		return nil, fmt.Errorf("%w: pipeline has no processors", domain.ErrInvalidConfig)
	}

	p := NewPipeline()
	for _, name := range cfg.Processors {
		proc, err := r.Build(name, cfg.GetProcessorConfig(name))
		if err != nil {
			return nil, fmt.Errorf("building %s: %w", name, err)
		}
		p.Add(proc)
	}
	return p, nil
}

// buildChunker reads chunk_size and overlap, both in runes. Missing or
// out-of-range values keep the chunker defaults.
func buildChunker(cfg map[string]any) (driven.PostProcessor, error) {
	var opts []chunker.Option

	if size, ok := getIntFromConfig(cfg, "chunk_size"); ok && size > 0 {
		opts = append(opts, chunker.WithChunkSize(size))
	}
	if overlap, ok := getIntFromConfig(cfg, "overlap"); ok && overlap >= 0 {
		opts = append(opts, chunker.WithOverlap(overlap))
	}

	return chunker.New(opts...), nil
}

// getIntFromConfig reads an integer that may have been decoded as int,
// int64 or float64.
func getIntFromConfig(cfg map[string]any, key string) (int, bool) {
	val, ok := cfg[key]
	if !ok {
		return 0, false
	}

	switch v := val.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
