package postprocessors

import (
	"fmt"
	"slices"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

// BuilderFunc creates a PostProcessor from its config section.
type BuilderFunc func(cfg map[string]any) (driven.PostProcessor, error)

// Registry maps processor names to builders so the chunking pipeline can
// be assembled from settings.
type Registry struct {
	builders map[string]BuilderFunc
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{builders: make(map[string]BuilderFunc)}
}

// Register adds or replaces the builder for name.
func (r *Registry) Register(name string, builder BuilderFunc) {
	r.builders[name] = builder
}

// Build creates the processor registered as name.
func (r *Registry) Build(name string, cfg map[string]any) (driven.PostProcessor, error) {
	builder, ok := r.builders[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown processor %q (registered: %v)", domain.ErrInvalidConfig, name, r.Names())
	}
	return builder(cfg)
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.builders[name]
	return ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.builders))
	for name := range r.builders {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
