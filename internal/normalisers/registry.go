package normalisers

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

// Ensure Registry implements the interface.
var _ driven.NormaliserRegistry = (*Registry)(nil)

// Registry holds normalisers ordered by priority.
type Registry struct {
	mu          sync.RWMutex
	normalisers []driven.Normaliser
}

// NewRegistry creates a registry holding the given normalisers.
func NewRegistry(ns ...driven.Normaliser) *Registry {
	r := &Registry{}
	for _, n := range ns {
		r.Register(n)
	}
	return r
}

// Register adds a normaliser to the registry.
func (r *Registry) Register(n driven.Normaliser) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.normalisers = append(r.normalisers, n)
	sort.SliceStable(r.normalisers, func(i, j int) bool {
		return r.normalisers[i].Priority() > r.normalisers[j].Priority()
	})
}

// Normalise transforms a raw document using the best matching normaliser.
// A normaliser matches on the classified format first, then on MIME type.
func (r *Registry) Normalise(ctx context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, fmt.Errorf("%w: nil document", domain.ErrInvalidRequest)
	}

	n := r.find(raw)
	if n == nil {
		return nil, fmt.Errorf("%w: no normaliser for %q", domain.ErrUnsupportedFormat, raw.Format)
	}
	return n.Normalise(ctx, raw)
}

func (r *Registry) find(raw *domain.RawDocument) driven.Normaliser {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if raw.Format != "" {
		for _, n := range r.normalisers {
			for _, f := range n.SupportedFormats() {
				if f == raw.Format {
					return n
				}
			}
		}
	}
	if raw.MIMEType != "" {
		for _, n := range r.normalisers {
			for _, m := range n.SupportedMIMETypes() {
				if m == raw.MIMEType {
					return n
				}
			}
		}
	}
	return nil
}

// SupportedMIMETypes returns all MIME types that can be normalised.
func (r *Registry) SupportedMIMETypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool)
	var types []string
	for _, n := range r.normalisers {
		for _, m := range n.SupportedMIMETypes() {
			if !seen[m] {
				seen[m] = true
				types = append(types, m)
			}
		}
	}
	return types
}
