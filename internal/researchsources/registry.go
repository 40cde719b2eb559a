package researchsources

import (
	"sort"
	"sync"

	"github.com/helixir/researcher-lookup-service/internal/domain"
)

// Registry holds the configured researcher sources keyed by type.
// It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	sources map[domain.SourceType]ResearcherSource
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sources: make(map[domain.SourceType]ResearcherSource),
	}
}

// Register adds a source, replacing any source of the same type.
func (r *Registry) Register(source ResearcherSource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[source.SourceType()] = source
}

// Get returns the source of the given type, or nil if none is registered.
func (r *Registry) Get(sourceType domain.SourceType) ResearcherSource {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sources[sourceType]
}

// Enabled returns the registered source of the given type if it is enabled.
func (r *Registry) Enabled(sourceType domain.SourceType) (ResearcherSource, bool) {
	source := r.Get(sourceType)
	if source == nil || !source.IsEnabled() {
		return nil, false
	}
	return source, true
}

// AllSources returns a snapshot of all registered sources ordered by type.
func (r *Registry) AllSources() []ResearcherSource {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sources := make([]ResearcherSource, 0, len(r.sources))
	for _, source := range r.sources {
		sources = append(sources, source)
	}
	sort.Slice(sources, func(i, j int) bool {
		return sources[i].SourceType() < sources[j].SourceType()
	})
	return sources
}
