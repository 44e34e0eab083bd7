package platform

import (
	"sort"

	"socialhub/aggregator/internal/models"
)

// Registry maps platform identifiers to their adapters. Fan-out code selects
// an adapter by lookup instead of branching on the platform at call sites.
type Registry struct {
	adapters map[models.Platform]Adapter
}

// NewRegistry builds a registry from the given adapters. A later adapter for
// the same platform replaces an earlier one.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[models.Platform]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Platform()] = a
	}
	return r
}

// Register adds or replaces the adapter for its platform.
func (r *Registry) Register(a Adapter) {
	r.adapters[a.Platform()] = a
}

// Lookup returns the adapter for a platform, if one is registered.
func (r *Registry) Lookup(p models.Platform) (Adapter, bool) {
	a, ok := r.adapters[p]
	return a, ok
}

// Platforms returns the registered platform identifiers in stable order.
func (r *Registry) Platforms() []models.Platform {
	out := make([]models.Platform, 0, len(r.adapters))
	for p := range r.adapters {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
