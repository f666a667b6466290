package telemetry

import "sync"

// Registry is the process-wide set of live Providers. A provider
// registers on construction and deregisters on destruction; the
// collector locks the registry for the duration of a sampling pass so
// the provider set cannot change mid-collection. Grounded on
// telemetry::Registry (metrics.cc), a mutex-guarded provider list.
type Registry struct {
	mu        sync.Mutex
	providers map[Provider]struct{}
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[Provider]struct{})}
}

// Register adds p to the provider set. Safe to call more than once for
// the same provider; subsequent calls are no-ops.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p] = struct{}{}
}

// Unregister removes p from the provider set.
func (r *Registry) Unregister(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.providers, p)
}

// Lock and Unlock expose the registry's mutex directly so the collector
// can take it after the local-manager lock, per the fixed lock order
// §4.10 requires (local-manager lock, then registry lock).
func (r *Registry) Lock()   { r.mu.Lock() }
func (r *Registry) Unlock() { r.mu.Unlock() }

// Snapshot returns the currently registered providers. Must be called
// while the registry is locked.
func (r *Registry) Snapshot() []Provider {
	out := make([]Provider, 0, len(r.providers))
	for p := range r.providers {
		out = append(out, p)
	}
	return out
}

// Len reports the number of registered providers. Mainly for tests.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.providers)
}
