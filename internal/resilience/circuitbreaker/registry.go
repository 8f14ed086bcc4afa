package circuitbreaker

import "sync"

// Registry owns one circuit breaker per upstream target. It is constructed
// once at process start by the composition root and handed to every component
// that makes outbound calls, so breaker state is shared per target without
// hidden package-level globals.
type Registry struct {
	mu       sync.Mutex
	breakers map[string]*CircuitBreaker
	defaults Config
}

// NewRegistry creates a registry. The defaults configuration is used as a
// template for targets that were not registered explicitly; its Name field
// is replaced by the target name.
func NewRegistry(defaults Config) *Registry {
	return &Registry{
		breakers: make(map[string]*CircuitBreaker),
		defaults: defaults,
	}
}

// Register creates and stores a breaker under its configured name.
func (r *Registry) Register(cfg Config) (*CircuitBreaker, error) {
	cb, err := New(cfg)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.breakers[cfg.Name] = cb
	return cb, nil
}

// Get returns the breaker for the given target, creating one from the
// default template on first use.
func (r *Registry) Get(target string) (*CircuitBreaker, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[target]; ok {
		return cb, nil
	}
	cfg := r.defaults
	cfg.Name = target
	cb, err := New(cfg)
	if err != nil {
		return nil, err
	}
	r.breakers[target] = cb
	return cb, nil
}

// Snapshots returns diagnostics for every registered breaker, keyed by target.
func (r *Registry) Snapshots() map[string]Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]Snapshot, len(r.breakers))
	for name, cb := range r.breakers {
		out[name] = cb.GetState()
	}
	return out
}
