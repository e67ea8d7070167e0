package resilience

import "sync"

// Registry holds one circuit breaker per remote service name. It is built
// once at startup and handed to whoever makes outbound calls, so breaker
// state is shared across all concurrent requests without package globals.
type Registry struct {
	mu       sync.Mutex
	breakers map[string]*CircuitBreaker
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{breakers: make(map[string]*CircuitBreaker)}
}

// Add registers a breaker for the named remote service. Adding a name twice
// keeps the first breaker so shared state is never silently split.
func (r *Registry) Add(name string, cfg BreakerConfig) *CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.breakers[name]; ok {
		return existing
	}
	cfg.Name = name
	breaker := NewCircuitBreaker(cfg)
	r.breakers[name] = breaker
	return breaker
}

// Breaker returns the breaker for the named remote service, if registered.
func (r *Registry) Breaker(name string) (*CircuitBreaker, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	breaker, ok := r.breakers[name]
	return breaker, ok
}

// States returns a snapshot of breaker states keyed by service name.
func (r *Registry) States() map[string]State {
	r.mu.Lock()
	defer r.mu.Unlock()

	states := make(map[string]State, len(r.breakers))
	for name, breaker := range r.breakers {
		states[name] = breaker.State()
	}
	return states
}
