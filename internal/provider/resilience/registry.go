package resilience

import (
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sony/gobreaker/v2"
)

// BreakerState is implemented by anything that reports circuit breaker state.
type BreakerState interface {
	State() gobreaker.State
	Counts() gobreaker.Counts
}

// SourceHealth represents the health status of a forecast source.
type SourceHealth struct {
	// Name is the source identifier.
	Name string

	// CircuitState is the current circuit breaker state.
	CircuitState gobreaker.State

	// Counts contains circuit breaker statistics.
	Counts gobreaker.Counts

	// LastSuccessAt is the timestamp of the last successful fetch.
	LastSuccessAt *time.Time

	// LastFailureAt is the timestamp of the last failed fetch.
	LastFailureAt *time.Time

	// LastError is the most recent error message, if any.
	LastError string
}

// IsHealthy returns true if the source is considered healthy.
func (h *SourceHealth) IsHealthy() bool {
	return h.CircuitState == gobreaker.StateClosed
}

// IsDegraded returns true if the source is in a degraded state (half-open).
func (h *SourceHealth) IsDegraded() bool {
	return h.CircuitState == gobreaker.StateHalfOpen
}

// IsUnhealthy returns true if the source is unhealthy (circuit open).
func (h *SourceHealth) IsUnhealthy() bool {
	return h.CircuitState == gobreaker.StateOpen
}

// Registry tracks forecast sources and their health status. It is safe for
// concurrent use: the tick loop records outcomes while the status server reads.
type Registry struct {
	mu      sync.RWMutex
	clock   clockwork.Clock
	sources map[string]*registeredSource
}

type registeredSource struct {
	breaker       BreakerState
	lastSuccessAt *time.Time
	lastFailureAt *time.Time
	lastError     string
}

// NewRegistry creates a new source registry. A nil clock uses the real clock.
func NewRegistry(clock clockwork.Clock) *Registry {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Registry{
		clock:   clock,
		sources: make(map[string]*registeredSource),
	}
}

// Register adds a source and its breaker to the registry.
func (r *Registry) Register(name string, breaker BreakerState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[name] = &registeredSource{
		breaker: breaker,
	}
}

// RecordSuccess records a successful fetch for a source.
func (r *Registry) RecordSuccess(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sources[name]; ok {
		now := r.clock.Now()
		s.lastSuccessAt = &now
	}
}

// RecordFailure records a failed fetch for a source.
func (r *Registry) RecordFailure(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sources[name]; ok {
		now := r.clock.Now()
		s.lastFailureAt = &now
		if err != nil {
			s.lastError = err.Error()
		}
	}
}

// GetHealth returns the health status of a specific source.
func (r *Registry) GetHealth(name string) *SourceHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sources[name]
	if !ok {
		return nil
	}
	return s.health(name)
}

// GetAllHealth returns the health status of all registered sources sorted by name.
func (r *Registry) GetAllHealth() []*SourceHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	health := make([]*SourceHealth, 0, len(r.sources))
	for name, s := range r.sources {
		health = append(health, s.health(name))
	}
	sort.Slice(health, func(i, j int) bool { return health[i].Name < health[j].Name })

	return health
}

func (s *registeredSource) health(name string) *SourceHealth {
	h := &SourceHealth{
		Name:      name,
		LastError: s.lastError,
	}
	if s.breaker != nil {
		h.CircuitState = s.breaker.State()
		h.Counts = s.breaker.Counts()
	}
	if s.lastSuccessAt != nil {
		t := *s.lastSuccessAt
		h.LastSuccessAt = &t
	}
	if s.lastFailureAt != nil {
		t := *s.lastFailureAt
		h.LastFailureAt = &t
	}
	return h
}
