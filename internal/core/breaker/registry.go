package breaker

import (
	"sync"

	"github.com/webhookd/engine/pkg/types/common"
)

// Registry maps configuration ids to their breakers; the map is guarded by
// its own mutex while each Breaker carries per-entry internal locking. One
// Breaker is created lazily on first use and lives for the process lifetime
// of the Dispatcher.
type Registry struct {
	params Params

	mu       sync.Mutex
	breakers map[common.ID]*Breaker
}

// NewRegistry constructs a Registry that creates every breaker with the same
// process-wide Params.
func NewRegistry(params Params) *Registry {
	return &Registry{
		params:   params,
		breakers: make(map[common.ID]*Breaker),
	}
}

// UpdateParams replaces the Params used for breakers created after this
// call. Existing breakers keep the parameters they were built with; they are
// replaced naturally as configurations are deleted and recreated.
func (r *Registry) UpdateParams(params Params) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.params = params
}

// Get returns the Breaker for id, creating it in the CLOSED state on first use.
func (r *Registry) Get(id common.ID) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.breakers[id]
	if !ok {
		b = New(r.params)
		r.breakers[id] = b
	}
	return b
}
