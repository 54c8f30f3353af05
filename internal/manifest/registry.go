package manifest

import (
	"sync"

	"github.com/roach88/adjudicator"
)

// Registry binds manifest names to runtime artifacts: type names to Type
// descriptors, rule IDs to bodies. Applications populate it during init and
// hand it to Manifest.Bind.
//
// Safe for concurrent use; registration is expected during setup.
type Registry struct {
	mu     sync.RWMutex
	types  map[string]adjudicator.Type
	bodies map[string]adjudicator.Body
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		types:  make(map[string]adjudicator.Type),
		bodies: make(map[string]adjudicator.Body),
	}
}

// RegisterType binds a manifest type name to a descriptor, replacing any
// previous binding.
func (r *Registry) RegisterType(name string, t adjudicator.Type) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[name] = t
}

// RegisterTypeOf binds a manifest type name to the Go type T.
func RegisterTypeOf[T any](r *Registry, name string) {
	r.RegisterType(name, adjudicator.TypeOf[T]())
}

// RegisterBody binds a rule ID to its executable body, replacing any
// previous binding.
func (r *Registry) RegisterBody(id string, body adjudicator.Body) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bodies[id] = body
}

// Type looks up the descriptor bound to name.
func (r *Registry) Type(name string) (adjudicator.Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[name]
	return t, ok
}

// Body looks up the body bound to a rule ID.
func (r *Registry) Body(id string) (adjudicator.Body, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.bodies[id]
	return b, ok
}
