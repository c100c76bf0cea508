package registry

import (
	"time"

	"routerd/pkg/types"
)

// Backend is the immutable description of one configured backend. It is
// created at startup from configuration and never mutated afterwards; all
// runtime state (health, load, metrics) lives elsewhere, keyed by Name.
type Backend struct {
	Name           string
	Kind           string
	BaseURL        string
	APIKey         string
	Models         map[types.TaskType]string
	MaxConcurrent  int
	Timeout        time.Duration
	Priority       int
	Enabled        bool
	HealthEndpoint string
}

// ModelFor resolves the model identifier for a task type.
func (b *Backend) ModelFor(task types.TaskType) (string, bool) {
	m, ok := b.Models[task]
	return m, ok
}

// Supports reports whether the backend maps the given task type.
func (b *Backend) Supports(task types.TaskType) bool {
	_, ok := b.Models[task]
	return ok
}

// Registry holds registered backends in registration order. Registration
// happens once at startup; reads afterwards need no locking.
type Registry struct {
	backends []*Backend
	byName   map[string]*Backend
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{byName: make(map[string]*Backend)}
}

// Register adds a backend. It fails when the name is already taken, when the
// task-type mapping is empty, or when the mapping names an unknown task type.
func (r *Registry) Register(b *Backend) error {
	if b.Name == "" {
		return configError{msg: "backend name is required"}
	}
	if _, dup := r.byName[b.Name]; dup {
		return configError{msg: "backend already registered: " + b.Name}
	}
	if len(b.Models) == 0 {
		return configError{msg: "backend " + b.Name + " maps no task types"}
	}
	for task := range b.Models {
		if !task.Valid() {
			return configError{msg: "backend " + b.Name + " maps unknown task type: " + string(task)}
		}
	}
	r.byName[b.Name] = b
	r.backends = append(r.backends, b)
	return nil
}

// Get returns the backend with the given name, or nil.
func (r *Registry) Get(name string) *Backend {
	return r.byName[name]
}

// Len returns the number of registered backends.
func (r *Registry) Len() int { return len(r.backends) }

// Names returns all backend names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.backends))
	for _, b := range r.backends {
		out = append(out, b.Name)
	}
	return out
}

// All returns every registered backend in registration order.
func (r *Registry) All() []*Backend {
	out := make([]*Backend, len(r.backends))
	copy(out, r.backends)
	return out
}

// ListEligible returns all enabled backends whose task-type mapping contains
// task, in registration order. Order matters only for determinism.
func (r *Registry) ListEligible(task types.TaskType) []*Backend {
	var out []*Backend
	for _, b := range r.backends {
		if b.Enabled && b.Supports(task) {
			out = append(out, b)
		}
	}
	return out
}
