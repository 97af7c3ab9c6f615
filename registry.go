package socketio

import "sync"

// Registry maps namespace paths to Namespaces. The default namespace,
// keyed by the empty path, is created with the Registry and is never
// removed; every other namespace is created by Define and torn
// down when the server sends a Disconnect for its path.
type Registry struct {
	mu         sync.RWMutex
	namespaces map[string]*Namespace
}

// NewRegistry returns a Registry containing only the default namespace.
func NewRegistry() *Registry {
	r := &Registry{namespaces: make(map[string]*Namespace)}
	r.namespaces[""] = NewNamespace("")
	return r
}

// Define returns the Namespace for path, creating it if this is the
// first reference.
func (r *Registry) Define(path string) *Namespace {
	r.mu.Lock()
	defer r.mu.Unlock()
	ns, ok := r.namespaces[path]
	if !ok {
		ns = NewNamespace(path)
		r.namespaces[path] = ns
	}
	return ns
}

// Lookup returns the Namespace for path and whether it exists, without
// creating one.
func (r *Registry) Lookup(path string) (*Namespace, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ns, ok := r.namespaces[path]
	return ns, ok
}

// Remove deletes path from the registry. The default namespace is never
// removed, matching the dispatch rule that a Disconnect for "" doesn't
// tear anything down.
func (r *Registry) Remove(path string) {
	if path == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.namespaces, path)
}

// Paths returns every currently defined namespace path, default included.
func (r *Registry) Paths() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	paths := make([]string, 0, len(r.namespaces))
	for path := range r.namespaces {
		paths = append(paths, path)
	}
	return paths
}

// All returns every currently defined Namespace.
func (r *Registry) All() []*Namespace {
	r.mu.RLock()
	defer r.mu.RUnlock()
	namespaces := make([]*Namespace, 0, len(r.namespaces))
	for _, ns := range r.namespaces {
		namespaces = append(namespaces, ns)
	}
	return namespaces
}
