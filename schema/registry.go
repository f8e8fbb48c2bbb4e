package schema

import (
	"sort"
	"sync"

	"github.com/parquedb/parquedb/internal/parqueerr"
)

// Collection is one namespace's field map, the unit schemas are
// registered and diffed at.
type Collection struct {
	Namespace string
	Fields    map[string]*FieldType
}

// Snapshot is the full set of registered collections at a point in time,
// suitable for diffing against a later snapshot.
type Snapshot struct {
	Collections map[string]*Collection
}

// Registry holds the live, mutable set of collection schemas an engine
// instance validates writes against.
type Registry struct {
	mu          sync.RWMutex
	collections map[string]*Collection
}

func NewRegistry() *Registry {
	return &Registry{collections: make(map[string]*Collection)}
}

// Register installs or replaces a collection's field map, parsing each
// type expression eagerly so registration fails fast on a typo.
func (r *Registry) Register(ns string, fields map[string]string) error {
	parsed := make(map[string]*FieldType, len(fields))
	for name, expr := range fields {
		ft, err := ParseTypeExpression(expr)
		if err != nil {
			return parqueerr.Wrap(parqueerr.InvalidArgument, err, "invalid field type").WithPath(ns + "." + name)
		}
		parsed[name] = ft
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.collections[ns] = &Collection{Namespace: ns, Fields: parsed}
	return nil
}

// Collection returns the registered schema for ns, if any.
func (r *Registry) Collection(ns string) (*Collection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.collections[ns]
	return c, ok
}

// Namespaces returns every registered namespace, sorted.
func (r *Registry) Namespaces() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.collections))
	for ns := range r.collections {
		out = append(out, ns)
	}
	sort.Strings(out)
	return out
}

// Snapshot captures the current registry state for later diffing.
func (r *Registry) Snapshot() *Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snap := &Snapshot{Collections: make(map[string]*Collection, len(r.collections))}
	for ns, c := range r.collections {
		fields := make(map[string]*FieldType, len(c.Fields))
		for k, v := range c.Fields {
			cp := *v
			fields[k] = &cp
		}
		snap.Collections[ns] = &Collection{Namespace: ns, Fields: fields}
	}
	return snap
}
