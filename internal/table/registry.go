package table

import (
	"slices"
	"sync"
)

// Registry maps names to tables. It replaces a process-wide table directory
// with an explicit service that tests can create and reset per suite.
//
// Thread-safety: all methods are safe for concurrent use.
type Registry struct {
	mu     sync.Mutex
	opts   []Option
	tables map[string]*Table
}

// NewRegistry creates an empty registry. opts apply to every table it
// creates.
func NewRegistry(opts ...Option) *Registry {
	return &Registry{
		opts:   opts,
		tables: make(map[string]*Table),
	}
}

// Table returns the table registered under name, creating it if needed.
func (r *Registry) Table(name string) *Table {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tables[name]; ok {
		return t
	}
	t := newTable(name, buildOptions(r.opts))
	r.tables[name] = t
	return t
}

// Lookup returns the table registered under name without creating it.
func (r *Registry) Lookup(name string) (*Table, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tables[name]
	return t, ok
}

// Delete unregisters name. The removed table is marked deleted: further
// writes, batches and registrations on it fail with InvalidTableError.
// Returns false if no table was registered under name.
func (r *Registry) Delete(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tables[name]
	if !ok {
		return false
	}
	t.deleted.Store(true)
	delete(r.tables, name)
	return true
}

// Names lists registered names in ascending order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.tables))
	for name := range r.tables {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Reset deletes every registered table.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, t := range r.tables {
		t.deleted.Store(true)
		delete(r.tables, name)
	}
}
