package component

import (
	"fmt"
	"iter"
	"slices"
)

// Registry is a name-keyed collection of live components that remembers
// insertion order. It is filled once at startup and read-only afterwards.
type Registry[T any] struct {
	names []string
	items map[string]T
}

// NewRegistry returns an empty Registry.
func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{items: make(map[string]T)}
}

// Add inserts item under name. Names must be non-empty and unique.
func (r *Registry[T]) Add(name string, item T) error {
	if name == "" {
		return fmt.Errorf("registry: empty name")
	}
	if _, ok := r.items[name]; ok {
		return fmt.Errorf("registry: duplicate name %q", name)
	}
	r.names = append(r.names, name)
	r.items[name] = item
	return nil
}

// Get returns the item registered under name.
func (r *Registry[T]) Get(name string) (T, bool) {
	item, ok := r.items[name]
	return item, ok
}

// Names returns the registered names in insertion order.
func (r *Registry[T]) Names() []string {
	return slices.Clone(r.names)
}

// Len returns the number of registered items.
func (r *Registry[T]) Len() int {
	return len(r.names)
}

// All iterates over name/item pairs in insertion order.
func (r *Registry[T]) All() iter.Seq2[string, T] {
	return func(yield func(string, T) bool) {
		for _, name := range r.names {
			if !yield(name, r.items[name]) {
				return
			}
		}
	}
}
