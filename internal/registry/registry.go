// Package registry resolves named resources through an ordered chain of
// providers. The first provider defining a name wins; a provider may also
// extend the definition found further down the chain.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrNotRegistered is returned when no provider defines a name.
var ErrNotRegistered = errors.New("not registered")

// Definition is what a provider holds for one name: either a complete Value
// or an Extend function that decorates the lower-priority resolution.
type Definition[T any] struct {
	Value  T
	Extend func(base T) T
}

// Provider is one layer of the chain (site override, package, core).
type Provider[T any] interface {
	Name() string
	Lookup(name string) (Definition[T], bool)
	Names() []string
}

// Registry is a priority-ordered provider chain. Providers added first take
// precedence. Safe for concurrent use.
type Registry[T any] struct {
	mu        sync.RWMutex
	providers []Provider[T]
}

// New creates a registry with providers in priority order, highest first.
func New[T any](providers ...Provider[T]) *Registry[T] {
	return &Registry[T]{providers: providers}
}

// Prepend adds a provider with the highest priority.
func (r *Registry[T]) Prepend(p Provider[T]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers = append([]Provider[T]{p}, r.providers...)
}

// Append adds a provider with the lowest priority.
func (r *Registry[T]) Append(p Provider[T]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers = append(r.providers, p)
}

// Providers returns the provider names in priority order.
func (r *Registry[T]) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.providers))
	for i, p := range r.providers {
		names[i] = p.Name()
	}
	return names
}

// Resolve returns the effective definition of name.
func (r *Registry[T]) Resolve(name string) (T, error) {
	r.mu.RLock()
	providers := r.providers
	r.mu.RUnlock()

	v, ok := resolveFrom(providers, name)
	if !ok {
		var zero T
		return zero, fmt.Errorf("%q: %w", name, ErrNotRegistered)
	}
	return v, nil
}

// resolveFrom walks the chain. An extension found at position i is applied
// to whatever positions i+1.. resolve to; an extension with nothing to
// extend is skipped.
func resolveFrom[T any](providers []Provider[T], name string) (T, bool) {
	for i, p := range providers {
		def, ok := p.Lookup(name)
		if !ok {
			continue
		}
		if def.Extend == nil {
			return def.Value, true
		}
		base, ok := resolveFrom(providers[i+1:], name)
		if !ok {
			continue
		}
		return def.Extend(base), true
	}
	var zero T
	return zero, false
}

// Names returns every resolvable name, sorted.
func (r *Registry[T]) Names() []string {
	r.mu.RLock()
	providers := r.providers
	r.mu.RUnlock()

	seen := make(map[string]bool)
	var names []string
	for _, p := range providers {
		for _, n := range p.Names() {
			if seen[n] {
				continue
			}
			seen[n] = true
			if _, ok := resolveFrom(providers, n); ok {
				names = append(names, n)
			}
		}
	}
	sort.Strings(names)
	return names
}

// MapProvider is an in-memory Provider.
type MapProvider[T any] struct {
	name string

	mu   sync.RWMutex
	defs map[string]Definition[T]
}

var _ Provider[int] = (*MapProvider[int])(nil)

// NewMapProvider creates an empty provider.
func NewMapProvider[T any](name string) *MapProvider[T] {
	return &MapProvider[T]{name: name, defs: make(map[string]Definition[T])}
}

// Name returns the provider name.
func (m *MapProvider[T]) Name() string {
	return m.name
}

// Register defines name with a complete value.
func (m *MapProvider[T]) Register(name string, value T) *MapProvider[T] {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defs[name] = Definition[T]{Value: value}
	return m
}

// RegisterExtension defines name as a decoration of the lower layers.
func (m *MapProvider[T]) RegisterExtension(name string, extend func(base T) T) *MapProvider[T] {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defs[name] = Definition[T]{Extend: extend}
	return m
}

// Lookup implements Provider.
func (m *MapProvider[T]) Lookup(name string) (Definition[T], bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	def, ok := m.defs[name]
	return def, ok
}

// Names implements Provider.
func (m *MapProvider[T]) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.defs))
	for n := range m.defs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
