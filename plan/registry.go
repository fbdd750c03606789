// Package plan builds composer Pipelines from YAML documents naming registered middleware.
package plan

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/andriiyaremenko/composer"
)

// Returned by Registry.Register for sources that are not middleware of the Registry types.
var ErrInvalidSource = errors.New("invalid source")

// Registry maps names to middleware of a single Pipeline type.
// Safe for concurrent use. Zero value is ready to use.
type Registry[C, R any] struct {
	mu      sync.RWMutex
	sources map[string]any
}

// NewRegistry returns an empty registry.
func NewRegistry[C, R any]() *Registry[C, R] {
	return &Registry[C, R]{sources: make(map[string]any)}
}

// Register adds source under name, replacing an earlier registration.
// Source is anything composer.Normalize accepts for Pipeline[C, R]; it must produce
// at least one entry and every entry must be a Handler or ErrorTrap of matching types.
func (r *Registry[C, R]) Register(name string, source any) error {
	if name == "" {
		return fmt.Errorf("empty name: %w", ErrInvalidSource)
	}

	entries := composer.Normalize[C, R](source)
	if len(entries) == 0 {
		return fmt.Errorf("%q: no middleware in %T: %w", name, source, ErrInvalidSource)
	}

	for i, e := range entries {
		if !e.IsResolved() {
			return fmt.Errorf("%q: entry %d of %T is not middleware of this registry: %w", name, i, source, ErrInvalidSource)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sources == nil {
		r.sources = make(map[string]any)
	}

	r.sources[name] = source

	return nil
}

// Get returns the source registered under name.
func (r *Registry[C, R]) Get(name string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sources[name]

	return s, ok
}

// Names returns all registered names, sorted.
func (r *Registry[C, R]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.sources))
	for n := range r.sources {
		names = append(names, n)
	}

	slices.Sort(names)

	return names
}
