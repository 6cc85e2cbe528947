package registry

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bft-labs/dbrouter/internal/domain"
)

// Registry is an immutable name → handle mapping.
// It is safe for concurrent use.
type Registry[H any] struct {
	targets map[string]H
	names   []string
}

// New builds a registry from targets. The map is copied.
// A writer entry is required; empty or padded names are rejected.
func New[H any](targets map[string]H) (*Registry[H], error) {
	if _, ok := targets[domain.WriterTarget]; !ok {
		return nil, domain.ErrMissingWriter
	}

	r := &Registry[H]{
		targets: make(map[string]H, len(targets)),
		names:   make([]string, 0, len(targets)),
	}
	for name, h := range targets {
		if name == "" || strings.TrimSpace(name) != name {
			return nil, fmt.Errorf("%w: invalid target name %q", domain.ErrInvalidConfig, name)
		}
		r.targets[name] = h
		r.names = append(r.names, name)
	}
	sort.Strings(r.names)
	return r, nil
}

// Lookup returns the handle registered under name.
func (r *Registry[H]) Lookup(name string) (H, bool) {
	h, ok := r.targets[name]
	return h, ok
}

// Writer returns the writer handle.
func (r *Registry[H]) Writer() H {
	return r.targets[domain.WriterTarget]
}

// Has reports whether name is registered.
func (r *Registry[H]) Has(name string) bool {
	_, ok := r.targets[name]
	return ok
}

// Names returns the registered names in sorted order.
func (r *Registry[H]) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Len returns the number of registered targets.
func (r *Registry[H]) Len() int {
	return len(r.names)
}

// Single reports whether the registry holds only the writer, in which case
// routing is skipped.
func (r *Registry[H]) Single() bool {
	return len(r.names) == 1
}

// Each calls fn for every target in name order.
func (r *Registry[H]) Each(fn func(name string, h H)) {
	for _, name := range r.names {
		fn(name, r.targets[name])
	}
}
