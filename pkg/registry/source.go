package registry

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/bft-labs/dbrouter/internal/domain"
)

// Source provides the registry in force at resolution time.
// Errors are reported as domain.ErrConfigurationUnavailable.
type Source[H any] interface {
	Registry() (*Registry[H], error)
}

// FallbackSource is a Source that can also offer the connection the host used
// before routing was introduced, for degraded-mode operation.
type FallbackSource[H any] interface {
	Source[H]
	Fallback() (H, bool)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc[H any] func() (*Registry[H], error)

// Registry calls f.
func (f SourceFunc[H]) Registry() (*Registry[H], error) {
	return f()
}

// Static returns a Source that always serves r.
func Static[H any](r *Registry[H]) Source[H] {
	return SourceFunc[H](func() (*Registry[H], error) {
		if r == nil {
			return nil, fmt.Errorf("%w: no registry loaded", domain.ErrConfigurationUnavailable)
		}
		return r, nil
	})
}

type revocation struct {
	cause error
}

// Holder serves one registry until revoked.
// Revoke and Restore may be called concurrently with Registry.
type Holder[H any] struct {
	reg         *Registry[H]
	fallback    H
	hasFallback bool
	revoked     atomic.Pointer[revocation]
}

// NewHolder returns a holder serving reg.
func NewHolder[H any](reg *Registry[H]) *Holder[H] {
	return &Holder[H]{reg: reg}
}

// SetFallback records the degraded-mode handle.
// It must be called before the holder is shared.
func (h *Holder[H]) SetFallback(fallback H) {
	h.fallback = fallback
	h.hasFallback = true
}

// Registry implements Source.
func (h *Holder[H]) Registry() (*Registry[H], error) {
	if r := h.revoked.Load(); r != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConfigurationUnavailable, r.cause)
	}
	if h.reg == nil {
		return nil, fmt.Errorf("%w: no registry loaded", domain.ErrConfigurationUnavailable)
	}
	return h.reg, nil
}

// Fallback implements FallbackSource.
func (h *Holder[H]) Fallback() (H, bool) {
	return h.fallback, h.hasFallback
}

// Revoke makes the registry unavailable. A nil cause is recorded as
// "revoked".
func (h *Holder[H]) Revoke(cause error) {
	if cause == nil {
		cause = errors.New("revoked")
	}
	h.revoked.Store(&revocation{cause: cause})
}

// Restore undoes Revoke.
func (h *Holder[H]) Restore() {
	h.revoked.Store(nil)
}

// Revoked returns the revocation cause, or nil while the registry is served.
func (h *Holder[H]) Revoked() error {
	if r := h.revoked.Load(); r != nil {
		return r.cause
	}
	return nil
}

// Current returns the held registry regardless of revocation.
func (h *Holder[H]) Current() *Registry[H] {
	return h.reg
}

var _ FallbackSource[struct{}] = (*Holder[struct{}])(nil)
