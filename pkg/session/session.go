package session

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bft-labs/dbrouter/internal/domain"
	"github.com/bft-labs/dbrouter/pkg/log"
	"github.com/bft-labs/dbrouter/pkg/registry"
	"github.com/bft-labs/dbrouter/pkg/routing"
)

// Binding is a resolved target together with its handle.
type Binding[H any] struct {
	Target  string
	Handle  H
	Reason  routing.Reason
	Verdict domain.Verdict

	// Degraded marks a fallback binding returned with ErrConfigurationUnavailable.
	Degraded bool
}

// Session is one unit-of-work's view of the router. It is not safe for
// concurrent use.
type Session[H any] struct {
	id     string
	parent string
	state  domain.SessionState
	pinned bool
	closed bool

	env    *env[H]
	logger log.Logger
}

// ID returns the session identifier.
func (s *Session[H]) ID() string {
	return s.id
}

// ParentID returns the ID of the session this one was pinned from, or "".
func (s *Session[H]) ParentID() string {
	return s.parent
}

// State returns a copy of the routing signals.
func (s *Session[H]) State() domain.SessionState {
	return s.state
}

// Override returns the override target, if any.
func (s *Session[H]) Override() (string, bool) {
	return s.state.Override, s.state.HasOverride()
}

// Dirty reports whether a write has been staged.
func (s *Session[H]) Dirty() bool {
	return s.state.Dirty
}

// Pinned reports whether this is a derived session.
func (s *Session[H]) Pinned() bool {
	return s.pinned
}

// Closed reports whether End has been called.
func (s *Session[H]) Closed() bool {
	return s.closed
}

// Mode returns the routing mode inherited from the factory.
func (s *Session[H]) Mode() domain.Mode {
	return s.env.policy.Mode()
}

// MarkDirty records that the session staged a write. Idempotent.
func (s *Session[H]) MarkDirty() error {
	if s.closed {
		return domain.ErrSessionClosed
	}
	if !s.state.Dirty {
		s.state.Dirty = true
		s.logger.Debug("session marked dirty")
	}
	return nil
}

// ResolveTarget returns the target name op would be bound to.
// In degraded mode it returns domain.DefaultTarget with the error.
func (s *Session[H]) ResolveTarget(op *routing.Operation) (string, error) {
	b, err := s.Bind(op)
	return b.Target, err
}

// Bind resolves op and looks the target up in the registry.
// op may be nil when no textual form of the operation is available.
func (s *Session[H]) Bind(op *routing.Operation) (Binding[H], error) {
	var zero Binding[H]
	if s.closed {
		return zero, domain.ErrSessionClosed
	}

	reg, err := s.env.source.Registry()
	if err != nil {
		if !errors.Is(err, domain.ErrConfigurationUnavailable) {
			err = fmt.Errorf("%w: %v", domain.ErrConfigurationUnavailable, err)
		}
		return s.degrade(err)
	}

	if reg.Single() {
		b := Binding[H]{
			Target: domain.WriterTarget,
			Handle: reg.Writer(),
			Reason: routing.ReasonSingleTarget,
		}
		s.routed(b)
		return b, nil
	}

	d := s.env.policy.Resolve(s.state, op)
	h, ok := reg.Lookup(d.Target)
	if !ok {
		err := &domain.UnknownTargetError{Name: d.Target}
		s.logger.Error("routing failed",
			log.Target(d.Target),
			log.String("reason", d.Reason.String()),
			log.Err(err),
		)
		s.env.observer.OnRoutingError(s.id, err)
		return zero, err
	}

	b := Binding[H]{
		Target:  d.Target,
		Handle:  h,
		Reason:  d.Reason,
		Verdict: d.Verdict,
	}
	s.routed(b)
	return b, nil
}

func (s *Session[H]) routed(b Binding[H]) {
	s.logger.Debug("connecting",
		log.Target(b.Target),
		log.String("reason", b.Reason.String()),
	)
	s.env.observer.OnRoute(RouteEvent{
		SessionID: s.id,
		Target:    b.Target,
		Reason:    b.Reason,
		Verdict:   b.Verdict,
	})
}

// degrade returns the fallback binding, if the source has one, together with cause.
func (s *Session[H]) degrade(cause error) (Binding[H], error) {
	var zero Binding[H]

	fs, ok := s.env.source.(registry.FallbackSource[H])
	if ok {
		if h, has := fs.Fallback(); has {
			b := Binding[H]{
				Target:   domain.DefaultTarget,
				Handle:   h,
				Reason:   routing.ReasonDegraded,
				Degraded: true,
			}
			s.logger.Warn("configuration unavailable, using default connection (degraded mode)",
				log.Target(b.Target),
				log.Err(cause),
			)
			s.env.observer.OnRoute(RouteEvent{
				SessionID: s.id,
				Target:    b.Target,
				Reason:    b.Reason,
				Degraded:  true,
				Err:       cause,
			})
			return b, cause
		}
	}

	s.logger.Error("configuration unavailable", log.Err(cause))
	s.env.observer.OnRoutingError(s.id, cause)
	return zero, cause
}

// Pin returns a derived session whose every operation is routed to target.
// The receiver is not modified. The derived session starts with the
// receiver's dirty flag and ends independently of it.
func (s *Session[H]) Pin(target string) (*Session[H], error) {
	if s.closed {
		return nil, domain.ErrSessionClosed
	}
	if strings.TrimSpace(target) == "" {
		return nil, &domain.UnknownTargetError{Name: target}
	}

	derived := *s
	derived.id = s.env.newID()
	derived.parent = s.id
	derived.state.Override = target
	derived.pinned = true
	derived.logger = log.With(s.env.logger, log.SessionID(derived.id), log.String("parent", s.id))

	derived.logger.Debug("session pinned", log.Target(target))
	return &derived, nil
}

// End finalizes the unit-of-work. Every later call on the session fails with
// ErrSessionClosed, including a second End.
func (s *Session[H]) End(commit bool) error {
	if s.closed {
		return domain.ErrSessionClosed
	}
	s.closed = true
	s.logger.Debug("session ended",
		log.Bool("commit", commit),
		log.Bool("dirty", s.state.Dirty),
	)
	return nil
}
