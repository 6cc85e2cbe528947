package dbrouter

import (
	"sync"
	"time"

	"github.com/bft-labs/dbrouter/internal/app"
	"github.com/bft-labs/dbrouter/pkg/session"
)

// State is the lifecycle state of a Router.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
	StateCrashed
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	return app.State(s).String()
}

// StateChangeEvent reports a lifecycle transition.
type StateChangeEvent struct {
	Previous State
	Current  State
	Reason   string
}

// RouteEvent reports one statement bound to a target.
type RouteEvent struct {
	SessionID string
	Target    string
	Reason    string
	Verdict   string

	// Degraded is set when the default connection stood in for an
	// unavailable registry. Err carries the cause.
	Degraded bool
	Err      error
}

// RoutingErrorEvent reports a statement that could not be bound.
type RoutingErrorEvent struct {
	SessionID string
	Kind      string
	Err       error
}

// ReloadEvent reports a configuration swap or revocation.
type ReloadEvent struct {
	Generation uint64
	Targets    []string
	Mode       Mode
	Duration   time.Duration

	// Invalidated is set when the current registry was revoked rather than replaced.
	Invalidated bool
	Err         error
}

// EventHandler receives router events. Calls are synchronous from the
// goroutine that caused the event; implementations must return quickly and
// be safe for concurrent use.
type EventHandler interface {
	OnStateChange(StateChangeEvent)
	OnRoute(RouteEvent)
	OnRoutingError(RoutingErrorEvent)
	OnReload(ReloadEvent)
}

// BaseEventHandler implements EventHandler with no-ops. Embed it to handle
// only some events.
type BaseEventHandler struct{}

func (BaseEventHandler) OnStateChange(StateChangeEvent)   {}
func (BaseEventHandler) OnRoute(RouteEvent)               {}
func (BaseEventHandler) OnRoutingError(RoutingErrorEvent) {}
func (BaseEventHandler) OnReload(ReloadEvent)             {}

// eventBus fans events out to every subscribed handler.
type eventBus struct {
	mu       sync.RWMutex
	handlers []EventHandler
}

func (b *eventBus) subscribe(h EventHandler) {
	if h == nil {
		return
	}
	b.mu.Lock()
	b.handlers = append(b.handlers, h)
	b.mu.Unlock()
}

func (b *eventBus) snapshot() []EventHandler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.handlers
}

func (b *eventBus) OnStateChange(previous, current app.State, reason string) {
	ev := StateChangeEvent{Previous: State(previous), Current: State(current), Reason: reason}
	for _, h := range b.snapshot() {
		h.OnStateChange(ev)
	}
}

func (b *eventBus) reload(ev ReloadEvent) {
	for _, h := range b.snapshot() {
		h.OnReload(ev)
	}
}

// OnRoute implements session.Observer.
func (b *eventBus) OnRoute(e session.RouteEvent) {
	ev := RouteEvent{
		SessionID: e.SessionID,
		Target:    e.Target,
		Reason:    e.Reason.String(),
		Verdict:   e.Verdict.String(),
		Degraded:  e.Degraded,
		Err:       e.Err,
	}
	for _, h := range b.snapshot() {
		h.OnRoute(ev)
	}
}

// OnRoutingError implements session.Observer.
func (b *eventBus) OnRoutingError(sessionID string, err error) {
	ev := RoutingErrorEvent{SessionID: sessionID, Kind: ErrorKind(err), Err: err}
	for _, h := range b.snapshot() {
		h.OnRoutingError(ev)
	}
}
