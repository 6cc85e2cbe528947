package session

import (
	"github.com/bft-labs/dbrouter/internal/domain"
	"github.com/bft-labs/dbrouter/pkg/routing"
)

// RouteEvent describes one successful binding.
type RouteEvent struct {
	SessionID string
	Target    string
	Reason    routing.Reason
	Verdict   domain.Verdict

	// Degraded is true when the fallback connection was used because the
	// registry was unavailable. Err then carries the cause.
	Degraded bool
	Err      error
}

// Observer receives routing outcomes. Calls are made synchronously from the
// goroutine using the session, so implementations must return quickly and be
// safe for concurrent use across sessions.
type Observer interface {
	OnRoute(RouteEvent)
	OnRoutingError(sessionID string, err error)
}

type noopObserver struct{}

func (noopObserver) OnRoute(RouteEvent)           {}
func (noopObserver) OnRoutingError(string, error) {}
