package dbrouter

import (
	"errors"

	"github.com/bft-labs/dbrouter/internal/domain"
)

// Errors returned by the router and its sessions. Check with errors.Is.
var (
	ErrConfigurationUnavailable = domain.ErrConfigurationUnavailable
	ErrUnknownTarget            = domain.ErrUnknownTarget
	ErrSessionClosed            = domain.ErrSessionClosed
	ErrMissingWriter            = domain.ErrMissingWriter
	ErrInvalidConfig            = domain.ErrInvalidConfig
	ErrAlreadyRunning           = domain.ErrAlreadyRunning
	ErrNotRunning               = domain.ErrNotRunning
	ErrShutdownTimeout          = domain.ErrShutdownTimeout
	ErrRouterClosed             = domain.ErrRouterClosed
	ErrPinnedCommit             = domain.ErrPinnedCommit
)

// UnknownTargetError carries the name of a target missing from the registry.
type UnknownTargetError = domain.UnknownTargetError

// Error kinds reported in RoutingErrorEvent.Kind.
const (
	ErrorKindUnknownTarget            = "unknown_target"
	ErrorKindConfigurationUnavailable = "configuration_unavailable"
	ErrorKindOther                    = "other"
)

// ErrorKind classifies a routing error for metrics and logs.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrUnknownTarget):
		return ErrorKindUnknownTarget
	case errors.Is(err, ErrConfigurationUnavailable):
		return ErrorKindConfigurationUnavailable
	default:
		return ErrorKindOther
	}
}
