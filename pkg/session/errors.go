package session

import "github.com/bft-labs/dbrouter/internal/domain"

// Re-exported routing errors, for use with errors.Is.
var (
	ErrConfigurationUnavailable = domain.ErrConfigurationUnavailable
	ErrUnknownTarget            = domain.ErrUnknownTarget
	ErrSessionClosed            = domain.ErrSessionClosed
	ErrInvalidConfig            = domain.ErrInvalidConfig
)

// UnknownTargetError names the target that was missing from the registry.
type UnknownTargetError = domain.UnknownTargetError
