package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent error conditions in the dbrouter domain.
// These errors are returned by the public API and can be checked with errors.Is.
var (
	// ErrConfigurationUnavailable is returned when the target registry could not
	// be read at resolution time.
	ErrConfigurationUnavailable = errors.New("dbrouter: configuration unavailable")

	// ErrUnknownTarget is returned when a policy resolves a target name that is
	// not present in the registry.
	ErrUnknownTarget = errors.New("dbrouter: unknown target")

	// ErrSessionClosed is returned when a session is used after End.
	ErrSessionClosed = errors.New("dbrouter: session closed")

	// ErrMissingWriter is returned when a registry is built without a writer entry.
	ErrMissingWriter = errors.New("dbrouter: registry has no writer target")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("dbrouter: invalid configuration")

	// ErrAlreadyRunning is returned when Start() is called on a running router.
	ErrAlreadyRunning = errors.New("dbrouter: already running")

	// ErrNotRunning is returned when Stop() is called on a stopped router.
	ErrNotRunning = errors.New("dbrouter: not running")

	// ErrShutdownTimeout is returned when graceful shutdown times out.
	ErrShutdownTimeout = errors.New("dbrouter: shutdown timeout")

	// ErrRouterClosed is returned when a closed router is asked for a session.
	ErrRouterClosed = errors.New("dbrouter: router closed")

	// ErrPinnedCommit is returned when a pinned session is ended with commit.
	// Its transactions belong to the session it was pinned from.
	ErrPinnedCommit = errors.New("dbrouter: pinned session cannot commit")
)

// UnknownTargetError reports the target name a policy resolved to when the
// registry has no entry for it. It matches ErrUnknownTarget with errors.Is.
type UnknownTargetError struct {
	Name string
}

func (e *UnknownTargetError) Error() string {
	return fmt.Sprintf("%s %q", ErrUnknownTarget.Error(), e.Name)
}

// Unwrap returns ErrUnknownTarget.
func (e *UnknownTargetError) Unwrap() error {
	return ErrUnknownTarget
}
