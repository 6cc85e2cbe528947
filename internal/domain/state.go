package domain

const (
	// WriterTarget is the authoritative target for data-modifying operations.
	WriterTarget = "writer"

	// ReaderTarget is the replica target for read-only operations.
	ReaderTarget = "reader"

	// DefaultTarget names the pre-routing default connection used in
	// degraded mode.
	DefaultTarget = "default"
)

// SessionState holds the routing signals of one session.
// It is a plain value: copying it is how derived sessions inherit state.
type SessionState struct {
	// Override is the sticky target chosen by the caller. Empty means none.
	Override string

	// Dirty is true once the session has staged an uncommitted write.
	Dirty bool
}

// HasOverride reports whether an override target is set.
func (s SessionState) HasOverride() bool {
	return s.Override != ""
}
