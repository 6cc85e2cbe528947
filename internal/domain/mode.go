package domain

import (
	"fmt"
	"strings"
)

// Mode selects the routing policy for a whole deployment.
type Mode int

const (
	// ModeImplicit infers the target from session state and operation text.
	ModeImplicit Mode = iota

	// ModeExplicit routes everything to the writer unless the session is pinned.
	ModeExplicit
)

// String returns the configuration spelling of the mode.
func (m Mode) String() string {
	switch m {
	case ModeImplicit:
		return "implicit"
	case ModeExplicit:
		return "explicit"
	default:
		return "unknown"
	}
}

// ParseMode parses "implicit" or "explicit" (case-insensitive).
// An empty string yields ModeImplicit.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "implicit":
		return ModeImplicit, nil
	case "explicit":
		return ModeExplicit, nil
	default:
		return ModeImplicit, fmt.Errorf("%w: unknown routing mode %q", ErrInvalidConfig, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(b []byte) error {
	parsed, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
