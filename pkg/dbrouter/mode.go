package dbrouter

import "github.com/bft-labs/dbrouter/internal/domain"

// Mode selects the routing policy.
type Mode = domain.Mode

const (
	// ModeImplicit routes by override, then dirty flag, then classifier verdict.
	ModeImplicit = domain.ModeImplicit
	// ModeExplicit routes to the override if set and to the writer otherwise.
	ModeExplicit = domain.ModeExplicit
)

// Well-known target names.
const (
	WriterTarget  = domain.WriterTarget
	ReaderTarget  = domain.ReaderTarget
	DefaultTarget = domain.DefaultTarget
)

// ParseMode parses "implicit" or "explicit", case-insensitively.
func ParseMode(s string) (Mode, error) {
	return domain.ParseMode(s)
}
