// Package dbrouter routes the statements of a unit-of-work between a writer
// database and its readers.
//
// Example usage:
//
//	cfg, err := dbrouter.LoadConfigFile("/etc/dbrouter.toml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	r, err := dbrouter.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer r.Close()
//
//	s, err := r.Begin(ctx)
//	...
//	err = s.End(true)
//
// The full API, including plugins and events, lives in pkg/dbrouter.
package dbrouter

import "github.com/bft-labs/dbrouter/pkg/dbrouter"

// Config holds the router configuration.
// Use DefaultConfig() to get a Config with sensible defaults.
type Config = dbrouter.Config

// Router owns the target registry and hands out sessions.
type Router = dbrouter.Router

// Session is one unit-of-work.
type Session = dbrouter.Session

// Option configures a Router.
type Option = dbrouter.Option

// Mode selects implicit or explicit routing.
type Mode = dbrouter.Mode

const (
	ModeImplicit = dbrouter.ModeImplicit
	ModeExplicit = dbrouter.ModeExplicit
)

// New opens every target in cfg and returns a Router.
func New(cfg Config, opts ...Option) (*Router, error) {
	return dbrouter.New(cfg, opts...)
}

// DefaultConfig returns a Config with sensible default values.
// At minimum, set DefaultDSN or Targets before calling New.
func DefaultConfig() Config {
	return dbrouter.DefaultConfig()
}

// LoadConfigFile reads and validates a TOML configuration file.
func LoadConfigFile(path string) (Config, error) {
	return dbrouter.LoadConfigFile(path)
}

// Errors returned by the router and its sessions. Check with errors.Is.
var (
	ErrConfigurationUnavailable = dbrouter.ErrConfigurationUnavailable
	ErrUnknownTarget            = dbrouter.ErrUnknownTarget
	ErrSessionClosed            = dbrouter.ErrSessionClosed
	ErrInvalidConfig            = dbrouter.ErrInvalidConfig
	ErrRouterClosed             = dbrouter.ErrRouterClosed
	ErrPinnedCommit             = dbrouter.ErrPinnedCommit
)
