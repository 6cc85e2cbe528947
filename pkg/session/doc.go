// Package session implements routing sessions and the factory that creates them.
//
// A [Session] represents one unit-of-work. It carries the routing signals the
// policy needs (an optional override target and a dirty flag), resolves
// targets through the factory's [routing.Policy] and looks the result up in
// the registry served by the factory's [registry.Source].
//
//	f, err := session.NewFactory(registry.Static(reg), domain.ModeImplicit)
//	s := f.Begin()
//	b, err := s.Bind(routing.Op("SELECT 1"))   // b.Target == "reader"
//	_ = s.MarkDirty()
//	b, err = s.Bind(routing.Op("SELECT 1"))    // b.Target == "writer"
//	_ = s.End(true)
//
// # Derived sessions
//
// [Session.Pin] returns a new session that copies the parent's state and
// fixes its override target for its whole lifetime. The parent is never
// modified, and the two sessions end independently.
//
// # Failure modes
//
//   - A resolved name missing from the registry yields an error matching
//     [ErrUnknownTarget]; no handle is returned.
//   - An unreadable registry yields [ErrConfigurationUnavailable]. When the
//     source offers a fallback handle it is returned in a Binding marked
//     Degraded alongside the error, logged at WARN and reported to the
//     [Observer].
//   - Any call after [Session.End] yields [ErrSessionClosed].
//
// # Concurrency
//
// Factories are safe for concurrent use. Sessions are not: each unit-of-work
// must call [Factory.Begin] for its own session.
//
// # Version
//
// Current version: 1.0.0
// Minimum compatible version: 1.0.0
package session
