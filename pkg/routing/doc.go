// Package routing resolves which target a database operation should use.
//
// A [Policy] is a tagged variant selected once per deployment:
//
//   - Implicit: override, then writer if the session is dirty, then writer if
//     the operation text classifies as modifying, otherwise reader.
//   - Explicit: override, otherwise writer.
//
// Policies are plain values with no mutable state and may be shared by any
// number of sessions. They never consult the registry; checking that the
// resolved name exists is the caller's job (see package session).
//
// # Version
//
// Current version: 1.0.0
// Minimum compatible version: 1.0.0
package routing
