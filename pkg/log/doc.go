// Package log provides the logging abstraction used by dbrouter components.
//
// Routing code never talks to a concrete logging library. It logs through the
// [Logger] interface, which the host application satisfies with the bundled
// zerolog adapter or its own implementation:
//
//	logger := log.NewZerologAdapterWithLogger(zerolog.New(os.Stderr))
//
// Components default to [NoopLogger] so that embedding the router stays silent
// unless a logger is supplied.
//
// # Contextual loggers
//
// [With] returns a Logger that prepends fixed fields to every entry. Sessions
// use it to stamp their ID on every routing decision:
//
//	slog := log.With(logger, log.SessionID(id))
//	slog.Debug("connecting", log.Target("reader"))
//
// # Version
//
// Current version: 1.1.0
// Minimum compatible version: 1.0.0
package log
