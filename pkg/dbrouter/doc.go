// Package dbrouter routes the statements of a unit-of-work between named
// database handles: a writer, usually one or more readers, and any other
// target the application names.
//
// # Basic Usage
//
//	cfg := dbrouter.DefaultConfig()
//	cfg.Targets = map[string]string{
//	    "writer": "file:main.db",
//	    "reader": "file:replica.db?mode=ro",
//	}
//
//	router, err := dbrouter.New(cfg, dbrouter.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	defer router.Close()
//
//	s, err := router.Begin(ctx)
//	if err != nil {
//	    return err
//	}
//	rows, err := s.QueryContext(ctx, "SELECT id FROM jobs")   // reader
//	...
//	_, err = s.ExecContext(ctx, "UPDATE jobs SET done = 1")   // writer
//	_, err = s.QueryContext(ctx, "SELECT id FROM jobs")       // writer, session is dirty
//	err = s.End(true)
//
// # Routing
//
// In [ModeImplicit] a statement goes to the pinned target if the session
// was derived with [Session.Pin], else to the writer if the session is
// dirty or the statement is modifying, else to the reader. In
// [ModeExplicit] it goes to the pinned target or the writer. A
// configuration with a single target skips routing altogether.
//
// A pinned session shares the transactions and the dirty flag of the
// session it was pinned from, so a write through Pin("writer") sends the
// parent's later reads to the writer. Only the root session commits:
// ending a pinned session with commit returns [ErrPinnedCommit].
//
// # Degraded Mode
//
// When the registry is unavailable, for example after [Router.Invalidate],
// statements run on the connection named by Config.DefaultDSN and
// [Session.Degraded] reports true. Without a default DSN they fail with
// [ErrConfigurationUnavailable].
//
// # Reloading
//
// [Router.Reload] swaps in a new configuration atomically. Sessions already
// begun keep using the handles they started with; the old handles are
// retired and closed by [Router.CloseRetired] or [Router.Close].
//
// # Plugins
//
//	import "github.com/bft-labs/dbrouter/plugins/configwatcher"
//	import "github.com/bft-labs/dbrouter/plugins/routemetrics"
//	import "github.com/bft-labs/dbrouter/plugins/handlereaper"
//
//	router, err := dbrouter.New(cfg,
//	    dbrouter.WithConfigPath(path),
//	    configwatcher.WithConfigWatcher(configwatcher.DefaultConfig()),
//	    routemetrics.WithRouteMetrics(routemetrics.DefaultConfig()),
//	    handlereaper.WithHandleReaper(handlereaper.DefaultConfig()),
//	)
//
// Plugins run between [Router.Start] and [Router.Stop]. Sessions do not
// depend on the lifecycle state.
package dbrouter
