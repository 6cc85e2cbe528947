package configwatcher

import "github.com/bft-labs/dbrouter/pkg/dbrouter"

// WithConfigWatcher returns a dbrouter Option that reloads the router when
// its configuration file changes.
//
// Usage:
//
//	r, err := dbrouter.New(cfg,
//	    dbrouter.WithConfigPath("/etc/dbrouter.toml"),
//	    configwatcher.WithConfigWatcher(configwatcher.Config{
//	        DebounceDelay: 250 * time.Millisecond,
//	    }),
//	)
func WithConfigWatcher(cfg Config) dbrouter.Option {
	return dbrouter.WithPlugin(New(cfg))
}

// WithDefaultConfigWatcher enables config watching with default settings.
func WithDefaultConfigWatcher() dbrouter.Option {
	return WithConfigWatcher(DefaultConfig())
}
