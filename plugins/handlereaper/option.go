package handlereaper

import "github.com/bft-labs/dbrouter/pkg/dbrouter"

// WithHandleReaper returns a dbrouter Option that closes retired handles.
//
// Usage:
//
//	r, err := dbrouter.New(cfg,
//	    handlereaper.WithHandleReaper(handlereaper.Config{
//	        CheckInterval: 30 * time.Second,
//	        Grace:         2 * time.Minute,
//	    }),
//	)
func WithHandleReaper(cfg Config) dbrouter.Option {
	return dbrouter.WithPlugin(New(cfg))
}

// WithDefaultHandleReaper enables the reaper with default settings.
func WithDefaultHandleReaper() dbrouter.Option {
	return WithHandleReaper(DefaultConfig())
}
