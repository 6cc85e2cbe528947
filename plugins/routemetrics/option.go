package routemetrics

import "github.com/bft-labs/dbrouter/pkg/dbrouter"

// WithRouteMetrics returns a dbrouter Option that exports routing metrics.
//
// Usage:
//
//	r, err := dbrouter.New(cfg,
//	    routemetrics.WithRouteMetrics(routemetrics.Config{
//	        ListenAddr: ":9464",
//	    }),
//	)
func WithRouteMetrics(cfg Config) dbrouter.Option {
	return dbrouter.WithPlugin(New(cfg))
}

// WithDefaultRouteMetrics registers metrics on a private registry without a listener.
func WithDefaultRouteMetrics() dbrouter.Option {
	return WithRouteMetrics(DefaultConfig())
}
