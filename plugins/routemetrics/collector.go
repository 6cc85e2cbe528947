package routemetrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bft-labs/dbrouter/pkg/dbrouter"
)

const metricsNamespace = "dbrouter"

// Reload results used as the "result" label.
const (
	ResultOK          = "ok"
	ResultError       = "error"
	ResultInvalidated = "invalidated"
)

// Collector is a prometheus.Collector for router events. It also
// implements dbrouter.EventHandler.
type Collector struct {
	dbrouter.BaseEventHandler

	routes         *prometheus.CounterVec
	degraded       prometheus.Counter
	routingErrors  *prometheus.CounterVec
	reloads        *prometheus.CounterVec
	reloadDuration prometheus.Histogram
	generation     prometheus.Gauge
}

// NewCollector returns a new Collector.
func NewCollector() *Collector {
	return &Collector{
		routes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "routes_total",
				Help:      "Statements bound to a target.",
			}, []string{"target", "reason"},
		),
		degraded: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "degraded_total",
				Help:      "Statements run on the default connection because the registry was unavailable.",
			},
		),
		routingErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "routing_errors_total",
				Help:      "Statements that could not be bound to a target.",
			}, []string{"kind"},
		),
		reloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "reloads_total",
				Help:      "Configuration reloads and invalidations.",
			}, []string{"result"},
		),
		reloadDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "reload_duration_seconds",
				Help:      "Time taken to open handles for a new configuration.",
				Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
		),
		generation: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "config_generation",
				Help:      "Generation number of the current configuration.",
			},
		),
	}
}

// Describe is part of the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.routes.Describe(ch)
	c.degraded.Describe(ch)
	c.routingErrors.Describe(ch)
	c.reloads.Describe(ch)
	c.reloadDuration.Describe(ch)
	c.generation.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.routes.Collect(ch)
	c.degraded.Collect(ch)
	c.routingErrors.Collect(ch)
	c.reloads.Collect(ch)
	c.reloadDuration.Collect(ch)
	c.generation.Collect(ch)
}

// SetGeneration records the current configuration generation.
func (c *Collector) SetGeneration(g uint64) {
	c.generation.Set(float64(g))
}

// OnRoute implements dbrouter.EventHandler.
func (c *Collector) OnRoute(e dbrouter.RouteEvent) {
	c.routes.WithLabelValues(e.Target, e.Reason).Inc()
	if e.Degraded {
		c.degraded.Inc()
	}
}

// OnRoutingError implements dbrouter.EventHandler.
func (c *Collector) OnRoutingError(e dbrouter.RoutingErrorEvent) {
	c.routingErrors.WithLabelValues(e.Kind).Inc()
}

// OnReload implements dbrouter.EventHandler.
func (c *Collector) OnReload(e dbrouter.ReloadEvent) {
	switch {
	case e.Invalidated:
		c.reloads.WithLabelValues(ResultInvalidated).Inc()
	case e.Err != nil:
		c.reloads.WithLabelValues(ResultError).Inc()
	default:
		c.reloads.WithLabelValues(ResultOK).Inc()
		c.reloadDuration.Observe(e.Duration.Seconds())
		c.SetGeneration(e.Generation)
	}
}

var (
	_ prometheus.Collector  = (*Collector)(nil)
	_ dbrouter.EventHandler = (*Collector)(nil)
)
