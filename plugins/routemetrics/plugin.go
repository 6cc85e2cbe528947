// Package routemetrics exports router events as Prometheus metrics and can
// serve them over HTTP.
package routemetrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bft-labs/dbrouter/pkg/dbrouter"
	"github.com/bft-labs/dbrouter/pkg/log"
)

// Config holds configuration options for the route metrics plugin.
type Config struct {
	// Registry receives the collector. Default: a fresh prometheus.Registry.
	Registry *prometheus.Registry

	// ListenAddr, if set, serves the registry over HTTP, e.g. ":9464".
	ListenAddr string

	// Path is the HTTP path of the metrics handler. Default: "/metrics"
	Path string
}

// DefaultConfig returns a Config with sensible defaults and no listener.
func DefaultConfig() Config {
	return Config{Path: "/metrics"}
}

// Plugin registers a Collector and subscribes it to router events.
type Plugin struct {
	mu sync.Mutex

	cfg       Config
	collector *Collector
	logger    log.Logger

	subscribe  sync.Once
	registered bool
	server     *http.Server
	addr       string
	wg         sync.WaitGroup
}

// New creates a new route metrics plugin with the given configuration.
func New(cfg Config) *Plugin {
	if cfg.Registry == nil {
		cfg.Registry = prometheus.NewRegistry()
	}
	if cfg.Path == "" {
		cfg.Path = DefaultConfig().Path
	}
	return &Plugin{cfg: cfg, collector: NewCollector()}
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return "routemetrics"
}

// Collector returns the plugin's collector.
func (p *Plugin) Collector() *Collector {
	return p.collector
}

// Registry returns the registry the collector is registered with.
func (p *Plugin) Registry() *prometheus.Registry {
	return p.cfg.Registry
}

// Addr returns the address the metrics listener is bound to, or "".
func (p *Plugin) Addr() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.addr
}

// Initialize registers the collector and starts the optional listener.
func (p *Plugin) Initialize(ctx context.Context, cfg dbrouter.PluginConfig) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.logger = cfg.Logger
	if p.logger == nil {
		p.logger = log.NoopLogger{}
	}

	if err := p.cfg.Registry.Register(p.collector); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return err
		}
	}
	p.registered = true
	if cfg.Controller != nil {
		p.collector.SetGeneration(cfg.Controller.Generation())
	}

	if cfg.Subscribe != nil {
		p.subscribe.Do(func() { cfg.Subscribe(p.collector) })
	}

	if p.cfg.ListenAddr == "" {
		p.logger.Info("route metrics plugin initialized")
		return nil
	}

	ln, err := net.Listen("tcp", p.cfg.ListenAddr)
	if err != nil {
		return err
	}
	mux := http.NewServeMux()
	mux.Handle(p.cfg.Path, promhttp.HandlerFor(p.cfg.Registry, promhttp.HandlerOpts{}))
	p.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	p.addr = ln.Addr().String()

	p.wg.Add(1)
	go func(srv *http.Server) {
		defer p.wg.Done()
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			p.logger.Error("metrics listener stopped", log.Err(err))
		}
	}(p.server)

	p.logger.Info("route metrics plugin initialized",
		log.String("addr", p.addr),
		log.String("path", p.cfg.Path))
	return nil
}

// Shutdown stops the listener and unregisters the collector.
func (p *Plugin) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	srv := p.server
	p.server = nil
	p.addr = ""
	if p.registered {
		p.cfg.Registry.Unregister(p.collector)
		p.registered = false
	}
	p.mu.Unlock()

	var err error
	if srv != nil {
		err = srv.Shutdown(ctx)
	}
	p.wg.Wait()
	return err
}

var _ dbrouter.Plugin = (*Plugin)(nil)
