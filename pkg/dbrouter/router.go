package dbrouter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bft-labs/dbrouter/internal/app"
	"github.com/bft-labs/dbrouter/pkg/classify"
	"github.com/bft-labs/dbrouter/pkg/log"
	"github.com/bft-labs/dbrouter/pkg/registry"
	"github.com/bft-labs/dbrouter/pkg/routing"
)

// Router hands out sessions that route statements to named database
// handles. Use New to create one; Begin works in every lifecycle state,
// Start and Stop only drive plugins.
type Router struct {
	opts       options
	logger     log.Logger
	classifier classify.Classifier
	lifecycle  *app.Lifecycle
	bus        *eventBus

	current atomic.Pointer[generation]
	nextGen atomic.Uint64

	mu      sync.Mutex // guards retired and closed; serializes Reload
	retired []*generation
	closed  bool

	startMu sync.Mutex
}

// New opens a handle per configured target and returns a stopped Router.
func New(cfg Config, opts ...Option) (*Router, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := validateModuleVersions(); err != nil {
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.NoopLogger{}
	}
	if o.opener == nil {
		o.opener = OpenDB
	}

	c := o.classifier
	if c == nil {
		cached, err := classify.NewCached(nil, classify.DefaultCacheSize)
		if err != nil {
			return nil, err
		}
		c = cached
	}

	bus := &eventBus{}
	for _, h := range o.handlers {
		bus.subscribe(h)
	}

	r := &Router{
		opts:       o,
		logger:     o.logger,
		classifier: c,
		lifecycle:  app.NewLifecycle(o.logger, bus),
		bus:        bus,
	}

	gen, err := openGeneration(context.Background(), r.nextGen.Add(1), cfg, r.generationDeps())
	if err != nil {
		return nil, err
	}
	r.current.Store(gen)

	r.logger.Info("router ready",
		log.Mode(cfg.Mode),
		log.Any("targets", cfg.TargetNames()),
		log.Bool("fallback", cfg.DefaultDSN != ""),
	)
	return r, nil
}

func (r *Router) generationDeps() generationDeps {
	return generationDeps{
		opener:     r.opts.opener,
		classifier: r.classifier,
		logger:     r.logger,
		observer:   r.bus,
		newID:      r.opts.newID,
	}
}

// Start initializes plugins with a context derived from ctx.
func (r *Router) Start(ctx context.Context) error {
	r.startMu.Lock()
	defer r.startMu.Unlock()

	if r.isClosed() {
		return ErrRouterClosed
	}
	if !r.lifecycle.CanStart() {
		return ErrAlreadyRunning
	}
	if err := r.lifecycle.TransitionTo(app.StateStarting, "Start() called"); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	r.lifecycle.SetCancel(cancel)

	pcfg := PluginConfig{
		ConfigPath: r.opts.configPath,
		Logger:     r.logger,
		Controller: r,
		Subscribe:  r.bus.subscribe,
	}
	for i, p := range r.opts.plugins {
		if err := p.Initialize(runCtx, pcfg); err != nil {
			r.logger.Error("plugin initialization failed",
				log.String("plugin", p.Name()),
				log.Err(err))
			r.shutdownPlugins(r.opts.plugins[:i])
			r.lifecycle.Cancel()
			_ = r.lifecycle.TransitionTo(app.StateCrashed, "plugin init failed: "+p.Name())
			return fmt.Errorf("plugin %s: %w", p.Name(), err)
		}
		r.logger.Info("plugin initialized", log.String("plugin", p.Name()))
	}

	return r.lifecycle.TransitionTo(app.StateRunning, "plugins initialized")
}

// Stop shuts plugins down in reverse order, waiting up to
// app.ShutdownTimeout. Sessions keep working after Stop.
func (r *Router) Stop() error {
	r.startMu.Lock()
	defer r.startMu.Unlock()

	if !r.lifecycle.CanStop() {
		return ErrNotRunning
	}
	if err := r.lifecycle.TransitionTo(app.StateStopping, "Stop() called"); err != nil {
		return err
	}

	r.lifecycle.Cancel()
	r.lifecycle.Go(func() { r.shutdownPlugins(r.opts.plugins) })

	if err := r.lifecycle.WaitWithTimeout(app.ShutdownTimeout); err != nil {
		_ = r.lifecycle.TransitionTo(app.StateCrashed, "shutdown timeout")
		return err
	}
	return r.lifecycle.TransitionTo(app.StateStopped, "graceful shutdown")
}

func (r *Router) shutdownPlugins(plugins []Plugin) {
	ctx, cancel := context.WithTimeout(context.Background(), app.ShutdownTimeout)
	defer cancel()

	for i := len(plugins) - 1; i >= 0; i-- {
		p := plugins[i]
		if err := p.Shutdown(ctx); err != nil {
			r.logger.Error("plugin shutdown failed",
				log.String("plugin", p.Name()),
				log.Err(err))
			continue
		}
		r.logger.Info("plugin shutdown complete", log.String("plugin", p.Name()))
	}
}

// Status returns the current lifecycle state.
func (r *Router) Status() State {
	return State(r.lifecycle.State())
}

// Begin starts a new session. ctx bounds the transactions the session opens.
func (r *Router) Begin(ctx context.Context) (*Session, error) {
	if r.isClosed() {
		return nil, ErrRouterClosed
	}
	gen := r.current.Load()
	return newSession(ctx, gen.factory.Begin(), r.sessionEnv(gen)), nil
}

func (r *Router) sessionEnv(gen *generation) *sessionEnv {
	return &sessionEnv{
		timeout:    gen.config.StatementTimeout,
		classifier: r.classifier,
		logger:     r.logger,
	}
}

// Mode returns the routing mode of the current configuration.
func (r *Router) Mode() Mode {
	return r.current.Load().config.Mode
}

// Config returns a copy of the current configuration.
func (r *Router) Config() Config {
	return r.current.Load().config.clone()
}

// Targets returns the sorted target names of the current configuration.
func (r *Router) Targets() []string {
	return r.current.Load().config.TargetNames()
}

// Generation returns the number of the current configuration. It starts at
// one and grows with every successful Reload.
func (r *Router) Generation() uint64 {
	return r.current.Load().id
}

// ResolveTarget reports where query would be routed for a fresh session,
// without opening a transaction.
func (r *Router) ResolveTarget(query string) (string, error) {
	s := r.current.Load().factory.Begin()
	defer func() { _ = s.End(false) }()
	return s.ResolveTarget(routing.Op(query))
}

// Reload opens handles for cfg and makes it current. Sessions begun earlier
// keep their handles; the previous generation is retired.
func (r *Router) Reload(cfg Config) error {
	start := time.Now()
	cfg.SetDefaults()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRouterClosed
	}

	if err := cfg.Validate(); err != nil {
		r.reloadFailed(cfg, err, start)
		return err
	}

	gen, err := openGeneration(context.Background(), r.nextGen.Add(1), cfg, r.generationDeps())
	if err != nil {
		r.reloadFailed(cfg, err, start)
		return err
	}

	old := r.current.Swap(gen)
	old.retiredAt = time.Now()
	r.retired = append(r.retired, old)

	r.logger.Info("configuration reloaded",
		log.Int64("generation", int64(gen.id)),
		log.Mode(cfg.Mode),
		log.Any("targets", cfg.TargetNames()),
		log.Int("retired", len(r.retired)),
	)
	r.bus.reload(ReloadEvent{
		Generation: gen.id,
		Targets:    cfg.TargetNames(),
		Mode:       cfg.Mode,
		Duration:   time.Since(start),
	})
	return nil
}

func (r *Router) reloadFailed(cfg Config, err error, start time.Time) {
	cur := r.current.Load()
	r.logger.Error("configuration reload failed",
		log.Int64("generation", int64(cur.id)),
		log.Err(err),
	)
	r.bus.reload(ReloadEvent{
		Generation: cur.id,
		Targets:    cfg.TargetNames(),
		Mode:       cfg.Mode,
		Duration:   time.Since(start),
		Err:        err,
	})
}

// Invalidate revokes the current registry. Until the next Reload or Restore,
// routing fails with ErrConfigurationUnavailable and falls back to the
// default connection when one is configured.
func (r *Router) Invalidate(cause error) {
	if cause == nil {
		cause = errors.New("invalidated")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	gen := r.current.Load()
	gen.holder.Revoke(cause)

	r.logger.Warn("configuration invalidated",
		log.Int64("generation", int64(gen.id)),
		log.Err(cause),
	)
	r.bus.reload(ReloadEvent{
		Generation:  gen.id,
		Targets:     gen.config.TargetNames(),
		Mode:        gen.config.Mode,
		Invalidated: true,
		Err:         cause,
	})
}

// Restore clears a revocation made by Invalidate.
func (r *Router) Restore() {
	r.mu.Lock()
	defer r.mu.Unlock()

	gen := r.current.Load()
	if gen.holder.Revoked() == nil {
		return
	}
	gen.holder.Restore()
	r.logger.Info("configuration restored", log.Int64("generation", int64(gen.id)))
}

// Invalidated returns the cause passed to Invalidate while the current
// registry is revoked, and nil otherwise.
func (r *Router) Invalidated() error {
	return r.current.Load().holder.Revoked()
}

// Registry returns the current registry, or the revocation error.
func (r *Router) Registry() (*registry.Registry[*sql.DB], error) {
	return r.current.Load().holder.Registry()
}

// CloseRetired closes the handles of generations retired at least grace ago
// and reports how many generations were closed.
func (r *Router) CloseRetired(grace time.Duration) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	var (
		keep   []*generation
		closed int
		errs   []error
	)
	for _, g := range r.retired {
		if now.Sub(g.retiredAt) < grace {
			keep = append(keep, g)
			continue
		}
		if err := g.close(); err != nil {
			errs = append(errs, fmt.Errorf("generation %d: %w", g.id, err))
		}
		closed++
	}
	r.retired = keep

	if closed > 0 {
		r.logger.Info("closed retired handles",
			log.Int("generations", closed),
			log.Int("remaining", len(keep)),
		)
	}
	return closed, errors.Join(errs...)
}

// Retired returns the number of retired generations whose handles are still open.
func (r *Router) Retired() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.retired)
}

// Close stops the router if it is running and closes every handle.
// Begin fails with ErrRouterClosed afterwards.
func (r *Router) Close() error {
	var errs []error
	if r.lifecycle.CanStop() {
		if err := r.Stop(); err != nil {
			errs = append(errs, err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRouterClosed
	}
	r.closed = true

	for _, g := range r.retired {
		if err := g.close(); err != nil {
			errs = append(errs, err)
		}
	}
	r.retired = nil
	if err := r.current.Load().close(); err != nil {
		errs = append(errs, err)
	}

	r.logger.Info("router closed")
	return errors.Join(errs...)
}

func (r *Router) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}
