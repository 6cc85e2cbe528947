// Package handlereaper closes the database handles of configurations that
// a reload replaced, once they have been retired for a grace period.
package handlereaper

import (
	"context"
	"sync"
	"time"

	"github.com/bft-labs/dbrouter/pkg/dbrouter"
	"github.com/bft-labs/dbrouter/pkg/log"
)

// Config holds configuration options for the handle reaper plugin.
type Config struct {
	// CheckInterval is how often retired handles are inspected.
	// Default: 1 minute
	CheckInterval time.Duration

	// Grace is how long a retired configuration keeps its handles open so
	// sessions begun before the reload can finish. Default: 5 minutes
	Grace time.Duration

	// ReapOnShutdown closes every retired handle when the plugin stops.
	ReapOnShutdown bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		CheckInterval:  time.Minute,
		Grace:          5 * time.Minute,
		ReapOnShutdown: true,
	}
}

// Plugin periodically calls Controller.CloseRetired.
type Plugin struct {
	mu sync.RWMutex

	checkInterval  time.Duration
	grace          time.Duration
	reapOnShutdown bool

	controller dbrouter.Controller
	logger     log.Logger
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

// New creates a new handle reaper plugin with the given configuration.
func New(cfg Config) *Plugin {
	def := DefaultConfig()
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = def.CheckInterval
	}
	if cfg.Grace < 0 {
		cfg.Grace = def.Grace
	}
	return &Plugin{
		checkInterval:  cfg.CheckInterval,
		grace:          cfg.Grace,
		reapOnShutdown: cfg.ReapOnShutdown,
	}
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return "handlereaper"
}

// Initialize starts the reaping loop.
func (p *Plugin) Initialize(ctx context.Context, cfg dbrouter.PluginConfig) error {
	p.mu.Lock()
	p.controller = cfg.Controller
	p.logger = cfg.Logger
	if p.logger == nil {
		p.logger = log.NoopLogger{}
	}
	p.mu.Unlock()

	if p.controller == nil {
		p.logger.Warn("handle reaper disabled: no controller")
		return nil
	}

	reapCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.logger.Info("handle reaper plugin initialized",
		log.Duration("interval", p.checkInterval),
		log.Duration("grace", p.grace))

	p.wg.Add(1)
	go p.reapLoop(reapCtx)
	return nil
}

// Shutdown stops the loop and, if configured, closes every retired handle.
func (p *Plugin) Shutdown(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()

	p.mu.RLock()
	ctl := p.controller
	p.mu.RUnlock()

	if !p.reapOnShutdown || ctl == nil {
		return nil
	}
	_, err := ctl.CloseRetired(0)
	return err
}

func (p *Plugin) reapLoop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.reapOnce()
		}
	}
}

// reapOnce closes retired handles older than the grace period.
func (p *Plugin) reapOnce() {
	p.mu.RLock()
	ctl := p.controller
	p.mu.RUnlock()

	n, err := ctl.CloseRetired(p.grace)
	if err != nil {
		p.logger.Error("handle reaper: close failed", log.Err(err))
	}
	if n > 0 {
		p.logger.Debug("handle reaper: closed retired generations", log.Int("count", n))
	}
}

var _ dbrouter.Plugin = (*Plugin)(nil)
