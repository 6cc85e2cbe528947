// Package configwatcher reloads a dbrouter.Router when its configuration
// file changes. A file that cannot be read or parsed revokes the current
// registry, which puts sessions into degraded mode until a valid file
// appears again.
package configwatcher

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/dbrouter/internal/app"
	"github.com/bft-labs/dbrouter/pkg/dbrouter"
	"github.com/bft-labs/dbrouter/pkg/log"
)

// Loader reads a router configuration from path.
type Loader func(path string) (dbrouter.Config, error)

// Config holds configuration options for the config watcher plugin.
type Config struct {
	// Path overrides the file named by PluginConfig.ConfigPath.
	Path string

	// DebounceDelay coalesces bursts of file events. Default: 100ms
	DebounceDelay time.Duration

	// Retries is how many times a failing load is retried before the
	// registry is invalidated. Default: 3
	Retries int

	// RetryInterval is the initial delay between retries. Default: 200ms
	RetryInterval time.Duration

	// KeepOnError leaves the current registry in place when the file
	// cannot be loaded, instead of invalidating it.
	KeepOnError bool

	// Loader parses the file. Default: dbrouter.LoadConfigFile
	Loader Loader
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DebounceDelay: 100 * time.Millisecond,
		Retries:       3,
		RetryInterval: 200 * time.Millisecond,
		Loader:        dbrouter.LoadConfigFile,
	}
}

// Plugin watches the configuration file and drives Reload and Invalidate.
type Plugin struct {
	mu sync.Mutex

	cfg Config

	path       string
	logger     log.Logger
	controller dbrouter.Controller
	debounce   *time.Timer
	cancel     context.CancelFunc
	wg         sync.WaitGroup

	// serializes apply; timers may overlap
	applyMu sync.Mutex
}

// New creates a new config watcher plugin with the given configuration.
func New(cfg Config) *Plugin {
	def := DefaultConfig()
	if cfg.DebounceDelay <= 0 {
		cfg.DebounceDelay = def.DebounceDelay
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = def.RetryInterval
	}
	if cfg.Loader == nil {
		cfg.Loader = def.Loader
	}
	return &Plugin{cfg: cfg}
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return "configwatcher"
}

// Initialize starts watching the configuration file's directory.
func (p *Plugin) Initialize(ctx context.Context, cfg dbrouter.PluginConfig) error {
	p.mu.Lock()
	p.path = p.cfg.Path
	if p.path == "" {
		p.path = cfg.ConfigPath
	}
	p.logger = cfg.Logger
	if p.logger == nil {
		p.logger = log.NoopLogger{}
	}
	p.controller = cfg.Controller
	p.mu.Unlock()

	if p.path == "" || p.controller == nil {
		p.logger.Warn("config watcher disabled: no configuration file")
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(p.path)); err != nil {
		_ = watcher.Close()
		return err
	}

	watchCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.logger.Info("config watcher plugin initialized", log.String("path", p.path))

	p.wg.Add(1)
	go p.watchLoop(watchCtx, watcher)
	return nil
}

// Shutdown stops the watcher and waits for a pending reload to finish.
func (p *Plugin) Shutdown(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	p.mu.Lock()
	if p.debounce != nil {
		p.debounce.Stop()
	}
	p.mu.Unlock()

	p.wg.Wait()
	p.applyMu.Lock()
	defer p.applyMu.Unlock()
	return nil
}

func (p *Plugin) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer p.wg.Done()
	defer watcher.Close()

	name := filepath.Base(p.path)
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			p.debounceApply(ctx)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			p.logger.Error("config watcher error", log.Err(err))
		}
	}
}

func (p *Plugin) debounceApply(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.debounce != nil {
		p.debounce.Stop()
	}
	p.debounce = time.AfterFunc(p.cfg.DebounceDelay, func() {
		p.apply(ctx)
	})
}

// apply loads the file, retrying with backoff, and hands the result to the router.
func (p *Plugin) apply(ctx context.Context) {
	p.applyMu.Lock()
	defer p.applyMu.Unlock()

	if ctx.Err() != nil {
		return
	}

	cfg, err := p.load(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		if p.cfg.KeepOnError {
			p.logger.Error("config reload skipped, keeping current targets",
				log.String("path", p.path), log.Err(err))
			return
		}
		p.logger.Error("config unreadable, invalidating targets",
			log.String("path", p.path), log.Err(err))
		p.controller.Invalidate(err)
		return
	}

	if reflect.DeepEqual(cfg, p.controller.Config()) {
		if cause := p.controller.Invalidated(); cause != nil {
			p.controller.Restore()
			p.logger.Info("config readable again, targets restored",
				log.String("path", p.path), log.Err(cause))
			return
		}
		p.logger.Debug("config unchanged", log.String("path", p.path))
		return
	}

	if err := p.controller.Reload(cfg); err != nil {
		p.logger.Error("config reload failed", log.String("path", p.path), log.Err(err))
		return
	}
	p.logger.Info("config reloaded", log.String("path", p.path))
}

func (p *Plugin) load(ctx context.Context) (dbrouter.Config, error) {
	b := app.NewBackoff(p.cfg.RetryInterval, 8*p.cfg.RetryInterval)
	for attempt := 0; ; attempt++ {
		cfg, err := p.cfg.Loader(p.path)
		if err == nil {
			return cfg, nil
		}
		if attempt >= p.cfg.Retries {
			return dbrouter.Config{}, err
		}
		p.logger.Debug("config load failed, retrying",
			log.Int("attempt", attempt+1),
			log.Duration("delay", b.Current()),
			log.Err(err))
		if werr := b.Wait(ctx); werr != nil {
			return dbrouter.Config{}, werr
		}
	}
}

var _ dbrouter.Plugin = (*Plugin)(nil)
