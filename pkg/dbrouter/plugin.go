package dbrouter

import (
	"context"
	"time"

	"github.com/bft-labs/dbrouter/pkg/log"
)

// Plugin extends a Router with background behavior. Plugins are initialized
// by Start in registration order and shut down by Stop in reverse order.
type Plugin interface {
	Name() string
	Initialize(ctx context.Context, cfg PluginConfig) error
	Shutdown(ctx context.Context) error
}

// Controller is the part of the Router that plugins may drive.
type Controller interface {
	Config() Config
	Generation() uint64
	Reload(cfg Config) error
	Invalidate(cause error)
	Restore()
	Invalidated() error
	CloseRetired(grace time.Duration) (int, error)
}

// PluginConfig is handed to Plugin.Initialize.
type PluginConfig struct {
	// ConfigPath is the file the router configuration was loaded from, if any.
	ConfigPath string

	Logger     log.Logger
	Controller Controller

	// Subscribe registers an additional event handler.
	Subscribe func(EventHandler)
}
