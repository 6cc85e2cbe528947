package dbrouter

import (
	"github.com/bft-labs/dbrouter/pkg/classify"
	"github.com/bft-labs/dbrouter/pkg/log"
)

// Logger is the structured logger used by the router.
type Logger = log.Logger

// Option configures optional behavior of a Router.
type Option func(*options)

type options struct {
	logger     log.Logger
	handlers   []EventHandler
	plugins    []Plugin
	opener     Opener
	classifier classify.Classifier
	configPath string
	newID      func() string
}

func defaultOptions() options {
	return options{
		logger: log.NoopLogger{},
		opener: OpenDB,
	}
}

// WithLogger sets the logger. If not provided, nothing is logged.
func WithLogger(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithEventHandler adds a handler for router events. May be given more than once.
func WithEventHandler(handler EventHandler) Option {
	return func(o *options) {
		o.handlers = append(o.handlers, handler)
	}
}

// WithPlugin registers a plugin to be initialized when the router starts.
func WithPlugin(plugin Plugin) Option {
	return func(o *options) {
		o.plugins = append(o.plugins, plugin)
	}
}

// WithOpener replaces the function that opens database handles.
func WithOpener(opener Opener) Option {
	return func(o *options) {
		o.opener = opener
	}
}

// WithClassifier replaces the statement classifier. The default is a
// cached keyword classifier.
func WithClassifier(c classify.Classifier) Option {
	return func(o *options) {
		o.classifier = c
	}
}

// WithConfigPath records the file the configuration came from. Plugins such
// as the config watcher read it from PluginConfig.
func WithConfigPath(path string) Option {
	return func(o *options) {
		o.configPath = path
	}
}

// WithIDGenerator replaces the session ID generator.
func WithIDGenerator(fn func() string) Option {
	return func(o *options) {
		o.newID = fn
	}
}
