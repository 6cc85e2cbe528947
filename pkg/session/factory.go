package session

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/bft-labs/dbrouter/internal/domain"
	"github.com/bft-labs/dbrouter/pkg/classify"
	"github.com/bft-labs/dbrouter/pkg/log"
	"github.com/bft-labs/dbrouter/pkg/registry"
	"github.com/bft-labs/dbrouter/pkg/routing"
)

// Option configures optional behavior of a Factory.
type Option func(*options)

type options struct {
	classifier classify.Classifier
	logger     log.Logger
	observer   Observer
	newID      func() string
}

// WithClassifier sets the classifier used by the implicit policy.
// If not provided, classify.Keywords is used.
func WithClassifier(c classify.Classifier) Option {
	return func(o *options) {
		o.classifier = c
	}
}

// WithLogger sets the logger for routing decisions.
// If not provided, a no-op logger is used.
func WithLogger(l log.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithObserver sets the receiver of routing outcomes.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		o.observer = obs
	}
}

// WithIDGenerator replaces the session ID generator (random UUIDs by default).
func WithIDGenerator(fn func() string) Option {
	return func(o *options) {
		o.newID = fn
	}
}

// env is shared, read-only state of every session created by one factory.
type env[H any] struct {
	source   registry.Source[H]
	policy   routing.Policy
	logger   log.Logger
	observer Observer
	newID    func() string
}

// Factory creates sessions bound to one registry source and one routing mode.
// The mode cannot be changed; build a new factory instead.
type Factory[H any] struct {
	env *env[H]
}

// NewFactory returns a factory serving sessions from source under mode.
func NewFactory[H any](source registry.Source[H], mode domain.Mode, opts ...Option) (*Factory[H], error) {
	if source == nil {
		return nil, fmt.Errorf("%w: registry source is required", domain.ErrInvalidConfig)
	}
	if mode != domain.ModeImplicit && mode != domain.ModeExplicit {
		return nil, fmt.Errorf("%w: unknown routing mode %d", domain.ErrInvalidConfig, int(mode))
	}

	o := options{
		logger:   log.NoopLogger{},
		observer: noopObserver{},
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.NoopLogger{}
	}
	if o.observer == nil {
		o.observer = noopObserver{}
	}
	if o.newID == nil {
		o.newID = uuid.NewString
	}

	return &Factory[H]{env: &env[H]{
		source:   source,
		policy:   routing.New(mode, o.classifier),
		logger:   o.logger,
		observer: o.observer,
		newID:    o.newID,
	}}, nil
}

// Begin starts a new session with no override that is not dirty.
func (f *Factory[H]) Begin() *Session[H] {
	id := f.env.newID()
	s := &Session[H]{
		id:     id,
		env:    f.env,
		logger: log.With(f.env.logger, log.SessionID(id)),
	}
	s.logger.Debug("session started", log.Mode(f.env.policy.Mode()))
	return s
}

// Mode returns the routing mode of every session this factory creates.
func (f *Factory[H]) Mode() domain.Mode {
	return f.env.policy.Mode()
}

// Policy returns the factory's routing policy.
func (f *Factory[H]) Policy() routing.Policy {
	return f.env.policy
}

// Source returns the registry source sessions resolve against.
func (f *Factory[H]) Source() registry.Source[H] {
	return f.env.source
}
