package composer

import (
	"log/slog"
	"sync/atomic"

	"github.com/andriiyaremenko/composer/internal"
)

// Options is the configuration a Pipeline captures once, when it is composed.
type Options struct {
	// Defers every step. Goroutine if nil.
	Scheduler Scheduler
	// Debug diagnostics of the engine. Discarded if nil.
	Logger *slog.Logger
	// Instrumenter[C, R] matching the composed Pipeline; other values are ignored.
	Instrumenter any
}

// Option modifies Options.
type Option func(*Options)

// Option that specifies Scheduler used to defer steps.
func WithScheduler(scheduler Scheduler) Option {
	return func(o *Options) {
		o.Scheduler = scheduler
	}
}

// Option that specifies logger for engine diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// Option that specifies Instrumenter wrapping every step.
func WithInstrumenter[C, R any](instrumenter Instrumenter[C, R]) Option {
	return func(o *Options) {
		o.Instrumenter = instrumenter
	}
}

var defaults atomic.Pointer[Options]

func init() {
	defaults.Store(&Options{})
}

// SetDefaults replaces process-wide Options used by Compose and New.
// Pipelines composed earlier keep their configuration.
// Calling restore brings back previous defaults.
func SetDefaults(opts ...Option) (restore func()) {
	next := &Options{}
	for _, option := range opts {
		option(next)
	}

	prev := defaults.Swap(next)

	return func() {
		defaults.Store(prev)
	}
}

// Returns copy of current process-wide Options.
func Defaults() Options {
	return *defaults.Load()
}

// Composer creates Pipelines sharing one configuration.
type Composer[C, R any] struct {
	scheduler    Scheduler
	logger       *slog.Logger
	instrumenter Instrumenter[C, R]
}

// Returns new Composer configured with process-wide defaults overridden by opts.
func New[C, R any](opts ...Option) *Composer[C, R] {
	o := Defaults()
	for _, option := range opts {
		option(&o)
	}

	c := &Composer[C, R]{
		scheduler: o.Scheduler,
		logger:    o.Logger,
	}

	if c.scheduler == nil {
		c.scheduler = Goroutine
	}

	if c.logger == nil {
		c.logger = discard
	}

	if o.Instrumenter != nil {
		in, ok := o.Instrumenter.(Instrumenter[C, R])
		if !ok {
			c.logger.Debug("instrumenter ignored: type does not match pipeline",
				slog.String("instrumenter", internal.TypeName(o.Instrumenter)),
			)
		}

		c.instrumenter = in
	}

	return c
}

// Compose returns new Pipeline built from sources in argument order.
func (c *Composer[C, R]) Compose(sources ...any) *Pipeline[C, R] {
	p := &Pipeline[C, R]{
		scheduler:    c.scheduler,
		logger:       c.logger,
		instrumenter: c.instrumenter,
	}

	p.stack = normalize[C, R](p.logger, sources)
	p.dirty = p.instrumenter != nil

	return p
}

// Compose returns new Pipeline built from sources using process-wide defaults.
func Compose[C, R any](sources ...any) *Pipeline[C, R] {
	return New[C, R]().Compose(sources...)
}
