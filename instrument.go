package composer

import (
	"log/slog"
	"time"
)

// Instrumenter wraps pipeline steps, e.g. to collect statistics.
// Every entry is wrapped once, before the first run that reaches the Pipeline after
// the entry was added. Returning nil keeps the step unchanged.
type Instrumenter[C, R any] interface {
	WrapHandler(name string, h HandlerFunc[C, R]) HandlerFunc[C, R]
	WrapErrorTrap(name string, t ErrorTrapFunc[C, R]) ErrorTrapFunc[C, R]
}

// InstrumenterFuncs adapts a pair of functions to Instrumenter.
// Nil fields leave the matching kind of steps unchanged.
type InstrumenterFuncs[C, R any] struct {
	Handler   func(name string, h HandlerFunc[C, R]) HandlerFunc[C, R]
	ErrorTrap func(name string, t ErrorTrapFunc[C, R]) ErrorTrapFunc[C, R]
}

// Implementation of Instrumenter.
func (fns InstrumenterFuncs[C, R]) WrapHandler(name string, h HandlerFunc[C, R]) HandlerFunc[C, R] {
	if fns.Handler == nil {
		return h
	}

	return fns.Handler(name, h)
}

// Implementation of Instrumenter.
func (fns InstrumenterFuncs[C, R]) WrapErrorTrap(name string, t ErrorTrapFunc[C, R]) ErrorTrapFunc[C, R] {
	if fns.ErrorTrap == nil {
		return t
	}

	return fns.ErrorTrap(name, t)
}

// Chain applies instrumenters in order: the last one is the outermost wrapper.
func Chain[C, R any](instrumenters ...Instrumenter[C, R]) Instrumenter[C, R] {
	return InstrumenterFuncs[C, R]{
		Handler: func(name string, h HandlerFunc[C, R]) HandlerFunc[C, R] {
			for _, in := range instrumenters {
				if wrapped := in.WrapHandler(name, h); wrapped != nil {
					h = wrapped
				}
			}

			return h
		},
		ErrorTrap: func(name string, t ErrorTrapFunc[C, R]) ErrorTrapFunc[C, R] {
			for _, in := range instrumenters {
				if wrapped := in.WrapErrorTrap(name, t); wrapped != nil {
					t = wrapped
				}
			}

			return t
		},
	}
}

// Logging returns Instrumenter that logs start and completion of every step.
// Completion is the moment the step calls its continuation.
func Logging[C, R any](logger *slog.Logger) Instrumenter[C, R] {
	if logger == nil {
		logger = slog.Default()
	}

	observe := func(name string, kind Kind, next Next) Next {
		logger.Info("step started",
			slog.String("step", name),
			slog.String("kind", kind.String()),
		)

		start := time.Now()

		return func(err error) {
			elapsed := time.Since(start)

			if err != nil {
				logger.Error("step failed",
					slog.String("step", name),
					slog.String("kind", kind.String()),
					slog.Duration("elapsed", elapsed),
					slog.String("error", err.Error()),
				)
			} else {
				logger.Info("step completed",
					slog.String("step", name),
					slog.String("kind", kind.String()),
					slog.Duration("elapsed", elapsed),
				)
			}

			next(err)
		}
	}

	return InstrumenterFuncs[C, R]{
		Handler: func(name string, h HandlerFunc[C, R]) HandlerFunc[C, R] {
			return func(c C, r R, next Next) {
				h(c, r, observe(name, KindHandler, next))
			}
		},
		ErrorTrap: func(name string, t ErrorTrapFunc[C, R]) ErrorTrapFunc[C, R] {
			return func(err error, c C, r R, next Next) {
				t(err, c, r, observe(name, KindErrorTrap, next))
			}
		},
	}
}
