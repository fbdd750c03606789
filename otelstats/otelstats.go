// Package otelstats provides composer.Instrumenter recording OpenTelemetry
// metrics and spans for every pipeline step.
package otelstats

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/andriiyaremenko/composer"
	"github.com/andriiyaremenko/composer/internal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// instrumentationName is the instrumentation scope name for composer metrics and spans.
const instrumentationName = "github.com/andriiyaremenko/composer"

const (
	statusOK    = "ok"
	statusError = "error"
	anonymous   = "anonymous"
)

// Contexter is implemented by context values carrying context.Context, like *http.Request.
// Step spans are started as children of that context.
type Contexter interface {
	Context() context.Context
}

var _ composer.Instrumenter[any, any] = new(Stats[any, any])

// Stats is composer.Instrumenter backed by OpenTelemetry.
//
// Instruments:
//   - composer.step.duration (Float64Histogram): time from step start until it calls next, in seconds,
//     with attributes: step, kind, status ("ok" or "error")
//   - composer.step.executions (Int64Counter): total step executions,
//     with the same attributes
//
// Every step is also wrapped in a "composer.step" span.
// A step that never calls next is not recorded.
type Stats[C, R any] struct {
	tracer     trace.Tracer
	duration   metric.Float64Histogram
	executions metric.Int64Counter
}

// New returns Stats using global MeterProvider and TracerProvider.
// If none is configured noop instruments are used.
func New[C, R any]() *Stats[C, R] {
	return NewWith[C, R](otel.Meter(instrumentationName), otel.Tracer(instrumentationName))
}

// NewWith returns Stats using provided meter and tracer.
func NewWith[C, R any](meter metric.Meter, tracer trace.Tracer) *Stats[C, R] {
	// on error OTel API returns noop instruments
	duration, _ := meter.Float64Histogram(
		"composer.step.duration",
		metric.WithDescription("Duration of pipeline step in seconds"),
		metric.WithUnit("s"),
	)

	executions, _ := meter.Int64Counter(
		"composer.step.executions",
		metric.WithDescription("Total number of pipeline step executions"),
		metric.WithUnit("{execution}"),
	)

	return &Stats[C, R]{tracer: tracer, duration: duration, executions: executions}
}

// Implementation of composer.Instrumenter.
func (s *Stats[C, R]) WrapHandler(name string, h composer.HandlerFunc[C, R]) composer.HandlerFunc[C, R] {
	return func(c C, r R, next composer.Next) {
		observed, fail := s.start(c, name, composer.KindHandler, next)
		defer fail()

		h(c, r, observed)
	}
}

// Implementation of composer.Instrumenter.
func (s *Stats[C, R]) WrapErrorTrap(name string, t composer.ErrorTrapFunc[C, R]) composer.ErrorTrapFunc[C, R] {
	return func(err error, c C, r R, next composer.Next) {
		observed, fail := s.start(c, name, composer.KindErrorTrap, next)
		defer fail()

		t(err, c, r, observed)
	}
}

// start opens span for the step and returns continuation closing it
// and a deferred func recording a panic that escaped the step.
func (s *Stats[C, R]) start(c C, name string, kind composer.Kind, next composer.Next) (composer.Next, func()) {
	if name == "" {
		name = anonymous
	}

	ctx, span := s.tracer.Start(contextOf(c), "composer.step",
		trace.WithAttributes(
			attribute.String("composer.step.name", name),
			attribute.String("composer.step.kind", kind.String()),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)

	start := time.Now()

	var finished atomic.Bool
	finish := func(err error) bool {
		if !finished.CompareAndSwap(false, true) {
			return false
		}

		elapsed := time.Since(start).Seconds()

		status := statusOK
		if err != nil {
			status = statusError

			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}

		span.End()

		attrs := metric.WithAttributes(
			attribute.String("step", name),
			attribute.String("kind", kind.String()),
			attribute.String("status", status),
		)

		s.duration.Record(ctx, elapsed, attrs)
		s.executions.Add(ctx, 1, attrs)

		return true
	}

	observed := func(err error) {
		if finish(err) {
			next(err)
		}
	}

	fail := func() {
		if v := recover(); v != nil {
			err, ok := v.(error)
			if !ok {
				err = composer.NewPanicError(v, nil)
			}

			finish(err)
			panic(v)
		}
	}

	return observed, fail
}

func contextOf(v any) context.Context {
	if internal.IsNil(v) {
		return context.Background()
	}

	switch c := v.(type) {
	case context.Context:
		return c
	case Contexter:
		if ctx := c.Context(); ctx != nil {
			return ctx
		}
	}

	return context.Background()
}
