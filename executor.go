package composer

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync/atomic"

	"github.com/google/uuid"
)

// Run executes the stack against c and r and calls done exactly once with the error
// left at the end of the stack.
//
// Every step, including the first one, starts on a fresh Scheduler turn.
// While no error is active Handlers run and ErrorTraps are skipped;
// while an error is active Handlers are skipped and the next ErrorTrap receives it.
// A panic inside a step is treated as the step calling next with the panic value.
// A nil done is allowed: the final error is then only logged.
func (p *Pipeline[C, R]) Run(c C, r R, done func(error)) {
	rs := &runState[C, R]{
		stack:     p.prepare(),
		c:         c,
		r:         r,
		done:      done,
		scheduler: p.sched(),
		logger:    p.log(),
	}

	if rs.logger.Enabled(context.Background(), slog.LevelDebug) {
		rs.logger = rs.logger.With(slog.String("run_id", uuid.NewString()))
		rs.logger.Debug("pipeline run started", slog.Int("steps", len(rs.stack)))
	}

	rs.schedule(0, nil)
}

// runState is the state of a single Pipeline execution.
// Position and active error travel as arguments between steps.
type runState[C, R any] struct {
	stack     []Entry[C, R]
	c         C
	r         R
	done      func(error)
	scheduler Scheduler
	logger    *slog.Logger
}

func (rs *runState[C, R]) schedule(index int, err error) {
	rs.scheduler.Schedule(func() { rs.step(index, err) })
}

func (rs *runState[C, R]) step(index int, err error) {
	if index >= len(rs.stack) {
		rs.finish(err)

		return
	}

	e := rs.stack[index]
	index++

	if !e.IsResolved() {
		rs.logger.Debug("missing middleware",
			slog.Int("index", index-1),
			slog.String("step", e.name),
		)
		rs.schedule(index, ErrMissingMiddleware)

		return
	}

	switch {
	case err != nil && e.kind == KindErrorTrap:
		rs.invoke(index, e, func(next Next) { e.trap(err, rs.c, rs.r, next) })
	case err != nil:
		rs.schedule(index, err)
	case e.kind == KindHandler:
		rs.invoke(index, e, func(next Next) { e.handler(rs.c, rs.r, next) })
	default:
		rs.schedule(index, nil)
	}
}

// invoke calls the step with a one-shot continuation scheduling the step at index.
func (rs *runState[C, R]) invoke(index int, e Entry[C, R], call func(Next)) {
	var called atomic.Bool

	next := func(err error) {
		if !called.CompareAndSwap(false, true) {
			rs.logger.Debug("continuation called more than once",
				slog.Int("index", index-1),
				slog.String("step", e.name),
				slog.Any("error", err),
			)

			return
		}

		rs.schedule(index, err)
	}

	defer func() {
		if v := recover(); v != nil {
			stack := debug.Stack()

			rs.logger.Debug("step panicked",
				slog.Int("index", index-1),
				slog.String("step", e.name),
				slog.Any("panic", v),
				slog.String("stack", string(stack)),
			)

			next(recovered(v, stack))
		}
	}()

	call(next)
}

func (rs *runState[C, R]) finish(err error) {
	rs.logger.Debug("pipeline run finished", slog.Any("error", err))

	if rs.done == nil {
		if err != nil {
			rs.logger.Debug("unobserved pipeline error", slog.String("error", err.Error()))
		}

		return
	}

	rs.done(err)
}
