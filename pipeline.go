package composer

import (
	"log/slog"
	"slices"
	"sync"
)

var _ Handler[any, any] = new(Pipeline[any, any])

var discard = slog.New(slog.DiscardHandler)

// Pipeline is an ordered stack of Handlers and ErrorTraps run one step at a time.
//
// Stack is never modified in place: every mutation stores a new slice, so each run
// works on the stack it saw when it started, even if the Pipeline is edited meanwhile.
// Zero value is an empty Pipeline using process-independent defaults:
// Goroutine Scheduler, no logging and no Instrumenter.
type Pipeline[C, R any] struct {
	mu    sync.RWMutex
	stack []Entry[C, R]
	// stack has entries not yet passed through instrumenter
	dirty bool
	// serializes wrapping, held without mu so wrappers may read the Pipeline
	wrapping sync.Mutex

	scheduler    Scheduler
	logger       *slog.Logger
	instrumenter Instrumenter[C, R]
}

// Returns copy of the stack.
func (p *Pipeline[C, R]) Stack() []Entry[C, R] {
	return slices.Clone(p.snapshot())
}

// Returns names of stack entries in order, empty string for anonymous entries.
func (p *Pipeline[C, R]) Names() []string {
	stack := p.snapshot()
	names := make([]string, len(stack))

	for i, e := range stack {
		names[i] = e.name
	}

	return names
}

// Returns number of stack entries.
func (p *Pipeline[C, R]) Len() int {
	return len(p.snapshot())
}

// Handle runs the Pipeline as a single step of another chain.
// Error left at the end of the Pipeline is passed to next.
func (p *Pipeline[C, R]) Handle(c C, r R, next Next) {
	p.Run(c, r, func(err error) { next(err) })
}

func (p *Pipeline[C, R]) log() *slog.Logger {
	if p.logger == nil {
		return discard
	}

	return p.logger
}

func (p *Pipeline[C, R]) sched() Scheduler {
	if p.scheduler == nil {
		return Goroutine
	}

	return p.scheduler
}

func (p *Pipeline[C, R]) snapshot() []Entry[C, R] {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.stack
}

func (p *Pipeline[C, R]) update(rewrite func([]Entry[C, R]) []Entry[C, R]) *Pipeline[C, R] {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stack = rewrite(p.stack)
	p.dirty = p.instrumenter != nil

	return p
}

// prepare returns the stack for a new run, wrapping entries not yet instrumented.
// Wrappers run without holding mu; the result is stored only if the stack
// was not edited meanwhile, otherwise wrapping starts over.
func (p *Pipeline[C, R]) prepare() []Entry[C, R] {
	stack, dirty := p.dirtySnapshot()
	if !dirty {
		return stack
	}

	p.wrapping.Lock()
	defer p.wrapping.Unlock()

	for {
		stack, dirty = p.dirtySnapshot()
		if !dirty {
			return stack
		}

		wrapped := make([]Entry[C, R], len(stack))
		for i, e := range stack {
			wrapped[i] = e.instrument(p.instrumenter)
		}

		p.mu.Lock()
		if sameStack(p.stack, stack) {
			p.stack = wrapped
			p.dirty = false
			p.mu.Unlock()

			return wrapped
		}
		p.mu.Unlock()
	}
}

func (p *Pipeline[C, R]) dirtySnapshot() ([]Entry[C, R], bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.stack, p.dirty
}

// sameStack reports whether a and b are the same slice, not just equal entries.
func sameStack[C, R any](a, b []Entry[C, R]) bool {
	if len(a) != len(b) {
		return false
	}

	return len(a) == 0 || &a[0] == &b[0]
}
