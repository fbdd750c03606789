package plan

import (
	"context"
	"errors"
	"fmt"

	"github.com/andriiyaremenko/composer"
)

var (
	// Returned by Build when a plan names middleware missing from the Registry.
	ErrUnknownHandler = errors.New("unknown handler")
	// Returned by Build for edits with unsupported op.
	ErrUnknownEdit = errors.New("unknown edit")
	// Returned by Build for edits missing a selector.
	ErrInvalidEdit = errors.New("invalid edit")
	// Returned by Build for unsupported Plan.Scheduler.
	ErrUnknownScheduler = errors.New("unknown scheduler")
)

// Build composes Pipeline described by p from middleware registered in reg
// and applies p.Edits in order.
// Plan scheduler "loop" starts composer.EventLoop living until ctx is done;
// it takes precedence over a scheduler passed in opts.
func Build[C, R any](ctx context.Context, p *Plan, reg *Registry[C, R], opts ...composer.Option) (*composer.Pipeline[C, R], error) {
	if p == nil {
		return nil, fmt.Errorf("plan is nil")
	}

	if reg == nil {
		reg = NewRegistry[C, R]()
	}

	switch p.Scheduler {
	case "", SchedulerGoroutine, SchedulerLoop:
	default:
		return nil, fmt.Errorf("plan %q: %q: %w", p.Name, p.Scheduler, ErrUnknownScheduler)
	}

	stack, err := resolve(reg, p.Stack)
	if err != nil {
		return nil, fmt.Errorf("plan %q stack: %w", p.Name, err)
	}

	for i, edit := range p.Edits {
		if _, err := resolve(reg, edit.Use); err != nil {
			return nil, fmt.Errorf("plan %q edit %d: %w", p.Name, i, err)
		}
	}

	if p.Scheduler == SchedulerLoop {
		opts = append(opts, composer.WithScheduler(composer.NewEventLoop(ctx)))
	}

	pipeline := composer.New[C, R](opts...).Compose(stack...)

	for i, edit := range p.Edits {
		if err := apply(pipeline, reg, edit); err != nil {
			return nil, fmt.Errorf("plan %q edit %d: %w", p.Name, i, err)
		}
	}

	return pipeline, nil
}

func apply[C, R any](pipeline *composer.Pipeline[C, R], reg *Registry[C, R], edit Edit) error {
	sources, err := resolve(reg, edit.Use)
	if err != nil {
		return err
	}

	switch edit.Op {
	case OpPush:
		pipeline.Push(sources...)

		return nil
	case OpUnshift:
		pipeline.Unshift(sources...)

		return nil
	case OpBefore, OpAfter, OpReplace, OpRemove:
	default:
		return fmt.Errorf("%q: %w", edit.Op, ErrUnknownEdit)
	}

	if edit.Selector == "" {
		return fmt.Errorf("%s requires selector: %w", edit.Op, ErrInvalidEdit)
	}

	switch edit.Op {
	case OpBefore:
		pipeline.Before(edit.Selector, sources...)
	case OpAfter:
		pipeline.After(edit.Selector, sources...)
	case OpReplace:
		pipeline.Replace(edit.Selector, sources...)
	case OpRemove:
		pipeline.Remove(edit.Selector)
	}

	return nil
}

// resolve looks refs up in reg.
// Pipelines are spliced, so edits can address their steps by own names.
// Other callable sources are added under ref name; anything else, like a group of
// middleware or a mapping, is spliced as registered.
func resolve[C, R any](reg *Registry[C, R], refs []Ref) ([]any, error) {
	sources := make([]any, 0, len(refs))

	for i, ref := range refs {
		source, ok := reg.Get(ref.Use)
		if !ok {
			return nil, fmt.Errorf("%d: %q (registered: %v): %w", i, ref.Use, reg.Names(), ErrUnknownHandler)
		}

		if pipeline, ok := source.(*composer.Pipeline[C, R]); ok {
			sources = append(sources, pipeline)

			continue
		}

		if e := composer.NamedValue[C, R](ref.Name(), source); e.IsResolved() {
			sources = append(sources, e)

			continue
		}

		sources = append(sources, source)
	}

	return sources, nil
}
