package composer

import "slices"

// Appends sources to the end of the stack.
func (p *Pipeline[C, R]) Push(sources ...any) *Pipeline[C, R] {
	added := normalize[C, R](p.log(), sources)

	return p.update(func(stack []Entry[C, R]) []Entry[C, R] {
		next := make([]Entry[C, R], 0, len(stack)+len(added))
		next = append(next, stack...)

		return append(next, added...)
	})
}

// Prepends sources to the start of the stack.
func (p *Pipeline[C, R]) Unshift(sources ...any) *Pipeline[C, R] {
	added := normalize[C, R](p.log(), sources)

	return p.update(func(stack []Entry[C, R]) []Entry[C, R] {
		next := make([]Entry[C, R], 0, len(stack)+len(added))
		next = append(next, added...)

		return append(next, stack...)
	})
}

// Inserts sources before every entry named selector.
// Stack stays the same if nothing matches.
func (p *Pipeline[C, R]) Before(selector string, sources ...any) *Pipeline[C, R] {
	added := normalize[C, R](p.log(), sources)

	return p.rewrite(selector, func(next []Entry[C, R], e Entry[C, R], matched bool) []Entry[C, R] {
		if matched {
			next = append(next, added...)
		}

		return append(next, e)
	})
}

// Inserts sources after every entry named selector.
// Stack stays the same if nothing matches.
func (p *Pipeline[C, R]) After(selector string, sources ...any) *Pipeline[C, R] {
	added := normalize[C, R](p.log(), sources)

	return p.rewrite(selector, func(next []Entry[C, R], e Entry[C, R], matched bool) []Entry[C, R] {
		next = append(next, e)
		if matched {
			next = append(next, added...)
		}

		return next
	})
}

// Replaces every entry named selector with sources.
// Stack stays the same if nothing matches.
func (p *Pipeline[C, R]) Replace(selector string, sources ...any) *Pipeline[C, R] {
	added := normalize[C, R](p.log(), sources)

	return p.rewrite(selector, func(next []Entry[C, R], e Entry[C, R], matched bool) []Entry[C, R] {
		if matched {
			return append(next, added...)
		}

		return append(next, e)
	})
}

// Removes every entry named selector.
func (p *Pipeline[C, R]) Remove(selector string) *Pipeline[C, R] {
	return p.rewrite(selector, func(next []Entry[C, R], e Entry[C, R], matched bool) []Entry[C, R] {
		if matched {
			return next
		}

		return append(next, e)
	})
}

// Clone returns new Pipeline with the same entries and configuration.
// Mutations of either Pipeline do not affect the other.
func (p *Pipeline[C, R]) Clone() *Pipeline[C, R] {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return &Pipeline[C, R]{
		stack:        slices.Clone(p.stack),
		dirty:        p.dirty,
		scheduler:    p.scheduler,
		logger:       p.logger,
		instrumenter: p.instrumenter,
	}
}

func (p *Pipeline[C, R]) rewrite(
	selector string,
	visit func(next []Entry[C, R], e Entry[C, R], matched bool) []Entry[C, R],
) *Pipeline[C, R] {
	return p.update(func(stack []Entry[C, R]) []Entry[C, R] {
		next := make([]Entry[C, R], 0, len(stack))
		for _, e := range stack {
			next = visit(next, e, e.Matches(selector))
		}

		return next
	})
}
