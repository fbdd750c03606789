package composer

// Entry is a single element of a Pipeline stack.
// Its Kind is fixed when the Entry is created.
type Entry[C, R any] struct {
	name    string
	kind    Kind
	handler HandlerFunc[C, R]
	trap    ErrorTrapFunc[C, R]
	wrapped bool
}

// Named returns a Handler entry addressable by name.
func Named[C, R any](name string, h HandlerFunc[C, R]) Entry[C, R] {
	return Entry[C, R]{name: name, kind: KindHandler, handler: h}
}

// NamedTrap returns an ErrorTrap entry addressable by name.
func NamedTrap[C, R any](name string, t ErrorTrapFunc[C, R]) Entry[C, R] {
	return Entry[C, R]{name: name, kind: KindErrorTrap, trap: t}
}

// NamedValue binds name to any value.
// Values that are not Handlers or ErrorTraps of matching types produce an entry
// that fails with ErrMissingMiddleware when it is reached.
func NamedValue[C, R any](name string, v any) Entry[C, R] {
	e, ok := callableEntry[C, R](v)
	if !ok {
		return Entry[C, R]{name: name}
	}

	e.name = name

	return e
}

// Returns selector name of the entry or empty string for anonymous entries.
func (e Entry[C, R]) Name() string {
	return e.name
}

// Returns entry Kind.
func (e Entry[C, R]) Kind() Kind {
	return e.kind
}

// Returns true if entry is addressable by selector.
func (e Entry[C, R]) IsNamed() bool {
	return e.name != ""
}

// Returns false if entry has nothing to invoke.
func (e Entry[C, R]) IsResolved() bool {
	return e.handler != nil || e.trap != nil
}

// Returns true if entry was already passed through an Instrumenter.
func (e Entry[C, R]) IsWrapped() bool {
	return e.wrapped
}

// Matches reports whether the entry is named selector.
func (e Entry[C, R]) Matches(selector string) bool {
	return e.name != "" && e.name == selector
}

func (e Entry[C, R]) instrument(in Instrumenter[C, R]) Entry[C, R] {
	if e.wrapped || !e.IsResolved() {
		return e
	}

	switch e.kind {
	case KindErrorTrap:
		if t := in.WrapErrorTrap(e.name, e.trap); t != nil {
			e.trap = t
		}
	default:
		if h := in.WrapHandler(e.name, e.handler); h != nil {
			e.handler = h
		}
	}

	e.wrapped = true

	return e
}

// callableEntry builds an anonymous entry from v when v can be invoked.
// ErrorTrap wins over Handler for values implementing both.
func callableEntry[C, R any](v any) (Entry[C, R], bool) {
	var e Entry[C, R]

	switch fn := v.(type) {
	case Entry[C, R]:
		return fn, true
	case HandlerFunc[C, R]:
		if fn == nil {
			return e, false
		}

		e.kind, e.handler = KindHandler, fn
	case func(C, R, Next):
		if fn == nil {
			return e, false
		}

		e.kind, e.handler = KindHandler, fn
	case ErrorTrapFunc[C, R]:
		if fn == nil {
			return e, false
		}

		e.kind, e.trap = KindErrorTrap, fn
	case func(error, C, R, Next):
		if fn == nil {
			return e, false
		}

		e.kind, e.trap = KindErrorTrap, fn
	case ErrorTrap[C, R]:
		e.kind, e.trap = KindErrorTrap, fn.Trap
	case Handler[C, R]:
		e.kind, e.handler = KindHandler, fn.Handle
	default:
		return e, false
	}

	if namer, ok := v.(Namer); ok {
		e.name = namer.Name()
	}

	return e, true
}
