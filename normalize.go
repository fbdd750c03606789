package composer

import (
	"log/slog"

	"github.com/andriiyaremenko/composer/internal"
)

// Normalize flattens sources into stack entries, in order.
//
// Accepted sources:
//   - nil values contribute nothing;
//   - *Pipeline[C, R] contributes its stack;
//   - Entry[C, R] (see Named, NamedTrap, NamedValue);
//   - HandlerFunc, func(C, R, Next) or Handler as a Handler entry;
//   - ErrorTrapFunc, func(error, C, R, Next) or ErrorTrap as an ErrorTrap entry;
//   - slices and arrays of sources, flattened fully;
//   - maps with string keys: one named entry per callable value, sorted by key.
//
// Sources implementing Namer become named entries.
// Map values that are not callable (including nested maps) are dropped.
// Any other source becomes an entry failing with ErrMissingMiddleware when run.
func Normalize[C, R any](sources ...any) []Entry[C, R] {
	return normalize[C, R](discard, sources)
}

func normalize[C, R any](logger *slog.Logger, sources []any) []Entry[C, R] {
	entries := make([]Entry[C, R], 0, len(sources))
	for _, source := range sources {
		entries = appendSource(logger, entries, source)
	}

	return entries
}

func appendSource[C, R any](logger *slog.Logger, entries []Entry[C, R], source any) []Entry[C, R] {
	if internal.IsNil(source) {
		return entries
	}

	switch s := source.(type) {
	case *Pipeline[C, R]:
		return append(entries, s.snapshot()...)
	case []Entry[C, R]:
		return append(entries, s...)
	case []any:
		for _, el := range s {
			entries = appendSource(logger, entries, el)
		}

		return entries
	}

	if e, ok := callableEntry[C, R](source); ok {
		return append(entries, e)
	}

	if elements, ok := internal.Elements(source); ok {
		for _, el := range elements {
			entries = appendSource(logger, entries, el)
		}

		return entries
	}

	if pairs, ok := internal.Pairs(source); ok {
		return appendMapping(logger, entries, pairs)
	}

	logger.Debug("unrecognized source",
		slog.String("source", internal.TypeName(source)),
	)

	return append(entries, Entry[C, R]{})
}

func appendMapping[C, R any](logger *slog.Logger, entries []Entry[C, R], pairs []internal.Pair) []Entry[C, R] {
	for _, pair := range pairs {
		e, ok := callableEntry[C, R](pair.Value)
		if !ok || internal.IsNil(pair.Value) {
			if internal.IsMapping(pair.Value) {
				logger.Debug("nested mappings are not supported",
					slog.String("key", pair.Key),
				)
			} else {
				logger.Debug("non-callable mapping value dropped",
					slog.String("key", pair.Key),
					slog.String("value", internal.TypeName(pair.Value)),
				)
			}

			continue
		}

		e.name = pair.Key
		entries = append(entries, e)
	}

	return entries
}
