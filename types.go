package composer

// Kind tells the Executor when an Entry may run.
type Kind int

const (
	// Runs while no error is active.
	KindHandler Kind = iota
	// Runs only while an error is active and may clear it.
	KindErrorTrap
)

func (k Kind) String() string {
	switch k {
	case KindHandler:
		return "handler"
	case KindErrorTrap:
		return "error_trap"
	default:
		return "unknown"
	}
}

// Next is the continuation every step calls exactly once to report an optional error.
// The next step always starts on a fresh scheduling turn.
type Next func(err error)

// HandlerFunc is a pipeline step invoked while no error is active.
type HandlerFunc[C, R any] func(c C, r R, next Next)

// Implementation of Handler.
func (h HandlerFunc[C, R]) Handle(c C, r R, next Next) {
	h(c, r, next)
}

// ErrorTrapFunc is a pipeline step invoked only while an error is active.
// Calling next(nil) clears the error.
type ErrorTrapFunc[C, R any] func(err error, c C, r R, next Next)

// Implementation of ErrorTrap.
func (t ErrorTrapFunc[C, R]) Trap(err error, c C, r R, next Next) {
	t(err, c, r, next)
}

// Handles context and response while no error is active.
type Handler[C, R any] interface {
	Handle(c C, r R, next Next)
}

// Handles an active error.
type ErrorTrap[C, R any] interface {
	Trap(err error, c C, r R, next Next)
}

// Namer is implemented by sources that carry their own selector name.
// Such sources become named entries without being wrapped in Named.
type Namer interface {
	Name() string
}

// Noop is a step that only continues the chain.
func Noop[C, R any](_ C, _ R, next Next) {
	next(nil)
}
