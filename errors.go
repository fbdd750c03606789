package composer

import (
	"errors"
	"fmt"
)

// Returned to the chain when a named entry has nothing to invoke.
var ErrMissingMiddleware = errors.New("missing middleware")

// Returned by EventLoop.Submit when the loop is stopped.
var ErrLoopStopped = errors.New("event loop is stopped")

// Returns new *PanicError holding value recovered from a step.
func NewPanicError(value any, stack []byte) *PanicError {
	return &PanicError{Value: value, Stack: stack}
}

// PanicError is a non-error panic value recovered while invoking a step.
// Panics with error values are forwarded to the chain unchanged.
type PanicError struct {
	Value any
	Stack []byte
}

// Implementation of error.
func (err *PanicError) Error() string {
	return fmt.Sprintf("recovered from panic: %v", err.Value)
}

// recovered converts a recovered panic value into the error the chain continues with.
func recovered(value any, stack []byte) error {
	if err, ok := value.(error); ok {
		return err
	}

	return NewPanicError(value, stack)
}
