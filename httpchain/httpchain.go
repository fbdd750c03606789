// Package httpchain serves composer Pipelines over net/http.
package httpchain

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/andriiyaremenko/composer"
)

type (
	// Pipeline of HTTP middleware.
	Pipeline = composer.Pipeline[*http.Request, http.ResponseWriter]
	// HandlerFunc is HTTP middleware step.
	HandlerFunc = composer.HandlerFunc[*http.Request, http.ResponseWriter]
	// ErrorTrapFunc is HTTP error handling step.
	ErrorTrapFunc = composer.ErrorTrapFunc[*http.Request, http.ResponseWriter]
)

// ErrorResponder writes the response for an error no ErrorTrap cleared.
type ErrorResponder func(w http.ResponseWriter, r *http.Request, err error)

// StatusError is an error carrying the HTTP status DefaultErrorResponder answers with.
type StatusError struct {
	Code int
	Err  error
}

// Returns new *StatusError.
func Status(code int, err error) *StatusError {
	return &StatusError{Code: code, Err: err}
}

// Implementation of error.
func (err *StatusError) Error() string {
	if err.Err == nil {
		return http.StatusText(err.Code)
	}

	return fmt.Sprintf("%d %s: %s", err.Code, http.StatusText(err.Code), err.Err)
}

func (err *StatusError) Unwrap() error {
	return err.Err
}

// DefaultErrorResponder answers with status of *StatusError found in err chain,
// or 500 Internal Server Error.
func DefaultErrorResponder(w http.ResponseWriter, _ *http.Request, err error) {
	code := http.StatusInternalServerError

	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.Code >= 400 {
		code = statusErr.Code
	}

	http.Error(w, http.StatusText(code), code)
}

// Handler is http.Handler running a Pipeline for every request.
type Handler struct {
	pipeline *Pipeline
	respond  ErrorResponder
	logger   *slog.Logger
}

// Option modifies Handler.
type Option func(*Handler)

// Option that replaces DefaultErrorResponder.
func WithErrorResponder(respond ErrorResponder) Option {
	return func(h *Handler) {
		h.respond = respond
	}
}

// Option that specifies logger for unhandled errors.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// New returns Handler serving requests with p.
func New(p *Pipeline, opts ...Option) *Handler {
	h := &Handler{
		pipeline: p,
		respond:  DefaultErrorResponder,
		logger:   slog.New(slog.DiscardHandler),
	}

	for _, option := range opts {
		option(h)
	}

	return h
}

// ServeHTTP runs the Pipeline and blocks until it is done,
// since ResponseWriter may not be used after ServeHTTP returns.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	done := make(chan error, 1)

	h.pipeline.Run(r, w, func(err error) { done <- err })

	if err := <-done; err != nil {
		h.logger.Error("unhandled pipeline error",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)

		h.respond(w, r, err)
	}
}

// FromHTTP returns step serving request with h and continuing the chain.
func FromHTTP(h http.Handler) HandlerFunc {
	return func(r *http.Request, w http.ResponseWriter, next composer.Next) {
		h.ServeHTTP(w, r)
		next(nil)
	}
}
