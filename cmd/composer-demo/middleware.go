package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/andriiyaremenko/composer"
	"github.com/andriiyaremenko/composer/httpchain"
	"github.com/andriiyaremenko/composer/plan"
	"github.com/google/uuid"
)

const defaultPlan = `
name: hello
scheduler: loop
stack:
  - request-id
  - auth
  - hello
  - problem
edits:
  - op: after
    selector: request-id
    use: [access-log]
`

var errUnauthorized = errors.New("missing bearer token")

func registry(logger *slog.Logger) (*plan.Registry[*http.Request, http.ResponseWriter], error) {
	reg := plan.NewRegistry[*http.Request, http.ResponseWriter]()

	for _, m := range []struct {
		name   string
		source any
	}{
		{"request-id", httpchain.HandlerFunc(requestID)},
		{"auth", httpchain.HandlerFunc(auth)},
		{"access-log", accessLog(logger)},
		{"hello", httpchain.HandlerFunc(hello)},
		{"problem", httpchain.ErrorTrapFunc(problem)},
	} {
		if err := reg.Register(m.name, m.source); err != nil {
			return nil, err
		}
	}

	return reg, nil
}

func requestID(r *http.Request, w http.ResponseWriter, next composer.Next) {
	id := r.Header.Get("X-Request-Id")
	if id == "" {
		id = uuid.NewString()
	}

	w.Header().Set("X-Request-Id", id)
	next(nil)
}

func auth(r *http.Request, _ http.ResponseWriter, next composer.Next) {
	if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
		next(httpchain.Status(http.StatusUnauthorized, errUnauthorized))

		return
	}

	next(nil)
}

func accessLog(logger *slog.Logger) httpchain.HandlerFunc {
	return func(r *http.Request, _ http.ResponseWriter, next composer.Next) {
		logger.Info("request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
		next(nil)
	}
}

func hello(r *http.Request, w http.ResponseWriter, next composer.Next) {
	name := r.URL.Query().Get("name")
	if name == "" {
		name = "world"
	}

	w.Header().Set("Content-Type", "application/json")
	next(json.NewEncoder(w).Encode(map[string]string{"message": "hello, " + name}))
}

// problem answers with JSON body for errors carrying HTTP status.
func problem(err error, _ *http.Request, w http.ResponseWriter, next composer.Next) {
	var statusErr *httpchain.StatusError
	if !errors.As(err, &statusErr) {
		next(err)

		return
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(statusErr.Code)
	next(json.NewEncoder(w).Encode(map[string]any{
		"status": statusErr.Code,
		"title":  http.StatusText(statusErr.Code),
		"detail": statusErr.Error(),
	}))
}
