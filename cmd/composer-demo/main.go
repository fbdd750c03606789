package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/andriiyaremenko/composer"
	"github.com/andriiyaremenko/composer/httpchain"
	"github.com/andriiyaremenko/composer/otelstats"
	"github.com/andriiyaremenko/composer/plan"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	level := slog.LevelInfo
	if os.Getenv("DEMO_DEBUG") != "" {
		level = slog.LevelDebug
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	shutdown, err := initTracer("composer-demo", logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := loadPlan(os.Getenv("DEMO_PLAN"))
	if err != nil {
		log.Fatalf("Failed to load plan: %v", err)
	}

	reg, err := registry(logger)
	if err != nil {
		log.Fatalf("Failed to register middleware: %v", err)
	}

	pipeline, err := plan.Build(ctx, p, reg,
		composer.WithLogger(logger),
		composer.WithInstrumenter(composer.Chain(
			composer.Logging[*http.Request, http.ResponseWriter](logger.With(slog.String("plan", p.Name))),
			composer.Instrumenter[*http.Request, http.ResponseWriter](otelstats.New[*http.Request, http.ResponseWriter]()),
		)),
	)
	if err != nil {
		log.Fatalf("Failed to build pipeline: %v", err)
	}

	logger.Info("pipeline built",
		slog.String("plan", p.Name),
		slog.Any("stack", pipeline.Names()),
	)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "composer-demo")
	})
	r.Method(http.MethodGet, "/hello", httpchain.New(pipeline, httpchain.WithLogger(logger)))

	addr := os.Getenv("DEMO_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("starting server", slog.String("addr", addr))

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", slog.String("error", err.Error()))
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", slog.String("error", err.Error()))
	}
}

// loadPlan reads plan from path with environment overrides, or uses built-in plan.
func loadPlan(path string) (*plan.Plan, error) {
	if path == "" {
		return plan.Parse([]byte(defaultPlan))
	}

	return plan.Load(path)
}
