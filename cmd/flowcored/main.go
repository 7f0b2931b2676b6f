// Command flowcored runs the transaction engine behind a JSON API.
//
// Configuration is environment-driven:
//
//	FLOWCORE_ADDR        listen address (default :8080)
//	FLOWCORE_PERSIST     memory|sqlite|postgres (default memory)
//	FLOWCORE_SQLITE_PATH sqlite database path (default flowcore.db)
//	FLOWCORE_POSTGRES_DSN postgres connection string
//	FLOWCORE_LOG_LEVEL   debug|info|warn|error (default info)
//	FLOWCORE_METRICS     prometheus|expvar (default prometheus)
//	FLOWCORE_TRACE       json|off (default off; json emits spans to stderr)
//	FLOWCORE_BLOB_*      blob backend selection, see internal/blob
package main

import (
	"context"
	"errors"
	"expvar"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"flowcore/internal/blob"
	"flowcore/internal/core"
	"flowcore/internal/httpapi"
	"flowcore/internal/infra/metrics"
	"flowcore/internal/infra/persistence/postgres"
	"flowcore/internal/infra/persistence/sqlite"
	"flowcore/pkg/domain"
)

func main() {
	logger := newLogger(os.Getenv("FLOWCORE_LOG_LEVEL"))
	if err := run(logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workflows := core.DefaultWorkflows()
	rules := core.NewDefaultRulesEngine(workflows...)

	store, err := openStore(rules)
	if err != nil {
		return err
	}

	blobs, err := blob.OpenFromEnv(ctx)
	if err != nil {
		return err
	}
	logger.Info("blob store ready", "driver", string(blobs.Driver()))

	authz := core.NewStaticAuthorizer()
	engine := core.NewEngine(store, authz, logger)
	for _, wf := range workflows {
		if err := engine.Register(wf); err != nil {
			return err
		}
	}

	opts := []core.ServiceOption{core.WithLogger(logger)}
	var metricsHandler http.Handler
	switch strings.ToLower(os.Getenv("FLOWCORE_METRICS")) {
	case "expvar":
		opts = append(opts, core.WithMetrics(core.NewExpvarMetricsRecorder("flowcore_service_metrics")))
		metricsHandler = expvar.Handler()
	default:
		recorder := metrics.NewRecorder()
		opts = append(opts, core.WithMetrics(recorder))
		metricsHandler = recorder.Handler()
	}
	if strings.EqualFold(os.Getenv("FLOWCORE_TRACE"), "json") {
		opts = append(opts, core.WithTracer(core.NewJSONTracer(os.Stderr)))
	}
	svc := core.NewService(store, engine, authz, blobs, opts...)

	handler := httpapi.NewHandler(svc, logger)
	addr := os.Getenv("FLOWCORE_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	server := &http.Server{
		Addr:              addr,
		Handler:           handler.Router(metricsHandler),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
	}
	return nil
}

func openStore(rules *domain.RulesEngine) (domain.PersistentStore, error) {
	switch strings.ToLower(os.Getenv("FLOWCORE_PERSIST")) {
	case "", "memory":
		return core.NewMemoryStore(rules), nil
	case "sqlite":
		return sqlite.NewStore(os.Getenv("FLOWCORE_SQLITE_PATH"), rules)
	case "postgres":
		return postgres.NewStore(os.Getenv("FLOWCORE_POSTGRES_DSN"), rules)
	default:
		return nil, errors.New("unknown FLOWCORE_PERSIST value")
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
