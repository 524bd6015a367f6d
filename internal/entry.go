// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/mldataset/internal/api"
	"github.com/starford/mldataset/internal/dataset"
	"github.com/starford/mldataset/internal/mcpserver"
	"github.com/starford/mldataset/internal/storage"
	"github.com/starford/mldataset/internal/watcher"
)

// Run starts the HTTP application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	// Initialize structured JSON logger.
	logger := newLogger(app.logWriter(os.Stdout), cfg)
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("store_root", cfg.Store.Root),
		slog.Bool("watch", cfg.Watch.Enabled),
		slog.String("log_level", cfg.App.LogLevel.String()))

	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           newHTTPHandler(store),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	startWatcher(gCtx, g, cfg, store, logger)

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		// Close subscriber streams first so SSE handlers return.
		store.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP serves the MCP tools over stdio. Logs go to stderr since stdout
// carries the protocol.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger := newLogger(app.logWriter(os.Stderr), cfg)
	slog.SetDefault(logger)

	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	g, gCtx := errgroup.WithContext(ctx)
	startWatcher(gCtx, g, cfg, store, logger)

	g.Go(func() error {
		logger.Info("Starting MCP server on stdio")
		if err := mcpserver.New(store).ServeStdio(); err != nil {
			return fmt.Errorf("MCP server error: %w", err)
		}
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}
	return nil
}

// errShutdown stops sibling goroutines of an errgroup once one side is done.
var errShutdown = errors.New("shutdown")

func newApplication(opts []Option) (*application, error) {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

func newLogger(w io.Writer, cfg *Config) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
}

// openStore prepares the root and performs the initial scan. A failed scan is
// logged and leaves the store unavailable; the process keeps running so that
// readiness reports it.
func openStore(cfg *Config, logger *slog.Logger) (*dataset.Store, error) {
	if err := os.MkdirAll(cfg.Store.Root, 0o755); err != nil {
		return nil, fmt.Errorf("create store root: %w", err)
	}
	provider, err := storage.NewFS(cfg.Store.Root)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	store := dataset.Open(provider, dataset.WithLogger(logger))
	if err := store.Err(); err != nil {
		logger.Warn("store unavailable", slog.String("error", err.Error()))
	}
	return store, nil
}

func startWatcher(ctx context.Context, g *errgroup.Group, cfg *Config, store *dataset.Store, logger *slog.Logger) {
	if !cfg.Watch.Enabled || store.Err() != nil {
		return
	}
	g.Go(func() error {
		if err := watcher.Watch(ctx, cfg.Store.Root, store, cfg.Watch.Debounce, logger); err != nil {
			logger.Warn("watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})
}

// newHTTPHandler builds the root router: health checks plus the API under /api.
func newHTTPHandler(store *dataset.Store) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		writeStatus(w, http.StatusOK, "ok")
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		if store.Err() != nil {
			writeStatus(w, http.StatusServiceUnavailable, "unavailable")
			return
		}
		writeStatus(w, http.StatusOK, "ok")
	})

	r.Mount("/api", api.NewRouter(store, store.EventsHandler()))
	return r
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = fmt.Fprintf(w, `{"status":%q}`, status)
}
