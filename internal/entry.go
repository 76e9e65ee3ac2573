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

	"github.com/starford/nbmark/internal/api"
	"github.com/starford/nbmark/internal/index"
	"github.com/starford/nbmark/internal/mcpserver"
	"github.com/starford/nbmark/internal/notebookservice"
	"github.com/starford/nbmark/internal/render"
	"github.com/starford/nbmark/internal/sse"
	"github.com/starford/nbmark/internal/storage"
)

// workspace bundles what every long-running command needs.
type workspace struct {
	cfg    *Config
	logger *slog.Logger
	store  *storage.FS
	db     *index.DB
	svc    *notebookservice.Service
}

// open applies opts, installs the JSON logger and opens the workspace and
// its index. The caller closes ws.db.
func open(opts ...Option) (*workspace, error) {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}

	cfg := app.config

	var out io.Writer = os.Stdout
	if app.logOut != nil {
		out = app.logOut
	}

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("workspace_path", cfg.Workspace.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.Bool("export_on_change", cfg.Export.OnChange),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Ensure workspace directory exists.
	if err := os.MkdirAll(cfg.Workspace.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace dir: %w", err)
	}

	// Initialize storage.
	store, err := storage.NewFS(cfg.Workspace.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	// Initialize SQLite index.
	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	svc := notebookservice.NewService(store, db,
		notebookservice.WithRenderer(render.New(render.WithStripANSI(cfg.Export.StripANSI))),
		notebookservice.WithExportDir(cfg.Export.OutputDir),
		notebookservice.WithLogger(logger),
	)

	return &workspace{cfg: cfg, logger: logger, store: store, db: db, svc: svc}, nil
}

func (ws *workspace) sync() {
	if _, err := index.Sync(ws.db, ws.store, ws.logger); err != nil {
		ws.logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}
}

// Run starts the workspace server: HTTP API, SSE events and the watcher.
func Run(ctx context.Context, opts ...Option) error {
	ws, err := open(opts...)
	if err != nil {
		return err
	}
	defer ws.db.Close()

	cfg, logger, svc := ws.cfg, ws.logger, ws.svc

	// Run initial sync.
	ws.sync()

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := ws.db.Ping(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start file watcher with SSE callback.
	g.Go(func() error {
		var watchOpts []index.WatchOption
		if cfg.Export.OnChange {
			watchOpts = append(watchOpts, index.WithExport(func(path string) (string, error) {
				return svc.ExportNotebook(gCtx, path)
			}))
		}
		if err := index.Watch(gCtx, ws.db, ws.store, ws.store.Root(), logger, broker.PublishNotebookEvent, watchOpts...); err != nil {
			logger.Error("watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})

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

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP serves the MCP tools over stdio. Logs go to stderr.
func RunMCP(_ context.Context, opts ...Option) error {
	ws, err := open(append([]Option{WithLogOutput(os.Stderr)}, opts...)...)
	if err != nil {
		return err
	}
	defer ws.db.Close()

	ws.sync()

	ws.logger.Info("MCP server starting on stdio")
	if err := mcpserver.New(ws.svc).ServeStdio(); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}

// RunSync brings the index in line with the workspace once and reports the
// outcome.
func RunSync(_ context.Context, opts ...Option) (index.SyncResult, error) {
	ws, err := open(opts...)
	if err != nil {
		return index.SyncResult{}, err
	}
	defer ws.db.Close()

	res, err := index.Sync(ws.db, ws.store, ws.logger)
	if err != nil {
		return res, fmt.Errorf("sync: %w", err)
	}
	return res, nil
}
