// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/telos/internal/api"
	"github.com/starford/telos/internal/catalog"
	"github.com/starford/telos/internal/indexer"
	"github.com/starford/telos/internal/mcpserver"
	"github.com/starford/telos/internal/parser"
	"github.com/starford/telos/internal/sse"
	"github.com/starford/telos/internal/storage"
	"github.com/starford/telos/internal/vault"
	"github.com/starford/telos/internal/watch"
)

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("catalog_path", cfg.Catalog.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Ensure vault directory exists.
	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return fmt.Errorf("create vault dir: %w", err)
	}

	// Initialize storage and the document layer.
	store, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	docs := vault.NewStore(store)

	// Initialize the SQLite catalog (derived view; reset on open).
	db, err := catalog.Open(cfg.Catalog.Path)
	if err != nil {
		return fmt.Errorf("init catalog: %w", err)
	}
	defer db.Close()

	// Build the indexer over the vault.
	idx := indexer.New(logger, docs, indexer.Options{
		GoalsDir:           cfg.Hierarchy.GoalsDir,
		ProjectsDir:        cfg.Hierarchy.ProjectsDir,
		TasksDir:           cfg.Hierarchy.TasksDir,
		GoalProperty:       cfg.Hierarchy.GoalProperty,
		ProjectProperty:    cfg.Hierarchy.ProjectProperty,
		ExcludedProperties: cfg.Hierarchy.ExcludedProperties,
		Debounce:           time.Duration(cfg.Hierarchy.DebounceMS) * time.Millisecond,
		RenameSettle:       time.Duration(cfg.Hierarchy.RenameSettleMS) * time.Millisecond,
		ScanWorkers:        cfg.Hierarchy.ScanWorkers,
	})

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)

	// Mirror index events into the catalog and out to SSE clients. The
	// subscription must exist before the initial scan so scan events are
	// not lost.
	events := idx.Subscribe()
	feederDone := make(chan struct{})
	go func() {
		defer close(feederDone)
		feedEvents(events, db, broker, cfg.Hierarchy.GoalProperty, cfg.Hierarchy.ProjectProperty, logger)
	}()

	// Start the change stream, then bring the caches up to date.
	watcher, err := watch.New(cfg.Vault.Path, logger, 0)
	if err != nil {
		return fmt.Errorf("init watcher: %w", err)
	}
	defer watcher.Close()

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	idx.Start(runCtx, watcher)

	if err := idx.ScanAllFiles(runCtx); err != nil {
		logger.Warn("initial scan failed", slog.String("error", err.Error()))
	}

	// Build API service and router.
	svc := api.NewService(idx, db)
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
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(runCtx)

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

		idx.Stop() // closes the event subscription, ending the feeder
		<-feederDone
		broker.Close()

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP starts the MCP stdio server over the configured vault. The
// caches are built once at startup; a connected client can rebuild them
// with the rescan_vault tool.
func RunMCP(ctx context.Context, opts ...Option) error {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	cfg := app.config

	// MCP talks JSON-RPC on stdout; keep logs on stderr.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	store, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	docs := vault.NewStore(store)

	idx := indexer.New(logger, docs, indexer.Options{
		GoalsDir:           cfg.Hierarchy.GoalsDir,
		ProjectsDir:        cfg.Hierarchy.ProjectsDir,
		TasksDir:           cfg.Hierarchy.TasksDir,
		GoalProperty:       cfg.Hierarchy.GoalProperty,
		ProjectProperty:    cfg.Hierarchy.ProjectProperty,
		ExcludedProperties: cfg.Hierarchy.ExcludedProperties,
	})
	if err := idx.ScanAllFiles(ctx); err != nil {
		logger.Warn("initial scan failed", slog.String("error", err.Error()))
	}

	return mcpserver.New(idx, docs).ServeStdio()
}

// feedEvents drains indexer events into the catalog and the SSE broker
// until the events channel closes.
func feedEvents(events chan indexer.Event, db *catalog.DB, broker *sse.Broker, goalProp, projectProp string, logger *slog.Logger) {
	for ev := range events {
		switch ev.Type {
		case indexer.EventChanged:
			row := entityRow(ev, goalProp, projectProp)
			if err := db.UpsertEntity(row); err != nil {
				logger.Warn("catalog upsert failed",
					slog.String("path", ev.Path),
					slog.String("error", err.Error()))
			}
			broker.PublishEntityEvent("changed", string(ev.Kind), ev.Path)

		case indexer.EventDeleted:
			if err := db.DeleteEntity(ev.Path); err != nil {
				logger.Warn("catalog delete failed",
					slog.String("path", ev.Path),
					slog.String("error", err.Error()))
			}
			broker.PublishEntityEvent("deleted", string(ev.Kind), ev.Path)
		}
	}
}

// entityRow projects a change event onto a catalog row.
func entityRow(ev indexer.Event, goalProp, projectProp string) catalog.EntityRow {
	row := catalog.EntityRow{
		Path:      ev.Path,
		Kind:      string(ev.Kind),
		Title:     strings.TrimSuffix(path.Base(ev.Path), ".md"),
		UpdatedAt: time.Now(),
	}
	if ev.New == nil {
		return row
	}
	row.Frontmatter = ev.New.Frontmatter
	row.UpdatedAt = ev.New.ModTime
	if t, ok := ev.New.Frontmatter["title"].(string); ok && t != "" {
		row.Title = t
	}
	for _, prop := range []string{goalProp, projectProp} {
		for _, id := range parser.ParseLinks(ev.New.Frontmatter[prop]) {
			row.Parents = append(row.Parents, indexer.HierarchyKey(id))
		}
	}
	return row
}
