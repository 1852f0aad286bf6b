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
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/starford/dinosync/internal/api"
	"github.com/starford/dinosync/internal/daily"
	"github.com/starford/dinosync/internal/engine"
	"github.com/starford/dinosync/internal/mcpserver"
	"github.com/starford/dinosync/internal/remote"
	"github.com/starford/dinosync/internal/settings"
	"github.com/starford/dinosync/internal/sse"
	"github.com/starford/dinosync/internal/state"
	"github.com/starford/dinosync/internal/vault"
)

// App is an opened vault with its state database and sync engine.
type App struct {
	Config *Config
	Logger *slog.Logger
	Vault  *vault.FS
	Cache  *vault.Cache
	DB     *state.DB
	Store  *state.Store
	Events *sse.Broker
	Engine *engine.Engine

	version string
	closers []io.Closer
}

// Open wires the application from options. Callers must Close the result.
func Open(opts ...Option) (*App, error) {
	a := &application{}
	for _, opt := range opts {
		opt(a)
	}
	if a.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg := a.config

	app := &App{Config: cfg, version: a.version}
	if app.version == "" {
		app.version = "dev"
	}

	out := a.logOutput
	if out == nil {
		out = os.Stdout
	}
	if cfg.App.LogFile.Path != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.App.LogFile.Path,
			MaxSize:    cfg.App.LogFile.MaxSizeMB,
			MaxBackups: cfg.App.LogFile.MaxBackups,
			MaxAge:     cfg.App.LogFile.MaxAgeDays,
		}
		app.closers = append(app.closers, rotator)
		out = io.MultiWriter(out, rotator)
	}

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)
	app.Logger = logger

	logger.Debug("Configuration loaded",
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("remote", cfg.Remote.BaseURL),
		slog.String("log_level", cfg.App.LogLevel.String()))

	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		app.Close()
		return nil, fmt.Errorf("create vault dir: %w", err)
	}
	fsys, err := vault.NewFS(cfg.Vault.Path)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("init vault: %w", err)
	}
	app.Vault = fsys
	app.Cache = vault.NewCache(fsys)

	db, err := state.Open(cfg.SQLite.Path)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("init state: %w", err)
	}
	app.DB = db
	app.closers = append(app.closers, db)
	app.Store = state.NewStore(db, settings.Defaults())

	app.Events = sse.NewBroker(2 * time.Second)

	remoteFor := func(token string) engine.Remote {
		return remote.New(cfg.Remote.BaseURL, cfg.Remote.AIBaseURL, token,
			remote.WithTimeout(cfg.Remote.Timeout))
	}
	host := daily.HostConfig{
		Enabled:  cfg.DailyNotes.Enabled,
		Folder:   cfg.DailyNotes.Folder,
		Format:   cfg.DailyNotes.Format,
		Template: cfg.DailyNotes.Template,
	}
	app.Engine = engine.New(fsys, app.Cache, app.Store, remoteFor, host, logger,
		engine.WithEvents(app.Events),
		engine.WithRuns(db),
		engine.WithToken(cfg.Remote.Token),
		engine.WithInterval(cfg.Sync.Interval),
	)
	return app, nil
}

// Close releases the database, the event broker and the log file.
func (app *App) Close() {
	if app.Events != nil {
		app.Events.Close()
	}
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i].Close(); err != nil && app.Logger != nil {
			app.Logger.Warn("close failed", slog.String("error", err.Error()))
		}
	}
	app.closers = nil
}

// Handler builds the HTTP handler: health probes plus the control API
// under /api.
func (app *App) Handler() http.Handler {
	cfg := app.Config
	apiRouter := api.NewRouter(app.Engine, app.DB, cfg.Auth.AuthEnabled(), cfg.Auth.Token, app.Events)

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
		if err := app.DB.Ping(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", apiRouter)
	return r
}

// Run starts serve mode: the auto-sync timer, the vault watcher and the
// control API, until ctx is cancelled or a shutdown signal arrives.
func Run(ctx context.Context, opts ...Option) error {
	app, err := Open(opts...)
	if err != nil {
		return err
	}
	defer app.Close()

	cfg := app.Config
	logger := app.Logger

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           app.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gCtx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		return app.Engine.RunTimer(gCtx)
	})

	g.Go(func() error {
		if err := app.Cache.Watch(gCtx, app.Vault, logger); err != nil {
			// Syncing still works without the watcher; cache entries are
			// also invalidated on every engine write.
			logger.Warn("vault watcher unavailable", slog.String("error", err.Error()))
		}
		return nil
	})

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
		cancel()

		logger.Info("Shutting down server...")

		shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
		defer stop()
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

// RunMCP serves the sync tools over stdio. Logs go to stderr unless
// another writer is configured.
func RunMCP(ctx context.Context, opts ...Option) error {
	opts = append([]Option{WithLogOutput(os.Stderr)}, opts...)
	app, err := Open(opts...)
	if err != nil {
		return err
	}
	defer app.Close()

	app.Logger.Info("MCP server starting (stdio)")
	srv := mcpserver.New(app.Engine, app.version)
	if err := srv.ServeStdio(); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}
