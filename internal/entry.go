// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/notelive/internal/api"
	"github.com/starford/notelive/internal/index"
	"github.com/starford/notelive/internal/mcpserver"
	"github.com/starford/notelive/internal/models"
	"github.com/starford/notelive/internal/noteservice"
	"github.com/starford/notelive/internal/notestore"
	"github.com/starford/notelive/internal/parser"
	"github.com/starford/notelive/internal/sse"
	"github.com/starford/notelive/internal/storage"
)

// runtime is the state shared by the HTTP and MCP entry points: the store
// built from the initial scan, the index and the service over both.
type runtime struct {
	cfg    *Config
	logger *slog.Logger
	store  *notestore.Store
	scan   notestore.ScanFunc
	db     *index.DB
	svc    *noteservice.Service
	ready  atomic.Bool
}

func setup(ctx context.Context, app *application, logOut io.Writer) (*runtime, error) {
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg := app.config

	// Initialize structured JSON logger.
	logger := app.logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{
			Level: cfg.App.LogLevel,
		}))
	}
	slog.SetDefault(logger)

	buildID := resolveBuildID(app.buildID, cfg.App.BuildID, time.Now())

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("notes_dir", cfg.Notes.Dir),
		slog.String("extension", cfg.Notes.Extension),
		slog.String("watch_backend", cfg.Watch.Backend),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("build_id", buildID),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Initialize storage.
	provider, err := storage.NewFS(cfg.Notes.Dir)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	scan := notestore.Scanner(provider, notestore.ScanOptions{
		Extension: cfg.Notes.Extension,
		Parse: parser.Options{
			Location:    cfg.Notes.Location(),
			RequireDate: cfg.Notes.RequireDate,
		},
	})

	// The service never starts without a complete snapshot.
	start := time.Now()
	initial, err := scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("initial scan: %w", err)
	}
	logger.Info("Initial scan complete",
		slog.Int("notes", initial.Len()),
		slog.Duration("elapsed", time.Since(start)))

	// Initialize SQLite index.
	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	store := notestore.NewStore(initial)
	return &runtime{
		cfg:    cfg,
		logger: logger,
		store:  store,
		scan:   scan,
		db:     db,
		svc:    noteservice.NewService(store, db, buildID),
	}, nil
}

// startBackground adds the watcher and the index follower to g. onPublish,
// if non-nil, is called for every snapshot the follower sees.
func (rt *runtime) startBackground(ctx context.Context, g *errgroup.Group, onPublish notestore.FollowFunc) {
	g.Go(func() error {
		return notestore.Watch(ctx, rt.store, notestore.WatchConfig{
			Root:         rt.cfg.Notes.Dir,
			Backend:      rt.cfg.Watch.Backend,
			Debounce:     rt.cfg.Watch.Debounce.Std(),
			PollInterval: rt.cfg.Watch.PollInterval.Std(),
		}, rt.scan, rt.logger)
	})

	g.Go(func() error {
		notestore.Follow(ctx, rt.store, func(snap *models.Snapshot, version uint64) {
			if err := rt.svc.IndexSnapshot(snap, version); err != nil {
				rt.logger.Error("follower: index failed",
					slog.Uint64("version", version),
					slog.String("error", err.Error()))
			} else {
				rt.logger.Debug("follower: indexed",
					slog.Uint64("version", version),
					slog.Int("notes", snap.Len()))
			}
			if onPublish != nil {
				onPublish(snap, version)
			}
			rt.ready.Store(true)
		})
		return nil
	})
}

// Run starts the HTTP application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	rt, err := setup(ctx, app, os.Stdout)
	if err != nil {
		return err
	}
	defer rt.db.Close()

	cfg := rt.cfg
	logger := rt.logger

	// SSE broker.
	broker := sse.NewBroker(15 * time.Second)
	defer broker.Close()

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !rt.ready.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"starting"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/", api.NewRouter(rt.svc, broker, cfg.LongPoll.Timeout.Std()))

	httpServer := newHTTPServer(cfg.App.HTTP, r)
	// SSE streams end when the broker closes.
	httpServer.RegisterOnShutdown(broker.Close)

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	rt.startBackground(gCtx, g, func(snap *models.Snapshot, version uint64) {
		broker.PublishSnapshot(version, rt.svc.Token(version), snap.Len())
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

		// Stops the watcher and follower when shutdown came from a signal.
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

var errShutdown = errors.New("shutdown")

// newHTTPServer builds the server for cfg. Request contexts derive from a
// base context that Shutdown cancels, so held long polls return at once
// instead of running out the shutdown timeout.
func newHTTPServer(cfg HTTPConfig, h http.Handler) *http.Server {
	base, cancel := context.WithCancel(context.Background())
	srv := &http.Server{
		Addr:              cfg.Address(),
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.WriteTimeout.Std(),
		BaseContext:       func(net.Listener) context.Context { return base },
	}
	srv.RegisterOnShutdown(cancel)
	return srv
}

// RunMCP serves the MCP protocol over stdin/stdout. Logs go to stderr since
// stdout carries the protocol.
func RunMCP(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := setup(ctx, app, os.Stderr)
	if err != nil {
		return err
	}
	defer rt.db.Close()

	srv := mcpserver.New(rt.svc, rt.cfg.LongPoll.Timeout.Std())

	g, gCtx := errgroup.WithContext(ctx)
	rt.startBackground(gCtx, g, nil)

	g.Go(func() error {
		rt.logger.Info("MCP server listening on stdio")
		if err := srv.Serve(gCtx, os.Stdin, os.Stdout); err != nil {
			return fmt.Errorf("mcp server: %w", err)
		}
		// Stdin closed: the client is gone.
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		rt.logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}
	return nil
}
