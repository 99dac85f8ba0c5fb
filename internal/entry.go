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
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tormodh/perch/internal/imagestore"
	"github.com/tormodh/perch/internal/kvstore"
	"github.com/tormodh/perch/internal/mcpserver"
	"github.com/tormodh/perch/internal/postservice"
	"github.com/tormodh/perch/internal/poststore"
	"github.com/tormodh/perch/internal/session"
	"github.com/tormodh/perch/internal/sse"
	"github.com/tormodh/perch/internal/sweep"
	"github.com/tormodh/perch/internal/web"
)

// stores bundles the persistence layer shared by the HTTP and MCP modes.
type stores struct {
	kv       *kvstore.Store
	posts    *poststore.Store
	images   *imagestore.Store
	sessions *session.Store
}

func openStores(cfg *Config) (*stores, error) {
	if err := os.MkdirAll(cfg.Badger.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create badger dir: %w", err)
	}
	if dir := filepath.Dir(cfg.Sessions.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sessions dir: %w", err)
		}
	}

	kv, err := kvstore.Open(cfg.Badger.Path)
	if err != nil {
		return nil, fmt.Errorf("init kv store: %w", err)
	}
	sessions, err := session.Open(cfg.Sessions.Path, cfg.Sessions.TTL.Std())
	if err != nil {
		kv.Close()
		return nil, fmt.Errorf("init session store: %w", err)
	}

	return &stores{
		kv:       kv,
		posts:    poststore.New(kv),
		images:   imagestore.New(kv),
		sessions: sessions,
	}, nil
}

func (s *stores) close(logger *slog.Logger) {
	if err := s.sessions.Close(); err != nil {
		logger.Warn("session store close error", slog.String("error", err.Error()))
	}
	if err := s.kv.Close(); err != nil {
		logger.Warn("kv store close error", slog.String("error", err.Error()))
	}
}

func setupLogger(cfg *Config) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// Run starts the HTTP application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config
	logger := setupLogger(cfg)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("badger_path", cfg.Badger.Path),
		slog.String("sessions_path", cfg.Sessions.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	st, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer st.close(logger)

	// SSE broker for live feed updates.
	broker := sse.NewBroker()
	defer broker.Close()

	tmpl, err := web.NewTemplates(cfg.Web.TemplatesPath)
	if err != nil {
		return fmt.Errorf("init templates: %w", err)
	}

	svc := postservice.NewService(st.posts, st.images, broker)
	router := web.NewRouter(svc, st.images, st.sessions, tmpl, cfg.Auth.Password, broker)

	sweeper := sweep.New(st.posts, st.images, cfg.Sweep.Interval.Std(), cfg.Sweep.Grace.Std(), logger)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: router,
	}

	g, gCtx := errgroup.WithContext(ctx)

	// Template hot reload (no-op with embedded templates).
	g.Go(func() error {
		tmpl.Watch(gCtx, logger)
		return nil
	})

	// Orphaned-image sweep.
	g.Go(func() error {
		sweeper.Run(gCtx)
		return nil
	})

	// HTTP server.
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

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP starts the MCP stdio server with the given options. It shares the
// stores with the HTTP mode but serves tools over stdin/stdout instead.
func RunMCP(_ context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config
	// Logs go to stderr: stdout belongs to the MCP transport.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	st, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer st.close(logger)

	svc := postservice.NewService(st.posts, st.images, nil)
	srv := mcpserver.New(svc)

	logger.Info("Starting MCP server on stdio")
	return srv.ServeStdio()
}
