package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/stevemurr/simple-item-server/config"
	"github.com/stevemurr/simple-item-server/handler"
	"github.com/stevemurr/simple-item-server/item"
	"github.com/stevemurr/simple-item-server/logging"
	"github.com/stevemurr/simple-item-server/metrics"
	"github.com/stevemurr/simple-item-server/middleware"
	"github.com/stevemurr/simple-item-server/store"
)

// serve runs the server until ctx is cancelled or SIGINT/SIGTERM arrives.
func serve(ctx context.Context, cfg config.Config) error {
	log, err := logging.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	srv, cleanup, err := newServer(cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	ln, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Addr(), err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("Simple Item Server starting",
		zap.String("addr", ln.Addr().String()),
		zap.String("store", cfg.Store.Backend),
		zap.Bool("metrics", cfg.Metrics.Enabled),
		zap.String("version", Version),
	)
	return run(ctx, srv, ln, cfg, log)
}

// run serves on ln and shuts srv down gracefully once ctx is done.
func run(ctx context.Context, srv *http.Server, ln net.Listener, cfg config.Config, log *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down", zap.Duration("timeout", cfg.Server.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	log.Info("server stopped")
	return nil
}

// newServer wires store, service, handler and middleware into an
// http.Server. The returned cleanup releases the store.
func newServer(cfg config.Config, log *zap.Logger) (*http.Server, func(), error) {
	st, err := store.New(cfg.Store.Backend)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create store (backend=%s): %w", cfg.Store.Backend, err)
	}
	cleanup := func() {
		if c, ok := st.(io.Closer); ok {
			if err := c.Close(); err != nil {
				log.Warn("close store", zap.Error(err))
			}
		}
	}

	svc := item.NewService(st, item.WithLogger(log.Named("item")))
	opts := []handler.Option{
		handler.WithLogger(log.Named("http")),
		handler.WithMaxBodyBytes(cfg.Server.MaxBodyBytes),
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(st, log.Named("metrics"))
		opts = append(opts, handler.WithRoute("GET "+cfg.Metrics.Path, m.Handler()))
	}

	var h http.Handler = handler.New(svc, opts...)
	if m != nil {
		h = m.Middleware(h)
	}
	h = middleware.Logger(log.Named("access"))(h)
	h = middleware.RequestID(h)
	h = middleware.CORS(h, cfg.Server.AllowedOrigins)

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      h,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		ErrorLog:     zap.NewStdLog(log.Named("server")),
	}
	return srv, cleanup, nil
}
