// Package app wires the session, the HTTP and gRPC front ends and graceful
// shutdown into the litebrowse server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"google.golang.org/grpc"

	grpcapi "github.com/litebrowse/litebrowse/internal/api/grpc"
	httpapi "github.com/litebrowse/litebrowse/internal/api/http"
	"github.com/litebrowse/litebrowse/internal/config"
	"github.com/litebrowse/litebrowse/internal/observability"
	"github.com/litebrowse/litebrowse/internal/server"
	"github.com/litebrowse/litebrowse/internal/session"
)

// statsWindow is how long per-table statistics are kept without activity.
const statsWindow = time.Hour

// App manages the server lifecycle.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	sess     *session.Session
	stats    *observability.QueryStats
	metrics  *observability.Metrics
	shutdown *server.ShutdownManager

	httpServer   *http.Server
	httpListener net.Listener
	grpcServer   *grpc.Server
	grpcListener net.Listener

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates an App from cfg. Nothing is opened or bound until Start.
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	metrics := observability.NewMetrics()
	stats := observability.NewQueryStats(statsWindow, metrics)
	opts, err := session.OptionsFromConfig(cfg, stats, logger)
	if err != nil {
		return nil, err
	}

	return &App{
		cfg:     cfg,
		logger:  logger,
		sess:    session.New(opts),
		stats:   stats,
		metrics: metrics,
		shutdown: server.NewShutdownManager(server.ShutdownConfig{
			ShutdownTimeout: cfg.Server.ShutdownTimeout,
			DrainTimeout:    cfg.Server.DrainTimeout,
			Logger:          logger,
		}),
	}, nil
}

// Session returns the session served by the app.
func (a *App) Session() *session.Session {
	return a.sess
}

// Stats returns the statement statistics collected while serving.
func (a *App) Stats() *observability.QueryStats {
	return a.stats
}

// Start opens the configured database and starts the HTTP server and, when
// enabled, the gRPC server.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return fmt.Errorf("app is already running")
	}
	a.running = true
	a.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if path := a.cfg.Database.Path; path != "" {
		if err := a.sess.Open(ctx, path); err != nil {
			a.abort()
			return err
		}
		a.logger.Info("database opened", "path", path)
	}
	// registered first so it closes after both front ends have stopped
	a.shutdown.RegisterCloser("session", a.sess)

	if err := a.startHTTP(); err != nil {
		a.abort()
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	if a.cfg.Server.GRPCEnabled {
		if err := a.startGRPC(); err != nil {
			a.abort()
			return fmt.Errorf("failed to start gRPC server: %w", err)
		}
	}

	a.wg.Add(1)
	go a.pruneStats(ctx)

	a.logger.Info("litebrowse started", "http", a.HTTPAddr(), "grpc", a.GRPCAddr())
	return nil
}

func (a *App) startHTTP() error {
	ln, err := net.Listen("tcp", a.cfg.Server.HTTPAddr)
	if err != nil {
		return err
	}
	a.httpListener = ln

	router := httpapi.NewRouter(httpapi.RouterConfig{
		Session:    a.sess,
		Metrics:    a.metrics,
		Middleware: []func(http.Handler) http.Handler{server.ShutdownMiddleware(a.shutdown)},
		Logger:     a.logger,
	})
	a.httpServer = &http.Server{
		Handler:      router,
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
	}
	a.shutdown.RegisterCloser("http", server.HTTPServerCloser(a.httpServer, a.cfg.Server.DrainTimeout))

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := a.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("HTTP server error", "error", err)
		}
	}()
	return nil
}

func (a *App) startGRPC() error {
	ln, err := net.Listen("tcp", a.cfg.Server.GRPCAddr)
	if err != nil {
		return err
	}
	a.grpcListener = ln

	a.grpcServer = grpc.NewServer()
	grpcapi.RegisterBrowserServer(a.grpcServer, grpcapi.NewServer(a.sess, a.logger))
	a.shutdown.RegisterCloser("grpc", server.CloserFunc(func() error {
		a.grpcServer.GracefulStop()
		return nil
	}))

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.logger.Info("gRPC server listening", "addr", ln.Addr().String())
		if err := a.grpcServer.Serve(ln); err != nil {
			a.logger.Error("gRPC server error", "error", err)
		}
	}()
	return nil
}

// pruneStats drops idle per-table statistics until ctx ends.
func (a *App) pruneStats(ctx context.Context) {
	defer a.wg.Done()
	ticker := time.NewTicker(statsWindow / 4)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.stats.Prune()
		}
	}
}

// HTTPAddr returns the bound HTTP address, empty before Start.
func (a *App) HTTPAddr() string {
	if a.httpListener == nil {
		return ""
	}
	return a.httpListener.Addr().String()
}

// GRPCAddr returns the bound gRPC address, empty when gRPC is off.
func (a *App) GRPCAddr() string {
	if a.grpcListener == nil {
		return ""
	}
	return a.grpcListener.Addr().String()
}

// Stop drains in-flight requests, stops both servers and closes the
// database.
func (a *App) Stop(ctx context.Context) error {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return nil
	}
	a.running = false
	a.mu.Unlock()

	err := a.shutdown.Shutdown(ctx, "stop requested")
	a.finish()
	return err
}

// Run starts the app and blocks until a signal arrives or ctx ends.
func (a *App) Run(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		return err
	}
	err := a.shutdown.ListenForSignals(ctx)
	a.mu.Lock()
	a.running = false
	a.mu.Unlock()
	a.finish()
	return err
}

// finish stops background work and waits for the serving goroutines.
func (a *App) finish() {
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()
	a.logger.Info("litebrowse stopped")
}

// abort releases whatever Start acquired before failing.
func (a *App) abort() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.grpcServer != nil {
		a.grpcServer.Stop()
	}
	if a.httpServer != nil {
		a.httpServer.Close()
	}
	for _, ln := range []net.Listener{a.grpcListener, a.httpListener} {
		if ln != nil {
			ln.Close()
		}
	}
	a.wg.Wait()
	a.sess.Close()

	a.mu.Lock()
	a.running = false
	a.mu.Unlock()
}
