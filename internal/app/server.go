package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"go.uber.org/zap"

	"github.com/zoravur/bookstore/internal/api"
	"github.com/zoravur/bookstore/internal/catalog"
	"github.com/zoravur/bookstore/internal/config"
	"github.com/zoravur/bookstore/internal/reactive"
	"github.com/zoravur/bookstore/internal/realtime"
	"github.com/zoravur/bookstore/internal/store"
)

type Server struct {
	cfg        config.Config
	log        *zap.Logger
	httpServer *http.Server
	gateway    *realtime.Gateway
	Registry   *reactive.Registry
	Store      catalog.Repository
}

func NewServer(ctx context.Context, cfg config.Config, log *zap.Logger) (*Server, error) {
	if log == nil {
		log = zap.NewNop()
	}

	repo, err := openStore(ctx, cfg.Store, log)
	if err != nil {
		return nil, err
	}

	reg := reactive.NewRegistry(
		reactive.WithLogger(log.Named("registry")),
		reactive.WithConcurrency(cfg.Realtime.BroadcastConcurrency),
	)
	gw := realtime.NewGateway(reg, realtime.Options{
		IdleTimeout:     cfg.Realtime.IdleTimeout,
		WriteTimeout:    cfg.Realtime.WriteTimeout,
		MaxMessageBytes: cfg.Realtime.MaxMessageBytes,
		AllowedOrigins:  cfg.Realtime.AllowedOrigins,
	}, log.Named("realtime"))

	h := &api.Handler{Store: repo, Registry: reg}
	return &Server{
		cfg: cfg,
		log: log,
		httpServer: &http.Server{
			Addr:         cfg.HTTP.Addr,
			Handler:      api.SetupRoutes(h, gw),
			ReadTimeout:  cfg.HTTP.ReadTimeout,
			WriteTimeout: cfg.HTTP.WriteTimeout,
		},
		gateway:  gw,
		Registry: reg,
		Store:    repo,
	}, nil
}

func openStore(ctx context.Context, cfg config.StoreConfig, log *zap.Logger) (catalog.Repository, error) {
	if cfg.Driver == store.DriverMemory {
		log.Warn("using in-memory store; data is lost on exit")
		return store.NewMemoryStore(), nil
	}

	db, err := store.OpenDB(ctx, cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}
	if cfg.AutoMigrate {
		results, err := store.Migrate(ctx, db)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		for _, r := range results {
			log.Info("migration applied", zap.String("source", r.Source.Path), zap.Duration("took", r.Duration))
		}
	}
	return store.NewSQLStore(db), nil
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Run serves on the configured address until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		_ = s.Store.Close()
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts on ln until ctx is cancelled, then drains HTTP requests,
// closes realtime connections and releases the store.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", zap.String("addr", ln.Addr().String()))
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	s.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.HTTP.ShutdownTimeout)
	defer cancel()

	// hijacked websocket connections are not tracked by http.Server
	err := errors.Join(
		serveErr,
		s.httpServer.Shutdown(shutdownCtx),
		s.gateway.Shutdown(shutdownCtx),
		s.Store.Close(),
	)
	return err
}
