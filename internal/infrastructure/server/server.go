package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/uniremote/backend/internal/infrastructure/config"
	"github.com/GriffinCanCode/uniremote/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/uniremote/backend/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/uniremote/backend/internal/shared/types"
	"github.com/GriffinCanCode/uniremote/backend/internal/worker"
)

const shutdownTimeout = 5 * time.Second

// Server is the admin HTTP server
type Server struct {
	router   *gin.Engine
	addr     string
	registry *worker.Registry
	catalog  map[types.RemoteID]types.Remote
	logger   *zap.Logger
	metrics  *monitoring.Metrics
	started  time.Time
}

// New builds the admin router. remotes is the catalog of loaded remotes;
// worker state is read from registry on every request.
func New(cfg *config.Config, registry *worker.Registry, remotes []types.Remote, logger *zap.Logger, metrics *monitoring.Metrics) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		router:   gin.New(),
		addr:     cfg.Server.Addr(),
		registry: registry,
		catalog:  make(map[types.RemoteID]types.Remote, len(remotes)),
		logger:   logger.Named("admin"),
		metrics:  metrics,
		started:  time.Now(),
	}
	for _, r := range remotes {
		s.catalog[r.ID] = r
	}

	s.router.Use(gin.Recovery())
	s.router.Use(tracing.HTTPMiddleware(tracing.New(s.logger)))
	s.router.Use(monitoring.Middleware(metrics))
	s.router.Use(CORS(cfg.CORS.AllowOrigins))
	if cfg.RateLimit.Enabled {
		s.logger.Info("rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		s.router.Use(RateLimit(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst))
	}

	s.router.GET("/health", s.health)
	if metrics != nil {
		s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))
	}
	s.router.GET("/remotes", s.listRemotes)
	s.router.GET("/remotes/*id", s.getRemote)
	return s
}

// Handler returns the router, for tests and embedding
func (s *Server) Handler() http.Handler { return s.router }

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("admin server listening", zap.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("shutting down admin server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("admin server shutdown: %w", err)
	}
	return nil
}
