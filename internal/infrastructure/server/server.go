package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apihttp "github.com/sprintbridge/backend/internal/api/http"
	"github.com/sprintbridge/backend/internal/api/middleware"
	"github.com/sprintbridge/backend/internal/executor"
	"github.com/sprintbridge/backend/internal/infrastructure/config"
	"github.com/sprintbridge/backend/internal/infrastructure/logging"
	"github.com/sprintbridge/backend/internal/infrastructure/monitoring"
	"github.com/sprintbridge/backend/internal/infrastructure/tracing"
	"github.com/sprintbridge/backend/internal/storage"
	"github.com/sprintbridge/backend/internal/ws"
)

// Server wraps the executor HTTP server and its dependencies
type Server struct {
	router   *gin.Engine
	store    *storage.BoltStore
	executor *executor.Executor
	ws       *ws.Handler
	tracer   *tracing.Tracer
	logger   *logging.Logger
	config   *config.Config
	metrics  *monitoring.Metrics
}

// ExecutorConfig maps application configuration onto the executor's.
func ExecutorConfig(cfg *config.Config) executor.Config {
	return executor.Config{
		Client: executor.ClientConfig{
			Timeout:           cfg.Executor.Timeout.Duration,
			RetryCount:        cfg.Executor.RetryCount,
			RequestsPerSecond: cfg.Executor.RequestsPerSec,
			UserAgent:         cfg.Executor.UserAgent,
			BreakerFailures:   cfg.Executor.BreakerFailures,
			BreakerTimeout:    cfg.Executor.BreakerTimeout.Duration,
		},
		DocstoreBaseURL: cfg.Docstore.BaseURL,
		CookieDomain:    cfg.Docstore.CookieDomain,
	}
}

// NewServer opens the state store and wires the executor behind the router.
func NewServer(cfg *config.Config, logger *logging.Logger) (*Server, error) {
	logger = logging.OrNop(logger)

	logger.Info("Initializing executor server",
		zap.String("host", cfg.Server.Host),
		zap.String("port", cfg.Server.Port),
		zap.String("docstore", cfg.Docstore.BaseURL),
		zap.String("storage", cfg.Storage.Path),
	)

	if err := os.MkdirAll(filepath.Dir(cfg.Storage.Path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	store, err := storage.Open(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open state store: %w", err)
	}

	metrics := monitoring.NewMetrics()
	tracer := tracing.New("executor", logger.Logger)

	exec := executor.New(store, ExecutorConfig(cfg),
		executor.WithLogger(logger),
		executor.WithMetrics(metrics),
		executor.WithTracer(tracer),
	)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics))

	cors := middleware.DefaultCORSConfig()
	cors.AllowOrigins = cfg.Server.AllowedOrigins
	router.Use(middleware.CORS(cors))

	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		limits := middleware.DefaultRateLimitConfig()
		limits.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		limits.Burst = cfg.RateLimit.Burst
		router.Use(middleware.RateLimit(limits))
	}

	handlers := apihttp.NewHandlers(store, exec, metrics, logger, apihttp.Options{
		Version:         config.Version,
		TrackerURL:      cfg.Tracker.URL,
		DocstoreBaseURL: cfg.Docstore.BaseURL,
		DocstoreSite:    cfg.Docstore.Site,
		CookieDomain:    cfg.Docstore.CookieDomain,
	})
	handlers.Register(router)

	wsHandler := ws.NewHandler(exec, cfg.Server.AllowedOrigins, logger, metrics)
	router.GET("/runtime", wsHandler.HandleConnection)

	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	logger.Info("Server initialized successfully")

	return &Server{
		router:   router,
		store:    store,
		executor: exec,
		ws:       wsHandler,
		tracer:   tracer,
		logger:   logger,
		config:   cfg,
		metrics:  metrics,
	}, nil
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Executor returns the executor behind the runtime endpoint.
func (s *Server) Executor() *executor.Executor {
	return s.executor
}

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	addr := net.JoinHostPort(s.config.Server.Host, s.config.Server.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then shuts down gracefully: runtime
// connections are closed first, then in-flight HTTP requests get the
// configured grace period.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", zap.String("addr", ln.Addr().String()))
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

	s.logger.Info("Shutting down HTTP server")
	s.ws.Close()

	grace := s.config.Server.ShutdownGrace.Duration
	if grace <= 0 {
		grace = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close releases the runtime connections, the tracer and the state store.
func (s *Server) Close() error {
	s.logger.Info("Shutting down server...")

	s.ws.Close()
	s.tracer.Close()

	if err := s.store.Close(); err != nil {
		s.logger.Error("Failed to close state store", zap.Error(err))
		return fmt.Errorf("failed to close state store: %w", err)
	}

	_ = s.logger.Sync()
	return nil
}
