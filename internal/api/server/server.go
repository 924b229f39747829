package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/amplifrens/amplifrens-indexer/internal/api/middleware"
	"github.com/amplifrens/amplifrens-indexer/internal/api/rest"
	"github.com/amplifrens/amplifrens-indexer/internal/api/shared/executor"
	"github.com/amplifrens/amplifrens-indexer/internal/logger"
	"github.com/amplifrens/amplifrens-indexer/internal/metrics"
	"github.com/amplifrens/amplifrens-indexer/internal/providers/temporal"
	"github.com/amplifrens/amplifrens-indexer/internal/store"
)

// Config holds the server configuration
type Config struct {
	Debug                 bool
	Host                  string
	Port                  int
	ReadTimeout           time.Duration
	WriteTimeout          time.Duration
	IdleTimeout           time.Duration
	OrchestratorTaskQueue string
	AllowedOrigins        []string
	Auth                  middleware.AuthConfig
}

// Server wraps the HTTP server
type Server struct {
	config     Config
	router     *gin.Engine
	httpServer *http.Server
}

// New creates a new API server with its routes registered
func New(cfg Config, store store.Store, orchestrator temporal.TemporalOrchestrator) (*Server, error) {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	auth, err := middleware.NewAuthenticator(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create authenticator: %w", err)
	}

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.Metrics())
	router.Use(middleware.SetupCORS(cfg.AllowedOrigins))

	exec := executor.NewExecutor(store, orchestrator, cfg.OrchestratorTaskQueue)
	rest.SetupRoutes(router, rest.NewHandler(exec), auth)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	return &Server{
		config: cfg,
		router: router,
	}, nil
}

// Handler returns the HTTP handler of the server
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves HTTP until Shutdown is called
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	logger.Info("Starting API server",
		zap.String("address", addr),
	)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Info("Shutting down API server")

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown server: %w", err)
		}
	}

	return nil
}
