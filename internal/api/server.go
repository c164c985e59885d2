package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/hazardwatch/hazardwatch/internal/api/auth"
	mw "github.com/hazardwatch/hazardwatch/internal/api/middleware"
	"github.com/hazardwatch/hazardwatch/internal/errors"
	"github.com/hazardwatch/hazardwatch/internal/hazard"
	"github.com/hazardwatch/hazardwatch/internal/logging"
	"github.com/hazardwatch/hazardwatch/internal/observability"
	"github.com/hazardwatch/hazardwatch/internal/sources"
)

// Triggerer runs a source on demand.
type Triggerer interface {
	Trigger(ctx context.Context, name string, actor hazard.Actor) (bool, error)
}

// SourceLister lists the enabled sources.
type SourceLister interface {
	Entries() []sources.Entry
}

// Server is the admin HTTP server.
type Server struct {
	echo    *echo.Echo
	config  *Config
	slogger *slog.Logger

	triggerer Triggerer
	sources   SourceLister
	metrics   *observability.Metrics
	auth      *auth.TokenAuth

	startTime time.Time
}

// ServerOption is a functional option for configuring the Server.
type ServerOption func(*Server)

// WithMetrics exposes /metrics and records request telemetry.
func WithMetrics(m *observability.Metrics) ServerOption {
	return func(s *Server) {
		s.metrics = m
	}
}

// New creates the admin server.
func New(config *Config, triggerer Triggerer, lister SourceLister, opts ...ServerOption) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.New(fmt.Errorf("invalid server configuration: %w", err)).
			Component("api").
			Category(errors.CategoryConfiguration).
			Build()
	}
	tokenAuth, err := auth.NewTokenAuth(config.AdminTokenHash)
	if err != nil {
		return nil, err
	}

	s := &Server{
		config:    config,
		slogger:   logging.ForService("api"),
		triggerer: triggerer,
		sources:   lister,
		auth:      tokenAuth,
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.echo = echo.New()
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Debug = config.Debug
	s.echo.Server.ReadTimeout = config.ReadTimeout
	s.echo.Server.WriteTimeout = config.WriteTimeout
	s.echo.Server.IdleTimeout = config.IdleTimeout

	s.setupMiddleware()
	s.setupRoutes()

	s.slogger.Info("HTTP server initialized",
		"address", config.Listen,
		"metrics", config.Metrics && s.metrics != nil)
	return s, nil
}

// setupMiddleware configures the Echo middleware stack.
func (s *Server) setupMiddleware() {
	// Recovery middleware - should be first
	s.echo.Use(echomw.Recover())
	if s.metrics != nil {
		s.echo.Use(mw.NewTelemetry(s.metrics.HTTP))
		s.auth.OnFailure = s.metrics.HTTP.RecordAuthFailure
	}
	s.echo.Use(mw.NewRequestLogger(s.slogger, "/healthz", "/metrics"))
	s.echo.Use(mw.NewBodyLimit(s.config.BodyLimit))
	s.echo.Use(mw.NewSecureHeaders())
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.echo.GET("/healthz", s.healthCheck)
	if s.config.Metrics && s.metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	}

	v1 := s.echo.Group("/api/v1", s.auth.Authenticate)
	v1.GET("/sources", s.listSources)
	v1.POST("/sources/:name/trigger", s.triggerSource)
}

// Start serves until Shutdown is called. It returns nil after a clean
// shutdown.
func (s *Server) Start() error {
	s.slogger.Info("Starting HTTP server", "address", s.config.Listen)
	if err := s.echo.Start(s.config.Listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.New(fmt.Errorf("server error: %w", err)).
			Component("api").
			Category(errors.CategoryNetwork).
			Build()
	}
	return nil
}

// Shutdown gracefully stops the server, waiting at most the configured
// shutdown timeout for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(ctx); err != nil {
		s.slogger.Error("Error during server shutdown", "error", err)
		return fmt.Errorf("shutdown error: %w", err)
	}
	s.slogger.Info("Server shutdown complete")
	return nil
}

// Echo returns the underlying Echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}
