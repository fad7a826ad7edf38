// Package httpapi provides the HTTP API for speechd.
package httpapi

import (
	"context"
	"fmt"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/speechloop/speechd/internal/pipeline"
	"github.com/speechloop/speechd/internal/session"
	"github.com/speechloop/speechd/internal/share"
)

// Server provides HTTP endpoints for speechd.
type Server struct {
	echo     *echo.Echo
	sessions *session.Manager
	pipeline *pipeline.Pipeline
	share    *share.Service
	logger   *zap.Logger
	config   *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// NewServer creates a new HTTP server.
func NewServer(sessions *session.Manager, pl *pipeline.Pipeline, shares *share.Service, logger *zap.Logger, cfg *Config) (*Server, error) {
	if sessions == nil {
		return nil, fmt.Errorf("session manager cannot be nil")
	}
	if pl == nil {
		return nil, fmt.Errorf("pipeline cannot be nil")
	}
	if shares == nil {
		return nil, fmt.Errorf("share service cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "",
			Port: 8080,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			observeRequest(c.Request().Method, c.Path(), c.Response().Status, duration)

			return err
		}
	})

	s := &Server{
		echo:     e,
		sessions: sessions,
		pipeline: pl,
		share:    shares,
		logger:   logger,
		config:   cfg,
	}

	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := s.echo.Group("/api")

	api.POST("/sessions", s.handleCreateSession)
	api.GET("/sessions/:sessionId", s.handleGetSession)
	api.GET("/sessions/:sessionId/participants/:participantId", s.handleGetParticipantContent)

	// Older clients post topics up front instead of generating them.
	api.POST("/sessions/create", s.handleCreateSessionLegacy)

	api.POST("/generate/topics", s.handleGenerateTopics)
	api.POST("/generate/keywords", s.handleGenerateKeywords)
	api.POST("/generate/speech", s.handleGenerateSpeech)
	api.POST("/generate/speech-example", s.handleGenerateQuickSpeech)
	api.POST("/generate/associations", s.handleGenerateAssociations)

	api.POST("/qr", s.handleQR)
}

// Echo exposes the underlying echo instance for route registration in tests
// and in the main wiring.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
