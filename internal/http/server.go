// Package http serves the supervisor over HTTP.
//
// Routes:
//
//	GET  /health             liveness plus dataset summary
//	GET  /api/v1/properties  the property catalog with aliases
//	POST /api/v1/chat        one conversational turn
//	GET  /metrics            Prometheus exposition
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/portfoliod/internal/logging"
	"github.com/fyrsmithlabs/portfoliod/internal/supervisor"
)

// maxBodySize bounds chat request bodies.
const maxBodySize = "64K"

// Config holds HTTP server configuration.
type Config struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
	Version         string
	// Meter records HTTP metrics. Nil uses the global meter provider.
	Meter metric.Meter
}

// Server provides the portfoliod HTTP API.
type Server struct {
	echo   *echo.Echo
	sup    *supervisor.Supervisor
	logger *logging.Logger
	config *Config
	clock  func() time.Time
}

// NewServer creates a new HTTP server.
func NewServer(sup *supervisor.Supervisor, logger *logging.Logger, cfg *Config) (*Server, error) {
	if sup == nil {
		return nil, fmt.Errorf("supervisor cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{Host: "127.0.0.1", Port: 9191}
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:   e,
		sup:    sup,
		logger: logger.Named("http"),
		config: cfg,
		clock:  time.Now,
	}

	metrics := NewHTTPMetrics(cfg.Meter, s.logger.Underlying())
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(s.requestContext)
	e.Use(metrics.MetricsMiddleware())
	e.Use(s.accessLog)

	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.GET("/properties", s.handleProperties)
	v1.POST("/chat", s.handleChat, middleware.BodyLimit(maxBodySize))
}

// requestContext carries the echo request id into the request context so
// the ctx-aware logger picks it up.
func (s *Server) requestContext(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		rid := c.Response().Header().Get(echo.HeaderXRequestID)
		ctx := logging.WithRequestID(c.Request().Context(), rid)
		if conv := c.Request().Header.Get(HeaderConversationID); conv != "" {
			ctx = logging.WithConversationID(ctx, conv)
		}
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

func (s *Server) accessLog(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		s.logger.Info(c.Request().Context(), "http request",
			zap.String("method", c.Request().Method),
			zap.String("uri", c.Request().RequestURI),
			zap.Int("status", c.Response().Status),
			zap.Duration("duration", time.Since(start)),
		)
		return err
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves until ctx is cancelled, then shuts down within the
// configured timeout. It returns nil after a clean shutdown.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info(ctx, "starting http server", zap.String("addr", addr))
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server start: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.ShutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}
