// Package httpapi exposes the thought memory service over HTTP.
//
// The surface is a small JSON API: parse model output without storing it,
// ingest tagged output, retrieve scored thoughts, run a reflection cycle,
// walk the thought graph, and follow a session's events as an SSE stream.
// Handlers stay thin; the store, pipeline, reflection engine, and graph do
// the work.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/thoughtd/internal/events"
	"github.com/fyrsmithlabs/thoughtd/internal/graph"
	"github.com/fyrsmithlabs/thoughtd/internal/pipeline"
	"github.com/fyrsmithlabs/thoughtd/internal/reflection"
	"github.com/fyrsmithlabs/thoughtd/internal/store"
)

var apiTracer = otel.Tracer("thoughtd.httpapi")

// Config holds HTTP server configuration.
type Config struct {
	Host    string
	Port    int
	Service string
	Version string
}

// Services bundles the domain dependencies the handlers call into. Store,
// Pipeline, Reflector, and Graph are required; a nil Bus disables the SSE
// event stream (the route answers 503).
type Services struct {
	Store     *store.Store
	Pipeline  *pipeline.Pipeline
	Reflector *reflection.Engine
	Graph     *graph.Graph
	Bus       *events.Bus
}

// Server provides the HTTP endpoints for thoughtd.
type Server struct {
	echo   *echo.Echo
	svc    Services
	logger *zap.Logger
	config *Config
}

// NewServer creates a new HTTP server.
func NewServer(svc Services, logger *zap.Logger, cfg *Config) (*Server, error) {
	if svc.Store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if svc.Pipeline == nil {
		return nil, fmt.Errorf("pipeline cannot be nil")
	}
	if svc.Reflector == nil {
		return nil, fmt.Errorf("reflection engine cannot be nil")
	}
	if svc.Graph == nil {
		return nil, fmt.Errorf("graph cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "127.0.0.1",
			Port: 8080,
		}
	}
	if cfg.Service == "" {
		cfg.Service = "thoughtd"
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(traceMiddleware())
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

			return err
		}
	})
	e.Use(metricsMiddleware())

	s := &Server{
		echo:   e,
		svc:    svc,
		logger: logger,
		config: cfg,
	}

	// Register routes
	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	// Health check and metrics
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// API v1 routes
	v1 := s.echo.Group("/api/v1")
	v1.POST("/parse", s.handleParse)
	v1.POST("/store", s.handleStore)
	v1.POST("/retrieve", s.handleRetrieve)
	v1.POST("/reflect", s.handleReflect)
	v1.GET("/graph/paths", s.handleGraphPaths)
	v1.GET("/sessions/:id/events", s.handleSessionEvents)
}

// traceMiddleware opens a span per request, named after the matched route.
func traceMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			ctx, span := apiTracer.Start(req.Context(), req.Method+" "+c.Path())
			defer span.End()
			c.SetRequest(req.WithContext(ctx))

			err := next(c)

			span.SetAttributes(
				attribute.String("http.method", req.Method),
				attribute.String("http.route", c.Path()),
				attribute.Int("http.status_code", c.Response().Status),
			)
			return err
		}
	}
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status   string `json:"status"`
	Service  string `json:"service"`
	Version  string `json:"version"`
	Thoughts int64  `json:"thoughts"`
	Sessions int64  `json:"sessions"`
}

// handleHealth reports service identity and store counts.
func (s *Server) handleHealth(c echo.Context) error {
	ctx := c.Request().Context()

	thoughts, err := s.svc.Store.Count(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "store unavailable")
	}
	sessions, err := s.svc.Store.CountSessions(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "store unavailable")
	}

	return c.JSON(http.StatusOK, HealthResponse{
		Status:   "ok",
		Service:  s.config.Service,
		Version:  s.config.Version,
		Thoughts: thoughts,
		Sessions: sessions,
	})
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
