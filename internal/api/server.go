// Package api serves the extraction pipeline over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/snpedia-variant-pipeline/internal/domain"
	"github.com/snpedia-variant-pipeline/internal/middleware"
	"github.com/snpedia-variant-pipeline/internal/service"
)

// Version is reported by the health endpoint
const Version = "0.1.0"

// HealthCheck reports whether one dependency is reachable
type HealthCheck func(ctx context.Context) error

// Dependencies are the services behind the routes. Queue may be nil, which
// disables the queue endpoint.
type Dependencies struct {
	Extractor    *service.ExtractionService
	Store        domain.VariantStore
	Queue        domain.FetchQueue
	HealthChecks map[string]HealthCheck
}

// Server represents the HTTP server
type Server struct {
	config domain.ServerConfig
	deps   Dependencies
	router *gin.Engine
	server *http.Server
	logger *logrus.Logger
}

// NewServer creates a new HTTP server instance
func NewServer(cfg domain.ServerConfig, deps Dependencies, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.New()
	}
	if deps.Extractor == nil {
		deps.Extractor = service.NewExtractionService(logger)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	router.Use(middleware.RequestTimeout(cfg.RequestTimeout))

	server := &Server{
		config: cfg,
		deps:   deps,
		router: router,
		logger: logger,
	}
	server.setupRoutes()

	return server
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves HTTP until ctx is done, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.logger.Info("Shutting down HTTP server")
	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/extract", s.handleExtract)
		v1.GET("/variants/:id", s.handleGetVariant)
		v1.GET("/variants/:id/risk", s.handleGetRisk)
		v1.GET("/genes/:gene/variants", s.handleListByGene)
		v1.POST("/queue", s.handleEnqueue)
	}
}

// handleHealth reports liveness and the state of each configured dependency
func (s *Server) handleHealth(c *gin.Context) {
	status := "healthy"
	code := http.StatusOK
	checks := make(map[string]string, len(s.deps.HealthChecks))

	for name, check := range s.deps.HealthChecks {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		err := check(ctx)
		cancel()
		if err != nil {
			checks[name] = err.Error()
			status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	c.JSON(code, gin.H{
		"status":    status,
		"timestamp": time.Now().UTC(),
		"version":   Version,
		"checks":    checks,
	})
}

// writeError renders a ServiceError tagged with the request's correlation id
func writeError(c *gin.Context, status int, code, message string, err error) {
	details := ""
	if err != nil {
		details = err.Error()
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, domain.NewServiceError(code, message, details, c.GetString(middleware.CorrelationIDKey)))
}

// respondError classifies err and renders it; fallback is the code for unclassified errors
func respondError(c *gin.Context, err error, fallback, message string) {
	code := domain.CodeFor(err, fallback)
	if code == domain.ErrNotFoundCode {
		writeError(c, http.StatusNotFound, code, "Variant not found", nil)
		return
	}
	writeError(c, domain.HTTPStatus(code), code, message, err)
}
