// Package http provides the HTTP API for knowledged.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fyrsmithlabs/knowledged/internal/document"
	"github.com/fyrsmithlabs/knowledged/internal/generation"
	"github.com/fyrsmithlabs/knowledged/internal/index"
	"github.com/fyrsmithlabs/knowledged/internal/query"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// IndexManager is the slice of the index manager the API exposes.
type IndexManager interface {
	Rebuild(ctx context.Context, force bool) (*index.Summary, error)
	IncrementalIndex(ctx context.Context, filePath string) error
	RemoveFromIndex(ctx context.Context, filePath string) (int, error)
	Stats(ctx context.Context) index.Stats
}

// QueryEngine answers questions over the index.
type QueryEngine interface {
	Query(ctx context.Context, text string, topK int) (*query.Answer, error)
}

// Summarizer derives summaries, keywords and a category from content.
type Summarizer interface {
	Summarize(ctx context.Context, content string) (string, error)
	Keywords(ctx context.Context, content string, max int) ([]string, error)
	Categorize(ctx context.Context, content string) (string, error)
}

// Prober checks generation backend reachability.
type Prober interface {
	Probe(ctx context.Context) error
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// Server provides HTTP endpoints for knowledged.
type Server struct {
	echo       *echo.Echo
	manager    IndexManager
	engine     QueryEngine
	summarizer Summarizer
	prober     Prober
	logger     *zap.Logger
	config     Config
}

// NewServer creates the HTTP server and registers all routes.
func NewServer(cfg Config, manager IndexManager, engine QueryEngine, summarizer Summarizer, prober Prober, logger *zap.Logger) (*Server, error) {
	if manager == nil {
		return nil, fmt.Errorf("index manager cannot be nil")
	}
	if engine == nil {
		return nil, fmt.Errorf("query engine cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 8000
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(NewHTTPMetrics(logger).MetricsMiddleware())
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

	s := &Server{
		echo:       e,
		manager:    manager,
		engine:     engine,
		summarizer: summarizer,
		prober:     prober,
		logger:     logger,
		config:     cfg,
	}

	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.GET("/stats", s.handleStats)
	v1.POST("/query", s.handleQuery)
	v1.POST("/reindex", s.handleReindex)
	v1.POST("/index", s.handleIndex)
	v1.DELETE("/index", s.handleRemove)
	v1.POST("/summarize", s.handleSummarize)
}

// QueryRequest is the request body for POST /api/v1/query.
type QueryRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

// ReindexRequest is the request body for POST /api/v1/reindex.
type ReindexRequest struct {
	Force bool `json:"force"`
}

// IndexRequest is the request body for POST and DELETE /api/v1/index.
type IndexRequest struct {
	Path string `json:"path"`
}

// RemoveResponse is the response body for DELETE /api/v1/index.
type RemoveResponse struct {
	Removed int `json:"removed"`
}

// SummarizeRequest is the request body for POST /api/v1/summarize.
type SummarizeRequest struct {
	Content     string `json:"content"`
	MaxKeywords int    `json:"max_keywords"`
}

// SummarizeResponse is the response body for POST /api/v1/summarize.
type SummarizeResponse struct {
	Summary  string   `json:"summary"`
	Keywords []string `json:"keywords"`
	Category string   `json:"category"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Backend string `json:"backend"`
}

// handleHealth reports liveness plus the generation backend's probe
// state. The server stays healthy with the backend down; queries will
// fail but indexing still works.
func (s *Server) handleHealth(c echo.Context) error {
	backend := "unknown"
	if s.prober != nil {
		if err := s.prober.Probe(c.Request().Context()); err != nil {
			backend = "unreachable"
		} else {
			backend = "ok"
		}
	}
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok", Backend: backend})
}

// handleStats returns collection statistics.
func (s *Server) handleStats(c echo.Context) error {
	return c.JSON(http.StatusOK, s.manager.Stats(c.Request().Context()))
}

// handleQuery answers a question over the index.
func (s *Server) handleQuery(c echo.Context) error {
	var req QueryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Query) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query field is required")
	}
	if req.TopK == 0 {
		req.TopK = query.DefaultTopK
	}
	if req.TopK < 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "top_k must be positive")
	}

	answer, err := s.engine.Query(c.Request().Context(), req.Query, req.TopK)
	if err != nil {
		return s.mapError(c, err, "query failed")
	}
	return c.JSON(http.StatusOK, answer)
}

// handleReindex rebuilds the whole index.
func (s *Server) handleReindex(c echo.Context) error {
	var req ReindexRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	summary, err := s.manager.Rebuild(c.Request().Context(), req.Force)
	if err != nil {
		return s.mapError(c, err, "rebuild failed")
	}
	return c.JSON(http.StatusOK, summary)
}

// handleIndex indexes a single file.
func (s *Server) handleIndex(c echo.Context) error {
	var req IndexRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Path == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "path field is required")
	}

	if err := s.manager.IncrementalIndex(c.Request().Context(), req.Path); err != nil {
		return s.mapError(c, err, "indexing failed")
	}
	return c.NoContent(http.StatusNoContent)
}

// handleRemove removes a file's entries from the index.
func (s *Server) handleRemove(c echo.Context) error {
	var req IndexRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Path == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "path field is required")
	}

	removed, err := s.manager.RemoveFromIndex(c.Request().Context(), req.Path)
	if err != nil {
		return s.mapError(c, err, "removal failed")
	}
	return c.JSON(http.StatusOK, RemoveResponse{Removed: removed})
}

// handleSummarize summarizes, extracts keywords from and categorizes
// the given content.
func (s *Server) handleSummarize(c echo.Context) error {
	if s.summarizer == nil {
		return echo.NewHTTPError(http.StatusNotFound, "summarization is not enabled")
	}

	var req SummarizeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Content) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "content field is required")
	}

	ctx := c.Request().Context()
	summary, err := s.summarizer.Summarize(ctx, req.Content)
	if err != nil {
		return s.mapError(c, err, "summarization failed")
	}
	keywords, err := s.summarizer.Keywords(ctx, req.Content, req.MaxKeywords)
	if err != nil {
		return s.mapError(c, err, "keyword extraction failed")
	}
	category, err := s.summarizer.Categorize(ctx, req.Content)
	if err != nil {
		return s.mapError(c, err, "categorization failed")
	}

	return c.JSON(http.StatusOK, SummarizeResponse{
		Summary:  summary,
		Keywords: keywords,
		Category: category,
	})
}

// mapError converts internal errors to HTTP status codes: backend
// unavailability is a 502, missing paths a 404, everything else a 500.
func (s *Server) mapError(c echo.Context, err error, msg string) error {
	s.logger.Warn(msg,
		zap.String("uri", c.Request().RequestURI),
		zap.Error(err),
	)

	switch {
	case errors.Is(err, generation.ErrBackendUnavailable):
		return echo.NewHTTPError(http.StatusBadGateway, "generation backend unavailable")
	case errors.Is(err, document.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "path not found")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, msg)
	}
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
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
