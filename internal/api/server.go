package api

import (
	"context"
	"errors"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"

	"exocompare/domain/core"
	"exocompare/domain/run"
	"exocompare/internal"
	"exocompare/internal/config"
	"exocompare/internal/telemetry"
	"exocompare/ports"
)

var logger = internal.DefaultLogger.WithComponent("api")

// Runner executes one pipeline run; the server triggers it on POST /api/runs.
type Runner interface {
	Run(ctx context.Context) (*run.RunLog, error)
}

// Options carries the optional collaborators of a Server. Nil fields disable
// the routes that need them.
type Options struct {
	Warehouse ports.WarehouseRepository
	Runner    Runner
	Metrics   *telemetry.Metrics
	Hub       *SSEHub
	GinMode   string
}

// Server serves the artifacts of the latest run plus run history from the warehouse
type Server struct {
	router    *gin.Engine
	paths     config.Paths
	warehouse ports.WarehouseRepository
	runner    Runner
	metrics   *telemetry.Metrics
	hub       *SSEHub
	running   atomic.Bool
	baseCtx   context.Context
	cancel    context.CancelFunc
}

// NewServer wires the routes
func NewServer(paths config.Paths, opts Options) *Server {
	if opts.GinMode != "" {
		gin.SetMode(opts.GinMode)
	}
	if opts.Metrics == nil {
		opts.Metrics = telemetry.New()
	}
	if opts.Hub == nil {
		opts.Hub = NewSSEHub()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		router:    gin.New(),
		paths:     paths,
		warehouse: opts.Warehouse,
		runner:    opts.Runner,
		metrics:   opts.Metrics,
		hub:       opts.Hub,
		baseCtx:   ctx,
		cancel:    cancel,
	}
	s.router.Use(gin.Recovery(), requestLogger())
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.handleHealth)
	s.router.GET("/report", s.handleReport)
	s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	api := s.router.Group("/api")
	api.GET("/metrics", s.handleMetrics)
	api.GET("/metrics/:metric", s.handleMetric)
	api.GET("/run", s.handleRunLog)
	api.GET("/runs/:id", s.handleStoredRun)
	api.POST("/runs", s.handleTriggerRun)
	api.GET("/events", s.hub.HandleSSE)
}

// Handler exposes the router for tests and custom listeners
func (s *Server) Handler() http.Handler { return s.router }

// Start serves on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.Info("shutting down")
		s.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// Close cancels background runs and stops the event hub
func (s *Server) Close() {
	s.cancel()
	s.hub.Close()
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "run_in_progress": s.running.Load()})
}

func (s *Server) handleMetrics(c *gin.Context) {
	data, ok := s.readArtifact(c, s.paths.MetricsJSON(), "metrics.json")
	if !ok {
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", data)
}

// handleMetric extracts one measurement block, or one group of it with ?method=.
func (s *Server) handleMetric(c *gin.Context) {
	data, ok := s.readArtifact(c, s.paths.MetricsJSON(), "metrics.json")
	if !ok {
		return
	}
	path := "metrics." + gjson.Escape(c.Param("metric"))
	if method := c.Query("method"); method != "" {
		path += ".by_method." + gjson.Escape(method)
	}
	res := gjson.GetBytes(data, path)
	if !res.Exists() {
		c.JSON(http.StatusNotFound, gin.H{"error": "no such metric or method", "path": path})
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(res.Raw))
}

func (s *Server) handleRunLog(c *gin.Context) {
	data, ok := s.readArtifact(c, s.paths.RunJSON(), "run.json")
	if !ok {
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", data)
}

func (s *Server) handleReport(c *gin.Context) {
	data, ok := s.readArtifact(c, s.paths.ReportHTML(), "report.html")
	if !ok {
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", data)
}

// handleStoredRun returns a stored result by run id; "latest" picks the newest.
func (s *Server) handleStoredRun(c *gin.Context) {
	if s.warehouse == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "warehouse not configured"})
		return
	}
	ctx := c.Request.Context()
	id, err := core.ParseRunID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if id == "latest" {
		latest, err := s.warehouse.LatestRunID(ctx)
		if err != nil {
			s.storeError(c, err)
			return
		}
		id = latest
	}
	data, err := s.warehouse.GetResult(ctx, id)
	if err != nil {
		s.storeError(c, err)
		return
	}
	c.Header("X-Run-ID", id.String())
	c.Data(http.StatusOK, "application/json; charset=utf-8", data)
}

func (s *Server) storeError(c *gin.Context, err error) {
	if errors.Is(err, core.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	logger.Error("warehouse lookup failed: %v", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "warehouse lookup failed"})
}

// handleTriggerRun starts a pipeline run in the background; one run at a time.
func (s *Server) handleTriggerRun(c *gin.Context) {
	if s.runner == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "runs cannot be triggered from this server"})
		return
	}
	if !s.running.CompareAndSwap(false, true) {
		c.JSON(http.StatusConflict, gin.H{"error": "a run is already in progress"})
		return
	}
	go func() {
		defer s.running.Store(false)
		runLog, err := s.runner.Run(s.baseCtx)
		if err != nil {
			logger.Error("triggered run failed: %v", err)
			return
		}
		logger.Info("triggered run %s finished with status %s", runLog.RunID, runLog.Status)
	}()
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted", "events": "/api/events"})
}

func (s *Server) readArtifact(c *gin.Context, path, name string) ([]byte, bool) {
	data, err := os.ReadFile(path)
	if err == nil {
		return data, true
	}
	if errors.Is(err, os.ErrNotExist) {
		c.JSON(http.StatusNotFound, gin.H{"error": name + " not found; run the pipeline first"})
		return nil, false
	}
	logger.Error("read %s: %v", name, err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read " + name})
	return nil, false
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("%s %s -> %d (%s)", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}
