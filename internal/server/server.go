// Package server is the HTTP transport: gin routes over the actions layer,
// with request-ID, logging, recovery, and CORS middleware.
package server

import (
	"context"
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/chorushq/chorus/internal/app"
	"github.com/chorushq/chorus/internal/metrics"
)

const requestIDKey = "request_id"

// Server owns the gin engine and the underlying http.Server.
type Server struct {
	cfg    app.Config
	db     *sql.DB
	log    zerolog.Logger
	engine *gin.Engine
	http   *http.Server
}

// New wires middleware and routes. The engine runs in release mode; request
// logging goes through zerolog instead of gin's default logger.
func New(cfg app.Config, db *sql.DB, log zerolog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{cfg: cfg, db: db, log: log}

	engine := gin.New()
	engine.Use(s.requestID())
	engine.Use(s.logRequests())
	engine.Use(gin.CustomRecoveryWithWriter(nil, s.recover))
	engine.Use(cors.New(corsConfig(cfg.CORSOrigin)))

	s.engine = engine
	s.routes()

	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func corsConfig(origin string) cors.Config {
	c := cors.DefaultConfig()
	c.AllowOrigins = []string{origin}
	c.AllowCredentials = true
	c.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS", "HEAD"}
	c.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization",
		"Idempotency-Key", "X-Request-ID", "X-Requested-With"}
	return c
}

// Handler exposes the engine for httptest.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe blocks until the listener fails or Shutdown is called.
func (s *Server) ListenAndServe() error {
	s.log.Info().Str("addr", s.cfg.Addr).Msg("http server listening")
	return s.http.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) routes() {
	e := s.engine

	e.GET("/health", s.handleHealth)
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))

	projects := e.Group("/projects")
	{
		projects.POST("", s.handleCreateProject)
		projects.GET("", s.handleListProjects)
		projects.GET("/:id", s.handleGetProject)
		projects.PUT("/:id", s.handleUpdateProject)
		projects.DELETE("/:id", s.handleDeleteProject)
		projects.GET("/:id/export", s.handleExportProject)
		projects.GET("/:id/tasks", s.handleListProjectTasks)
		projects.POST("/:id/tasks", s.handleCreateTask)

		projects.GET("/:id/backlog", s.handleBacklog)
		projects.GET("/:id/in-progress", s.handleInProgress)
		projects.GET("/:id/needs-refinement", s.handleNeedsRefinement)
	}

	tasks := e.Group("/tasks")
	{
		tasks.GET("/available", s.handleAvailable)

		tasks.POST("/:id/subtasks", s.handleCreateSubtask)
		tasks.GET("/:id", s.handleGetTask)
		tasks.PUT("/:id", s.handleUpdateTask)
		tasks.DELETE("/:id", s.handleDeleteTask)
		tasks.GET("/:id/tree", s.handleTaskTree)
		tasks.GET("/:id/ancestry", s.handleTaskAncestry)
		tasks.GET("/:id/context", s.handleTaskContext)
		tasks.PATCH("/:id/status", s.handleUpdateStatus)
		tasks.PATCH("/:id/reorder", s.handleReorder)

		tasks.POST("/:id/size", s.handleSize)
		tasks.POST("/:id/breakdown", s.handleBreakdown)
		tasks.POST("/:id/refine", s.handleRefine)
		tasks.POST("/:id/flag-refinement", s.handleFlagRefinement)
		tasks.POST("/:id/complete", s.handleComplete)

		tasks.POST("/:id/work-log", s.handleAddWorkLog)
		tasks.GET("/:id/work-log", s.handleListWorkLog)
		tasks.POST("/:id/commits", s.handleAddCommit)
		tasks.GET("/:id/commits", s.handleListCommits)

		tasks.POST("/:id/lock", s.handleAcquireLock)
		tasks.PATCH("/:id/lock/heartbeat", s.handleHeartbeat)
		tasks.DELETE("/:id/lock", s.handleReleaseLock)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// requestID assigns a UUID per request and echoes it on the response.
func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := uuid.NewString()
		c.Set(requestIDKey, id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

func (s *Server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		elapsed := time.Since(start)

		metrics.HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		metrics.HTTPDuration.WithLabelValues(c.Request.Method, route).Observe(elapsed.Seconds())

		s.log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("duration", elapsed).
			Str(requestIDKey, c.GetString(requestIDKey)).
			Msg("request")
	}
}

// recover turns a handler panic into the generic internal-error envelope.
func (s *Server) recover(c *gin.Context, recovered any) {
	s.log.Error().Interface("panic", recovered).
		Str(requestIDKey, c.GetString(requestIDKey)).
		Msg("handler panicked")
	s.renderInternal(c)
}
