// Package health serves a minimal JSON status endpoint for the worker
// process, adapted from the teacher's gin-based status route but reporting
// queue/store connectivity instead of per-bot streaming metrics.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Pinger is anything whose connectivity the status endpoint should report.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server wraps the gin engine serving /status and /healthz.
type Server struct {
	engine *gin.Engine
	log    *zap.Logger
	redis  Pinger
	pg     Pinger
	start  time.Time
}

// New builds a Server backed by the given store pingers.
func New(log *zap.Logger, redis, pg Pinger) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{engine: engine, log: log.Named("health"), redis: redis, pg: pg, start: time.Now()}
	engine.GET("/healthz", s.handleHealthz)
	engine.GET("/status", s.handleStatus)
	return s
}

// Run starts the HTTP server on addr, blocking until it returns an error.
func (s *Server) Run(addr string) error {
	s.log.Info("health server listening", zap.String("addr", addr))
	return s.engine.Run(addr)
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type dependencyStatus struct {
	Name string `json:"name"`
	OK   bool   `json:"ok"`
}

type statusResponse struct {
	UptimeSeconds int64               `json:"uptime_seconds"`
	Dependencies  []dependencyStatus  `json:"dependencies"`
	Timestamp     time.Time           `json:"timestamp"`
}

func (s *Server) handleStatus(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	deps := []dependencyStatus{
		{Name: "redis", OK: s.redis.Ping(ctx) == nil},
		{Name: "postgres", OK: s.pg.Ping(ctx) == nil},
	}

	c.JSON(http.StatusOK, statusResponse{
		UptimeSeconds: int64(time.Since(s.start).Seconds()),
		Dependencies:  deps,
		Timestamp:     time.Now(),
	})
}
