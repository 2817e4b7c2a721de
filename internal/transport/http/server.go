package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/rawsignal/RivianMate-sub001/internal/auth"
	"github.com/rawsignal/RivianMate-sub001/internal/config"
	"github.com/rawsignal/RivianMate-sub001/internal/store"
)

// AdminScheduler is the slice of the poll scheduler the admin API
// drives.
type AdminScheduler interface {
	RegisterAccount(accountID string)
	RemoveAccount(accountID string)
	TriggerImmediatePoll(accountID string) bool
}

// Server is the read/admin surface consumed by the dashboard, export,
// and notification layers.
type Server struct {
	cfg       *config.Config
	db        *store.PostgresStore
	redis     *store.RedisStore
	scheduler AdminScheduler
	auth      *auth.Authenticator
	log       *logrus.Entry
	engine    *gin.Engine
}

func NewServer(cfg *config.Config, db *store.PostgresStore, redis *store.RedisStore, scheduler AdminScheduler, authenticator *auth.Authenticator, log *logrus.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		cfg:       cfg,
		db:        db,
		redis:     redis,
		scheduler: scheduler,
		auth:      authenticator,
		log:       log.WithField("component", "http"),
		engine:    engine,
	}
	s.registerRoutes()
	return s
}

// Engine exposes the underlying gin engine (for tests).
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Run starts the HTTP server and blocks until shutdown.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    ":" + s.cfg.HTTPPort,
		Handler: s.engine,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.engine.Group("/v1")
	v1.Use(s.apiKeyMiddleware())

	v1.POST("/accounts", s.handleLinkAccount)
	v1.DELETE("/accounts/:id", s.handleUnlinkAccount)
	v1.POST("/accounts/:id/poll", s.handleTriggerPoll)
	v1.GET("/accounts/:id/vehicles", s.handleListVehicles)
	v1.GET("/accounts/:id/stream", s.handleStream)

	v1.GET("/vehicles/:id/state", s.handleGetState)
	v1.GET("/vehicles/:id/snapshots", s.handleGetSnapshots)
	v1.GET("/vehicles/:id/trend", s.handleGetTrend)
}
