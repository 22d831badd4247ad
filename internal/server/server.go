// Package server exposes the control plane over HTTP: the gateway
// preflight/route endpoints, mission lifecycle, transform engine calls,
// finops, policies, and evidence export.
package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"codegov/internal/config"
	"codegov/internal/evidence"
	"codegov/internal/finops"
	"codegov/internal/mission"
	"codegov/internal/redact"
	"codegov/internal/transform"
)

// Server carries explicit component handles; there is no package-level
// state, so tests create fresh instances per scenario.
type Server struct {
	cfg      *config.Config
	router   *gin.Engine
	coord    *mission.Coordinator
	engine   *transform.Engine
	redactor *redact.Redactor
	ledger   *finops.Ledger
	events   *evidence.Store
	log      *zap.Logger
}

// New wires the server to its components and registers all routes.
func New(cfg *config.Config, coord *mission.Coordinator, engine *transform.Engine,
	redactor *redact.Redactor, ledger *finops.Ledger, events *evidence.Store, log *zap.Logger) *Server {

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	s := &Server{
		cfg:      cfg,
		router:   router,
		coord:    coord,
		engine:   engine,
		redactor: redactor,
		ledger:   ledger,
		events:   events,
		log:      log,
	}

	router.Use(gin.Recovery(), s.requestLogger(), s.contentTypeGate())

	router.GET("/health", s.health)

	router.POST("/gateway/preflight", s.gatewayPreflight)
	router.POST("/gateway/route", s.gatewayRoute)

	missions := router.Group("/missions")
	{
		missions.POST("", s.createMission)
		missions.GET("", s.listMissions)
		missions.GET("/:id", s.getMission)
		missions.POST("/:id/checkpoints/:name/approve", s.approveCheckpoint)
		missions.POST("/:id/checkpoints/:name/reject", s.rejectCheckpoint)
		missions.POST("/:id/batches", s.createBatch)
		missions.POST("/:id/rollback/:batchId", s.rollbackBatch)
		missions.POST("/:id/apply", s.applyCheckpoint)
	}

	router.POST("/dte/apply", s.dteApply)
	router.POST("/dte/verify", s.dteVerify)

	router.POST("/finops/forecast", s.finopsForecast)
	router.GET("/finops/budget", s.listBudgets)
	router.POST("/finops/budget", s.createBudget)

	router.GET("/policies/models", s.listModelPolicies)
	router.PUT("/policies/models", s.putModelPolicy)

	router.POST("/evidence/events", s.appendEvent)
	router.GET("/evidence/mission/:id", s.missionProvenance)
	router.POST("/evidence/export", s.exportAuditPack)

	return s
}

// Handler returns the underlying handler for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves until the context is cancelled, then shuts down gracefully
// within the configured deadline.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.cfg.Server.Addr, Handler: s.router}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	s.log.Info("serving", zap.String("addr", s.cfg.Server.Addr))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	timeout, err := s.cfg.ShutdownTimeout()
	if err != nil {
		timeout = 0
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	s.log.Info("shutting down", zap.Duration("timeout", timeout))
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": s.cfg.Name,
	})
}
