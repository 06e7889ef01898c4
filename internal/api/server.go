// Package api serves the stored series, predictions and job runs over a
// read-only HTTP API.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tigerroll/arbovirus-pipeline/internal/domain/model"
	batchmodel "github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/domain/model"
	config "github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/config"
	"github.com/tigerroll/arbovirus-pipeline/pkg/batch/support/util/logger"
)

const (
	requestTimeout  = 15 * time.Second
	shutdownTimeout = 10 * time.Second
)

// ClimateReader reads climate series.
type ClimateReader interface {
	Find(ctx context.Context, locationCode string, r model.DateRange) ([]model.ClimateRecord, error)
}

// CaseReader reads arbovirus series.
type CaseReader interface {
	Find(ctx context.Context, locationCode, disease string, r model.DateRange) ([]model.ArbovirusRecord, error)
}

// PredictionReader reads predictions.
type PredictionReader interface {
	FindByLocation(ctx context.Context, locationCode string, limit int) ([]model.PredictionRecord, error)
	FindLatest(ctx context.Context) ([]model.PredictionRecord, error)
}

// RunReader reads the job run audit trail.
type RunReader interface {
	FindJobRuns(ctx context.Context, jobName string, limit int) ([]*batchmodel.JobRun, error)
	FindJobRunByID(ctx context.Context, id string) (*batchmodel.JobRun, error)
	Ping(ctx context.Context) error
}

// Stores groups the readers behind the API.
type Stores struct {
	Climate     ClimateReader
	Cases       CaseReader
	Predictions PredictionReader
	Runs        RunReader
}

// Server bundles the router and its dependencies.
type Server struct {
	cfg     config.APIConfig
	stores  Stores
	metrics http.Handler
	engine  *gin.Engine
}

// New builds the router. metrics may be nil to disable /metrics.
func New(cfg config.APIConfig, stores Stores, metrics http.Handler) *Server {
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 50
	}
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(accessLog())

	s := &Server{cfg: cfg, stores: stores, metrics: metrics, engine: engine}
	s.registerRoutes()
	return s
}

// Engine exposes the gin engine for tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	logger.Infof("Read API listening on %s.", s.cfg.ListenAddr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", s.handleHealth)
	if s.metrics != nil {
		s.engine.GET("/metrics", gin.WrapH(s.metrics))
	}

	v1 := s.engine.Group("/api/v1")
	{
		v1.GET("/locations", s.handleLocations)
		v1.GET("/climate/:location", s.handleClimate)
		v1.GET("/arbovirus/:location", s.handleArbovirus)
		v1.GET("/predictions/latest", s.handleLatestPredictions)
		v1.GET("/predictions/:location", s.handlePredictions)
		v1.GET("/jobs/runs", s.handleJobRuns)
		v1.GET("/jobs/runs/:id", s.handleJobRun)
	}
}

func accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debugf("%s %s -> %d (%s)", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start).Round(time.Microsecond))
	}
}
