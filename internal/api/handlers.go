package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tigerroll/arbovirus-pipeline/internal/domain/model"
	"github.com/tigerroll/arbovirus-pipeline/internal/normalize"
	batchrepo "github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/domain/repository"
	"github.com/tigerroll/arbovirus-pipeline/pkg/batch/support/util/logger"
)

// GET /healthz
func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := s.stores.Runs.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GET /api/v1/locations
func (s *Server) handleLocations(c *gin.Context) {
	locations := model.Catalog()
	c.JSON(http.StatusOK, gin.H{"data": locations, "meta": gin.H{"count": len(locations)}})
}

// GET /api/v1/climate/:location?from&to&limit
func (s *Server) handleClimate(c *gin.Context) {
	code, ok := locationParam(c)
	if !ok {
		return
	}
	r, ok := dateRangeQuery(c)
	if !ok {
		return
	}
	limit, ok := s.limitQuery(c, 0)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()
	records, err := s.stores.Climate.Find(ctx, code, r)
	if err != nil {
		respondError(c, err)
		return
	}
	records = lastN(records, limit)
	c.JSON(http.StatusOK, gin.H{"data": records, "meta": gin.H{"location_code": code, "count": len(records)}})
}

// GET /api/v1/arbovirus/:location?disease&from&to&limit
func (s *Server) handleArbovirus(c *gin.Context) {
	code, ok := locationParam(c)
	if !ok {
		return
	}
	disease := c.Query("disease")
	if disease != "" && !normalize.ValidDisease(disease) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid disease"})
		return
	}
	r, ok := dateRangeQuery(c)
	if !ok {
		return
	}
	limit, ok := s.limitQuery(c, 0)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()
	records, err := s.stores.Cases.Find(ctx, code, disease, r)
	if err != nil {
		respondError(c, err)
		return
	}
	records = lastN(records, limit)
	c.JSON(http.StatusOK, gin.H{"data": records, "meta": gin.H{"location_code": code, "disease": disease, "count": len(records)}})
}

// GET /api/v1/predictions/:location?limit
func (s *Server) handlePredictions(c *gin.Context) {
	code, ok := locationParam(c)
	if !ok {
		return
	}
	limit, ok := s.limitQuery(c, s.cfg.DefaultLimit)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()
	preds, err := s.stores.Predictions.FindByLocation(ctx, code, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": preds, "meta": gin.H{"location_code": code, "count": len(preds)}})
}

// GET /api/v1/predictions/latest
func (s *Server) handleLatestPredictions(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	preds, err := s.stores.Predictions.FindLatest(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": preds, "meta": gin.H{"count": len(preds)}})
}

// GET /api/v1/jobs/runs?job&limit
func (s *Server) handleJobRuns(c *gin.Context) {
	limit, ok := s.limitQuery(c, s.cfg.DefaultLimit)
	if !ok {
		return
	}
	job := c.Query("job")

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()
	runs, err := s.stores.Runs.FindJobRuns(ctx, job, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": runs, "meta": gin.H{"job": job, "count": len(runs)}})
}

// GET /api/v1/jobs/runs/:id
func (s *Server) handleJobRun(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	run, err := s.stores.Runs.FindJobRunByID(ctx, c.Param("id"))
	if errors.Is(err, batchrepo.ErrJobRunNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "job run not found"})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": run})
}

func locationParam(c *gin.Context) (string, bool) {
	code := c.Param("location")
	if !normalize.ValidLocationCode(code) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "location must be a 7-digit IBGE code"})
		return "", false
	}
	return code, true
}

func dateRangeQuery(c *gin.Context) (model.DateRange, bool) {
	var r model.DateRange
	for _, q := range []struct {
		name string
		dst  *time.Time
	}{{"from", &r.From}, {"to", &r.To}} {
		v := c.Query(q.name)
		if v == "" {
			continue
		}
		t, err := time.Parse(model.DateLayout, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + q.name + ": want YYYY-MM-DD"})
			return r, false
		}
		*q.dst = t
	}
	if !r.From.IsZero() && !r.To.IsZero() && r.IsEmpty() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "from is after to"})
		return r, false
	}
	return r, true
}

func (s *Server) limitQuery(c *gin.Context, def int) (int, bool) {
	v := c.Query("limit")
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return 0, false
	}
	return n, true
}

// lastN keeps the n most recent items of an ascending series. Zero keeps all.
func lastN[T any](items []T, n int) []T {
	if n <= 0 || len(items) <= n {
		return items
	}
	return items[len(items)-n:]
}

func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, batchrepo.ErrStorageUnavailable) || errors.Is(err, context.DeadlineExceeded) {
		status = http.StatusServiceUnavailable
	}
	logger.Errorf("%s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
	c.JSON(status, gin.H{"error": err.Error()})
}
