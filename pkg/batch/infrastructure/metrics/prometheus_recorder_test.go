package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	model "github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/domain/model"
)

func finishedRun(status model.JobStatus) *model.JobRun {
	start := time.Date(2024, 3, 1, 3, 0, 0, 0, time.UTC)
	end := start.Add(90 * time.Second)
	return &model.JobRun{
		ID: "run-1", JobName: "climate-collector", Status: status,
		StartedAt: start, FinishedAt: &end,
		Counts: model.RunCounts{Fetched: 10, Inserted: 7, Unchanged: 3},
	}
}

func TestPrometheusRecorder_RecordJobEnd(t *testing.T) {
	r := NewPrometheusRecorder()
	r.RecordJobEnd(context.Background(), finishedRun(model.JobStatusPartial))

	assert.Equal(t, 1.0, testutil.ToFloat64(r.jobStatusCounter.WithLabelValues("climate-collector", "PARTIAL")))
	assert.Equal(t, 7.0, testutil.ToFloat64(r.jobRecords.WithLabelValues("climate-collector", "inserted")))
	assert.Greater(t, testutil.ToFloat64(r.jobLastSuccess.WithLabelValues("climate-collector")), 0.0)
}

func TestPrometheusRecorder_RecordMergeAndUnits(t *testing.T) {
	r := NewPrometheusRecorder()
	ctx := context.Background()
	r.RecordMerge(ctx, "epi-collector", "infodengue", model.MergeResult{Inserted: 2, Updated: 1})
	r.RecordMerge(ctx, "epi-collector", "infodengue", model.MergeResult{Inserted: 1})
	r.RecordUnit(ctx, "epi-collector", "failed", time.Second)
	r.RecordRetry(ctx, "open-meteo", "rate_limited")
	r.RecordItemSkip(ctx, "open-meteo", "malformed_record")

	assert.Equal(t, 3.0, testutil.ToFloat64(r.mergeRecords.WithLabelValues("epi-collector", "infodengue", "inserted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.unitCounter.WithLabelValues("epi-collector", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.sourceRetries.WithLabelValues("open-meteo", "rate_limited")))
}

func TestPrometheusRecorder_Handler(t *testing.T) {
	r := NewPrometheusRecorder()
	r.RecordJobEnd(context.Background(), finishedRun(model.JobStatusSuccess))

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "arbo_job_runs_total")
}

func TestPrometheusRecorder_Push(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		path = req.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := NewPrometheusRecorder()
	require.NoError(t, r.Push(context.Background(), srv.URL, "predictor"))
	assert.True(t, strings.HasPrefix(path, "/metrics/job/predictor"))
	assert.NoError(t, r.Push(context.Background(), "", "predictor"))
}
