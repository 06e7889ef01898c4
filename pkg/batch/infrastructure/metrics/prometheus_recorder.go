// Package metrics implements the metric recorder on Prometheus.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"

	model "github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/metrics"
	"github.com/tigerroll/arbovirus-pipeline/pkg/batch/support/util/logger"
)

const namespace = "arbo"

// PrometheusRecorder is a Prometheus implementation of metrics.MetricRecorder
// backed by a private registry.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	jobDurationSeconds *prometheus.HistogramVec
	jobStatusCounter   *prometheus.CounterVec
	jobRecords         *prometheus.GaugeVec
	jobLastSuccess     *prometheus.GaugeVec

	unitCounter         *prometheus.CounterVec
	unitDurationSeconds *prometheus.HistogramVec

	mergeRecords     *prometheus.CounterVec
	itemSkipCounter  *prometheus.CounterVec
	sourceRetries    *prometheus.CounterVec
	operationSeconds *prometheus.HistogramVec
}

var _ metrics.MetricRecorder = (*PrometheusRecorder)(nil)

// NewPrometheusRecorder creates a recorder with Go and process collectors registered.
func NewPrometheusRecorder() *PrometheusRecorder {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &PrometheusRecorder{
		registry: registry,
		jobDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Duration of job runs.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 1800, 3600},
		}, []string{"job_name", "status"}),
		jobStatusCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_runs_total",
			Help:      "Job runs by final status.",
		}, []string{"job_name", "status"}),
		jobRecords: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "job_last_run_records",
			Help:      "Record counts of the last run by kind.",
		}, []string{"job_name", "kind"}),
		jobLastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "job_last_success_timestamp_seconds",
			Help:      "Finish time of the last SUCCESS or PARTIAL run.",
		}, []string{"job_name"}),
		unitCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_locations_total",
			Help:      "Processed locations by outcome.",
		}, []string{"job_name", "outcome"}),
		unitDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_location_duration_seconds",
			Help:      "Time spent on one location.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"job_name"}),
		mergeRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "merge_records_total",
			Help:      "Merged records by outcome.",
		}, []string{"job_name", "pipeline", "outcome"}),
		itemSkipCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_skipped_total",
			Help:      "Records dropped before merging.",
		}, []string{"pipeline", "reason"}),
		sourceRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_retries_total",
			Help:      "Retried calls to external sources.",
		}, []string{"source", "reason"}),
		operationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of named operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "status"}),
	}

	registry.MustRegister(
		r.jobDurationSeconds,
		r.jobStatusCounter,
		r.jobRecords,
		r.jobLastSuccess,
		r.unitCounter,
		r.unitDurationSeconds,
		r.mergeRecords,
		r.itemSkipCounter,
		r.sourceRetries,
		r.operationSeconds,
	)
	return r
}

// GetRegistry returns the Prometheus registry.
func (r *PrometheusRecorder) GetRegistry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

func (r *PrometheusRecorder) RecordJobStart(ctx context.Context, run *model.JobRun) {
	logger.Debugf("Metrics: job '%s' (run %s) started.", run.JobName, run.ID)
}

func (r *PrometheusRecorder) RecordJobEnd(ctx context.Context, run *model.JobRun) {
	status := run.Status.String()
	r.jobStatusCounter.WithLabelValues(run.JobName, status).Inc()
	r.jobDurationSeconds.WithLabelValues(run.JobName, status).Observe(run.Duration().Seconds())

	c := run.Counts
	for kind, v := range map[string]int{
		"fetched":   c.Fetched,
		"inserted":  c.Inserted,
		"updated":   c.Updated,
		"unchanged": c.Unchanged,
		"skipped":   c.Skipped,
		"failed":    c.Failed,
	} {
		r.jobRecords.WithLabelValues(run.JobName, kind).Set(float64(v))
	}
	if run.Status != model.JobStatusFailed && run.FinishedAt != nil {
		r.jobLastSuccess.WithLabelValues(run.JobName).Set(float64(run.FinishedAt.Unix()))
	}
}

func (r *PrometheusRecorder) RecordUnit(ctx context.Context, jobName, outcome string, duration time.Duration) {
	r.unitCounter.WithLabelValues(jobName, outcome).Inc()
	r.unitDurationSeconds.WithLabelValues(jobName).Observe(duration.Seconds())
}

func (r *PrometheusRecorder) RecordMerge(ctx context.Context, jobName, pipeline string, result model.MergeResult) {
	r.mergeRecords.WithLabelValues(jobName, pipeline, "inserted").Add(float64(result.Inserted))
	r.mergeRecords.WithLabelValues(jobName, pipeline, "updated").Add(float64(result.Updated))
	r.mergeRecords.WithLabelValues(jobName, pipeline, "unchanged").Add(float64(result.Unchanged))
	r.mergeRecords.WithLabelValues(jobName, pipeline, "failed").Add(float64(result.Failed))
}

func (r *PrometheusRecorder) RecordItemSkip(ctx context.Context, pipeline, reason string) {
	r.itemSkipCounter.WithLabelValues(pipeline, reason).Inc()
}

func (r *PrometheusRecorder) RecordRetry(ctx context.Context, source, reason string) {
	r.sourceRetries.WithLabelValues(source, reason).Inc()
}

// RecordDuration observes duration under tags["status"] (default "ok").
func (r *PrometheusRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string) {
	status := tags["status"]
	if status == "" {
		status = "ok"
	}
	r.operationSeconds.WithLabelValues(name, status).Observe(duration.Seconds())
}

// Push sends the registry to a Prometheus Pushgateway under job=jobName.
// Batch processes exit before a scrape could reach them.
func (r *PrometheusRecorder) Push(ctx context.Context, url, jobName string) error {
	if url == "" {
		return nil
	}
	if err := push.New(url, jobName).Gatherer(r.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", url, err)
	}
	logger.Debugf("Metrics pushed to %s (job=%s).", url, jobName)
	return nil
}
