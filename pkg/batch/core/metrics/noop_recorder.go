package metrics

import (
	"context"
	"time"

	model "github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/domain/model"
)

// NoOpMetricRecorder discards every measurement.
type NoOpMetricRecorder struct{}

// NewNoOpMetricRecorder creates a new instance of NoOpMetricRecorder.
func NewNoOpMetricRecorder() MetricRecorder {
	return &NoOpMetricRecorder{}
}

func (r *NoOpMetricRecorder) RecordJobStart(ctx context.Context, run *model.JobRun) {}
func (r *NoOpMetricRecorder) RecordJobEnd(ctx context.Context, run *model.JobRun)   {}
func (r *NoOpMetricRecorder) RecordUnit(ctx context.Context, jobName, outcome string, duration time.Duration) {
}
func (r *NoOpMetricRecorder) RecordMerge(ctx context.Context, jobName, pipeline string, result model.MergeResult) {
}
func (r *NoOpMetricRecorder) RecordItemSkip(ctx context.Context, pipeline, reason string) {}
func (r *NoOpMetricRecorder) RecordRetry(ctx context.Context, source, reason string)      {}
func (r *NoOpMetricRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string) {
}

// NoOpTracer creates no spans.
type NoOpTracer struct{}

// NewNoOpTracer creates a new instance of NoOpTracer.
func NewNoOpTracer() Tracer {
	return &NoOpTracer{}
}

func (t *NoOpTracer) StartJobSpan(ctx context.Context, run *model.JobRun) (context.Context, func()) {
	return ctx, func() {}
}

func (t *NoOpTracer) StartUnitSpan(ctx context.Context, jobName, unit string) (context.Context, func(err error)) {
	return ctx, func(error) {}
}
