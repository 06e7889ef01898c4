// Package tracing implements metrics.Tracer on OpenTelemetry.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	model "github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/domain/model"
	"github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/metrics"
)

const instrumentationName = "github.com/tigerroll/arbovirus-pipeline/pkg/batch"

// OpenTelemetryTracer creates one span per job run and a child span per location.
type OpenTelemetryTracer struct {
	tracer trace.Tracer
}

// NewOpenTelemetryTracer creates a tracer from the given provider.
func NewOpenTelemetryTracer(tp trace.TracerProvider) *OpenTelemetryTracer {
	return &OpenTelemetryTracer{tracer: tp.Tracer(instrumentationName)}
}

// StartJobSpan starts the root span of a run. The returned function ends it
// with the run's final status and counts.
func (t *OpenTelemetryTracer) StartJobSpan(ctx context.Context, run *model.JobRun) (context.Context, func()) {
	ctx, span := t.tracer.Start(ctx, "job "+run.JobName,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("job.name", run.JobName),
			attribute.String("job.run_id", run.ID),
		))
	return ctx, func() {
		c := run.Counts
		span.SetAttributes(
			attribute.String("job.status", run.Status.String()),
			attribute.Int("job.locations.total", c.LocationsTotal),
			attribute.Int("job.locations.failed", c.LocationsFailed),
			attribute.Int("job.locations.skipped", c.LocationsSkipped),
			attribute.Int("job.records.inserted", c.Inserted),
			attribute.Int("job.records.updated", c.Updated),
		)
		if run.Status == model.JobStatusFailed {
			span.SetStatus(codes.Error, "job failed")
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}
}

// StartUnitSpan starts the span of one location.
func (t *OpenTelemetryTracer) StartUnitSpan(ctx context.Context, jobName, unit string) (context.Context, func(err error)) {
	ctx, span := t.tracer.Start(ctx, "location "+unit,
		trace.WithAttributes(
			attribute.String("job.name", jobName),
			attribute.String("location.code", unit),
		))
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

var _ metrics.Tracer = (*OpenTelemetryTracer)(nil)
