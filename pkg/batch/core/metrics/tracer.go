package metrics

import (
	"context"

	model "github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/domain/model"
)

// Tracer is an abstract interface for distributed tracing.
type Tracer interface {
	// StartJobSpan starts a span for a run. The returned function ends it.
	StartJobSpan(ctx context.Context, run *model.JobRun) (context.Context, func())
	// StartUnitSpan starts a child span for one unit. The returned function
	// ends it, marking the span as errored when err is not nil.
	StartUnitSpan(ctx context.Context, jobName, unit string) (context.Context, func(err error))
}
