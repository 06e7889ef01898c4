// Package metrics defines the observability ports used by the job runner.
package metrics

import (
	"context"
	"time"

	model "github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/domain/model"
)

// Unit outcomes reported through RecordUnit.
const (
	UnitSucceeded = "succeeded"
	UnitFailed    = "failed"
	UnitSkipped   = "skipped"
)

// MetricRecorder records metrics for job runs, their units of work and the
// records those units merge.
type MetricRecorder interface {
	// RecordJobStart records the start of a JobRun.
	RecordJobStart(ctx context.Context, run *model.JobRun)
	// RecordJobEnd records a finalized JobRun, including its record counts.
	RecordJobEnd(ctx context.Context, run *model.JobRun)
	// RecordUnit records the outcome of one unit (location) of a job.
	RecordUnit(ctx context.Context, jobName, outcome string, duration time.Duration)
	// RecordMerge records the result of merging a batch for a pipeline.
	RecordMerge(ctx context.Context, jobName, pipeline string, result model.MergeResult)
	// RecordItemSkip records a record dropped before merging.
	RecordItemSkip(ctx context.Context, pipeline, reason string)
	// RecordRetry records a retried call to an external source.
	RecordRetry(ctx context.Context, source, reason string)
	// RecordDuration records the execution time of an arbitrary operation.
	RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string)
}
