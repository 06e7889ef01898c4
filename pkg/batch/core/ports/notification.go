// Package ports holds outbound ports of the batch core.
package ports

import (
	"context"

	model "github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/domain/model"
)

// Notifier informs external systems about finished job runs.
type Notifier interface {
	// NotifyJobCompletion is called once per finalized run. Implementations
	// must not fail the job; delivery errors are returned for logging only.
	NotifyJobCompletion(ctx context.Context, run *model.JobRun) error
}
