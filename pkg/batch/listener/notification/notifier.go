// Package notification announces finished job runs.
package notification

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"

	model "github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/domain/model"
	"github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/ports"
	"github.com/tigerroll/arbovirus-pipeline/pkg/batch/support/util/logger"
)

// LoggingNotifier writes one summary line per finished run.
type LoggingNotifier struct{}

// NewLoggingNotifier creates a new instance of LoggingNotifier.
func NewLoggingNotifier() *LoggingNotifier {
	return &LoggingNotifier{}
}

// NotifyJobCompletion logs the run summary: INFO on SUCCESS, WARN otherwise.
func (n *LoggingNotifier) NotifyJobCompletion(ctx context.Context, run *model.JobRun) error {
	c := run.Counts
	message := fmt.Sprintf(
		"Job Notification: Job '%s' (ID: %s) finished with Status: %s. Duration: %s, Locations: %d/%d ok, Records: %d inserted, %d updated, %d unchanged, Failures: %d",
		run.JobName, run.ID, run.Status, run.Duration(),
		c.LocationsSucceeded, c.LocationsTotal,
		c.Inserted, c.Updated, c.Unchanged,
		len(run.Failures),
	)
	if run.Status == model.JobStatusSuccess {
		logger.Infof("%s", message)
	} else {
		logger.Warnf("%s", message)
	}
	return nil
}

var _ ports.Notifier = (*LoggingNotifier)(nil)

// MultiNotifier fans a notification out to several notifiers.
type MultiNotifier []ports.Notifier

// NotifyJobCompletion calls every notifier and aggregates their errors.
func (m MultiNotifier) NotifyJobCompletion(ctx context.Context, run *model.JobRun) error {
	var result *multierror.Error
	for _, n := range m {
		if err := n.NotifyJobCompletion(ctx, run); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

var _ ports.Notifier = MultiNotifier(nil)
