package source

import (
	"context"
	"time"

	"github.com/tigerroll/arbovirus-pipeline/internal/domain/model"
	"github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/metrics"
	"github.com/tigerroll/arbovirus-pipeline/pkg/batch/engine/step/retry"
	"github.com/tigerroll/arbovirus-pipeline/pkg/batch/support/util/logger"
)

// Retrying decorates a Client with the retry policy.
type Retrying[R any] struct {
	inner    Client[R]
	policy   retry.RetryPolicy
	recorder metrics.MetricRecorder
}

// NewRetrying wraps inner. recorder may be nil.
func NewRetrying[R any](inner Client[R], policy retry.RetryPolicy, recorder metrics.MetricRecorder) *Retrying[R] {
	if recorder == nil {
		recorder = metrics.NewNoOpMetricRecorder()
	}
	return &Retrying[R]{inner: inner, policy: policy, recorder: recorder}
}

func (c *Retrying[R]) Name() string { return c.inner.Name() }

// Fetch calls the inner client until it succeeds or the policy gives up.
// The records of the last attempt are returned with its error.
func (c *Retrying[R]) Fetch(ctx context.Context, loc model.Location, r model.DateRange) ([]R, error) {
	var records []R
	err := retry.Do(ctx, c.policy, func(ctx context.Context) error {
		var err error
		records, err = c.inner.Fetch(ctx, loc, r)
		return err
	}, func(attempt int, wait time.Duration, err error) {
		c.recorder.RecordRetry(ctx, c.inner.Name(), Reason(err))
		logger.Warnf("Source '%s': fetch for %s %s failed (retry %d/%d in %s): %v",
			c.inner.Name(), loc.Code, r, attempt, c.policy.GetMaxAttempts(), wait.Round(time.Millisecond), err)
	})
	return records, err
}

var _ Client[struct{}] = (*Retrying[struct{}])(nil)
