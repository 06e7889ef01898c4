package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tigerroll/arbovirus-pipeline/pkg/batch/support/util/exception"
)

func retryable(msg string) error {
	return exception.NewBatchError("test", msg, nil, false, true)
}

func TestExponentialPolicy_Backoff(t *testing.T) {
	p := &ExponentialPolicy{MaxAttempts: 3, Initial: 100 * time.Millisecond, Max: 300 * time.Millisecond, Factor: 2}
	assert.Equal(t, 100*time.Millisecond, p.GetBackoffInterval(1))
	assert.Equal(t, 200*time.Millisecond, p.GetBackoffInterval(2))
	assert.Equal(t, 300*time.Millisecond, p.GetBackoffInterval(3))
}

func TestExponentialPolicy_JitterBounds(t *testing.T) {
	p := &ExponentialPolicy{Initial: 100 * time.Millisecond, Factor: 2, Jitter: 0.5}
	for i := 0; i < 50; i++ {
		d := p.GetBackoffInterval(1)
		assert.GreaterOrEqual(t, d, 50*time.Millisecond)
		assert.LessOrEqual(t, d, 150*time.Millisecond)
	}
}

func TestDo_RetriesThenSucceeds(t *testing.T) {
	p := &ExponentialPolicy{MaxAttempts: 3, Initial: time.Millisecond, Factor: 2}
	calls := 0
	var waits []int
	err := Do(context.Background(), p, func(context.Context) error {
		calls++
		if calls < 3 {
			return retryable("flaky")
		}
		return nil
	}, func(attempt int, _ time.Duration, _ error) { waits = append(waits, attempt) })

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, waits)
}

func TestDo_StopsAfterMaxAttempts(t *testing.T) {
	p := &ExponentialPolicy{MaxAttempts: 3, Initial: time.Millisecond, Factor: 2}
	calls := 0
	err := Do(context.Background(), p, func(context.Context) error {
		calls++
		return retryable("down")
	}, nil)

	assert.Error(t, err)
	assert.Equal(t, 4, calls)
}

func TestDo_NonRetryableReturnsImmediately(t *testing.T) {
	p := &ExponentialPolicy{MaxAttempts: 3, Initial: time.Millisecond}
	calls := 0
	fatal := exception.NewBatchError("test", "bad request", nil, false, false)
	err := Do(context.Background(), p, func(context.Context) error {
		calls++
		return fatal
	}, nil)

	assert.Same(t, fatal, err)
	assert.Equal(t, 1, calls)
}

func TestDo_ContextCancelledDuringWait(t *testing.T) {
	p := &ExponentialPolicy{MaxAttempts: 3, Initial: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())
	err := Do(ctx, p, func(context.Context) error {
		cancel()
		return retryable("down")
	}, nil)

	assert.True(t, errors.Is(err, context.Canceled))
}

type hinted struct{ d time.Duration }

func (h hinted) Error() string             { return "rate limited" }
func (h hinted) RetryAfter() time.Duration { return h.d }

func TestDo_HonoursDelayHint(t *testing.T) {
	p := &ExponentialPolicy{MaxAttempts: 1, Initial: time.Millisecond}
	var got time.Duration
	calls := 0
	_ = Do(context.Background(), p, func(context.Context) error {
		calls++
		if calls == 1 {
			return exception.NewBatchError("test", "429", hinted{d: 5 * time.Millisecond}, false, true)
		}
		return nil
	}, func(_ int, wait time.Duration, _ error) { got = wait })

	assert.Equal(t, 5*time.Millisecond, got)
}
