// Package retry implements bounded retries with exponential backoff.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	config "github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/config"
	"github.com/tigerroll/arbovirus-pipeline/pkg/batch/support/util/exception"
)

// RetryPolicy decides whether and when a failed call is attempted again.
type RetryPolicy interface {
	// ShouldRetry determines if a given error is retryable.
	ShouldRetry(err error) bool
	// GetBackoffInterval returns the wait before retry number attempt (starting from 1).
	GetBackoffInterval(attempt int) time.Duration
	// GetMaxAttempts returns how many retries follow the first call.
	GetMaxAttempts() int
}

// DelayHint is implemented by errors that carry a server-requested delay, such as Retry-After.
type DelayHint interface {
	RetryAfter() time.Duration
}

// ExponentialPolicy waits initial*factor^(n-1), capped at max, spread by +/- jitter.
type ExponentialPolicy struct {
	MaxAttempts int
	Initial     time.Duration
	Max         time.Duration
	Factor      float64
	Jitter      float64
}

var _ RetryPolicy = (*ExponentialPolicy)(nil)

// NewExponentialPolicy builds a policy from the retry configuration section.
func NewExponentialPolicy(cfg config.RetryConfig) *ExponentialPolicy {
	return &ExponentialPolicy{
		MaxAttempts: cfg.MaxAttempts,
		Initial:     cfg.InitialInterval,
		Max:         cfg.MaxInterval,
		Factor:      cfg.Factor,
		Jitter:      cfg.Jitter,
	}
}

// GetMaxAttempts returns the number of retries.
func (p *ExponentialPolicy) GetMaxAttempts() int {
	return p.MaxAttempts
}

// ShouldRetry delegates to the BatchError retryable flag.
func (p *ExponentialPolicy) ShouldRetry(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return exception.IsRetryable(err)
}

// GetBackoffInterval returns the delay before the given retry.
func (p *ExponentialPolicy) GetBackoffInterval(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	factor := p.Factor
	if factor < 1 {
		factor = 1
	}
	d := float64(p.Initial) * math.Pow(factor, float64(attempt-1))
	if p.Max > 0 && d > float64(p.Max) {
		d = float64(p.Max)
	}
	if p.Jitter > 0 {
		d += d * p.Jitter * (rand.Float64()*2 - 1)
	}
	return time.Duration(d)
}

// Do calls fn until it succeeds, returns a non-retryable error, exhausts the
// policy or ctx is done. onRetry, when set, is called before each wait.
// A DelayHint on the error overrides the computed backoff when it is longer.
func Do(ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) error, onRetry func(attempt int, wait time.Duration, err error)) error {
	err := fn(ctx)
	for attempt := 1; err != nil && attempt <= policy.GetMaxAttempts() && policy.ShouldRetry(err); attempt++ {
		wait := policy.GetBackoffInterval(attempt)
		var hint DelayHint
		if errors.As(err, &hint) && hint.RetryAfter() > wait {
			wait = hint.RetryAfter()
		}
		if onRetry != nil {
			onRetry(attempt, wait, err)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Join(err, ctx.Err())
		case <-timer.C:
		}
		err = fn(ctx)
	}
	return err
}
