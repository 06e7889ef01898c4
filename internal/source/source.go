// Package source defines the capability every external data provider offers
// and the error taxonomy shared by their clients.
package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tigerroll/arbovirus-pipeline/internal/domain/model"
	"github.com/tigerroll/arbovirus-pipeline/pkg/batch/support/util/exception"
)

const moduleName = "source"

var (
	// ErrSourceUnavailable covers network failures and 5xx responses.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrRateLimited is returned on HTTP 429.
	ErrRateLimited = errors.New("rate limited")
	// ErrMalformedResponse is returned when a payload cannot be decoded or is inconsistent.
	ErrMalformedResponse = errors.New("malformed response")
)

// Client fetches raw records of type R for one location and date range.
//
// On a failure after some pages were collected, Fetch returns those records
// together with a *PartialError.
type Client[R any] interface {
	// Name returns the source tag stored with every record.
	Name() string
	Fetch(ctx context.Context, loc model.Location, r model.DateRange) ([]R, error)
}

// PartialError reports that only the Completed prefix of a range was fetched.
type PartialError struct {
	Completed model.DateRange
	Err       error
}

func (e *PartialError) Error() string {
	if e.Completed.IsEmpty() {
		return e.Err.Error()
	}
	return fmt.Sprintf("fetched %s before failing: %v", e.Completed, e.Err)
}

func (e *PartialError) Unwrap() error { return e.Err }

// rateLimited carries the server-requested delay of a 429.
type rateLimited struct {
	retryAfter time.Duration
}

func (e *rateLimited) Error() string {
	if e.retryAfter > 0 {
		return fmt.Sprintf("%v (retry after %s)", ErrRateLimited, e.retryAfter)
	}
	return ErrRateLimited.Error()
}

func (e *rateLimited) Is(target error) bool { return target == ErrRateLimited }

// RetryAfter implements retry.DelayHint.
func (e *rateLimited) RetryAfter() time.Duration { return e.retryAfter }

// Unavailable wraps err as a retryable ErrSourceUnavailable.
func Unavailable(src, msg string, err error) error {
	return exception.NewBatchError(moduleName, src+": "+msg, errors.Join(ErrSourceUnavailable, err), false, true)
}

// Rejected wraps a non-retryable client-side refusal (4xx other than 429).
func Rejected(src, msg string, err error) error {
	return exception.NewBatchError(moduleName, src+": "+msg, errors.Join(ErrSourceUnavailable, err), false, false)
}

// RateLimited returns a retryable ErrRateLimited honouring retryAfter.
func RateLimited(src string, retryAfter time.Duration) error {
	return exception.NewBatchError(moduleName, src+": rate limited", &rateLimited{retryAfter: retryAfter}, false, true)
}

// Malformed wraps err as a retryable ErrMalformedResponse.
func Malformed(src, msg string, err error) error {
	return exception.NewBatchError(moduleName, src+": "+msg, errors.Join(ErrMalformedResponse, err), false, true)
}

// Reason classifies err for metrics labels.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed_response"
	case errors.Is(err, ErrSourceUnavailable):
		return "unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "other"
	}
}
