package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/arbovirus-pipeline/internal/domain/model"
	"github.com/tigerroll/arbovirus-pipeline/pkg/batch/engine/step/retry"
	"github.com/tigerroll/arbovirus-pipeline/pkg/batch/support/util/exception"
)

func TestHTTPGetter_StatusMapping(t *testing.T) {
	var status atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch s := int(status.Load()); s {
		case http.StatusOK:
			_, _ = w.Write([]byte(`{"value": 42}`))
		case http.StatusTooManyRequests:
			w.Header().Set("Retry-After", "3")
			w.WriteHeader(s)
		case 299:
			_, _ = w.Write([]byte(`{"value": `))
		default:
			w.WriteHeader(s)
		}
	}))
	defer srv.Close()

	g := NewHTTPGetter("test", time.Second, 0, 0)
	var out struct {
		Value int `json:"value"`
	}

	status.Store(http.StatusOK)
	require.NoError(t, g.GetJSON(context.Background(), srv.URL, url.Values{"a": {"1"}}, &out))
	assert.Equal(t, 42, out.Value)

	status.Store(http.StatusTooManyRequests)
	err := g.GetJSON(context.Background(), srv.URL, nil, &out)
	require.ErrorIs(t, err, ErrRateLimited)
	assert.True(t, exception.IsRetryable(err))
	var hint retry.DelayHint
	require.True(t, errors.As(err, &hint))
	assert.Equal(t, 3*time.Second, hint.RetryAfter())

	status.Store(http.StatusBadGateway)
	err = g.GetJSON(context.Background(), srv.URL, nil, &out)
	assert.ErrorIs(t, err, ErrSourceUnavailable)
	assert.True(t, exception.IsRetryable(err))

	status.Store(http.StatusNotFound)
	err = g.GetJSON(context.Background(), srv.URL, nil, &out)
	assert.ErrorIs(t, err, ErrSourceUnavailable)
	assert.False(t, exception.IsRetryable(err))

	status.Store(299)
	err = g.GetJSON(context.Background(), srv.URL, nil, &out)
	assert.ErrorIs(t, err, ErrMalformedResponse)
	assert.Equal(t, "malformed_response", Reason(err))
}

func TestHTTPGetter_ResponseSizeLimit(t *testing.T) {
	body := `{"value": "` + strings.Repeat("x", 64) + `"}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	var out struct {
		Value string `json:"value"`
	}
	small := NewHTTPGetter("test", time.Second, 0, 32)
	err := small.GetJSON(context.Background(), srv.URL, nil, &out)
	require.ErrorIs(t, err, ErrMalformedResponse)
	assert.Contains(t, err.Error(), "too large")

	exact := NewHTTPGetter("test", time.Second, 0, int64(len(body)))
	require.NoError(t, exact.GetJSON(context.Background(), srv.URL, nil, &out))
	assert.Len(t, out.Value, 64)

	assert.Equal(t, DefaultMaxResponseBytes, NewHTTPGetter("test", time.Second, 0, 0).maxBody)
}

type flakyClient struct {
	calls    int
	failures int
	err      error
}

func (f *flakyClient) Name() string { return "flaky" }

func (f *flakyClient) Fetch(ctx context.Context, loc model.Location, r model.DateRange) ([]int, error) {
	f.calls++
	if f.calls <= f.failures {
		return []int{f.calls}, f.err
	}
	return []int{1, 2, 3}, nil
}

func fastPolicy(attempts int) *retry.ExponentialPolicy {
	return &retry.ExponentialPolicy{MaxAttempts: attempts, Initial: time.Millisecond, Max: 5 * time.Millisecond, Factor: 2}
}

func TestRetrying_RecoversFromTransientErrors(t *testing.T) {
	inner := &flakyClient{failures: 2, err: Unavailable("flaky", "boom", errors.New("EOF"))}
	c := NewRetrying[int](inner, fastPolicy(3), nil)

	got, err := c.Fetch(context.Background(), model.Location{Code: "3550308"}, model.DateRange{})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, got)
	assert.Equal(t, 3, inner.calls)
}

func TestRetrying_GivesUpAfterMaxAttempts(t *testing.T) {
	inner := &flakyClient{failures: 10, err: Unavailable("flaky", "boom", errors.New("EOF"))}
	c := NewRetrying[int](inner, fastPolicy(3), nil)

	got, err := c.Fetch(context.Background(), model.Location{Code: "3550308"}, model.DateRange{})
	assert.ErrorIs(t, err, ErrSourceUnavailable)
	assert.Equal(t, 4, inner.calls)
	assert.Equal(t, []int{4}, got)
}

func TestRetrying_DoesNotRetryRejectedRequests(t *testing.T) {
	inner := &flakyClient{failures: 10, err: Rejected("flaky", "bad request", errors.New("HTTP 400"))}
	c := NewRetrying[int](inner, fastPolicy(3), nil)

	_, err := c.Fetch(context.Background(), model.Location{Code: "3550308"}, model.DateRange{})
	assert.Error(t, err)
	assert.Equal(t, 1, inner.calls)
}

func TestPartialError(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cause := Unavailable("flaky", "boom", errors.New("EOF"))
	err := error(&PartialError{Completed: model.NewDateRange(from, from.AddDate(0, 0, 9)), Err: cause})

	var pe *PartialError
	require.True(t, errors.As(err, &pe))
	assert.ErrorIs(t, err, ErrSourceUnavailable)
	assert.Contains(t, err.Error(), "2024-01-01..2024-01-10")
}
