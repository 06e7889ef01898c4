package notification

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	model "github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/domain/model"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func partialRun(t *testing.T) *model.JobRun {
	run := model.NewJobRun("epi-collector")
	start := time.Date(2024, 5, 6, 2, 0, 0, 0, time.UTC)
	require.NoError(t, run.TransitionTo(model.JobStatusRunning, start))
	run.Counts = model.RunCounts{LocationsTotal: 3, LocationsSucceeded: 2, LocationsFailed: 1, Inserted: 12}
	run.AddFailure("2927408: source unavailable")
	require.NoError(t, run.TransitionTo(model.JobStatusPartial, start.Add(2*time.Second)))
	return run
}

func TestKafkaNotifier_PublishesEventKeyedByRunID(t *testing.T) {
	w := &fakeWriter{}
	n := NewKafkaNotifierWithWriter(w, "arbovirus.job-runs", time.Second)
	run := partialRun(t)

	require.NoError(t, n.NotifyJobCompletion(context.Background(), run))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, run.ID, string(w.msgs[0].Key))

	var ev JobRunEvent
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &ev))
	assert.Equal(t, "PARTIAL", ev.Status)
	assert.Equal(t, int64(2000), ev.DurationMS)
	assert.Equal(t, 12, ev.Counts.Inserted)
	assert.Equal(t, []string{"2927408: source unavailable"}, ev.Failures)

	require.NoError(t, n.Close())
	assert.True(t, w.closed)
}

func TestMultiNotifier_AggregatesErrors(t *testing.T) {
	failing := NewKafkaNotifierWithWriter(&fakeWriter{err: errors.New("broker down")}, "t", 0)
	m := MultiNotifier{NewLoggingNotifier(), failing}

	err := m.NotifyJobCompletion(context.Background(), partialRun(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
}
