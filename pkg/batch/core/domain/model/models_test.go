package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobStatus_CanTransitionTo(t *testing.T) {
	assert.True(t, JobStatusPending.CanTransitionTo(JobStatusRunning))
	assert.True(t, JobStatusPending.CanTransitionTo(JobStatusFailed))
	assert.False(t, JobStatusPending.CanTransitionTo(JobStatusSuccess))
	for _, s := range []JobStatus{JobStatusSuccess, JobStatusPartial, JobStatusFailed} {
		assert.True(t, JobStatusRunning.CanTransitionTo(s))
		assert.False(t, s.CanTransitionTo(JobStatusRunning), "terminal %s must be final", s)
		assert.False(t, s.CanTransitionTo(JobStatusFailed), "terminal %s must be final", s)
	}
}

func TestJobStatus_ExitCode(t *testing.T) {
	assert.Equal(t, 0, JobStatusSuccess.ExitCode())
	assert.Equal(t, 0, JobStatusPartial.ExitCode())
	assert.Equal(t, 1, JobStatusFailed.ExitCode())
}

func TestJobRun_Lifecycle(t *testing.T) {
	run := NewJobRun("climate-collector")
	assert.Len(t, run.ID, 36)
	start := time.Date(2024, 1, 1, 3, 0, 0, 0, time.UTC)

	require.NoError(t, run.TransitionTo(JobStatusRunning, start))
	require.NoError(t, run.TransitionTo(JobStatusPartial, start.Add(time.Minute)))
	assert.Equal(t, time.Minute, run.Duration())
	assert.Error(t, run.TransitionTo(JobStatusSuccess, start.Add(2*time.Minute)))
}

func TestDecideStatus(t *testing.T) {
	cases := []struct {
		name string
		in   RunCounts
		want JobStatus
	}{
		{"all ok", RunCounts{LocationsTotal: 3, LocationsSucceeded: 3}, JobStatusSuccess},
		{"one failed", RunCounts{LocationsTotal: 3, LocationsSucceeded: 2, LocationsFailed: 1}, JobStatusPartial},
		{"all failed", RunCounts{LocationsTotal: 2, LocationsFailed: 2}, JobStatusFailed},
		{"one skipped", RunCounts{LocationsTotal: 2, LocationsSucceeded: 1, LocationsSkipped: 1}, JobStatusPartial},
		{"all skipped", RunCounts{LocationsTotal: 2, LocationsSkipped: 2}, JobStatusPartial},
		{"nothing to do", RunCounts{}, JobStatusFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DecideStatus(tc.in))
		})
	}
}

func TestFailureList_ValueScan(t *testing.T) {
	v, err := FailureList{"3550308: source unavailable"}.Value()
	require.NoError(t, err)

	var fl FailureList
	require.NoError(t, fl.Scan(v))
	assert.Equal(t, FailureList{"3550308: source unavailable"}, fl)

	require.NoError(t, fl.Scan(nil))
	assert.Empty(t, fl)
	assert.Error(t, fl.Scan(42))
}

func TestMergeResult_Add(t *testing.T) {
	r := MergeResult{Inserted: 1}
	r.Add(MergeResult{Inserted: 2, Updated: 1, Unchanged: 4, Failed: 1})
	assert.Equal(t, MergeResult{Inserted: 3, Updated: 1, Unchanged: 4, Failed: 1}, r)
	assert.Equal(t, 9, r.Total())
}
