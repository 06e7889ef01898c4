// Package model defines the job run audit model shared by every job kind.
package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobStatus is the lifecycle state of a JobRun.
type JobStatus string

const (
	JobStatusPending JobStatus = "PENDING"
	JobStatusRunning JobStatus = "RUNNING"
	JobStatusSuccess JobStatus = "SUCCESS"
	JobStatusPartial JobStatus = "PARTIAL"
	JobStatusFailed  JobStatus = "FAILED"
)

// String returns the string representation of the JobStatus.
func (s JobStatus) String() string {
	return string(s)
}

// IsFinished reports whether s is terminal.
func (s JobStatus) IsFinished() bool {
	switch s {
	case JobStatusSuccess, JobStatusPartial, JobStatusFailed:
		return true
	}
	return false
}

// CanTransitionTo enforces PENDING -> RUNNING -> {SUCCESS, PARTIAL, FAILED}.
// A pending run may also fail directly when a precondition blocks it.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	switch s {
	case JobStatusPending:
		return next == JobStatusRunning || next == JobStatusFailed
	case JobStatusRunning:
		return next.IsFinished()
	default:
		return false
	}
}

// ExitCode maps a terminal status to the process exit code.
func (s JobStatus) ExitCode() int {
	switch s {
	case JobStatusSuccess, JobStatusPartial:
		return 0
	default:
		return 1
	}
}

// FailureList holds a list of error messages persisted as JSON.
type FailureList []string

// Value implements the `driver.Valuer` interface, converting FailureList to a JSON string.
func (fl FailureList) Value() (driver.Value, error) {
	if fl == nil {
		return "[]", nil
	}
	data, err := json.Marshal(fl)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements the `sql.Scanner` interface.
func (fl *FailureList) Scan(value interface{}) error {
	var b []byte
	switch v := value.(type) {
	case nil:
		*fl = FailureList{}
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("unsupported Scan type for FailureList: %T", value)
	}
	if len(b) == 0 {
		*fl = FailureList{}
		return nil
	}
	if err := json.Unmarshal(b, fl); err != nil {
		return fmt.Errorf("failed to unmarshal FailureList JSON: %w", err)
	}
	return nil
}

// MergeResult counts the outcome of reconciling a batch against storage.
type MergeResult struct {
	Inserted  int `json:"inserted"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Failed    int `json:"failed"`
}

// Add accumulates other into r.
func (r *MergeResult) Add(other MergeResult) {
	r.Inserted += other.Inserted
	r.Updated += other.Updated
	r.Unchanged += other.Unchanged
	r.Failed += other.Failed
}

// Total returns the number of records the merge saw.
func (r MergeResult) Total() int {
	return r.Inserted + r.Updated + r.Unchanged + r.Failed
}

// RunCounts are the per-kind counters of a JobRun.
type RunCounts struct {
	LocationsTotal     int `json:"locations_total"`
	LocationsSucceeded int `json:"locations_succeeded"`
	LocationsFailed    int `json:"locations_failed"`
	LocationsSkipped   int `json:"locations_skipped"`
	Fetched            int `json:"fetched"`
	Inserted           int `json:"inserted"`
	Updated            int `json:"updated"`
	Unchanged          int `json:"unchanged"`
	Skipped            int `json:"skipped"`
	Failed             int `json:"failed"`
}

// AddMerge adds a MergeResult to the record counters.
func (c *RunCounts) AddMerge(r MergeResult) {
	c.Inserted += r.Inserted
	c.Updated += r.Updated
	c.Unchanged += r.Unchanged
	c.Failed += r.Failed
}

// JobRun is one audited execution of a job.
type JobRun struct {
	ID         string      `json:"id"`
	JobName    string      `json:"job_name"`
	Status     JobStatus   `json:"status"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt *time.Time  `json:"finished_at,omitempty"`
	Counts     RunCounts   `json:"counts"`
	Failures   FailureList `json:"failures"`
	Version    int         `json:"-"`
}

// NewJobRun creates a PENDING run with a fresh id.
func NewJobRun(jobName string) *JobRun {
	return &JobRun{
		ID:       uuid.NewString(),
		JobName:  jobName,
		Status:   JobStatusPending,
		Failures: FailureList{},
	}
}

// TransitionTo moves the run to next, stamping start and finish times.
func (r *JobRun) TransitionTo(next JobStatus, now time.Time) error {
	if !r.Status.CanTransitionTo(next) {
		return fmt.Errorf("job run %s: invalid transition %s -> %s", r.ID, r.Status, next)
	}
	r.Status = next
	switch {
	case next == JobStatusRunning:
		r.StartedAt = now
	case next.IsFinished():
		if r.StartedAt.IsZero() {
			r.StartedAt = now
		}
		r.FinishedAt = &now
	}
	return nil
}

// AddFailure records a failure message.
func (r *JobRun) AddFailure(msg string) {
	r.Failures = append(r.Failures, msg)
}

// Duration returns how long the run took, or zero while it is unfinished.
func (r *JobRun) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// DecideStatus derives the terminal status from unit outcomes.
// Skipped units count neither as success nor failure; a run where every
// unit was skipped did not produce its output and is PARTIAL.
func DecideStatus(c RunCounts) JobStatus {
	switch {
	case c.LocationsTotal == 0:
		return JobStatusFailed
	case c.LocationsSucceeded == 0 && c.LocationsFailed > 0:
		return JobStatusFailed
	case c.LocationsFailed > 0 || c.LocationsSkipped > 0:
		return JobStatusPartial
	default:
		return JobStatusSuccess
	}
}
