// Package repository declares the persistence port for job runs.
package repository

import (
	"context"
	"errors"

	model "github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/domain/model"
)

// JobRunRepository persists the JobRun audit trail. Rows are append-only:
// a run is inserted once and finalized once.
type JobRunRepository interface {
	// SaveJobRun inserts a new run.
	SaveJobRun(ctx context.Context, run *model.JobRun) error
	// FinalizeJobRun writes the terminal state of a RUNNING run. It fails
	// with an optimistic locking error when the stored row is no longer
	// RUNNING at the expected version.
	FinalizeJobRun(ctx context.Context, run *model.JobRun) error
	// FindJobRunByID returns a run by id.
	FindJobRunByID(ctx context.Context, id string) (*model.JobRun, error)
	// FindJobRuns lists runs newest first, optionally filtered by job name.
	FindJobRuns(ctx context.Context, jobName string, limit int) ([]*model.JobRun, error)
	// Ping checks that the store is reachable.
	Ping(ctx context.Context) error
}

// ErrStorageUnavailable marks a failure to reach the relational store. It is
// fatal to the job that meets it.
var ErrStorageUnavailable = errors.New("storage unavailable")

// ErrOptimisticLockingFailure is returned when a guarded update matched no row.
var ErrOptimisticLockingFailure = errors.New("optimistic locking failure")

// ErrJobRunNotFound is returned when no run has the requested id.
var ErrJobRunNotFound = errors.New("job run not found")
