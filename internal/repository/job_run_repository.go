package repository

import (
	"context"
	"fmt"

	"github.com/tigerroll/arbovirus-pipeline/pkg/batch/adapter/database"
	batchmodel "github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/domain/model"
	batchrepo "github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/domain/repository"
	"github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/tx"
	"github.com/tigerroll/arbovirus-pipeline/pkg/batch/support/util/logger"
)

// JobRunRepository implements the job run audit trail on job_runs.
type JobRunRepository struct {
	conn database.DBConnection
}

var _ batchrepo.JobRunRepository = (*JobRunRepository)(nil)

// NewJobRunRepository creates a JobRunRepository on conn.
func NewJobRunRepository(conn database.DBConnection) *JobRunRepository {
	return &JobRunRepository{conn: conn}
}

// SaveJobRun inserts a new run.
func (r *JobRunRepository) SaveJobRun(ctx context.Context, run *batchmodel.JobRun) error {
	const op = "jobRun.Save"
	row := toJobRunEntity(run)
	if _, err := r.conn.ExecuteInsert(ctx, &row); err != nil {
		return wrap(r.conn, op, err)
	}
	logger.Debugf("Job run %s (%s) recorded as %s.", run.ID, run.JobName, run.Status)
	return nil
}

// FinalizeJobRun writes the terminal state of a RUNNING run and bumps its version.
func (r *JobRunRepository) FinalizeJobRun(ctx context.Context, run *batchmodel.JobRun) error {
	const op = "jobRun.Finalize"
	if !run.Status.IsFinished() {
		return fmt.Errorf("%s: run %s is not finished (%s)", op, run.ID, run.Status)
	}
	row := toJobRunEntity(run)
	values := map[string]interface{}{
		"status":              row.Status,
		"finished_at":         row.FinishedAt,
		"locations_total":     row.LocationsTotal,
		"locations_succeeded": row.LocationsSucceeded,
		"locations_failed":    row.LocationsFailed,
		"locations_skipped":   row.LocationsSkipped,
		"fetched":             row.Fetched,
		"inserted":            row.Inserted,
		"updated":             row.Updated,
		"unchanged":           row.Unchanged,
		"skipped":             row.Skipped,
		"failed":              row.Failed,
		"failures":            row.Failures,
		"version":             run.Version + 1,
	}
	where := map[string]interface{}{
		"id":      run.ID,
		"status":  batchmodel.JobStatusRunning.String(),
		"version": run.Version,
	}
	n, err := r.conn.ExecuteUpdate(ctx, &jobRunEntity{}, where, values)
	if err != nil {
		return wrap(r.conn, op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: run %s at version %d: %w", op, run.ID, run.Version, batchrepo.ErrOptimisticLockingFailure)
	}
	run.Version++
	return nil
}

// FindJobRunByID returns a run by id.
func (r *JobRunRepository) FindJobRunByID(ctx context.Context, id string) (*batchmodel.JobRun, error) {
	const op = "jobRun.FindByID"
	var rows []jobRunEntity
	if err := r.conn.ExecuteQuery(ctx, &rows, tx.Query{Where: map[string]interface{}{"id": id}, Limit: 1}); err != nil {
		return nil, wrap(r.conn, op, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: %w: %s", op, batchrepo.ErrJobRunNotFound, id)
	}
	return rows[0].toModel(), nil
}

// FindJobRuns lists runs newest first. An empty jobName matches every job.
func (r *JobRunRepository) FindJobRuns(ctx context.Context, jobName string, limit int) ([]*batchmodel.JobRun, error) {
	const op = "jobRun.Find"
	q := tx.Query{OrderBy: "started_at DESC", Limit: limit}
	if jobName != "" {
		q.Where = map[string]interface{}{"job_name": jobName}
	}
	var rows []jobRunEntity
	if err := r.conn.ExecuteQuery(ctx, &rows, q); err != nil {
		return nil, wrap(r.conn, op, err)
	}
	out := make([]*batchmodel.JobRun, len(rows))
	for i, row := range rows {
		out[i] = row.toModel()
	}
	return out, nil
}

// Ping checks that the store answers.
func (r *JobRunRepository) Ping(ctx context.Context) error {
	if err := r.conn.RefreshConnection(ctx); err != nil {
		return fmt.Errorf("jobRun.Ping: %w: %v", batchrepo.ErrStorageUnavailable, err)
	}
	return nil
}
