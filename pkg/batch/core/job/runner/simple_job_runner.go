// Package runner executes one job run over a set of independent units of work.
package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	model "github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/domain/repository"
	metrics "github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/metrics"
	"github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/ports"
	"github.com/tigerroll/arbovirus-pipeline/pkg/batch/support/util/logger"
)

// finalizeTimeout bounds the bookkeeping after a run, which uses a context
// detached from the run deadline.
const finalizeTimeout = 30 * time.Second

// UnitResult is what one unit of work reports back.
type UnitResult struct {
	// Skipped marks a unit that was not eligible. It is neither a success nor a failure.
	Skipped bool
	// Reason explains a skip.
	Reason string
	// Counts carries record-level counters. Location counters are ignored.
	Counts model.RunCounts
}

// UnitFunc processes one unit. Counts in the result are kept even when an error is returned.
type UnitFunc func(ctx context.Context, unit string) (UnitResult, error)

// Config tunes a Runner.
type Config struct {
	// Workers bounds how many units run at once.
	Workers int
	// Timeout bounds the whole run. Zero disables it.
	Timeout time.Duration
	// Escalate reports whether a unit error must abort the whole run.
	// Defaults to matching repository.ErrStorageUnavailable.
	Escalate func(err error) bool
}

// SimpleJobRunner runs units on a bounded pool and keeps the JobRun audit trail.
type SimpleJobRunner struct {
	repo     repository.JobRunRepository
	recorder metrics.MetricRecorder
	tracer   metrics.Tracer
	notifier ports.Notifier
	cfg      Config
	now      func() time.Time
}

// NewSimpleJobRunner creates a SimpleJobRunner. notifier may be nil.
func NewSimpleJobRunner(repo repository.JobRunRepository, recorder metrics.MetricRecorder, tracer metrics.Tracer, notifier ports.Notifier, cfg Config) *SimpleJobRunner {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Escalate == nil {
		cfg.Escalate = func(err error) bool { return errors.Is(err, repository.ErrStorageUnavailable) }
	}
	if recorder == nil {
		recorder = metrics.NewNoOpMetricRecorder()
	}
	if tracer == nil {
		tracer = metrics.NewNoOpTracer()
	}
	return &SimpleJobRunner{
		repo:     repo,
		recorder: recorder,
		tracer:   tracer,
		notifier: notifier,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// runState collects unit outcomes under a lock.
type runState struct {
	mu       sync.Mutex
	run      *model.JobRun
	errs     *multierror.Error
	fatalErr error
}

// Execute creates a JobRun for jobName, processes units and finalizes the run.
//
// The returned error is non-nil only when the run could not be recorded
// (storage unreachable at start, insert or finalization failure); unit
// failures are reflected in the run status and its failure list.
func (r *SimpleJobRunner) Execute(ctx context.Context, jobName string, units []string, fn UnitFunc) (*model.JobRun, error) {
	run := model.NewJobRun(jobName)
	run.Counts.LocationsTotal = len(units)

	runCtx := ctx
	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}
	runCtx, endSpan := r.tracer.StartJobSpan(runCtx, run)
	defer endSpan()

	if err := r.repo.Ping(runCtx); err != nil {
		run.AddFailure(fmt.Sprintf("precondition: %v", err))
		_ = run.TransitionTo(model.JobStatusFailed, r.now())
		logger.Errorf("Job '%s' (run %s): storage unreachable, run not started: %v", jobName, run.ID, err)
		r.recorder.RecordJobEnd(ctx, run)
		return run, fmt.Errorf("job %s: %w: %v", jobName, repository.ErrStorageUnavailable, err)
	}

	if err := run.TransitionTo(model.JobStatusRunning, r.now()); err != nil {
		return run, err
	}
	if err := r.repo.SaveJobRun(runCtx, run); err != nil {
		run.AddFailure(fmt.Sprintf("precondition: %v", err))
		_ = run.TransitionTo(model.JobStatusFailed, r.now())
		logger.Errorf("Job '%s' (run %s): failed to record run start: %v", jobName, run.ID, err)
		r.recorder.RecordJobEnd(ctx, run)
		return run, fmt.Errorf("job %s: failed to record run: %w", jobName, err)
	}
	r.recorder.RecordJobStart(runCtx, run)
	logger.Infof("Job '%s' (run %s) started with %d unit(s), %d worker(s).", jobName, run.ID, len(units), r.cfg.Workers)

	state := &runState{run: run}
	if len(units) == 0 {
		run.AddFailure("no locations configured")
	} else {
		r.processUnits(runCtx, jobName, units, fn, state)
	}

	status := model.DecideStatus(run.Counts)
	switch {
	case state.fatalErr != nil:
		status = model.JobStatusFailed
		run.AddFailure(fmt.Sprintf("fatal: %v", state.fatalErr))
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		status = model.JobStatusFailed
		run.AddFailure(fmt.Sprintf("timeout: run exceeded %s", r.cfg.Timeout))
	case ctx.Err() != nil:
		status = model.JobStatusFailed
		run.AddFailure(fmt.Sprintf("cancelled: %v", ctx.Err()))
	}
	if state.errs != nil {
		logger.Warnf("Job '%s' (run %s) unit failures: %v", jobName, run.ID, state.errs.ErrorOrNil())
	}

	return run, r.finalize(ctx, run, status)
}

func (r *SimpleJobRunner) processUnits(ctx context.Context, jobName string, units []string, fn UnitFunc, state *runState) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)

	for _, unit := range units {
		unit := unit
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			return r.runUnit(gctx, jobName, unit, fn, state)
		})
	}
	_ = g.Wait()
}

func (r *SimpleJobRunner) runUnit(ctx context.Context, jobName, unit string, fn UnitFunc, state *runState) (err error) {
	uctx, endSpan := r.tracer.StartUnitSpan(ctx, jobName, unit)
	start := r.now()

	var res UnitResult
	func() {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("panic: %v", p)
				logger.Errorf("Job '%s': panic recovered in unit '%s': %v", jobName, unit, p)
			}
		}()
		res, err = fn(uctx, unit)
	}()
	endSpan(err)
	elapsed := r.now().Sub(start)

	state.mu.Lock()
	defer state.mu.Unlock()

	c := &state.run.Counts
	c.Fetched += res.Counts.Fetched
	c.Inserted += res.Counts.Inserted
	c.Updated += res.Counts.Updated
	c.Unchanged += res.Counts.Unchanged
	c.Skipped += res.Counts.Skipped
	c.Failed += res.Counts.Failed

	switch {
	case err != nil:
		c.LocationsFailed++
		state.run.AddFailure(fmt.Sprintf("%s: %v", unit, err))
		state.errs = multierror.Append(state.errs, fmt.Errorf("%s: %w", unit, err))
		r.recorder.RecordUnit(ctx, jobName, metrics.UnitFailed, elapsed)
		logger.Errorf("Job '%s': unit '%s' failed: %v", jobName, unit, err)
		if r.cfg.Escalate(err) {
			if state.fatalErr == nil {
				state.fatalErr = err
			}
			return err
		}
	case res.Skipped:
		c.LocationsSkipped++
		r.recorder.RecordUnit(ctx, jobName, metrics.UnitSkipped, elapsed)
		logger.Warnf("Job '%s': unit '%s' skipped: %s", jobName, unit, res.Reason)
	default:
		c.LocationsSucceeded++
		r.recorder.RecordUnit(ctx, jobName, metrics.UnitSucceeded, elapsed)
		logger.Infof("Job '%s': unit '%s' done (fetched=%d inserted=%d updated=%d unchanged=%d skipped=%d failed=%d).",
			jobName, unit, res.Counts.Fetched, res.Counts.Inserted, res.Counts.Updated, res.Counts.Unchanged, res.Counts.Skipped, res.Counts.Failed)
	}
	return nil
}

// finalize persists the terminal state exactly once and emits metrics and notifications.
func (r *SimpleJobRunner) finalize(ctx context.Context, run *model.JobRun, status model.JobStatus) error {
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()

	if err := run.TransitionTo(status, r.now()); err != nil {
		return err
	}
	var finalizeErr error
	if err := r.repo.FinalizeJobRun(fctx, run); err != nil {
		finalizeErr = fmt.Errorf("job %s: failed to finalize run %s: %w", run.JobName, run.ID, err)
		logger.Errorf("%v", finalizeErr)
	}

	r.recorder.RecordJobEnd(fctx, run)
	if r.notifier != nil {
		if err := r.notifier.NotifyJobCompletion(fctx, run); err != nil {
			logger.Warnf("Job '%s' (run %s): completion notification failed: %v", run.JobName, run.ID, err)
		}
	}
	logger.Infof("Job '%s' (run %s) finished with status %s in %s (locations: %d ok, %d failed, %d skipped of %d).",
		run.JobName, run.ID, run.Status, run.Duration(),
		run.Counts.LocationsSucceeded, run.Counts.LocationsFailed, run.Counts.LocationsSkipped, run.Counts.LocationsTotal)
	return finalizeErr
}
