package job

import (
	"context"
	"errors"

	"github.com/hashicorp/go-multierror"

	"github.com/tigerroll/arbovirus-pipeline/internal/domain/model"
	batchmodel "github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/domain/model"
	batchrepo "github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/domain/repository"
	"github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/job/runner"
	metrics "github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/metrics"
)

// Collector runs its pipelines for every location.
type Collector struct {
	name      string
	runner    Runner
	pipelines []Pipeline
	recorder  metrics.MetricRecorder
}

// NewCollector creates a collector job. recorder may be nil.
func NewCollector(name string, r Runner, recorder metrics.MetricRecorder, pipelines ...Pipeline) *Collector {
	if recorder == nil {
		recorder = metrics.NewNoOpMetricRecorder()
	}
	return &Collector{name: name, runner: r, pipelines: pipelines, recorder: recorder}
}

// Name returns the job name.
func (c *Collector) Name() string { return c.name }

// Run collects r for every location. A location fails when any of its
// pipelines fails; the others still run. Storage failures abort the run.
func (c *Collector) Run(ctx context.Context, locations []model.Location, r model.DateRange) (*batchmodel.JobRun, error) {
	codes, byCode := indexByCode(locations)
	return c.runner.Execute(ctx, c.name, codes, func(ctx context.Context, code string) (runner.UnitResult, error) {
		return c.collect(ctx, byCode[code], r)
	})
}

func (c *Collector) collect(ctx context.Context, loc model.Location, r model.DateRange) (runner.UnitResult, error) {
	var res runner.UnitResult
	errs := &multierror.Error{ErrorFormat: joinErrors}

	for _, p := range c.pipelines {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		pr, err := p.Collect(ctx, loc, r)
		res.Counts.Fetched += pr.Fetched
		res.Counts.Skipped += pr.Skipped
		res.Counts.AddMerge(pr.Merge)
		c.recorder.RecordMerge(ctx, c.name, p.Name(), pr.Merge)

		if err != nil {
			if errors.Is(err, batchrepo.ErrStorageUnavailable) {
				return res, err
			}
			errs = multierror.Append(errs, err)
		}
	}
	return res, errs.ErrorOrNil()
}
