// Package job implements the collection and prediction jobs. Each job turns
// one invocation into one audited JobRun over the configured locations.
package job

import (
	"context"
	"strings"

	"github.com/tigerroll/arbovirus-pipeline/internal/domain/model"
	batchmodel "github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/domain/model"
	"github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/job/runner"
)

// Job names as recorded in job_runs.
const (
	ClimateCollectorJob = "climate-collector"
	EpiCollectorJob     = "epi-collector"
	BackfillJob         = "backfill"
	PredictorJob        = "predictor"
)

// Runner executes one job run over independent units.
type Runner interface {
	Execute(ctx context.Context, jobName string, units []string, fn runner.UnitFunc) (*batchmodel.JobRun, error)
}

var _ Runner = (*runner.SimpleJobRunner)(nil)

func indexByCode(locations []model.Location) ([]string, map[string]model.Location) {
	codes := make([]string, 0, len(locations))
	byCode := make(map[string]model.Location, len(locations))
	for _, loc := range locations {
		if _, dup := byCode[loc.Code]; dup {
			continue
		}
		codes = append(codes, loc.Code)
		byCode[loc.Code] = loc
	}
	return codes, byCode
}

// joinErrors renders a multierror on one line, as stored in JobRun failures.
func joinErrors(errs []error) string {
	msgs := make([]string, len(errs))
	for i, err := range errs {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}
