package runner

import (
	"go.uber.org/fx"

	config "github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/config"
	repository "github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/domain/repository"
	metrics "github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/metrics"
	"github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/ports"
)

// SimpleJobRunnerParams defines dependencies for SimpleJobRunner.
type SimpleJobRunnerParams struct {
	fx.In
	Config     *config.Config
	Repository repository.JobRunRepository
	Recorder   metrics.MetricRecorder
	Tracer     metrics.Tracer
	Notifier   ports.Notifier `optional:"true"`
}

// NewJobRunner builds a SimpleJobRunner from the batch configuration.
func NewJobRunner(p SimpleJobRunnerParams) *SimpleJobRunner {
	return NewSimpleJobRunner(p.Repository, p.Recorder, p.Tracer, p.Notifier, Config{
		Workers: p.Config.Arbo.Batch.WorkerCount,
		Timeout: p.Config.Arbo.Batch.Timeout,
	})
}

// Module provides the job runner.
var Module = fx.Options(
	fx.Provide(NewJobRunner),
)
