package repository

import (
	"go.uber.org/fx"

	batchrepo "github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/domain/repository"
)

// Module provides the stores and the job run repository.
var Module = fx.Options(
	fx.Provide(
		NewClimateStore,
		NewArbovirusStore,
		NewPredictionStore,
		NewJobRunRepository,
	),
	fx.Provide(func(r *JobRunRepository) batchrepo.JobRunRepository { return r }),
)
