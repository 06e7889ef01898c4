package job

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/fx"

	"github.com/tigerroll/arbovirus-pipeline/internal/domain/model"
	"github.com/tigerroll/arbovirus-pipeline/internal/export"
	"github.com/tigerroll/arbovirus-pipeline/internal/merge"
	"github.com/tigerroll/arbovirus-pipeline/internal/normalize"
	"github.com/tigerroll/arbovirus-pipeline/internal/predict"
	"github.com/tigerroll/arbovirus-pipeline/internal/repository"
	"github.com/tigerroll/arbovirus-pipeline/internal/source"
	"github.com/tigerroll/arbovirus-pipeline/internal/source/infodengue"
	"github.com/tigerroll/arbovirus-pipeline/internal/source/openmeteo"
	config "github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/config"
	batchmodel "github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/domain/model"
	"github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/job/runner"
	metrics "github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/metrics"
	"github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/tx"
	"github.com/tigerroll/arbovirus-pipeline/pkg/batch/engine/step/retry"
)

// ErrInvalidJobConfig marks a job that cannot start because of its configuration.
var ErrInvalidJobConfig = errors.New("invalid job configuration")

// FactoryParams defines the dependencies of Factory.
type FactoryParams struct {
	fx.In
	Config      *config.Config
	Runner      *runner.SimpleJobRunner
	TxManager   tx.TransactionManager
	Climate     *repository.ClimateStore
	Arbovirus   *repository.ArbovirusStore
	Predictions *repository.PredictionStore
	Model       predict.Model
	Recorder    metrics.MetricRecorder
}

// Factory assembles the jobs from configuration.
type Factory struct {
	cfg         *config.Config
	runner      Runner
	txm         tx.TransactionManager
	climate     *repository.ClimateStore
	arbovirus   *repository.ArbovirusStore
	predictions *repository.PredictionStore
	model       predict.Model
	recorder    metrics.MetricRecorder
	normalizer  *normalize.Normalizer
}

// NewFactory creates a Factory.
func NewFactory(p FactoryParams) *Factory {
	return &Factory{
		cfg:         p.Config,
		runner:      p.Runner,
		txm:         p.TxManager,
		climate:     p.Climate,
		arbovirus:   p.Arbovirus,
		predictions: p.Predictions,
		model:       p.Model,
		recorder:    p.Recorder,
		normalizer:  normalize.New(),
	}
}

// Module provides the Factory.
var Module = fx.Provide(NewFactory)

func (f *Factory) mergeConfig() merge.Config {
	return merge.Config{ChunkSize: f.cfg.Arbo.Batch.ChunkSize, Tolerance: f.cfg.Arbo.Batch.FloatTolerance}
}

func (f *Factory) pipelineOptions(resume LatestFinder) []PipelineOption {
	opts := []PipelineOption{WithSkipLimit(f.cfg.Arbo.Batch.SkipLimit), WithRecorder(f.recorder)}
	if resume != nil {
		opts = append(opts, WithResume(resume))
	}
	return opts
}

func (f *Factory) climatePipeline(name string, client source.Client[openmeteo.Daily], resume bool) Pipeline {
	var latest LatestFinder
	if resume {
		latest = f.climate
	}
	retrying := source.NewRetrying[openmeteo.Daily](client, retry.NewExponentialPolicy(f.cfg.Arbo.Retry), f.recorder)
	merger := merge.New[model.ClimateRecord](name, f.climate, f.txm, f.mergeConfig())
	return NewSourcePipeline[openmeteo.Daily, model.ClimateRecord](name, retrying, f.normalizer.Climate, merger, f.pipelineOptions(latest)...)
}

func (f *Factory) epiPipeline(name string, resume bool) Pipeline {
	var latest LatestFinder
	if resume {
		latest = ResumeAcrossDiseases(f.arbovirus, f.cfg.Arbo.Sources.InfoDengue.Diseases)
	}
	client := infodengue.NewClient(f.cfg.Arbo.Sources.InfoDengue)
	retrying := source.NewRetrying[infodengue.Alert](client, retry.NewExponentialPolicy(f.cfg.Arbo.Retry), f.recorder)
	merger := merge.New[model.ArbovirusRecord](name, f.arbovirus, f.txm, f.mergeConfig())
	return NewSourcePipeline[infodengue.Alert, model.ArbovirusRecord](name, retrying, f.normalizer.Arbovirus, merger, f.pipelineOptions(latest)...)
}

// ClimateCollector collects recent daily climate from the forecast endpoint.
func (f *Factory) ClimateCollector() *Collector {
	return NewCollector(ClimateCollectorJob, f.runner, f.recorder,
		f.climatePipeline("climate", openmeteo.NewForecastClient(f.cfg.Arbo.Sources.OpenMeteo), false))
}

// EpiCollector collects recent epidemiological weeks.
func (f *Factory) EpiCollector() *Collector {
	return NewCollector(EpiCollectorJob, f.runner, f.recorder, f.epiPipeline("arbovirus", false))
}

// Backfill collects history from the climate archive and the surveillance source.
func (f *Factory) Backfill() *Collector {
	resume := f.cfg.Arbo.Jobs.Backfill.Resume
	return NewCollector(BackfillJob, f.runner, f.recorder,
		f.climatePipeline("climate-archive", openmeteo.NewArchiveClient(f.cfg.Arbo.Sources.OpenMeteo), resume),
		f.epiPipeline("arbovirus", resume))
}

// Predictor builds the prediction job, exporting to Parquet when enabled.
func (f *Factory) Predictor() *Predictor {
	var exporter Exporter
	if f.cfg.Arbo.Export.Enabled {
		exporter = export.NewPredictionExporter(f.cfg.Arbo.Export, f.predictions, f.recorder)
	}
	return NewPredictor(f.runner, f.climate, f.arbovirus, f.predictions, f.model,
		f.cfg.Arbo.Jobs.Prediction.LookbackMonths, exporter)
}

// Launch runs the named job with the ranges derived from configuration.
func (f *Factory) Launch(ctx context.Context, jobName string) (*batchmodel.JobRun, error) {
	locations, err := model.ResolveLocations(f.cfg.Arbo.Locations)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJobConfig, err)
	}
	today := Today(f.cfg.Arbo.System.Timezone)
	jobs := f.cfg.Arbo.Jobs

	switch jobName {
	case ClimateCollectorJob:
		return f.ClimateCollector().Run(ctx, locations, ClimateRange(today, jobs.Climate.DaysBack))
	case EpiCollectorJob:
		return f.EpiCollector().Run(ctx, locations, EpiRange(today, jobs.Epidemiological.WeeksBack))
	case BackfillJob:
		r, err := BackfillRange(jobs.Backfill.StartDate, today)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidJobConfig, err)
		}
		return f.Backfill().Run(ctx, locations, r)
	case PredictorJob:
		target, err := TargetPeriod(jobs.Prediction.TargetPeriod, today)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidJobConfig, err)
		}
		return f.Predictor().Run(ctx, locations, target)
	default:
		return nil, fmt.Errorf("%w: unknown job %q", ErrInvalidJobConfig, jobName)
	}
}
