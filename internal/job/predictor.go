package job

import (
	"context"
	"fmt"
	"time"

	"github.com/tigerroll/arbovirus-pipeline/internal/domain/model"
	"github.com/tigerroll/arbovirus-pipeline/internal/predict"
	batchmodel "github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/domain/model"
	"github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/job/runner"
	"github.com/tigerroll/arbovirus-pipeline/pkg/batch/support/util/logger"
)

// ClimateFinder reads stored climate records.
type ClimateFinder interface {
	Find(ctx context.Context, locationCode string, r model.DateRange) ([]model.ClimateRecord, error)
}

// CaseFinder reads stored arbovirus records. An empty disease matches all.
type CaseFinder interface {
	Find(ctx context.Context, locationCode, disease string, r model.DateRange) ([]model.ArbovirusRecord, error)
}

// PredictionStore reads and overwrites predictions.
type PredictionStore interface {
	Find(ctx context.Context, locationCode string, period model.Period) (model.PredictionRecord, bool, error)
	Upsert(ctx context.Context, rec model.PredictionRecord) error
}

// Exporter publishes the predictions of a period.
type Exporter interface {
	Export(ctx context.Context, period model.Period) ([]string, error)
}

// Predictor scores every location for a target month.
type Predictor struct {
	runner      Runner
	climate     ClimateFinder
	cases       CaseFinder
	predictions PredictionStore
	model       predict.Model
	lookback    int
	exporter    Exporter
	now         func() time.Time
}

// NewPredictor creates the prediction job. exporter may be nil.
func NewPredictor(r Runner, climate ClimateFinder, cases CaseFinder, predictions PredictionStore, m predict.Model, lookbackMonths int, exporter Exporter) *Predictor {
	if lookbackMonths <= 0 {
		lookbackMonths = 12
	}
	return &Predictor{
		runner:      r,
		climate:     climate,
		cases:       cases,
		predictions: predictions,
		model:       m,
		lookback:    lookbackMonths,
		exporter:    exporter,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Run predicts target for every location. Locations with too little history
// are skipped without a write. Predictions of the period are exported after
// the run when an exporter is set; export failures are only logged.
func (p *Predictor) Run(ctx context.Context, locations []model.Location, target model.Period) (*batchmodel.JobRun, error) {
	codes, byCode := indexByCode(locations)
	logger.Infof("Predicting %s with model %s over %d month(s) of history.", target, p.model.Version(), p.lookback)

	run, err := p.runner.Execute(ctx, PredictorJob, codes, func(ctx context.Context, code string) (runner.UnitResult, error) {
		return p.predictLocation(ctx, byCode[code], target)
	})
	if err != nil || p.exporter == nil || run.Counts.Inserted+run.Counts.Updated == 0 {
		return run, err
	}
	objects, xerr := p.exporter.Export(ctx, target)
	if xerr != nil {
		logger.Warnf("Predictions for %s were stored but the export failed: %v", target, xerr)
	} else {
		logger.Infof("Predictions for %s exported to %d object(s).", target, len(objects))
	}
	return run, nil
}

func (p *Predictor) predictLocation(ctx context.Context, loc model.Location, target model.Period) (runner.UnitResult, error) {
	var res runner.UnitResult
	window := predict.WindowRange(target, p.lookback)

	climate, err := p.climate.Find(ctx, loc.Code, window)
	if err != nil {
		return res, err
	}
	cases, err := p.cases.Find(ctx, loc.Code, "", window)
	if err != nil {
		return res, err
	}
	res.Counts.Fetched = len(climate) + len(cases)

	series := predict.BuildSeries(loc.Code, target, p.lookback, climate, cases)
	if len(series.Points) < p.model.MinHistory() {
		res.Skipped = true
		res.Reason = fmt.Sprintf("insufficient history: %d month(s) in %s, model %s needs %d",
			len(series.Points), window, p.model.Version(), p.model.MinHistory())
		return res, nil
	}

	score, err := predict.Score(ctx, p.model, series)
	if err != nil {
		return res, err
	}
	rec := model.PredictionRecord{
		LocationCode:  loc.Code,
		Period:        target,
		RiskScore:     score,
		RiskLevel:     model.RiskLevelFor(score),
		HistoryPoints: len(series.Points),
		ModelVersion:  p.model.Version(),
		GeneratedAt:   p.now(),
	}

	_, existed, err := p.predictions.Find(ctx, loc.Code, target)
	if err != nil {
		return res, err
	}
	if err := p.predictions.Upsert(ctx, rec); err != nil {
		return res, err
	}
	if existed {
		res.Counts.Updated = 1
	} else {
		res.Counts.Inserted = 1
	}
	logger.Debugf("Prediction %s %s: score %.3f (%s).", loc.Code, target, score, rec.RiskLevel)
	return res, nil
}
