// Package export writes predictions to Parquet files on object storage.
package export

import (
	"context"
	"fmt"

	"github.com/tigerroll/arbovirus-pipeline/internal/domain/model"
	storageAdapter "github.com/tigerroll/arbovirus-pipeline/pkg/batch/adapter/storage"
	_ "github.com/tigerroll/arbovirus-pipeline/pkg/batch/adapter/storage/gcs"
	_ "github.com/tigerroll/arbovirus-pipeline/pkg/batch/adapter/storage/local"
	writer "github.com/tigerroll/arbovirus-pipeline/pkg/batch/component/step/writer"
	taskletExport "github.com/tigerroll/arbovirus-pipeline/pkg/batch/component/tasklet/export"
	config "github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/config"
	metrics "github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/metrics"
	"github.com/tigerroll/arbovirus-pipeline/pkg/batch/support/util/logger"
)

// PredictionRow is the Parquet layout of a PredictionRecord.
type PredictionRow struct {
	LocationCode  string  `parquet:"name=location_code, type=BYTE_ARRAY, convertedtype=UTF8"`
	LocationName  string  `parquet:"name=location_name, type=BYTE_ARRAY, convertedtype=UTF8"`
	State         string  `parquet:"name=state, type=BYTE_ARRAY, convertedtype=UTF8"`
	Period        string  `parquet:"name=period, type=BYTE_ARRAY, convertedtype=UTF8"`
	RiskScore     float64 `parquet:"name=risk_score, type=DOUBLE"`
	RiskLevel     string  `parquet:"name=risk_level, type=BYTE_ARRAY, convertedtype=UTF8"`
	HistoryPoints int32   `parquet:"name=history_points, type=INT32"`
	ModelVersion  string  `parquet:"name=model_version, type=BYTE_ARRAY, convertedtype=UTF8"`
	GeneratedAt   int64   `parquet:"name=generated_at, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
}

// NewPredictionRow flattens rec, adding the catalog name and state when known.
func NewPredictionRow(rec model.PredictionRecord) PredictionRow {
	row := PredictionRow{
		LocationCode:  rec.LocationCode,
		Period:        rec.Period.String(),
		RiskScore:     rec.RiskScore,
		RiskLevel:     rec.RiskLevel,
		HistoryPoints: int32(rec.HistoryPoints),
		ModelVersion:  rec.ModelVersion,
		GeneratedAt:   rec.GeneratedAt.UnixMilli(),
	}
	if loc, ok := model.LookupLocation(rec.LocationCode); ok {
		row.LocationName = loc.Name
		row.State = loc.State
	}
	return row
}

func partitionByPeriod(row PredictionRow) (string, error) {
	if row.Period == "" {
		return "", fmt.Errorf("prediction for %s has no period", row.LocationCode)
	}
	return "period=" + row.Period, nil
}

// PeriodFinder loads the predictions of one period.
type PeriodFinder interface {
	FindByPeriod(ctx context.Context, period model.Period) ([]model.PredictionRecord, error)
}

// PredictionExporter dumps the predictions of a period as a Hive-style
// partition <prefix>/period=YYYY-MM/.
type PredictionExporter struct {
	cfg      config.ExportConfig
	store    PeriodFinder
	recorder metrics.MetricRecorder
}

// NewPredictionExporter creates an exporter. recorder may be nil.
func NewPredictionExporter(cfg config.ExportConfig, store PeriodFinder, recorder metrics.MetricRecorder) *PredictionExporter {
	if cfg.Prefix == "" {
		cfg.Prefix = "predictions"
	}
	return &PredictionExporter{cfg: cfg, store: store, recorder: recorder}
}

// Export writes every stored prediction of period and returns the object names.
func (e *PredictionExporter) Export(ctx context.Context, period model.Period) ([]string, error) {
	conn, err := storageAdapter.Open(ctx, e.cfg.Storage, "predictions-export")
	if err != nil {
		return nil, fmt.Errorf("export: open %s storage: %w", e.cfg.Storage.Type, err)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			logger.Warnf("Export: failed to close storage '%s': %v", conn.Name(), err)
		}
	}()

	w, err := writer.NewParquetWriter("predictions", writer.ParquetWriterConfig{
		OutputBaseDir:   e.cfg.Prefix,
		CompressionType: e.cfg.Compression,
	}, conn, new(PredictionRow), partitionByPeriod)
	if err != nil {
		return nil, err
	}

	load := func(ctx context.Context) ([]PredictionRow, error) {
		recs, err := e.store.FindByPeriod(ctx, period)
		if err != nil {
			return nil, err
		}
		rows := make([]PredictionRow, len(recs))
		for i, rec := range recs {
			rows[i] = NewPredictionRow(rec)
		}
		return rows, nil
	}
	return taskletExport.NewParquetExportTasklet("predictions-"+period.String(), load, w, e.recorder).Execute(ctx)
}
