// Package export provides a tasklet that dumps a set of items to Parquet files.
package export

import (
	"context"
	"fmt"
	"time"

	writer "github.com/tigerroll/arbovirus-pipeline/pkg/batch/component/step/writer"
	metrics "github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/metrics"
	"github.com/tigerroll/arbovirus-pipeline/pkg/batch/support/util/exception"
	"github.com/tigerroll/arbovirus-pipeline/pkg/batch/support/util/logger"
)

const moduleName = "export"

// LoadFunc reads the items to export.
type LoadFunc[T any] func(ctx context.Context) ([]T, error)

// ParquetExportTasklet loads items once and flushes them through a ParquetWriter.
type ParquetExportTasklet[T any] struct {
	name     string
	load     LoadFunc[T]
	writer   *writer.ParquetWriter[T]
	recorder metrics.MetricRecorder
}

// NewParquetExportTasklet creates a tasklet. recorder may be nil.
func NewParquetExportTasklet[T any](name string, load LoadFunc[T], w *writer.ParquetWriter[T], recorder metrics.MetricRecorder) *ParquetExportTasklet[T] {
	if recorder == nil {
		recorder = metrics.NewNoOpMetricRecorder()
	}
	return &ParquetExportTasklet[T]{name: name, load: load, writer: w, recorder: recorder}
}

// Execute exports every loaded item and returns the written object names.
// Nothing is written when the loader returns no items.
func (t *ParquetExportTasklet[T]) Execute(ctx context.Context) (objects []string, err error) {
	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "failure"
		}
		t.recorder.RecordDuration(ctx, "export."+t.name, time.Since(start), map[string]string{"status": status})
	}()

	items, err := t.load(ctx)
	if err != nil {
		return nil, exception.NewBatchError(moduleName, fmt.Sprintf("export '%s': failed to load items", t.name), err, false, true)
	}
	if len(items) == 0 {
		logger.Infof("Export '%s': nothing to export.", t.name)
		return nil, nil
	}
	if err := t.writer.Write(ctx, items); err != nil {
		return nil, err
	}
	objects, err = t.writer.Flush(ctx)
	if err != nil {
		return objects, err
	}
	logger.Infof("Export '%s': %d item(s) written to %d object(s).", t.name, len(items), len(objects))
	return objects, nil
}
