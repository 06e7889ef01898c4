// Package writer holds reusable item writers.
package writer

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/tigerroll/arbovirus-pipeline/pkg/batch/adapter/storage"
	"github.com/tigerroll/arbovirus-pipeline/pkg/batch/support/util/exception"
	"github.com/tigerroll/arbovirus-pipeline/pkg/batch/support/util/logger"
)

const moduleName = "writer"

// ParquetWriterConfig holds the configuration for ParquetWriter.
type ParquetWriterConfig struct {
	// OutputBaseDir is the object prefix for exported files (e.g. "predictions").
	OutputBaseDir string
	// CompressionType is SNAPPY, GZIP or NONE.
	CompressionType string
}

// ParquetWriter buffers items by partition key and writes one Parquet file
// per partition to a storage connection on Flush.
//
// T must carry parquet struct tags; itemPrototype is used for schema reflection.
type ParquetWriter[T any] struct {
	name             string
	config           ParquetWriterConfig
	codec            parquet.CompressionCodec
	storageConn      storage.StorageConnection
	itemPrototype    *T
	partitionKeyFunc func(T) (string, error)

	bufferedItems        map[string][]T
	totalRecordsBuffered int
}

// NewParquetWriter creates a ParquetWriter. The storage connection stays owned by the caller.
func NewParquetWriter[T any](
	name string,
	cfg ParquetWriterConfig,
	conn storage.StorageConnection,
	itemPrototype *T,
	partitionKeyFunc func(T) (string, error),
) (*ParquetWriter[T], error) {
	if conn == nil {
		return nil, exception.NewBatchError(moduleName, fmt.Sprintf("ParquetWriter '%s' requires a storage connection", name), nil, false, false)
	}
	if cfg.OutputBaseDir == "" {
		return nil, exception.NewBatchError(moduleName, fmt.Sprintf("ParquetWriter '%s' requires an output base dir", name), nil, false, false)
	}
	codec, err := getCompressionCodec(cfg.CompressionType)
	if err != nil {
		return nil, exception.NewBatchError(moduleName, fmt.Sprintf("invalid compression for ParquetWriter '%s'", name), err, false, false)
	}
	return &ParquetWriter[T]{
		name:             name,
		config:           cfg,
		codec:            codec,
		storageConn:      conn,
		itemPrototype:    itemPrototype,
		partitionKeyFunc: partitionKeyFunc,
		bufferedItems:    make(map[string][]T),
	}, nil
}

// Write buffers items under their partition key.
func (w *ParquetWriter[T]) Write(ctx context.Context, items []T) error {
	for _, item := range items {
		partitionKey, err := w.partitionKeyFunc(item)
		if err != nil {
			return exception.NewBatchError(moduleName, fmt.Sprintf("failed to get partition key in ParquetWriter '%s'", w.name), err, true, false)
		}
		w.bufferedItems[partitionKey] = append(w.bufferedItems[partitionKey], item)
		w.totalRecordsBuffered++
	}
	return nil
}

// Buffered returns the number of items waiting for Flush.
func (w *ParquetWriter[T]) Buffered() int {
	return w.totalRecordsBuffered
}

// Flush encodes each partition and uploads it as
// <OutputBaseDir>/<partition>/data_<timestamp>_<id>.parquet. A failing
// partition does not stop the others; all failures are returned together.
// It returns the names of the uploaded objects.
func (w *ParquetWriter[T]) Flush(ctx context.Context) ([]string, error) {
	if w.totalRecordsBuffered == 0 {
		logger.Debugf("ParquetWriter '%s': nothing buffered.", w.name)
		return nil, nil
	}

	keys := make([]string, 0, len(w.bufferedItems))
	for k := range w.bufferedItems {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var multiErr error
	var written []string
	for _, partitionKey := range keys {
		buf, err := w.encode(w.bufferedItems[partitionKey])
		if err != nil {
			multiErr = multierror.Append(multiErr, exception.NewBatchError(moduleName,
				fmt.Sprintf("failed to encode partition '%s' in ParquetWriter '%s'", partitionKey, w.name), err, false, false))
			continue
		}

		fileName := fmt.Sprintf("data_%s_%s.parquet", time.Now().UTC().Format("20060102150405"), uuid.NewString()[:8])
		objectName := path.Join(w.config.OutputBaseDir, partitionKey, fileName)
		if err := w.storageConn.Upload(ctx, "", objectName, buf, "application/octet-stream"); err != nil {
			multiErr = multierror.Append(multiErr, exception.NewBatchError(moduleName,
				fmt.Sprintf("failed to upload '%s' in ParquetWriter '%s'", objectName, w.name), err, false, true))
			continue
		}
		logger.Infof("ParquetWriter '%s': uploaded %d rows to %s.", w.name, len(w.bufferedItems[partitionKey]), objectName)
		written = append(written, objectName)
	}

	w.bufferedItems = make(map[string][]T)
	w.totalRecordsBuffered = 0
	return written, multiErr
}

// encode writes items into an in-memory Parquet file. parquet-go panics on
// schema mismatches, so panics are converted to errors.
func (w *ParquetWriter[T]) encode(items []T) (buf *bytes.Buffer, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parquet writer panicked: %v", r)
		}
	}()

	buf = new(bytes.Buffer)
	pw, err := writer.NewParquetWriterFromWriter(buf, w.itemPrototype, 1)
	if err != nil {
		return nil, err
	}
	pw.CompressionType = w.codec
	for _, item := range items {
		if err := pw.Write(item); err != nil {
			return nil, err
		}
	}
	if err := pw.WriteStop(); err != nil {
		return nil, err
	}
	return buf, nil
}

func getCompressionCodec(compressionType string) (parquet.CompressionCodec, error) {
	switch strings.ToUpper(compressionType) {
	case "SNAPPY":
		return parquet.CompressionCodec_SNAPPY, nil
	case "GZIP":
		return parquet.CompressionCodec_GZIP, nil
	case "NONE", "":
		return parquet.CompressionCodec_UNCOMPRESSED, nil
	default:
		return 0, fmt.Errorf("unsupported compression type: %s", compressionType)
	}
}
