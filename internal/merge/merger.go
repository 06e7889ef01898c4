// Package merge reconciles batches of records with what is already stored.
package merge

import (
	"context"
	"errors"
	"fmt"

	"github.com/tigerroll/arbovirus-pipeline/internal/domain/model"
	batchmodel "github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/domain/model"
	batchrepo "github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/domain/repository"
	"github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/tx"
	"github.com/tigerroll/arbovirus-pipeline/pkg/batch/support/util/logger"
)

// Store is the persistence a Merger needs for one record type.
type Store[T model.Record[T]] interface {
	// FindExisting returns the stored records sharing a key with batch, keyed by Key().
	FindExisting(ctx context.Context, exec tx.TxExecutor, batch []T) (map[string]T, error)
	// Upsert inserts records, replacing stored rows with the same key.
	Upsert(ctx context.Context, exec tx.TxExecutor, records []T) error
}

// Config tunes a Merger.
type Config struct {
	ChunkSize int
	Tolerance float64
}

// Merger writes batches chunk by chunk, each chunk in its own transaction.
type Merger[T model.Record[T]] struct {
	name  string
	store Store[T]
	txm   tx.TransactionManager
	cfg   Config
}

// New creates a Merger. name labels log lines.
func New[T model.Record[T]](name string, store Store[T], txm tx.TransactionManager, cfg Config) *Merger[T] {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 100
	}
	return &Merger[T]{name: name, store: store, txm: txm, cfg: cfg}
}

// Merge classifies every record as inserted, updated or unchanged and writes
// only the first two. Chunks that committed stay committed when a later one
// fails. A chunk that fails is rolled back and replayed one record per
// transaction, so only the records that cannot be written count as failed.
//
// The returned error wraps ErrStorageUnavailable when the store cannot be
// reached, or is the context error when ctx ends between chunks.
func (m *Merger[T]) Merge(ctx context.Context, batch []T) (batchmodel.MergeResult, error) {
	var total batchmodel.MergeResult
	records := dedupe(batch)

	for start := 0; start < len(records); start += m.cfg.ChunkSize {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		end := min(start+m.cfg.ChunkSize, len(records))
		chunk := records[start:end]

		res, err := m.applyChunk(ctx, chunk)
		if err == nil {
			total.Add(res)
			continue
		}
		if fatal(ctx, err) {
			return total, err
		}
		logger.Warnf("Merge '%s': chunk of %d record(s) rolled back, replaying one by one: %v", m.name, len(chunk), err)

		res, err = m.replay(ctx, chunk)
		total.Add(res)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// applyChunk runs one chunk in a transaction.
func (m *Merger[T]) applyChunk(ctx context.Context, chunk []T) (res batchmodel.MergeResult, err error) {
	t, err := m.txm.Begin(ctx)
	if err != nil {
		return res, fmt.Errorf("merge %s: %w: %v", m.name, batchrepo.ErrStorageUnavailable, err)
	}
	defer func() {
		if err != nil {
			if rbErr := m.txm.Rollback(t); rbErr != nil {
				logger.Errorf("Merge '%s': rollback failed: %v", m.name, rbErr)
			}
		}
	}()

	existing, err := m.store.FindExisting(ctx, t, chunk)
	if err != nil {
		return batchmodel.MergeResult{}, err
	}
	writes := make([]T, 0, len(chunk))
	for _, rec := range chunk {
		old, ok := existing[rec.Key()]
		switch {
		case !ok:
			res.Inserted++
			writes = append(writes, rec)
		case rec.SameAs(old, m.cfg.Tolerance):
			res.Unchanged++
		default:
			res.Updated++
			writes = append(writes, rec)
		}
	}
	if err := m.store.Upsert(ctx, t, writes); err != nil {
		return batchmodel.MergeResult{}, err
	}
	if err := m.txm.Commit(t); err != nil {
		return batchmodel.MergeResult{}, fmt.Errorf("merge %s: commit: %w", m.name, err)
	}
	return res, nil
}

// replay applies each record of a failed chunk in its own transaction.
func (m *Merger[T]) replay(ctx context.Context, chunk []T) (batchmodel.MergeResult, error) {
	var res batchmodel.MergeResult
	for i, rec := range chunk {
		if err := ctx.Err(); err != nil {
			res.Failed += len(chunk) - i
			return res, err
		}
		one, err := m.applyChunk(ctx, []T{rec})
		if err != nil {
			if fatal(ctx, err) {
				res.Failed += len(chunk) - i
				return res, err
			}
			logger.Warnf("Merge '%s': record %s failed: %v", m.name, rec.Key(), err)
			res.Failed++
			continue
		}
		res.Add(one)
	}
	return res, nil
}

func fatal(ctx context.Context, err error) bool {
	return errors.Is(err, batchrepo.ErrStorageUnavailable) || ctx.Err() != nil
}

// dedupe keeps the last occurrence of every key, in first-seen order.
func dedupe[T model.Record[T]](batch []T) []T {
	index := make(map[string]int, len(batch))
	out := make([]T, 0, len(batch))
	for _, rec := range batch {
		if i, ok := index[rec.Key()]; ok {
			out[i] = rec
			continue
		}
		index[rec.Key()] = len(out)
		out = append(out, rec)
	}
	return out
}
