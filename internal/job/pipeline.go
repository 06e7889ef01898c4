package job

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tigerroll/arbovirus-pipeline/internal/domain/model"
	"github.com/tigerroll/arbovirus-pipeline/internal/source"
	batchmodel "github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/metrics"
	"github.com/tigerroll/arbovirus-pipeline/pkg/batch/engine/step/skip"
	"github.com/tigerroll/arbovirus-pipeline/pkg/batch/support/util/logger"
)

// PipelineResult counts what one pipeline did for one location.
type PipelineResult struct {
	Fetched int
	Skipped int
	Merge   batchmodel.MergeResult
}

// Pipeline collects one source for one location.
type Pipeline interface {
	Name() string
	Collect(ctx context.Context, loc model.Location, r model.DateRange) (PipelineResult, error)
}

// NormalizeFunc converts one raw record.
type NormalizeFunc[R any, C any] func(raw R, loc model.Location, src string) (C, error)

// BatchMerger reconciles a batch with storage.
type BatchMerger[C any] interface {
	Merge(ctx context.Context, batch []C) (batchmodel.MergeResult, error)
}

// LatestFinder reports the most recent stored date of a location and source.
type LatestFinder interface {
	LatestDate(ctx context.Context, locationCode, src string) (time.Time, bool, error)
}

// DiseaseLatestFinder reports the most recent stored date of one disease.
type DiseaseLatestFinder interface {
	LatestDiseaseDate(ctx context.Context, locationCode, src, disease string) (time.Time, bool, error)
}

type diseaseResume struct {
	store    DiseaseLatestFinder
	diseases []string
}

// ResumeAcrossDiseases resumes from the earliest of the per-disease latest
// dates, so a disease that failed mid-run is fetched again from where it
// stopped. A disease with nothing stored disables resumption.
func ResumeAcrossDiseases(store DiseaseLatestFinder, diseases []string) LatestFinder {
	return &diseaseResume{store: store, diseases: diseases}
}

func (d *diseaseResume) LatestDate(ctx context.Context, locationCode, src string) (time.Time, bool, error) {
	var earliest time.Time
	for i, disease := range d.diseases {
		latest, found, err := d.store.LatestDiseaseDate(ctx, locationCode, src, disease)
		if err != nil || !found {
			return time.Time{}, false, err
		}
		if i == 0 || latest.Before(earliest) {
			earliest = latest
		}
	}
	return earliest, len(d.diseases) > 0, nil
}

// SourcePipeline chains a source client, a normalizer and a merger.
type SourcePipeline[R any, C any] struct {
	name      string
	client    source.Client[R]
	normalize NormalizeFunc[R, C]
	merger    BatchMerger[C]
	latest    LatestFinder
	skipLimit int
	recorder  metrics.MetricRecorder
}

// PipelineOption configures a SourcePipeline.
type PipelineOption func(*pipelineOptions)

type pipelineOptions struct {
	latest    LatestFinder
	skipLimit int
	recorder  metrics.MetricRecorder
}

// WithResume narrows every range to start at the latest stored date.
func WithResume(latest LatestFinder) PipelineOption {
	return func(o *pipelineOptions) { o.latest = latest }
}

// WithSkipLimit caps the malformed records dropped per location. Zero is unlimited.
func WithSkipLimit(limit int) PipelineOption {
	return func(o *pipelineOptions) { o.skipLimit = limit }
}

// WithRecorder reports skipped records.
func WithRecorder(r metrics.MetricRecorder) PipelineOption {
	return func(o *pipelineOptions) { o.recorder = r }
}

// NewSourcePipeline creates a pipeline named name.
func NewSourcePipeline[R any, C any](name string, client source.Client[R], normalize NormalizeFunc[R, C], merger BatchMerger[C], opts ...PipelineOption) *SourcePipeline[R, C] {
	o := pipelineOptions{recorder: metrics.NewNoOpMetricRecorder()}
	for _, opt := range opts {
		opt(&o)
	}
	return &SourcePipeline[R, C]{
		name:      name,
		client:    client,
		normalize: normalize,
		merger:    merger,
		latest:    o.latest,
		skipLimit: o.skipLimit,
		recorder:  o.recorder,
	}
}

func (p *SourcePipeline[R, C]) Name() string { return p.name }

// Collect fetches r for loc, normalizes every record and merges the batch.
//
// Malformed records are skipped up to the skip limit. When the source fails
// after returning part of the range, that part is still merged and the
// source error is returned.
func (p *SourcePipeline[R, C]) Collect(ctx context.Context, loc model.Location, r model.DateRange) (PipelineResult, error) {
	var res PipelineResult

	if p.latest != nil {
		latest, found, err := p.latest.LatestDate(ctx, loc.Code, p.client.Name())
		if err != nil {
			return res, err
		}
		if found {
			r = r.Resume(latest)
			if r.IsEmpty() {
				logger.Infof("Pipeline '%s': %s is up to date (latest %s).", p.name, loc.Code, model.DateKey(latest))
				return res, nil
			}
		}
	}

	raws, fetchErr := p.client.Fetch(ctx, loc, r)
	var partial *source.PartialError
	if fetchErr != nil && !errors.As(fetchErr, &partial) {
		return res, fmt.Errorf("%s: fetch %s: %w", p.name, r, fetchErr)
	}
	res.Fetched = len(raws)

	policy := skip.NewLimitSkipPolicy(p.skipLimit)
	records := make([]C, 0, len(raws))
	for _, raw := range raws {
		rec, err := p.normalize(raw, loc, p.client.Name())
		if err == nil {
			records = append(records, rec)
			continue
		}
		if !policy.ShouldSkip(err) {
			res.Skipped = policy.GetSkipCount()
			return res, fmt.Errorf("%s: %d malformed record(s) exceed the skip limit: %w", p.name, policy.GetSkipCount()+1, err)
		}
		policy.IncrementSkipCount()
		p.recorder.RecordItemSkip(ctx, p.name, "malformed_record")
		logger.Debugf("Pipeline '%s': skipped record: %v", p.name, err)
	}
	res.Skipped = policy.GetSkipCount()

	merged, err := p.merger.Merge(ctx, records)
	res.Merge = merged
	if err != nil {
		return res, fmt.Errorf("%s: %w", p.name, err)
	}
	if partial != nil {
		return res, fmt.Errorf("%s: %w", p.name, fetchErr)
	}
	return res, nil
}
