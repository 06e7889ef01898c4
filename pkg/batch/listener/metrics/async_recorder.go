// Package metrics decorates a metrics.MetricRecorder so that worker
// goroutines hand measurements to a queue instead of recording them inline.
package metrics

import (
	"context"
	"sync"
	"time"

	"go.uber.org/fx"

	config "github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/config"
	model "github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/domain/model"
	"github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/metrics"
	"github.com/tigerroll/arbovirus-pipeline/pkg/batch/support/util/logger"
)

// MetricEvent represents a metric event to be recorded asynchronously.
type MetricEvent struct {
	Type     string
	Run      *model.JobRun
	JobName  string
	Name     string // pipeline, source or operation name depending on Type
	Outcome  string
	Reason   string
	Merge    model.MergeResult
	Duration time.Duration
	Tags     map[string]string
}

// Metric event type constants
const (
	MetricEventTypeJobStart       = "job_start"
	MetricEventTypeJobEnd         = "job_end"
	MetricEventTypeUnit           = "unit"
	MetricEventTypeMerge          = "merge"
	MetricEventTypeItemSkip       = "item_skip"
	MetricEventTypeRetry          = "retry"
	MetricEventTypeRecordDuration = "record_duration"
)

// AsyncMetricRecorder records metrics by pushing events to a channel
// drained by a single goroutine.
type AsyncMetricRecorder struct {
	eventQueue   chan MetricEvent
	stopCh       chan struct{}
	stopOnce     sync.Once
	wg           sync.WaitGroup
	syncRecorder metrics.MetricRecorder
}

// NewAsyncMetricRecorder creates a new asynchronous metric recorder.
// A bufferSize of 0 or less uses 100.
func NewAsyncMetricRecorder(bufferSize int, syncRec metrics.MetricRecorder) *AsyncMetricRecorder {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	r := &AsyncMetricRecorder{
		eventQueue:   make(chan MetricEvent, bufferSize),
		stopCh:       make(chan struct{}),
		syncRecorder: syncRec,
	}
	r.wg.Add(1)
	go r.run()
	logger.Debugf("AsyncMetricRecorder: worker goroutine started (buffer size: %d).", bufferSize)
	return r
}

func (r *AsyncMetricRecorder) run() {
	defer r.wg.Done()
	for {
		select {
		case event := <-r.eventQueue:
			r.processEvent(event)
		case <-r.stopCh:
			drained := 0
			for {
				select {
				case event := <-r.eventQueue:
					r.processEvent(event)
					drained++
				default:
					logger.Debugf("AsyncMetricRecorder: worker goroutine stopped. Processed %d remaining events.", drained)
					return
				}
			}
		}
	}
}

func (r *AsyncMetricRecorder) processEvent(event MetricEvent) {
	ctx := context.Background()
	switch event.Type {
	case MetricEventTypeJobStart:
		r.syncRecorder.RecordJobStart(ctx, event.Run)
	case MetricEventTypeJobEnd:
		r.syncRecorder.RecordJobEnd(ctx, event.Run)
	case MetricEventTypeUnit:
		r.syncRecorder.RecordUnit(ctx, event.JobName, event.Outcome, event.Duration)
	case MetricEventTypeMerge:
		r.syncRecorder.RecordMerge(ctx, event.JobName, event.Name, event.Merge)
	case MetricEventTypeItemSkip:
		r.syncRecorder.RecordItemSkip(ctx, event.Name, event.Reason)
	case MetricEventTypeRetry:
		r.syncRecorder.RecordRetry(ctx, event.Name, event.Reason)
	case MetricEventTypeRecordDuration:
		r.syncRecorder.RecordDuration(ctx, event.Name, event.Duration, event.Tags)
	default:
		logger.Warnf("AsyncMetricRecorder: unknown metric event type: %s", event.Type)
	}
}

// Close stops the worker after it has processed every queued event.
func (r *AsyncMetricRecorder) Close() {
	r.stopOnce.Do(func() { close(r.stopCh) })
	r.wg.Wait()
}

func (r *AsyncMetricRecorder) sendEvent(event MetricEvent) {
	select {
	case r.eventQueue <- event:
	default:
		logger.Warnf("AsyncMetricRecorder: event queue is full (type: %s). Event discarded.", event.Type)
	}
}

// sendBlocking is used for run-level events, which must not be dropped.
func (r *AsyncMetricRecorder) sendBlocking(event MetricEvent) {
	select {
	case <-r.stopCh:
		r.processEvent(event)
		return
	default:
	}
	select {
	case r.eventQueue <- event:
	case <-r.stopCh:
		r.processEvent(event)
	}
}

func (r *AsyncMetricRecorder) RecordJobStart(ctx context.Context, run *model.JobRun) {
	r.sendBlocking(MetricEvent{Type: MetricEventTypeJobStart, Run: run})
}

func (r *AsyncMetricRecorder) RecordJobEnd(ctx context.Context, run *model.JobRun) {
	r.sendBlocking(MetricEvent{Type: MetricEventTypeJobEnd, Run: run})
}

func (r *AsyncMetricRecorder) RecordUnit(ctx context.Context, jobName, outcome string, duration time.Duration) {
	r.sendEvent(MetricEvent{Type: MetricEventTypeUnit, JobName: jobName, Outcome: outcome, Duration: duration})
}

func (r *AsyncMetricRecorder) RecordMerge(ctx context.Context, jobName, pipeline string, result model.MergeResult) {
	r.sendEvent(MetricEvent{Type: MetricEventTypeMerge, JobName: jobName, Name: pipeline, Merge: result})
}

func (r *AsyncMetricRecorder) RecordItemSkip(ctx context.Context, pipeline, reason string) {
	r.sendEvent(MetricEvent{Type: MetricEventTypeItemSkip, Name: pipeline, Reason: reason})
}

func (r *AsyncMetricRecorder) RecordRetry(ctx context.Context, source, reason string) {
	r.sendEvent(MetricEvent{Type: MetricEventTypeRetry, Name: source, Reason: reason})
}

func (r *AsyncMetricRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string) {
	r.sendEvent(MetricEvent{Type: MetricEventTypeRecordDuration, Name: name, Duration: duration, Tags: tags})
}

var _ metrics.MetricRecorder = (*AsyncMetricRecorder)(nil)

// NewAsyncMetricRecorderWrapper is used with fx.Decorate. It drains the queue
// on shutdown. A zero metrics.async_buffer_size keeps the recorder synchronous.
func NewAsyncMetricRecorderWrapper(lc fx.Lifecycle, cfg *config.Config, syncRecorder metrics.MetricRecorder) metrics.MetricRecorder {
	bufferSize := cfg.Arbo.Metrics.AsyncBufferSize
	if bufferSize <= 0 {
		return syncRecorder
	}
	asyncRecorder := NewAsyncMetricRecorder(bufferSize, syncRecorder)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			asyncRecorder.Close()
			return nil
		},
	})
	logger.Debugf("MetricRecorder decorated with asynchronous wrapper.")
	return asyncRecorder
}
