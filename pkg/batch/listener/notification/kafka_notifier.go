package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	config "github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/config"
	model "github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/domain/model"
	"github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/ports"
	"github.com/tigerroll/arbovirus-pipeline/pkg/batch/support/util/logger"
)

const eventSchemaVersion = "1.0"

// JobRunEvent is the message published for a finished run.
type JobRunEvent struct {
	RunID      string          `json:"run_id"`
	JobName    string          `json:"job_name"`
	Status     string          `json:"status"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
	DurationMS int64           `json:"duration_ms"`
	Counts     model.RunCounts `json:"counts"`
	Failures   []string        `json:"failures"`
}

// NewJobRunEvent builds the event for run.
func NewJobRunEvent(run *model.JobRun) JobRunEvent {
	failures := []string(run.Failures)
	if failures == nil {
		failures = []string{}
	}
	return JobRunEvent{
		RunID:      run.ID,
		JobName:    run.JobName,
		Status:     run.Status.String(),
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
		DurationMS: run.Duration().Milliseconds(),
		Counts:     run.Counts,
		Failures:   failures,
	}
}

// MessageWriter is the subset of *kafka.Writer used by KafkaNotifier.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier publishes a JobRunEvent per finished run, keyed by run id.
type KafkaNotifier struct {
	writer  MessageWriter
	topic   string
	timeout time.Duration
}

// NewKafkaNotifier creates a notifier writing to the configured brokers.
func NewKafkaNotifier(cfg config.KafkaConfig) *KafkaNotifier {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		WriteTimeout:           cfg.Timeout,
		ReadTimeout:            cfg.Timeout,
	}
	return NewKafkaNotifierWithWriter(w, cfg.Topic, cfg.Timeout)
}

// NewKafkaNotifierWithWriter creates a notifier on an existing writer.
func NewKafkaNotifierWithWriter(w MessageWriter, topic string, timeout time.Duration) *KafkaNotifier {
	return &KafkaNotifier{writer: w, topic: topic, timeout: timeout}
}

// NotifyJobCompletion publishes the event.
func (n *KafkaNotifier) NotifyJobCompletion(ctx context.Context, run *model.JobRun) error {
	body, err := json.Marshal(NewJobRunEvent(run))
	if err != nil {
		return fmt.Errorf("failed to encode job run event: %w", err)
	}
	if n.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}
	msg := kafka.Message{
		Key:   []byte(run.ID),
		Value: body,
		Headers: []kafka.Header{
			{Key: "content-type", Value: []byte("application/json")},
			{Key: "schema-version", Value: []byte(eventSchemaVersion)},
			{Key: "job-name", Value: []byte(run.JobName)},
		},
	}
	if err := n.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish job run %s to topic %s: %w", run.ID, n.topic, err)
	}
	logger.Debugf("Notification: job run %s published to topic %s.", run.ID, n.topic)
	return nil
}

// Close flushes and closes the writer.
func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}

var _ ports.Notifier = (*KafkaNotifier)(nil)
