// Package dlq keeps webhook payloads that could not be turned into submitted
// features, so an operator can inspect and replay them.
package dlq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/telhawk-systems/etl-central-square/internal/apperr"
	"github.com/telhawk-systems/etl-central-square/internal/logging"
	"github.com/telhawk-systems/etl-central-square/internal/messaging"
	"github.com/telhawk-systems/etl-central-square/internal/messaging/nats"
	"github.com/telhawk-systems/etl-central-square/internal/metrics"
)

const (
	ReasonMalformedPayload  = "malformed_payload"
	ReasonValidation        = "validation_error"
	ReasonSubmissionFailure = "submission_failure"
	ReasonUnknown           = "unknown"
)

// FailedPayload is one dead-lettered webhook invocation.
type FailedPayload struct {
	Timestamp time.Time       `json:"timestamp"`
	WebhookID string          `json:"webhook_id"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	RawBody   string          `json:"raw_body,omitempty"`
	Error     string          `json:"error"`
	Reason    string          `json:"reason"`
}

// Writer records failed payloads.
type Writer interface {
	Write(ctx context.Context, failed *FailedPayload) error
}

// Reason maps an error onto the DLQ reason used in subjects and metrics.
func Reason(err error) string {
	switch {
	case errors.Is(err, apperr.ErrMalformedPayload):
		return ReasonMalformedPayload
	case errors.Is(err, apperr.ErrValidation):
		return ReasonValidation
	case errors.Is(err, apperr.ErrSubmission):
		return ReasonSubmissionFailure
	default:
		return ReasonUnknown
	}
}

// NewFailedPayload builds a DLQ entry. Bodies that are not valid JSON are kept
// verbatim in RawBody.
func NewFailedPayload(webhookID, requestID string, body []byte, err error) *FailedPayload {
	failed := &FailedPayload{
		Timestamp: time.Now().UTC(),
		WebhookID: webhookID,
		RequestID: requestID,
		Reason:    Reason(err),
	}
	if err != nil {
		failed.Error = err.Error()
	}
	if json.Valid(body) {
		failed.Payload = json.RawMessage(body)
	} else if len(body) > 0 {
		failed.RawBody = string(body)
	}
	return failed
}

// StreamClient is the part of the JetStream client the queue needs.
type StreamClient interface {
	CreateOrUpdateStream(ctx context.Context, cfg nats.StreamConfig) (jetstream.Stream, error)
	PublishSync(ctx context.Context, subject string, data []byte) (*jetstream.PubAck, error)
}

type publisher interface {
	PublishSync(ctx context.Context, subject string, data []byte) (*jetstream.PubAck, error)
}

// JetStreamQueue writes failed payloads to a JetStream stream shared by all
// connector instances. A nil queue accepts writes and discards them.
type JetStreamQueue struct {
	js      publisher
	stream  jetstream.Stream
	logger  *logging.Logger
	written uint64
}

// NewJetStreamQueue ensures the DLQ stream exists.
func NewJetStreamQueue(ctx context.Context, js StreamClient, logger *logging.Logger) (*JetStreamQueue, error) {
	if js == nil {
		return nil, fmt.Errorf("jetstream client is nil")
	}
	if logger == nil {
		logger = logging.Default()
	}

	stream, err := js.CreateOrUpdateStream(ctx, nats.DLQStream)
	if err != nil {
		return nil, fmt.Errorf("create dlq stream: %w", err)
	}

	logger.Info("DLQ stream ready", "stream", nats.DLQStream.Name)

	return &JetStreamQueue{
		js:     js,
		stream: stream,
		logger: logger,
	}, nil
}

// Write publishes failed to etl.dlq.<reason>.
func (q *JetStreamQueue) Write(ctx context.Context, failed *FailedPayload) error {
	if q == nil || failed == nil {
		return nil
	}
	if failed.Reason == "" {
		failed.Reason = ReasonUnknown
	}

	data, err := json.Marshal(failed)
	if err != nil {
		q.logger.ErrorContext(ctx, "Failed to marshal DLQ entry", logging.Error(err))
		return err
	}

	if _, err := q.js.PublishSync(ctx, messaging.DLQSubject(failed.Reason), data); err != nil {
		q.logger.ErrorContext(ctx, "Failed to publish DLQ entry", logging.Error(err))
		return err
	}

	atomic.AddUint64(&q.written, 1)
	metrics.DLQWrites.WithLabelValues(failed.Reason).Inc()
	q.logger.InfoContext(ctx, "Published failed payload to DLQ",
		logging.WebhookID(failed.WebhookID),
		"reason", failed.Reason,
	)
	return nil
}

// Written reports how many entries this instance has published.
func (q *JetStreamQueue) Written() uint64 {
	if q == nil {
		return 0
	}
	return atomic.LoadUint64(&q.written)
}

// Stats returns DLQ metrics from JetStream.
func (q *JetStreamQueue) Stats(ctx context.Context) map[string]any {
	if q == nil {
		return map[string]any{
			"enabled": false,
			"backend": "jetstream",
		}
	}

	stats := map[string]any{
		"enabled":       true,
		"backend":       "jetstream",
		"written_local": q.Written(),
	}
	if q.stream == nil {
		return stats
	}

	info, err := q.stream.Info(ctx)
	if err != nil {
		q.logger.ErrorContext(ctx, "Failed to get DLQ stream info", logging.Error(err))
		stats["error"] = err.Error()
		return stats
	}

	stats["total_messages"] = info.State.Msgs
	stats["total_bytes"] = info.State.Bytes
	stats["first_seq"] = info.State.FirstSeq
	stats["last_seq"] = info.State.LastSeq
	stats["consumer_count"] = info.State.Consumers
	return stats
}

// List returns up to limit failed payloads from the stream.
func (q *JetStreamQueue) List(ctx context.Context, limit int) ([]FailedPayload, error) {
	if q == nil || q.stream == nil {
		return nil, fmt.Errorf("dlq not enabled")
	}

	if limit <= 0 {
		limit = 100
	}

	consumer, err := q.stream.OrderedConsumer(ctx, jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{messaging.SubjectDLQPrefix + ".>"},
		DeliverPolicy:  jetstream.DeliverAllPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("create list consumer: %w", err)
	}

	msgs, err := consumer.Fetch(limit, jetstream.FetchMaxWait(2*time.Second))
	if err != nil {
		return nil, fmt.Errorf("fetch messages: %w", err)
	}

	var entries []FailedPayload
	for msg := range msgs.Messages() {
		var failed FailedPayload
		if err := json.Unmarshal(msg.Data(), &failed); err != nil {
			q.logger.ErrorContext(ctx, "Failed to parse DLQ message", logging.Error(err))
			continue
		}
		entries = append(entries, failed)
	}

	if err := msgs.Error(); err != nil {
		q.logger.WarnContext(ctx, "DLQ fetch completed with error", logging.Error(err))
	}

	return entries, nil
}

// Purge removes all entries from the DLQ stream.
func (q *JetStreamQueue) Purge(ctx context.Context) error {
	if q == nil || q.stream == nil {
		return fmt.Errorf("dlq not enabled")
	}

	if err := q.stream.Purge(ctx); err != nil {
		return fmt.Errorf("purge dlq stream: %w", err)
	}

	q.logger.InfoContext(ctx, "Purged DLQ stream")
	return nil
}
