// Package submit hands normalized feature collections to the downstream
// pipeline. A collection is submitted whole or not at all; every failure
// wraps apperr.ErrSubmission.
package submit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/telhawk-systems/etl-central-square/internal/apperr"
	"github.com/telhawk-systems/etl-central-square/internal/etlapi"
	"github.com/telhawk-systems/etl-central-square/internal/logging"
	"github.com/telhawk-systems/etl-central-square/internal/messaging"
	"github.com/telhawk-systems/etl-central-square/internal/metrics"
	"github.com/telhawk-systems/etl-central-square/internal/models"
)

// Submitter accepts a feature collection synchronously.
type Submitter interface {
	Submit(ctx context.Context, fc *models.FeatureCollection) error
}

// HTTPSubmitter posts collections to the ETL API.
type HTTPSubmitter struct {
	client *etlapi.Client
}

func NewHTTPSubmitter(client *etlapi.Client) *HTTPSubmitter {
	return &HTTPSubmitter{client: client}
}

func (s *HTTPSubmitter) Submit(ctx context.Context, fc *models.FeatureCollection) error {
	if err := s.client.SubmitFeatures(ctx, fc); err != nil {
		return apperr.Submission("Failed to submit features", err)
	}
	return nil
}

// StreamPublisher is the slice of the JetStream client the NATS submitter
// needs. It returns once the stream has persisted the message.
type StreamPublisher interface {
	PublishSync(ctx context.Context, subject string, data []byte) (*jetstream.PubAck, error)
}

// NATSSubmitter publishes each collection as one message on the layer's
// feature subject.
type NATSSubmitter struct {
	publisher StreamPublisher
	subject   string
}

func NewNATSSubmitter(publisher StreamPublisher, layer string) *NATSSubmitter {
	return &NATSSubmitter{
		publisher: publisher,
		subject:   messaging.FeaturesSubject(layer),
	}
}

// Subject returns the subject collections are published to.
func (s *NATSSubmitter) Subject() string {
	return s.subject
}

func (s *NATSSubmitter) Submit(ctx context.Context, fc *models.FeatureCollection) error {
	data, err := json.Marshal(fc)
	if err != nil {
		return apperr.Submission("Failed to encode features", err)
	}
	if _, err := s.publisher.PublishSync(ctx, s.subject, data); err != nil {
		return apperr.Submission("Failed to publish features", fmt.Errorf("publish %s: %w", s.subject, err))
	}
	return nil
}

// LogSubmitter writes collections to the log instead of a pipeline. Intended
// for local development.
type LogSubmitter struct {
	logger *logging.Logger
}

func NewLogSubmitter(logger *logging.Logger) *LogSubmitter {
	return &LogSubmitter{logger: logger}
}

func (s *LogSubmitter) Submit(ctx context.Context, fc *models.FeatureCollection) error {
	data, err := json.Marshal(fc)
	if err != nil {
		return apperr.Submission("Failed to encode features", err)
	}
	s.logger.InfoContext(ctx, "Feature collection submitted",
		logging.Features(fc.Len()),
		"collection", json.RawMessage(data),
	)
	return nil
}

// Instrumented records Prometheus metrics around another Submitter.
type Instrumented struct {
	next    Submitter
	backend string
}

func NewInstrumented(next Submitter, backend string) *Instrumented {
	return &Instrumented{next: next, backend: backend}
}

func (s *Instrumented) Submit(ctx context.Context, fc *models.FeatureCollection) error {
	start := time.Now()
	err := s.next.Submit(ctx, fc)
	metrics.SubmissionDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.Submissions.WithLabelValues(s.backend, "failure").Inc()
		return err
	}
	metrics.Submissions.WithLabelValues(s.backend, "success").Inc()
	metrics.FeaturesSubmitted.Add(float64(fc.Len()))
	return nil
}
