// Package service implements the connector task: schema negotiation, webhook
// handling and the scheduled control run. Each invocation is independent and
// submits its feature collection at most once.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/go-viper/mapstructure/v2"

	"github.com/telhawk-systems/etl-central-square/internal/apperr"
	"github.com/telhawk-systems/etl-central-square/internal/dedup"
	"github.com/telhawk-systems/etl-central-square/internal/dlq"
	"github.com/telhawk-systems/etl-central-square/internal/env"
	"github.com/telhawk-systems/etl-central-square/internal/logging"
	"github.com/telhawk-systems/etl-central-square/internal/metrics"
	"github.com/telhawk-systems/etl-central-square/internal/middleware"
	"github.com/telhawk-systems/etl-central-square/internal/models"
	"github.com/telhawk-systems/etl-central-square/internal/schema"
	"github.com/telhawk-systems/etl-central-square/internal/submit"
	"github.com/telhawk-systems/etl-central-square/internal/upstream"
)

// Normalizer turns a raw CAD payload into a feature collection.
type Normalizer interface {
	Normalize(ctx context.Context, payload *models.RawPayload) (*models.FeatureCollection, error)
}

// forgetter is implemented by deduplicators that can release claimed ids.
type forgetter interface {
	Forget(ctx context.Context, fc *models.FeatureCollection) error
}

// Options wires a Task. Submitter and Normalizer are required; the rest fall
// back to no-op implementations.
type Options struct {
	Normalizer   Normalizer
	Submitter    submit.Submitter
	Deduplicator dedup.Deduplicator
	Env          env.Provider
	Fetcher      upstream.Fetcher
	DLQ          dlq.Writer
	Validator    *schema.Validator
	Logger       *logging.Logger
}

type Task struct {
	normalizer Normalizer
	submitter  submit.Submitter
	dedup      dedup.Deduplicator
	env        env.Provider
	fetcher    upstream.Fetcher
	dlq        dlq.Writer
	validator  *schema.Validator
	logger     *logging.Logger

	webhookRequests   atomic.Int64
	webhookFailures   atomic.Int64
	controlRuns       atomic.Int64
	controlFailures   atomic.Int64
	featuresSubmitted atomic.Int64
	lastInvocation    atomic.Int64
}

func New(opts Options) *Task {
	t := &Task{
		normalizer: opts.Normalizer,
		submitter:  opts.Submitter,
		dedup:      opts.Deduplicator,
		env:        opts.Env,
		fetcher:    opts.Fetcher,
		dlq:        opts.DLQ,
		validator:  opts.Validator,
		logger:     opts.Logger,
	}
	if t.logger == nil {
		t.logger = logging.Default()
	}
	if t.submitter == nil {
		t.submitter = submit.NewLogSubmitter(t.logger)
	}
	if t.dedup == nil {
		t.dedup = dedup.NoOp{}
	}
	if t.env == nil {
		t.env = env.NewStaticProvider(map[string]any{schema.DebugField: false})
	}
	if t.fetcher == nil {
		t.fetcher = upstream.NoOpFetcher{}
	}
	if t.validator == nil {
		t.validator = schema.NewValidator()
	}
	return t
}

// Schema returns the JSON Schema for the requested kind and flow.
func (t *Task) Schema(kind schema.Kind, flow schema.Flow) schema.Document {
	return schema.Schema(kind, flow)
}

// HandleWebhook normalizes one webhook body and submits the result. The raw
// body is logged before anything else so failed payloads can be replayed.
func (t *Task) HandleWebhook(ctx context.Context, webhookID string, body []byte) (err error) {
	start := time.Now()
	t.webhookRequests.Add(1)
	t.touch(start)

	log := t.logger.WithContext(ctx).With(logging.WebhookID(webhookID))
	log.InfoContext(ctx, "Webhook received",
		logging.Bytes(len(body)),
		"body", string(body),
	)
	metrics.WebhookBytesTotal.Add(float64(len(body)))

	defer func() {
		if err != nil {
			t.webhookFailures.Add(1)
			log.ErrorContext(ctx, "Webhook processing failed", logging.Error(err))
			t.deadLetter(ctx, webhookID, body, err)
		}
	}()

	fc, err := t.normalize(ctx, &models.RawPayload{
		Source:     models.SourceWebhook,
		WebhookID:  webhookID,
		Body:       body,
		ReceivedAt: start.UTC(),
	})
	if err != nil {
		return err
	}

	fc = t.filter(ctx, fc)
	logFeatures(ctx, log, slog.LevelDebug, fc)

	if err := t.submit(ctx, fc); err != nil {
		t.release(ctx, fc)
		return err
	}

	log.InfoContext(ctx, "Webhook processed",
		logging.Features(fc.Len()),
		logging.Duration(time.Since(start).Milliseconds()),
	)
	return nil
}

// Control is the scheduled run: read and validate the connector environment,
// fetch pending CAD data and submit it. Errors propagate to the scheduler.
func (t *Task) Control(ctx context.Context) (err error) {
	start := time.Now()
	t.controlRuns.Add(1)
	t.touch(start)

	log := t.logger.WithContext(ctx)
	defer func() {
		if err != nil {
			t.controlFailures.Add(1)
			metrics.ControlRuns.WithLabelValues("failure").Inc()
			log.ErrorContext(ctx, "Control run failed", logging.Error(err))
			return
		}
		metrics.ControlRuns.WithLabelValues("success").Inc()
	}()

	cfg, environment, err := t.configuration(ctx)
	if err != nil {
		return err
	}

	verbose := slog.LevelDebug
	if cfg.Debug {
		verbose = slog.LevelInfo
	}
	log.Log(ctx, verbose, "Control invoked", "debug", cfg.Debug, "environment", environment)

	body, err := t.fetcher.Fetch(ctx)
	if err != nil {
		return err
	}

	fc := models.NewFeatureCollection()
	if len(body) == 0 {
		log.Log(ctx, verbose, "No upstream payload pending")
	} else {
		log.Log(ctx, verbose, "Upstream payload fetched", logging.Bytes(len(body)), "body", string(body))
		fc, err = t.normalize(ctx, &models.RawPayload{
			Source:     models.SourceControl,
			Body:       body,
			ReceivedAt: start.UTC(),
		})
		if err != nil {
			return err
		}
		fc = t.filter(ctx, fc)
	}

	logFeatures(ctx, log, verbose, fc)

	if err := t.submit(ctx, fc); err != nil {
		t.release(ctx, fc)
		return err
	}

	log.InfoContext(ctx, "Control run complete",
		logging.Features(fc.Len()),
		logging.Duration(time.Since(start).Milliseconds()),
	)
	return nil
}

// Stats returns a snapshot of invocation counters.
func (t *Task) Stats() models.IngestionStats {
	stats := models.IngestionStats{
		WebhookRequests:   t.webhookRequests.Load(),
		WebhookFailures:   t.webhookFailures.Load(),
		ControlRuns:       t.controlRuns.Load(),
		ControlFailures:   t.controlFailures.Load(),
		FeaturesSubmitted: t.featuresSubmitted.Load(),
	}
	if ns := t.lastInvocation.Load(); ns > 0 {
		stats.LastInvocation = time.Unix(0, ns).UTC()
	}
	return stats
}

// configuration loads the environment, validates it against the input schema
// and decodes it.
func (t *Task) configuration(ctx context.Context) (models.Configuration, map[string]any, error) {
	var cfg models.Configuration

	environment, err := t.env.Env(ctx)
	if err != nil {
		return cfg, nil, err
	}

	if err := t.validator.Validate(schema.Schema(schema.KindInput, schema.FlowIncoming), environment); err != nil {
		return cfg, nil, err
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  &cfg,
		TagName: "mapstructure",
	})
	if err != nil {
		return cfg, nil, err
	}
	if err := decoder.Decode(environment); err != nil {
		return cfg, nil, apperr.Validation("Invalid connector configuration", err)
	}
	return cfg, environment, nil
}

func (t *Task) normalize(ctx context.Context, payload *models.RawPayload) (*models.FeatureCollection, error) {
	if t.normalizer == nil {
		return nil, errors.New("no normalizer configured")
	}

	start := time.Now()
	fc, err := t.normalizer.Normalize(ctx, payload)
	metrics.NormalizationDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.NormalizationErrors.Inc()
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil, err
		case errors.Is(err, apperr.ErrMalformedPayload), errors.Is(err, apperr.ErrValidation):
			return nil, err
		}
		return nil, apperr.Malformed("Normalization failed", err)
	}
	if fc == nil {
		fc = models.NewFeatureCollection()
	}
	return fc, nil
}

// filter drops already-seen features. A failing deduplicator never blocks
// submission.
func (t *Task) filter(ctx context.Context, fc *models.FeatureCollection) *models.FeatureCollection {
	out, err := t.dedup.Filter(ctx, fc)
	if err != nil || out == nil {
		if err != nil {
			t.logger.WarnContext(ctx, "Deduplication failed, submitting unfiltered", logging.Error(err))
		}
		return fc
	}
	return out
}

// release forgets dedup claims for a collection that never made it
// downstream, so a redelivery is not dropped.
func (t *Task) release(ctx context.Context, fc *models.FeatureCollection) {
	f, ok := t.dedup.(forgetter)
	if !ok {
		return
	}
	if err := f.Forget(ctx, fc); err != nil {
		t.logger.WarnContext(ctx, "Failed to release dedup claims", logging.Error(err))
	}
}

// submit calls the submitter exactly once.
func (t *Task) submit(ctx context.Context, fc *models.FeatureCollection) error {
	if err := t.submitter.Submit(ctx, fc); err != nil {
		if errors.Is(err, apperr.ErrSubmission) {
			return err
		}
		return apperr.Submission("Failed to submit features", err)
	}
	t.featuresSubmitted.Add(int64(fc.Len()))
	return nil
}

func (t *Task) deadLetter(ctx context.Context, webhookID string, body []byte, cause error) {
	if t.dlq == nil {
		return
	}
	failed := dlq.NewFailedPayload(webhookID, middleware.GetRequestID(ctx), body, cause)
	if err := t.dlq.Write(ctx, failed); err != nil {
		t.logger.ErrorContext(ctx, "Failed to dead-letter webhook payload",
			logging.WebhookID(webhookID),
			logging.Error(err),
		)
	}
}

func (t *Task) touch(now time.Time) {
	t.lastInvocation.Store(now.UnixNano())
}

func logFeatures(ctx context.Context, log *slog.Logger, level slog.Level, fc *models.FeatureCollection) {
	if !log.Enabled(ctx, level) {
		return
	}
	for _, f := range fc.Features {
		log.Log(ctx, level, "Feature", logging.EventID(f.ID), "feature", f)
	}
}
