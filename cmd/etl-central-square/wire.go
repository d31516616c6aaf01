package main

import (
	"context"
	"fmt"

	"github.com/telhawk-systems/etl-central-square/internal/config"
	"github.com/telhawk-systems/etl-central-square/internal/dedup"
	"github.com/telhawk-systems/etl-central-square/internal/dlq"
	"github.com/telhawk-systems/etl-central-square/internal/env"
	"github.com/telhawk-systems/etl-central-square/internal/etlapi"
	"github.com/telhawk-systems/etl-central-square/internal/logging"
	"github.com/telhawk-systems/etl-central-square/internal/normalizer"
	"github.com/telhawk-systems/etl-central-square/internal/service"
	"github.com/telhawk-systems/etl-central-square/internal/submit"
	"github.com/telhawk-systems/etl-central-square/internal/upstream"

	natsclient "github.com/telhawk-systems/etl-central-square/internal/messaging/nats"
)

// app holds the wired connector and whatever must be closed on exit.
type app struct {
	task    *service.Task
	js      *natsclient.JetStreamClient
	closers []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
}

func natsConfig(cfg *config.Config) natsclient.Config {
	return natsclient.Config{
		URL:      cfg.NATS.URL,
		Name:     "etl-central-square",
		Username: cfg.NATS.Username,
		Password: cfg.NATS.Password,
		Token:    cfg.NATS.Token,
	}
}

// jetStream connects on first use.
func (a *app) jetStream(cfg *config.Config) (*natsclient.JetStreamClient, error) {
	if a.js != nil {
		return a.js, nil
	}
	js, err := natsclient.NewJetStreamClient(natsConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	a.js = js
	a.closers = append(a.closers, js.Close)
	return js, nil
}

func etlAPIClient(cfg *config.Config) *etlapi.Client {
	return etlapi.New(etlapi.Config{
		BaseURL:       cfg.Submit.URL,
		Connection:    cfg.Submit.Connection,
		Layer:         cfg.Submit.Layer,
		Token:         cfg.Submit.Token,
		SigningSecret: cfg.Submit.SigningSecret,
		Timeout:       cfg.Submit.Timeout,
	})
}

// buildApp wires the connector task from configuration.
func buildApp(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*app, error) {
	a := &app{}

	sub, err := a.submitter(ctx, cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	// Deduplication
	var deduplicator dedup.Deduplicator = dedup.NoOp{}
	if cfg.Dedup.Enabled {
		if !cfg.Redis.Enabled {
			logger.Warn("Deduplication requires Redis, continuing without it")
		} else if d, err := dedup.NewRedisDeduplicator(cfg.Redis.URL, cfg.Dedup.TTL, logger); err != nil {
			logger.Warn("Failed to initialize deduplication, continuing without it", logging.Error(err))
		} else {
			deduplicator = d
			a.closers = append(a.closers, d.Close)
			logger.Info("Feature deduplication enabled", "ttl", cfg.Dedup.TTL.String())
		}
	}

	// Dead letter queue
	var dlqWriter dlq.Writer
	if cfg.DLQ.Enabled {
		js, err := a.jetStream(cfg)
		if err != nil {
			a.Close()
			return nil, err
		}
		queue, err := dlq.NewJetStreamQueue(ctx, js, logger)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("initialize DLQ: %w", err)
		}
		dlqWriter = queue
	} else {
		logger.Info("Dead Letter Queue disabled")
	}

	// Connector environment
	var provider env.Provider
	switch cfg.Connector.EnvSource {
	case "api":
		provider = env.NewHTTPProvider(etlAPIClient(cfg))
	case "static", "":
		provider = env.NewStaticProvider(cfg.Connector.Environment)
	default:
		a.Close()
		return nil, fmt.Errorf("unknown connector env_source %q (supported: static, api)", cfg.Connector.EnvSource)
	}

	// Upstream CAD source for scheduled runs
	var fetcher upstream.Fetcher = upstream.NoOpFetcher{}
	if cfg.Upstream.URL != "" {
		fetcher = upstream.NewHTTPFetcher(upstream.Config{
			URL:          cfg.Upstream.URL,
			APIKey:       cfg.Upstream.APIKey,
			APIKeyHeader: cfg.Upstream.APIKeyHeader,
			Timeout:      cfg.Upstream.Timeout,
		})
	}

	registry := normalizer.Default(cfg.Normalizer.Mapping)
	logger.Info("Normalizer registry initialized", "normalizers", registry.Len())

	a.task = service.New(service.Options{
		Normalizer:   registry,
		Submitter:    sub,
		Deduplicator: deduplicator,
		Env:          provider,
		Fetcher:      fetcher,
		DLQ:          dlqWriter,
		Logger:       logger,
	})
	return a, nil
}

func (a *app) submitter(ctx context.Context, cfg *config.Config, logger *logging.Logger) (submit.Submitter, error) {
	switch cfg.Submit.Backend {
	case "http", "":
		if cfg.Submit.Connection == "" || cfg.Submit.Layer == "" {
			return nil, fmt.Errorf("submit.connection and submit.layer are required for the http backend")
		}
		logger.Info("Submitting to ETL API",
			logging.Backend("http"),
			"url", cfg.Submit.URL,
			"connection", cfg.Submit.Connection,
			"layer", cfg.Submit.Layer,
		)
		return submit.NewInstrumented(submit.NewHTTPSubmitter(etlAPIClient(cfg)), "http"), nil
	case "nats":
		js, err := a.jetStream(cfg)
		if err != nil {
			return nil, err
		}
		if _, err := js.CreateOrUpdateStream(ctx, natsclient.FeaturesStream); err != nil {
			return nil, fmt.Errorf("initialize features stream: %w", err)
		}
		s := submit.NewNATSSubmitter(js, cfg.Submit.Layer)
		logger.Info("Submitting to JetStream", logging.Backend("nats"), "subject", s.Subject())
		return submit.NewInstrumented(s, "nats"), nil
	case "log":
		logger.Warn("Submitting to log only, features are not delivered downstream", logging.Backend("log"))
		return submit.NewInstrumented(submit.NewLogSubmitter(logger), "log"), nil
	default:
		return nil, fmt.Errorf("unknown submit backend %q (supported: http, nats, log)", cfg.Submit.Backend)
	}
}
