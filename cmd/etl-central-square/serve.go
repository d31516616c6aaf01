package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/etl-central-square/internal/config"
	"github.com/telhawk-systems/etl-central-square/internal/handlers"
	"github.com/telhawk-systems/etl-central-square/internal/logging"
	"github.com/telhawk-systems/etl-central-square/internal/ratelimit"
	"github.com/telhawk-systems/etl-central-square/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the webhook receiver",
	Long:  "Serve POST /{webhookid} for CAD pushes, plus /schema, /healthz, /readyz and /metrics.",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	slog.Info("Starting webhook receiver",
		slog.Int("port", cfg.Server.Port),
		slog.String("log_level", cfg.Logging.Level),
		slog.String("log_format", cfg.Logging.Format),
	)

	a, err := buildApp(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	rateLimiter := newRateLimiter(cfg, logger)
	defer rateLimiter.Close()

	handler := handlers.NewWebhookHandler(a.task, rateLimiter, cfg.Ingestion.MaxBodySize, logger)
	if a.js != nil {
		handler.SetBroker(a.js)
	}
	router := server.NewRouter(handler)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Webhook receiver listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-quit:
	}

	slog.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.WriteTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	slog.Info("Server stopped")
	return nil
}

func newRateLimiter(cfg *config.Config, logger *logging.Logger) ratelimit.RateLimiter {
	if !cfg.Redis.Enabled || !cfg.Ingestion.RateLimitEnabled {
		logger.Info("Rate limiting disabled")
		return &ratelimit.NoOpRateLimiter{}
	}

	limiter, err := ratelimit.NewRedisRateLimiter(
		cfg.Redis.URL,
		cfg.Ingestion.RateLimitRequests,
		cfg.Ingestion.RateLimitWindow,
		false,
	)
	if err != nil {
		logger.Warn("Failed to initialize Redis rate limiter, continuing without rate limiting", logging.Error(err))
		return &ratelimit.NoOpRateLimiter{}
	}

	logger.Info("Rate limiting enabled",
		"requests", cfg.Ingestion.RateLimitRequests,
		"window", cfg.Ingestion.RateLimitWindow.String(),
	)
	return limiter
}
