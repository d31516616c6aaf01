package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/etl-central-square/internal/trigger"
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Handle invocation events from NATS",
	Long: `Subscribe to etl.central-square.invoke and run each event as a webhook
or control invocation. Instances share a queue group, so scaling out does not
duplicate work.`,
	RunE: runListen,
}

func init() {
	rootCmd.AddCommand(listenCmd)
}

func runListen(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	a, err := buildApp(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	js, err := a.jetStream(cfg)
	if err != nil {
		return err
	}

	listener := trigger.NewListener(js, trigger.NewHandler(a.task), logger)
	if err := listener.Start(); err != nil {
		return err
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Stopping listener")
	if err := listener.Stop(); err != nil {
		logger.Warn("Failed to unsubscribe", "error", err)
	}
	return js.Drain()
}
