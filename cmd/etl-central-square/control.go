package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/telhawk-systems/etl-central-square/internal/middleware"
)

var controlCmd = &cobra.Command{
	Use:   "control",
	Short: "Run one scheduled pull",
	Long: `Run the scheduled control path once: load and validate the connector
environment, fetch pending CAD data and submit one feature collection.
Exits non-zero on failure so the scheduler can retry.`,
	RunE: runControl,
}

func init() {
	rootCmd.AddCommand(controlCmd)
}

func runControl(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	a, err := buildApp(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := middleware.WithRequestID(cmd.Context(), uuid.New().String())
	return a.task.Control(ctx)
}
