package main

import (
	"github.com/spf13/cobra"

	"github.com/telhawk-systems/etl-central-square/internal/config"
	"github.com/telhawk-systems/etl-central-square/internal/logging"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "etl-central-square",
	Short: "Central Square CAD connector",
	Long: `etl-central-square turns Central Square CAD data into GeoJSON feature
collections for the tactical-awareness pipeline.

CAD systems push incidents to the webhook receiver (serve), or a scheduler
invokes a pull run (control). Either way each invocation normalizes its
payload and submits one feature collection downstream.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml or /etc/etl-central-square/config.yaml)")
}

// loadConfig reads configuration and installs the default logger.
func loadConfig() (*config.Config, *logging.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}

	logger := logging.New(
		logging.ParseLevel(cfg.Logging.Level),
		cfg.Logging.Format,
	).With(logging.Service("etl-central-square"))
	logging.SetDefault(logger)

	return cfg, logger, nil
}
