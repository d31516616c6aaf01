package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/etl-central-square/internal/dlq"
)

var dlqLimit int

var dlqCmd = &cobra.Command{
	Use:   "dlq",
	Short: "Inspect the dead letter queue",
	Long:  "List, count or purge webhook payloads that failed normalization or submission.",
}

var dlqListCmd = &cobra.Command{
	Use:   "list",
	Short: "List dead-lettered payloads",
	RunE: func(cmd *cobra.Command, args []string) error {
		queue, closeFn, err := openDLQ(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		entries, err := queue.List(cmd.Context(), dlqLimit)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	},
}

var dlqStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show dead letter stream statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		queue, closeFn, err := openDLQ(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(queue.Stats(cmd.Context()))
	},
}

var dlqPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Remove every dead-lettered payload",
	RunE: func(cmd *cobra.Command, args []string) error {
		queue, closeFn, err := openDLQ(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		if err := queue.Purge(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "DLQ purged")
		return nil
	},
}

func init() {
	dlqListCmd.Flags().IntVar(&dlqLimit, "limit", 100, "maximum entries to list")
	dlqCmd.AddCommand(dlqListCmd, dlqStatsCmd, dlqPurgeCmd)
	rootCmd.AddCommand(dlqCmd)
}

func openDLQ(cmd *cobra.Command) (*dlq.JetStreamQueue, func(), error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	a := &app{}
	js, err := a.jetStream(cfg)
	if err != nil {
		return nil, nil, err
	}

	queue, err := dlq.NewJetStreamQueue(cmd.Context(), js, logger)
	if err != nil {
		a.Close()
		return nil, nil, err
	}
	return queue, a.Close, nil
}
