package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/etl-central-square/internal/simulate"
)

var (
	simURL      string
	simWebhook  string
	simCount    int
	simBatch    int
	simInterval time.Duration
	simSeed     int64
	simLat      float64
	simLon      float64
	simRadius   float64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Post fake CAD incidents to a running webhook",
	Long: `Generate fake Central Square incidents and POST them to a webhook receiver.

The generated records match this normalizer mapping:
  normalizer:
    mapping:
      records: Incidents
      id: IncidentNumber
      time: CallReceived
      latitude: Latitude
      longitude: Longitude
      callsign: Unit
      remarks: Narrative

Examples:
  etl-central-square simulate --url http://localhost:8080 --webhook abc123 --count 10`,
	RunE: runSimulate,
}

func init() {
	simulateCmd.Flags().StringVar(&simURL, "url", "http://localhost:8080", "webhook receiver base URL")
	simulateCmd.Flags().StringVar(&simWebhook, "webhook", "simulator", "webhook id")
	simulateCmd.Flags().IntVar(&simCount, "count", 1, "number of requests to send")
	simulateCmd.Flags().IntVar(&simBatch, "batch", 5, "incidents per request")
	simulateCmd.Flags().DurationVar(&simInterval, "interval", time.Second, "delay between requests")
	simulateCmd.Flags().Int64Var(&simSeed, "seed", 0, "random seed (0 picks one)")
	simulateCmd.Flags().Float64Var(&simLat, "lat", 38.8977, "center latitude")
	simulateCmd.Flags().Float64Var(&simLon, "lon", -77.0365, "center longitude")
	simulateCmd.Flags().Float64Var(&simRadius, "radius", 0.1, "spread in degrees")
	rootCmd.AddCommand(simulateCmd)
}

func runSimulate(cmd *cobra.Command, args []string) error {
	gen := simulate.NewGenerator(simSeed, simLat, simLon, simRadius)
	out := cmd.OutOrStdout()

	failed := 0
	for i := 0; i < simCount; i++ {
		if i > 0 && simInterval > 0 {
			time.Sleep(simInterval)
		}
		resp, err := simulate.Post(cmd.Context(), nil, simURL, simWebhook, gen.Batch(simBatch))
		if err != nil {
			failed++
			fmt.Fprintf(out, "request %d: %v\n", i+1, err)
			continue
		}
		fmt.Fprintf(out, "request %d: %d %s\n", i+1, resp.StatusCode, resp.Message)
		if resp.StatusCode != 200 {
			failed++
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d requests failed", failed, simCount)
	}
	return nil
}
