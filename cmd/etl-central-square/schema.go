package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/telhawk-systems/etl-central-square/internal/schema"
)

var (
	schemaType   string
	schemaFlow   string
	schemaOutput string
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the connector's JSON Schema",
	Long: `Print the schema the connector advertises for a kind and flow direction.

Examples:
  # Configuration schema read by scheduled runs
  etl-central-square schema --type input --flow incoming

  # Output schema as YAML
  etl-central-square schema --type output --output yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		doc := schema.Schema(schema.ParseKind(schemaType), schema.ParseFlow(schemaFlow))
		return writeDocument(cmd.OutOrStdout(), doc, schemaOutput)
	},
}

func init() {
	schemaCmd.Flags().StringVar(&schemaType, "type", "input", "schema kind: input, output")
	schemaCmd.Flags().StringVar(&schemaFlow, "flow", "incoming", "flow direction: incoming, outgoing")
	schemaCmd.Flags().StringVarP(&schemaOutput, "output", "o", "json", "output format: json, yaml")
	rootCmd.AddCommand(schemaCmd)
}

func writeDocument(w io.Writer, doc schema.Document, format string) error {
	switch format {
	case "json", "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(map[string]any(doc)); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q (supported: json, yaml)", format)
	}
}
