package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/grovetools/contextlang/pkg/config"
	"github.com/grovetools/contextlang/pkg/llm"
	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"
)

func newSchemaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print JSON schemas",
		Long:  "Prints the JSON Schema of the generation response envelope or of the configuration file.",
	}

	cmd.AddCommand(newSchemaPrintCmd("response", "Schema of the {\"code\": ...} response envelope", llm.EnvelopeSchema))
	cmd.AddCommand(newSchemaPrintCmd("config", "Schema of "+config.ConfigFileName, config.Schema))
	return cmd
}

func newSchemaPrintCmd(use, short string, schema func() *jsonschema.Schema) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := json.MarshalIndent(schema(), "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal schema: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}
