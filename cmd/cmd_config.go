package main

import (
	"encoding/json"
	"fmt"

	"github.com/dosco/graphjin/populate/v3/serv"
	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"
)

func configSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config-schema",
		Short: "Print the JSON schema of the config file",
		Long: `Print a JSON schema describing the config file. Point your editor's
YAML or JSON language server at it for completion and validation.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := configSchema()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return nil
		},
	}
}

// configSchema reflects the service config into a JSON schema. Field names
// follow the mapstructure tags used by the config loader.
func configSchema() ([]byte, error) {
	r := &jsonschema.Reflector{
		FieldNameTag:              "mapstructure",
		AllowAdditionalProperties: true,
	}

	s := r.Reflect(&serv.Config{})
	s.Title = "Populate Config"
	return json.MarshalIndent(s, "", "  ")
}
