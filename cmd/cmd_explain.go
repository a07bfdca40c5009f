package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/dosco/graphjin/populate/v3/core"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var explainFormat string

func explainCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "explain <schema> [query]",
		Short: "Print the aggregation pipeline for a query",
		Long: `Compile a query against the configured schemas and print the single
aggregation pipeline it produces. No database connection is made.

The query is a JSON object with the optional keys filter, select, omit,
populate, sort, skip and limit. Pass "-" to read it from stdin.

  populate explain posts '{"populate": {"author": true}}'`,
		Args: cobra.RangeArgs(1, 2),
		RunE: cmdExplain,
	}

	c.Flags().StringVarP(&explainFormat, "format", "f", "json", "output format: json or yaml")
	return c
}

func cmdExplain(cmd *cobra.Command, args []string) error {
	if err := setup(cpath); err != nil {
		return err
	}

	var src []byte
	if len(args) == 2 {
		src = []byte(args[1])
		if args[1] == "-" {
			b, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return err
			}
			src = b
		}
	}

	out, err := explain(&conf.Core, args[0], src, explainFormat)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

// explain compiles the query in src against schema and renders the result
func explain(c *core.Config, schema string, src []byte, format string) ([]byte, error) {
	e, err := core.NewEngine(c, nil)
	if err != nil {
		return nil, err
	}

	q, err := core.ParseQueryJSON(src)
	if err != nil {
		return nil, core.WithSchema(err, schema)
	}

	comp, err := e.Explain(schema, q)
	if err != nil {
		return nil, err
	}

	js, err := json.Marshal(comp)
	if err != nil {
		return nil, err
	}

	switch format {
	case "json", "":
		var buf bytes.Buffer
		if err := json.Indent(&buf, js, "", "  "); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil

	case "yaml", "yml":
		return jsonToYAML(js)

	default:
		return nil, errors.Errorf("unknown format '%s'", format)
	}
}

// jsonToYAML re-encodes a JSON document as block style YAML keeping the key
// order of the input
func jsonToYAML(js []byte) ([]byte, error) {
	var n yaml.Node
	if err := yaml.Unmarshal(js, &n); err != nil {
		return nil, err
	}
	blockStyle(&n)

	b, err := yaml.Marshal(&n)
	if err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(b, []byte("\n")), nil
}

func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}
