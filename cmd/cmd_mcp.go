package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/dosco/graphjin/populate/v3/serv"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"
)

func mcpCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "mcp",
		Short: "Run the MCP server in stdio mode",
		Long: `Run the populate MCP server using stdio transport.

Communicates via stdin/stdout using the MCP protocol. Logs are written
to stderr. The same tools are served over HTTP at /api/v1/mcp by the
serve command.`,
		RunE: cmdMCP,
	}

	c.AddCommand(mcpInfoCmd())
	return c
}

func cmdMCP(cmd *cobra.Command, args []string) error {
	// Keep stdout clean for JSON-RPC
	log = newLoggerWithOutput(false, os.Stderr).Sugar()

	if err := setup(cpath); err != nil {
		return err
	}

	s, err := serv.NewPopulateService(conf, serv.OptionSetLogOutput(zapcore.Lock(os.Stderr)))
	if err != nil {
		return errors.Wrap(err, "failed to initialize populate")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := s.RunMCPStdio(ctx); err != nil && ctx.Err() == nil {
		return errors.Wrap(err, "MCP server error")
	}
	return nil
}

// mcpInfoCmd prints the client configuration that launches this server
func mcpInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show MCP client configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			execPath, err := os.Executable()
			if err != nil {
				return err
			}
			out, err := mcpClientConfig(execPath, cpath)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}

func mcpClientConfig(execPath, configPath string) ([]byte, error) {
	abs, err := filepath.Abs(configPath)
	if err != nil {
		return nil, err
	}

	mcpConfig := map[string]any{
		"mcpServers": map[string]any{
			"populate": map[string]any{
				"command": execPath,
				"args":    []string{"mcp", "--path", abs},
			},
		},
	}
	return json.MarshalIndent(mcpConfig, "", "  ")
}
