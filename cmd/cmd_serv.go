package main

import (
	"fmt"
	"io"
	"os"

	"github.com/dosco/graphjin/populate/v3/serv"
	"github.com/spf13/cobra"
)

// ANSI color codes
const (
	colorCyan    = "\033[36m"
	colorMagenta = "\033[35m"
	colorReset   = "\033[0m"
)

// printBanner prints the startup banner
func printBanner(w io.Writer) {
	// Respect NO_COLOR environment variable for CI environments
	cyan, magenta, reset := colorCyan, colorMagenta, colorReset
	if os.Getenv("NO_COLOR") != "" {
		cyan, magenta, reset = "", "", ""
	}

	fmt.Fprintf(w, `
%s ┌─┐┌─┐┌─┐┬ ┬┬  ┌─┐┌┬┐┌─┐%s
%s ├─┘│ │├─┘│ ││  ├─┤ │ ├┤ %s
%s ┴  └─┘┴  └─┘┴─┘┴ ┴ ┴ └─┘%s  %s$lookup, all the way down%s

`, cyan, reset, cyan, reset, cyan, reset, magenta, reset)
}

// servCmd is the cobra CLI command for the serve subcommand
func servCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "serve",
		Aliases: []string{"serv"},
		Short:   "Run the populate service",
		RunE:    cmdServ,
	}
}

// cmdServ is the handler for the serve subcommand
func cmdServ(cmd *cobra.Command, args []string) error {
	printBanner(cmd.OutOrStdout())

	if err := setup(cpath); err != nil {
		return err
	}

	s, err := serv.NewPopulateService(conf)
	if err != nil {
		return err
	}
	return s.Start()
}
