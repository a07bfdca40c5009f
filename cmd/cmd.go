package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/dosco/graphjin/populate/v3/serv"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// These variables are set using -ldflags
	version string
	commit  string
	date    string
)

var (
	log   *zap.SugaredLogger
	conf  *serv.Config
	cpath string
)

// Cmd is the entry point for the CLI
func Cmd() {
	log = newLogger(false).Sugar()

	if err := newRootCmd().Execute(); err != nil {
		log.Fatalf("%s", err)
	}
}

func newRootCmd() *cobra.Command {
	cobra.EnableCommandSorting = false
	rootCmd := &cobra.Command{
		Use:           "populate",
		Short:         BuildDetails(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&cpath,
		"path", "./config", "path to config files")

	// Add --config as an alias for --path
	rootCmd.PersistentFlags().StringVar(&cpath,
		"config", "./config", "alias for --path")
	rootCmd.PersistentFlags().MarkHidden("config") //nolint:errcheck

	rootCmd.AddCommand(servCmd())
	rootCmd.AddCommand(explainCmd())
	rootCmd.AddCommand(checkCmd())
	rootCmd.AddCommand(mcpCmd())
	rootCmd.AddCommand(configSchemaCmd())
	rootCmd.AddCommand(versionCmd())

	return rootCmd
}

// setup reads the config file for the current GO_ENV from cpath
func setup(cpath string) error {
	if conf != nil {
		return nil
	}

	cp, err := filepath.Abs(cpath)
	if err != nil {
		return err
	}

	if _, err := os.Stat(cp); err != nil {
		return errors.Wrapf(err, "config path")
	}

	if conf, err = serv.ReadInConfig(filepath.Join(cp, serv.GetConfigName())); err != nil {
		return errors.Wrap(err, "config")
	}
	return nil
}

// versionCmd prints the build details
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), BuildDetails())
		},
	}
}

// BuildDetails returns the version, commit and build date of the binary
func BuildDetails() string {
	v, c, d := version, commit, date
	if v == "" {
		v = "not-set"
	}
	if c == "" {
		c = "not-set"
	}
	if d == "" {
		d = "not-set"
	}

	return fmt.Sprintf(`
Populate: MongoDB relation population service

For documentation, visit https://graphjin.com

Commit SHA-1          : %v
Commit timestamp      : %v
Go version            : %v
Version               : %v
`, c, d, runtime.Version(), v)
}

// newLogger creates a new logger
func newLogger(json bool) *zap.Logger {
	return newLoggerWithOutput(json, os.Stdout)
}

// newLoggerWithOutput creates a new logger with a custom output
func newLoggerWithOutput(json bool, output io.Writer) *zap.Logger {
	econf := zapcore.EncoderConfig{
		MessageKey:     "msg",
		LevelKey:       "level",
		NameKey:        "logger",
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}

	var core zapcore.Core
	ws := zapcore.AddSync(output)

	if json {
		core = zapcore.NewCore(zapcore.NewJSONEncoder(econf), ws, zap.DebugLevel)
	} else {
		econf.EncodeLevel = zapcore.CapitalColorLevelEncoder
		core = zapcore.NewCore(zapcore.NewConsoleEncoder(econf), ws, zap.DebugLevel)
	}
	return zap.New(core)
}
