package main

import (
	"context"
	"fmt"
	"time"

	"github.com/dosco/graphjin/populate/v3/core"
	"github.com/dosco/graphjin/populate/v3/mongodriver"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var checkSampleSize int

func checkCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "check",
		Short: "Check relation fields against the database",
		Long: `Connect to the configured database, sample every schema's collection
and report relation fields that were not found in any sampled document
or in the collection validator.`,
		Args: cobra.NoArgs,
		RunE: cmdCheck,
	}

	c.Flags().IntVar(&checkSampleSize, "sample", 0, "documents sampled per collection (default from config)")
	return c
}

func cmdCheck(cmd *cobra.Command, args []string) error {
	if err := setup(cpath); err != nil {
		return err
	}

	e, err := core.NewEngine(&conf.Core, nil)
	if err != nil {
		return err
	}

	db := conf.DB
	if db.Name == "" {
		return errors.New("database.name is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	conn, err := mongodriver.Connect(ctx, mongodriver.Config{
		URI:            db.URI,
		Database:       db.Name,
		ConnectTimeout: db.ConnectTimeout,
		PingTimeout:    db.PingTimeout,
		Retries:        db.ConnectRetries,
	})
	if err != nil {
		return errors.Wrap(err, "database")
	}
	defer conn.Close(context.Background()) //nolint:errcheck

	n := checkSampleSize
	if n <= 0 {
		n = db.SampleSize
	}

	found, err := conn.CheckRelations(ctx, e.Schemas(), n)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, f := range found {
		fmt.Fprintln(out, f.String())
	}

	if len(found) != 0 {
		return errors.Errorf("%d relation field(s) not found", len(found))
	}
	log.Infof("all relation fields found in %s", db.Name)
	return nil
}
