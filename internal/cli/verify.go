package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pgEdge/pgedge-songdwh/internal/db"
	"github.com/pgEdge/pgedge-songdwh/internal/logging"
	"github.com/pgEdge/pgedge-songdwh/internal/storage"
	"github.com/pgEdge/pgedge-songdwh/internal/verify"
	"github.com/pgEdge/pgedge-songdwh/internal/warehouse"
)

var verifySource bool

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Count rows and check the star schema",
	Long: `Count the rows of every table and check the loaded star schema:
one row per key in each dimension, and every songplay referring to an
existing user, song, artist and time row.

With --source the objects under s3.log_data and s3.song_data are also
counted, and each staging table must hold at least as many rows as its
source has records.

Example:
  pgedge-songdwh verify --config dwh.yaml
  pgedge-songdwh verify --config dwh.yaml --source`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		conn, err := db.ConnectSingle(ctx, cfg.ConnString(), "verify", connectOptions(cfg))
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer conn.Close(context.WithoutCancel(ctx))

		logLastRun(ctx, conn)
		return runVerify(ctx, conn, verifySource)
	},
}

func init() {
	verifyCmd.Flags().BoolVar(&verifySource, "source", false,
		"also compare staging row counts with the source records")
}

func runVerify(ctx context.Context, conn db.DB, withSource bool) error {
	var opts verify.Options
	if withSource {
		sources, err := verifySources(ctx)
		if err != nil {
			return err
		}
		opts.Sources = sources
	}

	report, err := verify.Run(ctx, conn, opts)
	if report != nil {
		report.Print(os.Stdout)
	}
	if err != nil {
		return err
	}
	logging.Info().Int("checks", len(report.Checks)).Msg("Verification passed")
	return nil
}

func verifySources(ctx context.Context) ([]verify.Source, error) {
	locations := []struct {
		table    string
		location string
		setting  string
	}{
		{warehouse.StagingEventsTable, cfg.S3.LogData, "s3.log_data"},
		{warehouse.StagingSongsTable, cfg.S3.SongData, "s3.song_data"},
	}

	var sources []verify.Source
	for _, l := range locations {
		if l.location == "" {
			return nil, fmt.Errorf("%s is required for source verification", l.setting)
		}
		loc, err := storage.ParseLocation(l.location)
		if err != nil {
			return nil, err
		}
		store, err := storage.Open(ctx, loc, storageConfig(cfg))
		if err != nil {
			return nil, err
		}
		sources = append(sources, verify.Source{Table: l.table, Store: store, Location: l.location})
	}
	return sources, nil
}

func logLastRun(ctx context.Context, conn db.DB) {
	exists, err := db.RunTableExists(ctx, conn)
	if err != nil || !exists {
		return
	}
	run, err := db.LastRun(ctx, conn)
	if err != nil || run == nil {
		return
	}
	ev := logging.Info().
		Str("run_id", run.ID).
		Strs("phases", run.Phases).
		Str("status", run.Status).
		Time("started_at", run.StartedAt)
	if run.Error != "" {
		ev = ev.Str("error", run.Error)
	}
	ev.Msg("Last recorded run")
}
