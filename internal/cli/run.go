package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/pgEdge/pgedge-songdwh/internal/config"
	"github.com/pgEdge/pgedge-songdwh/internal/db"
	"github.com/pgEdge/pgedge-songdwh/internal/loader"
	"github.com/pgEdge/pgedge-songdwh/internal/logging"
	"github.com/pgEdge/pgedge-songdwh/internal/pipeline"
	"github.com/pgEdge/pgedge-songdwh/internal/storage"
	"github.com/pgEdge/pgedge-songdwh/internal/warehouse"
	"github.com/pgEdge/pgedge-songdwh/pkg/version"
)

var (
	runCopyMode     string
	runWorkers      int
	runNoRecordRuns bool
	runVerifySource bool
)

var createTablesCmd = &cobra.Command{
	Use:   "create-tables",
	Short: "Drop and recreate all warehouse tables",
	Long: `Drop every staging, fact and dimension table if it exists, then create
them again. Run this before 'etl' to start from empty tables.

Example:
  pgedge-songdwh create-tables --dialect postgres --connection "postgres://..."`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPipeline(false, warehouse.PhaseDrop, warehouse.PhaseCreate)
	},
}

var etlCmd = &cobra.Command{
	Use:   "etl",
	Short: "Load staging tables and rebuild the star schema",
	Long: `Bulk load the event logs and song metadata into the staging tables,
then populate songplays, users, songs, artists and time from them.
The tables must already exist (see 'create-tables').

Copy Modes:
  server - the warehouse runs COPY from S3 (Redshift, default)
  client - objects are read here and streamed over the connection

Example:
  pgedge-songdwh etl --config dwh.yaml
  pgedge-songdwh etl --dialect redshift --copy-mode client --workers 16`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPipeline(false, warehouse.PhaseCopy, warehouse.PhaseInsert)
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run every phase and verify the result",
	Long: `Drop and create the tables, load the staging tables, populate the star
schema and then run the verification checks. Equivalent to 'create-tables'
followed by 'etl' and 'verify'.

Example:
  pgedge-songdwh run --dialect postgres --connection "postgres://..."
  pgedge-songdwh run --config dwh.yaml --source`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPipeline(true, warehouse.Phases()...)
	},
}

func init() {
	for _, cmd := range []*cobra.Command{createTablesCmd, etlCmd, runCmd} {
		cmd.Flags().BoolVar(&runNoRecordRuns, "no-record-runs", false,
			"do not record the run in the etl_runs table")
	}
	for _, cmd := range []*cobra.Command{etlCmd, runCmd} {
		cmd.Flags().StringVar(&runCopyMode, "copy-mode", "",
			"copy mode: server (warehouse COPY) or client (streamed by this tool)")
		cmd.Flags().IntVar(&runWorkers, "workers", 0,
			"objects read concurrently in client copy mode")
	}
	runCmd.Flags().BoolVar(&runVerifySource, "source", false,
		"also compare staging row counts with the source records")
}

func runPipeline(verifyAfter bool, phases ...warehouse.Phase) error {
	// Override config with CLI flags
	if runCopyMode != "" {
		cfg.CopyMode = runCopyMode
	}
	if runWorkers > 0 {
		cfg.Load.Workers = runWorkers
	}
	if runNoRecordRuns {
		cfg.RecordRuns = false
	}

	copying := false
	for _, p := range phases {
		if p == warehouse.PhaseCopy {
			copying = true
		}
	}

	// Validate configuration
	validate := cfg.Validate
	if copying {
		validate = cfg.ValidateCopy
	}
	if err := validate(); err != nil {
		return err
	}

	d, err := warehouse.Get(cfg.Dialect)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	pool, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	executor, err := pipeline.NewExecutor(pool, pipeline.ExecutorConfig{
		Dialect:    d,
		Source:     cfg.CopySource(),
		CopyMode:   cfg.EffectiveCopyMode(),
		Loader:     newLoader(pool, d, cfg),
		RecordRuns: cfg.RecordRuns,
		Version:    version.Short(),
	})
	if err != nil {
		return fmt.Errorf("failed to create executor: %w", err)
	}

	err = executor.Run(ctx, phases...)
	executor.PrintSummary()
	if err != nil {
		if ctx.Err() != nil {
			logging.Info().Msg("Pipeline stopped")
		}
		return err
	}

	if verifyAfter {
		return runVerify(ctx, pool, runVerifySource)
	}
	return nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigChan:
			logging.Info().
				Str("signal", sig.String()).
				Msg("Received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}

func connectOptions(c *config.Config) db.Options {
	return db.Options{
		SimpleProtocol: c.Dialect == (warehouse.Redshift{}).Name(),
		Retries:        c.Load.ConnectRetries,
	}
}

func connect(ctx context.Context, c *config.Config) (*pgxpool.Pool, error) {
	pool, err := db.Connect(ctx, c.ConnString(), connectOptions(c))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return pool, nil
}

func storageConfig(c *config.Config) storage.Config {
	return storage.Config{
		Region:         c.S3.Region,
		Endpoint:       c.S3.Endpoint,
		ForcePathStyle: c.S3.ForcePathStyle,
	}
}

func newLoader(conn db.DB, d warehouse.Dialect, c *config.Config) *loader.Loader {
	return loader.New(conn, loader.StorageOpener(storageConfig(c)), loader.Options{
		Workers:         c.Load.Workers,
		UseCopyProtocol: d.SupportsCopyProtocol(),
	})
}

