//-------------------------------------------------------------------------
//
// pgEdge Song Warehouse Loader
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package cli implements the command-line interface for pgedge-songdwh.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/pgEdge/pgedge-songdwh/internal/config"
	"github.com/pgEdge/pgedge-songdwh/internal/logging"
	"github.com/pgEdge/pgedge-songdwh/internal/warehouse"
	"github.com/pgEdge/pgedge-songdwh/pkg/version"
)

var (
	// Global flags
	cfgFile    string
	connection string
	dialect    string
	logLevel   string
	logFormat  string

	// Global config
	cfg *config.Config

	rootCmd = &cobra.Command{
		Use:   "pgedge-songdwh",
		Short: "Song-play star-schema loader for Redshift and PostgreSQL",
		Long: `pgedge-songdwh loads raw song metadata and user activity logs from
object storage into a star-schema warehouse. Staging tables are bulk
loaded from JSON, then the songplays fact table and the users, songs,
artists and time dimensions are rebuilt from them.

Redshift loads staging tables with COPY from S3. PostgreSQL (and Redshift
in client copy mode) has the objects read by this tool and streamed over
the connection.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default: ./pgedge-songdwh.yaml)")
	rootCmd.PersistentFlags().StringVar(&connection, "connection", "",
		"warehouse connection string")
	rootCmd.PersistentFlags().StringVar(&dialect, "dialect", "",
		"SQL dialect (redshift, postgres)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "",
		"log format (console, json)")

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(dialectsCmd)
	rootCmd.AddCommand(createTablesCmd)
	rootCmd.AddCommand(etlCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(statementsCmd)
	rootCmd.AddCommand(generateCmd)
}

func initConfig() error {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return err
	}

	// Override with CLI flags
	if connection != "" {
		cfg.Connection = connection
	}
	if dialect != "" {
		cfg.Dialect = dialect
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if logFormat != "" {
		cfg.LogFormat = logFormat
	}

	// Reinitialize logger with config
	logging.Init(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})

	return nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Println(version.Info())
	},
}

var dialectsCmd = &cobra.Command{
	Use:   "dialects",
	Short: "List available SQL dialects",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Println("Available dialects:")
		cmd.Println()
		for _, name := range warehouse.List() {
			d, _ := warehouse.Get(name)
			cmd.Printf("  %-10s - %s\n", name, d.Description())
		}
		cmd.Println()
		cmd.Println("Select one with --dialect or the 'dialect' config setting.")
	},
}
