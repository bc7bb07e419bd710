package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pgEdge/pgedge-songdwh/internal/datagen"
	"github.com/pgEdge/pgedge-songdwh/internal/logging"
	"github.com/pgEdge/pgedge-songdwh/internal/storage"
)

var (
	genSeed         uint64
	genSongs        int
	genArtists      int
	genUsers        int
	genDays         int
	genEventsPerDay int
	genMatchRatio   float64
	genStart        string
	genProfile      string
)

var generateCmd = &cobra.Command{
	Use:   "generate <location>",
	Short: "Write a sample dataset to a local directory or S3 prefix",
	Long: `Generate song metadata and user activity logs in the layout the
pipeline loads: song_data/A/B/C/TR....json, one song per object,
log_data/YYYY/MM/YYYY-MM-DD-events.json with one event per line, and
the log_json_path.json mapping file.

The same seed and options always produce the same dataset.

Example:
  pgedge-songdwh generate ./data --days 7
  pgedge-songdwh generate s3://my-bucket/songdwh --songs 1000 --seed 42`,
	Args: cobra.ExactArgs(1),
	RunE: runGenerate,
}

func init() {
	defaults := datagen.DefaultOptions()
	generateCmd.Flags().Uint64Var(&genSeed, "seed", defaults.Seed,
		"random seed")
	generateCmd.Flags().IntVar(&genSongs, "songs", defaults.Songs,
		"number of catalogue songs")
	generateCmd.Flags().IntVar(&genArtists, "artists", defaults.Artists,
		"number of artists")
	generateCmd.Flags().IntVar(&genUsers, "users", defaults.Users,
		"number of listeners")
	generateCmd.Flags().IntVar(&genDays, "days", defaults.Days,
		"number of daily log files")
	generateCmd.Flags().IntVar(&genEventsPerDay, "events-per-day", defaults.EventsPerDay,
		"log events per day")
	generateCmd.Flags().Float64Var(&genMatchRatio, "match-ratio", defaults.MatchRatio,
		"share of plays that reference catalogue songs (0-1)")
	generateCmd.Flags().StringVar(&genStart, "start", defaults.Start.Format(time.DateOnly),
		"first day of logs (YYYY-MM-DD)")
	generateCmd.Flags().StringVar(&genProfile, "profile", defaults.Profile,
		"listening profile: "+strings.Join(datagen.Profiles(), ", "))
}

func runGenerate(cmd *cobra.Command, args []string) error {
	start, err := time.Parse(time.DateOnly, genStart)
	if err != nil {
		return fmt.Errorf("invalid start date: %w", err)
	}
	opts := datagen.Options{
		Seed:         genSeed,
		Songs:        genSongs,
		Artists:      genArtists,
		Users:        genUsers,
		Days:         genDays,
		EventsPerDay: genEventsPerDay,
		MatchRatio:   genMatchRatio,
		Start:        start,
		Profile:      genProfile,
	}

	root, err := storage.ParseLocation(args[0])
	if err != nil {
		return err
	}

	logging.Info().
		Str("location", root.String()).
		Uint64("seed", opts.Seed).
		Int("songs", opts.Songs).
		Int("days", opts.Days).
		Str("profile", opts.Profile).
		Msg("Generating dataset")

	ds, err := datagen.Generate(opts)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	store, err := storage.Open(ctx, root, storageConfig(cfg))
	if err != nil {
		return err
	}
	if _, err := ds.Write(ctx, store, root); err != nil {
		return err
	}

	cmd.Println("Point the loader at the dataset with:")
	cmd.Println()
	cmd.Println("s3:")
	cmd.Printf("  log_data: %q\n", root.Join(datagen.LogDataDir).String())
	cmd.Printf("  log_jsonpath: %q\n", root.Join(datagen.JSONPathFile).String())
	cmd.Printf("  song_data: %q\n", root.Join(datagen.SongDataDir).String())
	return nil
}
