//-------------------------------------------------------------------------
//
// pgEdge Song Warehouse Loader
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package loader fills staging tables from JSON objects in storage on the
// client side, for warehouses that cannot load from object storage
// themselves.
package loader

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/errgroup"

	"github.com/pgEdge/pgedge-songdwh/internal/db"
	"github.com/pgEdge/pgedge-songdwh/internal/logging"
	"github.com/pgEdge/pgedge-songdwh/internal/storage"
	"github.com/pgEdge/pgedge-songdwh/internal/warehouse"
)

// StoreOpener returns the store that holds a location.
type StoreOpener func(ctx context.Context, loc storage.Location) (storage.Store, error)

// StorageOpener opens stores with storage.Open.
func StorageOpener(cfg storage.Config) StoreOpener {
	return func(ctx context.Context, loc storage.Location) (storage.Store, error) {
		return storage.Open(ctx, loc, cfg)
	}
}

// Options configures a Loader.
type Options struct {
	// Workers is the number of objects fetched and decoded concurrently.
	Workers int

	// UseCopyProtocol streams rows with COPY FROM STDIN. When false, rows
	// are written with multi-row INSERTs of BatchSize rows.
	UseCopyProtocol bool

	// BatchSize is the number of rows per INSERT.
	BatchSize int

	// ProgressInterval is how often to log progress (in rows).
	ProgressInterval int64
}

// DefaultOptions returns default loader options.
func DefaultOptions() Options {
	return Options{
		Workers:          8,
		UseCopyProtocol:  true,
		BatchSize:        500,
		ProgressInterval: 10000,
	}
}

// Result summarizes one load.
type Result struct {
	Table    string
	Source   string
	Objects  int
	Rows     int64
	Duration time.Duration
}

// Loader reads JSON objects from storage into warehouse tables.
type Loader struct {
	db   db.DB
	open StoreOpener
	opts Options
}

// New creates a Loader writing through conn.
func New(conn db.DB, open StoreOpener, opts Options) *Loader {
	defaults := DefaultOptions()
	if opts.Workers < 1 {
		opts.Workers = defaults.Workers
	}
	if opts.BatchSize < 1 {
		opts.BatchSize = defaults.BatchSize
	}
	if opts.ProgressInterval < 1 {
		opts.ProgressInterval = defaults.ProgressInterval
	}
	return &Loader{db: conn, open: open, opts: opts}
}

// ReadMapping resolves a COPY format: "auto" or the location of a
// jsonpaths file.
func (l *Loader) ReadMapping(ctx context.Context, format string) (Mapping, error) {
	if format == "" || strings.EqualFold(format, warehouse.FormatAuto) {
		return Auto(), nil
	}

	loc, err := storage.ParseLocation(format)
	if err != nil {
		return Mapping{}, err
	}
	store, err := l.open(ctx, loc)
	if err != nil {
		return Mapping{}, err
	}
	data, err := storage.ReadAll(ctx, store, loc.Key)
	if err != nil {
		return Mapping{}, fmt.Errorf("failed to read jsonpaths %s: %w", loc, err)
	}
	jp, err := ParseJSONPaths(data)
	if err != nil {
		return Mapping{}, fmt.Errorf("%s: %w", loc, err)
	}
	return FromJSONPaths(jp), nil
}

// LoadJob runs one staging load the way the warehouse COPY would.
func (l *Loader) LoadJob(ctx context.Context, job warehouse.CopyJob) (*Result, error) {
	m, err := l.ReadMapping(ctx, job.Format)
	if err != nil {
		return nil, err
	}
	return l.Load(ctx, job.Table, job.Source, m)
}

// Load reads every object under location and appends its records to table.
// Rows are written in object key order. Nothing is written if any object
// fails to decode.
func (l *Loader) Load(ctx context.Context, table warehouse.Table, location string, m Mapping) (*Result, error) {
	start := time.Now()

	b, err := m.bind(table)
	if err != nil {
		return nil, err
	}

	loc, err := storage.ParseLocation(location)
	if err != nil {
		return nil, err
	}
	store, err := l.open(ctx, loc)
	if err != nil {
		return nil, err
	}
	objects, err := store.List(ctx, loc.Key)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", loc, err)
	}
	if len(objects) == 0 {
		return nil, fmt.Errorf("no objects found at %s", loc)
	}

	logging.Info().
		Str("table", table.Name).
		Str("source", loc.String()).
		Int("objects", len(objects)).
		Int("workers", l.opts.Workers).
		Msg("Loading staging table")

	batches := make([][][]any, len(objects))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.opts.Workers)
	for i, obj := range objects {
		if obj.Size == 0 {
			continue
		}
		g.Go(func() error {
			rc, err := store.Open(gctx, obj.Key)
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", obj.Key, err)
			}
			defer rc.Close()

			rows, err := decodeRows(rc, b)
			if err != nil {
				return fmt.Errorf("%s: %w", obj.Key, err)
			}
			batches[i] = rows
			logging.Debug().
				Str("key", obj.Key).
				Int("rows", len(rows)).
				Msg("Decoded object")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load %s: %w", table.Name, err)
	}

	var rows [][]any
	for _, batch := range batches {
		rows = append(rows, batch...)
	}

	written, err := l.write(ctx, table, b.cols, rows)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", table.Name, err)
	}

	res := &Result{
		Table:    table.Name,
		Source:   loc.String(),
		Objects:  len(objects),
		Rows:     written,
		Duration: time.Since(start),
	}
	logging.Info().
		Str("table", res.Table).
		Int("objects", res.Objects).
		Int64("rows", res.Rows).
		Dur("duration", res.Duration).
		Msg("Staging table loaded")
	return res, nil
}

func (l *Loader) write(ctx context.Context, table warehouse.Table, cols []warehouse.Column, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}

	if l.opts.UseCopyProtocol {
		return l.db.CopyFrom(ctx, pgx.Identifier{table.Name}, names, pgx.CopyFromRows(rows))
	}

	progress := NewProgressReporter(table.Name, int64(len(rows)), l.opts.ProgressInterval)
	var written int64
	for start := 0; start < len(rows); start += l.opts.BatchSize {
		end := min(start+l.opts.BatchSize, len(rows))
		sql, args := insertBatch(table.Name, names, rows[start:end])
		tag, err := l.db.Exec(ctx, sql, args...)
		if err != nil {
			return written, err
		}
		written += tag.RowsAffected()
		progress.Update(tag.RowsAffected())
	}
	progress.Done()
	return written, nil
}

// insertBatch renders a multi-row INSERT with positional parameters.
func insertBatch(table string, cols []string, rows [][]any) (string, []any) {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = warehouse.QuoteIdent(c)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", warehouse.QuoteIdent(table), strings.Join(quoted, ", "))

	args := make([]any, 0, len(rows)*len(cols))
	for r, row := range rows {
		if r > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for c, v := range row {
			if c > 0 {
				b.WriteString(", ")
			}
			args = append(args, v)
			fmt.Fprintf(&b, "$%d", len(args))
		}
		b.WriteString(")")
	}
	return b.String(), args
}
