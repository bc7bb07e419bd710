//-------------------------------------------------------------------------
//
// pgEdge Song Warehouse Loader
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package verify checks a loaded warehouse: row counts, key uniqueness and
// referential consistency of the fact table.
package verify

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/pgEdge/pgedge-songdwh/internal/db"
	"github.com/pgEdge/pgedge-songdwh/internal/loader"
	"github.com/pgEdge/pgedge-songdwh/internal/logging"
	"github.com/pgEdge/pgedge-songdwh/internal/storage"
	"github.com/pgEdge/pgedge-songdwh/internal/warehouse"
)

// ErrVerificationFailed is returned by Run when any check fails.
var ErrVerificationFailed = errors.New("verification failed")

// Check is a query returning the number of rows that violate a property.
// Informational checks are reported but never fail verification.
type Check struct {
	Name          string
	Description   string
	SQL           string
	Informational bool
}

// CheckResult is the outcome of one check.
type CheckResult struct {
	Check      Check
	Violations int64
	Passed     bool
}

// TableCount is the row count of one table.
type TableCount struct {
	Table string
	Rows  int64
}

// SourceCount is the number of JSON records under a source location.
type SourceCount struct {
	Table    string
	Location string
	Objects  int
	Records  int64
}

// Report collects everything Run found.
type Report struct {
	Counts  []TableCount
	Checks  []CheckResult
	Sources []SourceCount
}

// Passed reports whether every check passed.
func (r *Report) Passed() bool {
	for _, c := range r.Checks {
		if !c.Passed {
			return false
		}
	}
	return true
}

// Failed returns the checks that did not pass.
func (r *Report) Failed() []CheckResult {
	var failed []CheckResult
	for _, c := range r.Checks {
		if !c.Passed {
			failed = append(failed, c)
		}
	}
	return failed
}

// Count returns the row count recorded for a table.
func (r *Report) Count(table string) (int64, bool) {
	for _, c := range r.Counts {
		if c.Table == table {
			return c.Rows, true
		}
	}
	return 0, false
}

// Counts runs the count query of every table.
func Counts(ctx context.Context, conn db.DB) ([]TableCount, error) {
	stmts := warehouse.CountStatements()
	counts := make([]TableCount, 0, len(stmts))
	for _, stmt := range stmts {
		var n int64
		if err := conn.QueryRow(ctx, stmt.SQL).Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", stmt.Table, err)
		}
		counts = append(counts, TableCount{Table: stmt.Table, Rows: n})
	}
	return counts, nil
}

func duplicateKeys(t warehouse.Table) Check {
	key := t.PrimaryKey()
	return Check{
		Name:        "unique_" + t.Name,
		Description: fmt.Sprintf("%s has one row per %s", t.Name, key),
		SQL: fmt.Sprintf("SELECT COUNT(*) FROM (SELECT %[1]s FROM %[2]s GROUP BY %[1]s HAVING COUNT(*) > 1) dup;",
			key, warehouse.QuoteIdent(t.Name)),
	}
}

func orphans(fk string, ref warehouse.Table) Check {
	key := ref.PrimaryKey()
	return Check{
		Name:        "songplays_" + ref.Name,
		Description: fmt.Sprintf("every songplays.%s exists in %s", fk, ref.Name),
		SQL: fmt.Sprintf(`SELECT COUNT(*) FROM %s sp
LEFT JOIN %s r ON sp.%s = r.%s
WHERE r.%s IS NULL;`,
			warehouse.QuoteIdent(warehouse.SongplaysTable), warehouse.QuoteIdent(ref.Name), fk, key, key),
	}
}

// Checks returns the integrity checks in execution order.
func Checks() []Check {
	return []Check{
		duplicateKeys(warehouse.Users),
		duplicateKeys(warehouse.Songs),
		duplicateKeys(warehouse.Artists),
		duplicateKeys(warehouse.Time),
		orphans("user_id", warehouse.Users),
		orphans("song_id", warehouse.Songs),
		orphans("artist_id", warehouse.Artists),
		orphans("start_time", warehouse.Time),
		{
			// A play matches every catalogue row with the same title and
			// artist name, so one event can yield several songplays.
			Name:        "songplays_multi_match",
			Description: "NextSong events matching more than one catalogue song",
			SQL: fmt.Sprintf(`SELECT COUNT(*) FROM (
    SELECT start_time, user_id, session_id FROM %s
    GROUP BY start_time, user_id, session_id
    HAVING COUNT(*) > 1
) multi;`, warehouse.QuoteIdent(warehouse.SongplaysTable)),
			Informational: true,
		},
		{
			Name:        "time_ranges",
			Description: "time units are within calendar ranges, weekday 0 is Sunday",
			SQL: fmt.Sprintf(`SELECT COUNT(*) FROM %s
WHERE hour NOT BETWEEN 0 AND 23
   OR day NOT BETWEEN 1 AND 31
   OR week NOT BETWEEN 1 AND 53
   OR month NOT BETWEEN 1 AND 12
   OR weekday NOT BETWEEN 0 AND 6;`, warehouse.QuoteIdent(warehouse.TimeTable)),
		},
	}
}

// RunChecks executes every check.
func RunChecks(ctx context.Context, conn db.DB) ([]CheckResult, error) {
	checks := Checks()
	results := make([]CheckResult, 0, len(checks))
	for _, c := range checks {
		var n int64
		if err := conn.QueryRow(ctx, c.SQL).Scan(&n); err != nil {
			return nil, fmt.Errorf("check %s: %w", c.Name, err)
		}
		results = append(results, CheckResult{Check: c, Violations: n, Passed: n == 0 || c.Informational})
		logging.Debug().
			Str("check", c.Name).
			Int64("violations", n).
			Msg("Check complete")
	}
	return results, nil
}

// SourceInventory counts the JSON records under a location.
func SourceInventory(ctx context.Context, store storage.Store, location string) (SourceCount, error) {
	loc, err := storage.ParseLocation(location)
	if err != nil {
		return SourceCount{}, err
	}
	objects, err := store.List(ctx, loc.Key)
	if err != nil {
		return SourceCount{}, fmt.Errorf("failed to list %s: %w", loc, err)
	}

	sc := SourceCount{Location: loc.String(), Objects: len(objects)}
	for _, obj := range objects {
		rc, err := store.Open(ctx, obj.Key)
		if err != nil {
			return SourceCount{}, err
		}
		n, err := loader.CountRecords(rc)
		rc.Close()
		if err != nil {
			return SourceCount{}, fmt.Errorf("%s: %w", obj.Key, err)
		}
		sc.Records += n
	}
	return sc, nil
}

// Source pairs a staging table with the store and location it loads from.
type Source struct {
	Table    string
	Store    storage.Store
	Location string
}

// Options selects optional verification steps.
type Options struct {
	// Sources are inventoried and compared with staging row counts.
	Sources []Source
}

// Run counts every table, runs the integrity checks and, for each source,
// checks that the staging table holds at least as many rows as the source
// has records. It returns ErrVerificationFailed with the report when any
// check fails.
func Run(ctx context.Context, conn db.DB, opts Options) (*Report, error) {
	counts, err := Counts(ctx, conn)
	if err != nil {
		return nil, err
	}
	checks, err := RunChecks(ctx, conn)
	if err != nil {
		return nil, err
	}
	report := &Report{Counts: counts, Checks: checks}

	for _, src := range opts.Sources {
		sc, err := SourceInventory(ctx, src.Store, src.Location)
		if err != nil {
			return nil, err
		}
		sc.Table = src.Table
		report.Sources = append(report.Sources, sc)

		rows, _ := report.Count(src.Table)
		missing := sc.Records - rows
		if missing < 0 {
			missing = 0
		}
		report.Checks = append(report.Checks, CheckResult{
			Check: Check{
				Name:        "source_" + src.Table,
				Description: fmt.Sprintf("%s holds every record of %s", src.Table, sc.Location),
			},
			Violations: missing,
			Passed:     missing == 0,
		})
	}

	if !report.Passed() {
		return report, fmt.Errorf("%w: %d of %d checks failed",
			ErrVerificationFailed, len(report.Failed()), len(report.Checks))
	}
	return report, nil
}

// Print writes the report as text.
func (r *Report) Print(w io.Writer) {
	fmt.Fprintln(w, "Table row counts:")
	for _, c := range r.Counts {
		fmt.Fprintf(w, "  %-16s %d\n", c.Table, c.Rows)
	}

	if len(r.Sources) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Source records:")
		for _, s := range r.Sources {
			fmt.Fprintf(w, "  %-16s %d records in %d objects (%s)\n", s.Table, s.Records, s.Objects, s.Location)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Checks:")
	for _, c := range r.Checks {
		status := "PASS"
		switch {
		case c.Check.Informational && c.Violations > 0:
			status = fmt.Sprintf("INFO (%d)", c.Violations)
		case !c.Passed:
			status = fmt.Sprintf("FAIL (%d)", c.Violations)
		}
		fmt.Fprintf(w, "  %-10s %s\n", status, c.Check.Description)
	}
}
