// Package pipeline runs the ordered statement lists against the warehouse.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pgEdge/pgedge-songdwh/internal/db"
	"github.com/pgEdge/pgedge-songdwh/internal/loader"
	"github.com/pgEdge/pgedge-songdwh/internal/logging"
	"github.com/pgEdge/pgedge-songdwh/internal/warehouse"
)

// Copy modes.
const (
	CopyModeServer = "server"
	CopyModeClient = "client"
)

// ExecutorConfig holds configuration for the pipeline executor.
type ExecutorConfig struct {
	Dialect warehouse.Dialect
	Source  warehouse.CopySource

	// CopyMode is CopyModeServer or CopyModeClient. Dialects without
	// server-side copy always load on the client.
	CopyMode string

	// Loader fills staging tables in client copy mode.
	Loader *loader.Loader

	// RecordRuns writes each run to the etl_runs ledger.
	RecordRuns bool

	// Version is recorded in the ledger.
	Version string
}

// StatementError reports the statement that stopped a run.
type StatementError struct {
	Phase warehouse.Phase
	Index int
	Name  string
	Err   error
}

func (e *StatementError) Error() string {
	return fmt.Sprintf("%s statement %d (%s) failed: %v", e.Phase, e.Index, e.Name, e.Err)
}

func (e *StatementError) Unwrap() error {
	return e.Err
}

// StatementMetric records one executed statement.
type StatementMetric struct {
	Phase    warehouse.Phase
	Index    int
	Name     string
	Table    string
	Rows     int64
	Objects  int
	Duration time.Duration
}

// Summary describes a finished run.
type Summary struct {
	RunID      string
	Phases     []warehouse.Phase
	Statements int
	Rows       int64
	Duration   time.Duration
	Metrics    []StatementMetric
	Err        error
}

// Executor runs plan phases one statement at a time.
type Executor struct {
	db       db.DB
	dialect  warehouse.Dialect
	source   warehouse.CopySource
	plan     *warehouse.Plan
	copyMode string
	copyJobs []warehouse.CopyJob
	loader   *loader.Loader

	recordRuns bool
	version    string

	runID     string
	phases    []warehouse.Phase
	startTime time.Time
	duration  time.Duration
	metrics   []StatementMetric
	runErr    error
}

// NewExecutor creates a new pipeline executor.
func NewExecutor(conn db.DB, cfg ExecutorConfig) (*Executor, error) {
	if cfg.Dialect == nil {
		return nil, errors.New("dialect is required")
	}

	copyMode := cfg.CopyMode
	if copyMode == "" {
		copyMode = CopyModeServer
	}
	if !cfg.Dialect.SupportsServerCopy() {
		copyMode = CopyModeClient
	}
	if copyMode != CopyModeServer && copyMode != CopyModeClient {
		return nil, fmt.Errorf("unknown copy mode: %s", copyMode)
	}

	// COPY statements are rendered when the copy phase runs, so commands
	// that never copy need no source configuration.
	plan, err := warehouse.BuildPlan(clientCopyDialect{cfg.Dialect}, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to build plan: %w", err)
	}
	plan.Dialect = cfg.Dialect.Name()

	return &Executor{
		db:         conn,
		dialect:    cfg.Dialect,
		source:     cfg.Source,
		plan:       plan,
		copyMode:   copyMode,
		copyJobs:   warehouse.CopyJobs(cfg.Source),
		loader:     cfg.Loader,
		recordRuns: cfg.RecordRuns,
		version:    cfg.Version,
		runID:      uuid.NewString(),
	}, nil
}

// clientCopyDialect keeps BuildPlan from rendering COPY statements.
type clientCopyDialect struct {
	warehouse.Dialect
}

func (clientCopyDialect) SupportsServerCopy() bool { return false }

// RunID returns the identifier of this executor's run.
func (e *Executor) RunID() string {
	return e.runID
}

// CopyMode returns the effective copy mode.
func (e *Executor) CopyMode() string {
	return e.copyMode
}

// Run executes the requested phases in canonical order (drop, create,
// copy, insert), regardless of the order given. Each statement runs to
// completion before the next begins. The first failure stops the run.
func (e *Executor) Run(ctx context.Context, phases ...warehouse.Phase) error {
	e.phases = orderPhases(phases)
	e.startTime = time.Now()
	e.metrics = nil

	log := logging.With(e.runID)
	log.Info().
		Str("dialect", e.plan.Dialect).
		Str("copy_mode", e.copyMode).
		Strs("phases", phaseNames(e.phases)).
		Msg("Starting pipeline")

	recording := e.startRun(ctx)

	err := e.runPhases(ctx)
	e.duration = time.Since(e.startTime)
	e.runErr = err

	if recording {
		// Record the outcome even when the run was cancelled.
		if ferr := db.FinishRun(context.WithoutCancel(ctx), e.db, e.runID, len(e.metrics), err); ferr != nil {
			log.Warn().Err(ferr).Msg("Failed to record run outcome")
		}
	}

	if err != nil {
		log.Error().Err(err).Msg("Pipeline failed")
		return err
	}
	log.Info().
		Int("statements", len(e.metrics)).
		Dur("duration", e.duration).
		Msg("Pipeline complete")
	return nil
}

func (e *Executor) startRun(ctx context.Context) bool {
	if !e.recordRuns {
		return false
	}
	err := db.StartRun(ctx, e.db, db.Run{
		ID:        e.runID,
		Phases:    phaseNames(e.phases),
		Dialect:   e.plan.Dialect,
		Version:   e.version,
		StartedAt: e.startTime,
	})
	if err != nil {
		logging.Warn().Err(err).Msg("Run ledger unavailable, continuing without it")
		return false
	}
	return true
}

func (e *Executor) runPhases(ctx context.Context) error {
	for _, phase := range e.phases {
		var err error
		switch {
		case phase == warehouse.PhaseCopy && e.copyMode == CopyModeClient:
			err = e.runClientCopy(ctx)
		case phase == warehouse.PhaseCopy:
			var stmts []warehouse.Statement
			stmts, err = warehouse.CopyStatements(e.dialect, e.source)
			if err != nil {
				return &StatementError{Phase: phase, Index: 0, Name: "copy", Err: err}
			}
			err = e.runStatements(ctx, phase, stmts)
		default:
			err = e.runStatements(ctx, phase, e.plan.Statements(phase))
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (e *Executor) runStatements(ctx context.Context, phase warehouse.Phase, stmts []warehouse.Statement) error {
	for i, stmt := range stmts {
		if err := ctx.Err(); err != nil {
			return &StatementError{Phase: phase, Index: i, Name: stmt.Name, Err: err}
		}

		logging.Debug().
			Str("phase", string(phase)).
			Int("index", i).
			Str("sql", warehouse.Redact(stmt.SQL)).
			Msg("Executing statement")

		start := time.Now()
		tag, err := e.db.Exec(ctx, stmt.SQL)
		if err != nil {
			return &StatementError{Phase: phase, Index: i, Name: stmt.Name, Err: err}
		}
		e.record(StatementMetric{
			Phase:    phase,
			Index:    i,
			Name:     stmt.Name,
			Table:    stmt.Table,
			Rows:     tag.RowsAffected(),
			Duration: time.Since(start),
		})
	}
	return nil
}

func (e *Executor) runClientCopy(ctx context.Context) error {
	phase := warehouse.PhaseCopy
	for i, job := range e.copyJobs {
		name := "copy_" + job.Table.Name
		if err := ctx.Err(); err != nil {
			return &StatementError{Phase: phase, Index: i, Name: name, Err: err}
		}
		if e.loader == nil {
			return &StatementError{Phase: phase, Index: i, Name: name,
				Err: errors.New("client copy mode requires a loader")}
		}

		start := time.Now()
		res, err := e.loader.LoadJob(ctx, job)
		if err != nil {
			return &StatementError{Phase: phase, Index: i, Name: name, Err: err}
		}
		e.record(StatementMetric{
			Phase:    phase,
			Index:    i,
			Name:     name,
			Table:    job.Table.Name,
			Rows:     res.Rows,
			Objects:  res.Objects,
			Duration: time.Since(start),
		})
	}
	return nil
}

func (e *Executor) record(m StatementMetric) {
	e.metrics = append(e.metrics, m)
	logging.Info().
		Str("phase", string(m.Phase)).
		Int("index", m.Index).
		Str("table", m.Table).
		Int64("rows", m.Rows).
		Dur("duration", m.Duration).
		Msg("Statement complete")
}

// Summary returns the metrics of the last run.
func (e *Executor) Summary() Summary {
	s := Summary{
		RunID:      e.runID,
		Phases:     e.phases,
		Statements: len(e.metrics),
		Duration:   e.duration,
		Metrics:    append([]StatementMetric(nil), e.metrics...),
		Err:        e.runErr,
	}
	for _, m := range e.metrics {
		s.Rows += m.Rows
	}
	return s
}

// PrintSummary prints a final summary of the run.
func (e *Executor) PrintSummary() {
	s := e.Summary()

	status := "succeeded"
	if s.Err != nil {
		status = "failed"
	}
	logging.Info().
		Str("run_id", s.RunID).
		Str("status", status).
		Dur("duration", s.Duration).
		Int("statements", s.Statements).
		Int64("rows", s.Rows).
		Msg("Final summary")

	// Print per-statement statistics
	logging.Info().Msg("Per-statement statistics:")
	for _, m := range s.Metrics {
		ev := logging.Info().
			Str("phase", string(m.Phase)).
			Str("statement", m.Name).
			Int64("rows", m.Rows).
			Float64("duration_ms", float64(m.Duration.Microseconds())/1000)
		if m.Objects > 0 {
			ev = ev.Int("objects", m.Objects)
		}
		ev.Msg("")
	}
}

func orderPhases(phases []warehouse.Phase) []warehouse.Phase {
	want := make(map[warehouse.Phase]bool, len(phases))
	for _, p := range phases {
		want[p] = true
	}
	var ordered []warehouse.Phase
	for _, p := range warehouse.Phases() {
		if want[p] {
			ordered = append(ordered, p)
		}
	}
	return ordered
}

func phaseNames(phases []warehouse.Phase) []string {
	names := make([]string, len(phases))
	for i, p := range phases {
		names[i] = string(p)
	}
	return names
}
