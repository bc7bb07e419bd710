//-------------------------------------------------------------------------
//
// pgEdge Song Warehouse Loader
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"

	"github.com/pgEdge/pgedge-songdwh/internal/logging"
)

const runTable = "etl_runs"

// Run statuses.
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// The ledger uses only statements Redshift and PostgreSQL both accept.
const createRunTableSQL = `
CREATE TABLE IF NOT EXISTS etl_runs (
    run_id      VARCHAR(36)   NOT NULL,
    phases      VARCHAR(64)   NOT NULL,
    dialect     VARCHAR(32)   NOT NULL,
    version     VARCHAR(32)   NOT NULL,
    status      VARCHAR(16)   NOT NULL,
    started_at  TIMESTAMP     NOT NULL,
    finished_at TIMESTAMP,
    statements  INTEGER,
    error       VARCHAR(1024)
)`

// maxErrorLength matches the error column width.
const maxErrorLength = 1024

// Run is one pipeline execution recorded in the ledger.
type Run struct {
	ID         string
	Phases     []string
	Dialect    string
	Version    string
	Status     string
	StartedAt  time.Time
	FinishedAt *time.Time
	Statements int
	Error      string
}

// EnsureRunTable creates the ledger table if it doesn't exist.
func EnsureRunTable(ctx context.Context, db DB) error {
	if _, err := db.Exec(ctx, createRunTableSQL); err != nil {
		return fmt.Errorf("failed to create run table: %w", err)
	}
	return nil
}

// StartRun records a run as running.
func StartRun(ctx context.Context, db DB, run Run) error {
	if err := EnsureRunTable(ctx, db); err != nil {
		return err
	}

	_, err := db.Exec(ctx, `
        INSERT INTO etl_runs (run_id, phases, dialect, version, status, started_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `, run.ID, strings.Join(run.Phases, ","), run.Dialect, run.Version, StatusRunning,
		run.StartedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to record run %s: %w", run.ID, err)
	}

	logging.Debug().
		Str("run_id", run.ID).
		Strs("phases", run.Phases).
		Msg("Recorded run start")

	return nil
}

// truncateError cuts msg to maxErrorLength bytes on a rune boundary.
func truncateError(msg string) string {
	if len(msg) <= maxErrorLength {
		return msg
	}
	n := maxErrorLength
	for n > 0 && !utf8.RuneStart(msg[n]) {
		n--
	}
	return msg[:n]
}

// FinishRun records the outcome of a run.
func FinishRun(ctx context.Context, db DB, runID string, statements int, runErr error) error {
	status := StatusSucceeded
	var errMsg *string
	if runErr != nil {
		status = StatusFailed
		msg := truncateError(runErr.Error())
		errMsg = &msg
	}

	_, err := db.Exec(ctx, `
        UPDATE etl_runs
        SET status = $1, finished_at = $2, statements = $3, error = $4
        WHERE run_id = $5
    `, status, time.Now().UTC(), statements, errMsg, runID)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", runID, err)
	}
	return nil
}

// LastRun returns the most recently started run, or nil when none exist.
func LastRun(ctx context.Context, db DB) (*Run, error) {
	var (
		run        Run
		phases     string
		finishedAt *time.Time
		statements *int32
		errMsg     *string
	)
	err := db.QueryRow(ctx, `
        SELECT run_id, phases, dialect, version, status, started_at, finished_at, statements, error
        FROM etl_runs
        ORDER BY started_at DESC
        LIMIT 1
    `).Scan(&run.ID, &phases, &run.Dialect, &run.Version, &run.Status, &run.StartedAt,
		&finishedAt, &statements, &errMsg)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if phases != "" {
		run.Phases = strings.Split(phases, ",")
	}
	run.FinishedAt = finishedAt
	if statements != nil {
		run.Statements = int(*statements)
	}
	if errMsg != nil {
		run.Error = *errMsg
	}
	return &run, nil
}

// DropRunTable drops the ledger table.
func DropRunTable(ctx context.Context, db DB) error {
	_, err := db.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", runTable))
	return err
}

// RunTableExists checks if the ledger table exists.
func RunTableExists(ctx context.Context, db DB) (bool, error) {
	var exists bool
	err := db.QueryRow(ctx, `
        SELECT EXISTS (
            SELECT 1 FROM information_schema.tables
            WHERE table_name = $1
        )
    `, runTable).Scan(&exists)
	return exists, err
}
