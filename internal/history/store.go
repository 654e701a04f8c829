// Package history persists run results to a local SQLite database so past
// fuzzing sessions can be listed and inspected after the fact.
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/harrison/fuzzrun/internal/models"
)

//go:embed schema.sql
var schemaSQL string

// Run is one recorded fuzzing session.
type Run struct {
	ID                string
	StartedAt         time.Time
	Duration          time.Duration
	TotalTargets      int
	Completed         int
	Failed            int
	Interrupted       bool
	ContinueOnFailure bool
}

// TargetRecord is one target outcome within a recorded run.
type TargetRecord struct {
	RunID    string
	Target   models.FuzzTarget
	Success  bool
	Duration time.Duration
	Errors   string
}

// NewRunID returns a fresh unique run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// Store manages the SQLite run-history database.
type Store struct {
	db     *sql.DB
	dbPath string
}

// NewStore opens (creating if needed) the history database at dbPath and
// applies the schema. The special path ":memory:" opens a transient
// in-memory database.
func NewStore(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// busy_timeout first so the remaining pragmas wait on locks instead of
	// failing when another process holds the database.
	pragmas := []string{
		"PRAGMA busy_timeout=5000",
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if err := execWithRetry(db, pragma, 5, 10*time.Millisecond); err != nil {
			db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &Store{db: db, dbPath: dbPath}, nil
}

// execWithRetry executes a statement with exponential backoff on
// "database is locked" errors from concurrent initialization.
func execWithRetry(db *sql.DB, stmt string, maxRetries int, baseDelay time.Duration) error {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		_, err := db.Exec(stmt)
		if err == nil {
			return nil
		}
		if !strings.Contains(err.Error(), "database is locked") {
			return err
		}
		lastErr = err
		time.Sleep(baseDelay * time.Duration(1<<attempt))
	}
	return lastErr
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// RecordRun stores a run and all of its per-target outcomes in a single
// transaction.
func (s *Store) RecordRun(ctx context.Context, run *Run, outcomes []models.FuzzOutcome) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, duration_seconds, total_targets, completed, failed, interrupted, continue_on_failure)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.StartedAt.UTC(),
		run.Duration.Seconds(),
		run.TotalTargets,
		run.Completed,
		run.Failed,
		run.Interrupted,
		run.ContinueOnFailure,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO run_outcomes (run_id, directory, function, file_path, success, duration_seconds, errors)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare outcome insert: %w", err)
	}
	defer stmt.Close()

	for _, outcome := range outcomes {
		_, err := stmt.ExecContext(ctx,
			run.ID,
			outcome.Target.Directory,
			outcome.Target.Function,
			outcome.Target.FilePath,
			outcome.Success,
			outcome.Duration.Seconds(),
			outcome.Errors,
		)
		if err != nil {
			return fmt.Errorf("insert outcome for %s: %w", outcome.Target.Function, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first. A limit below 1
// returns all runs.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	query := `SELECT id, started_at, duration_seconds, total_targets, completed, failed, interrupted, continue_on_failure
		FROM runs
		ORDER BY started_at DESC, id DESC`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run := &Run{}
		var durationSecs float64
		if err := rows.Scan(
			&run.ID,
			&run.StartedAt,
			&durationSecs,
			&run.TotalTargets,
			&run.Completed,
			&run.Failed,
			&run.Interrupted,
			&run.ContinueOnFailure,
		); err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		run.Duration = time.Duration(durationSecs * float64(time.Second))
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run rows: %w", err)
	}
	return runs, nil
}

// GetRun returns a single run by ID, or sql.ErrNoRows if it does not exist.
func (s *Store) GetRun(ctx context.Context, runID string) (*Run, error) {
	run := &Run{}
	var durationSecs float64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, started_at, duration_seconds, total_targets, completed, failed, interrupted, continue_on_failure
		FROM runs WHERE id = ?`, runID).Scan(
		&run.ID,
		&run.StartedAt,
		&durationSecs,
		&run.TotalTargets,
		&run.Completed,
		&run.Failed,
		&run.Interrupted,
		&run.ContinueOnFailure,
	)
	if err != nil {
		return nil, err
	}
	run.Duration = time.Duration(durationSecs * float64(time.Second))
	return run, nil
}

// GetOutcomes returns all per-target outcomes for a run, failures first.
func (s *Store) GetOutcomes(ctx context.Context, runID string) ([]*TargetRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, directory, function, file_path, success, duration_seconds, errors
		FROM run_outcomes
		WHERE run_id = ?
		ORDER BY success ASC, function ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	var records []*TargetRecord
	for rows.Next() {
		rec := &TargetRecord{}
		var durationSecs float64
		var errorsVal sql.NullString
		if err := rows.Scan(
			&rec.RunID,
			&rec.Target.Directory,
			&rec.Target.Function,
			&rec.Target.FilePath,
			&rec.Success,
			&durationSecs,
			&errorsVal,
		); err != nil {
			return nil, fmt.Errorf("scan outcome row: %w", err)
		}
		rec.Duration = time.Duration(durationSecs * float64(time.Second))
		if errorsVal.Valid {
			rec.Errors = errorsVal.String
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcome rows: %w", err)
	}
	return records, nil
}

// Prune deletes all but the keep most recent runs and their outcomes.
// A keep value below 1 disables pruning.
func (s *Store) Prune(ctx context.Context, keep int) error {
	if keep < 1 {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM runs WHERE id NOT IN (
			SELECT id FROM runs ORDER BY started_at DESC, id DESC LIMIT ?
		)`, keep)
	if err != nil {
		return fmt.Errorf("prune runs: %w", err)
	}
	return nil
}
