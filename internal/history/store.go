// Package history persists batch conversion outcomes in a local SQLite ledger.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // Registers the sqlite3 database driver.

	"github.com/book-expert/md-to-pdf-service/internal/mdrender"
)

const defaultDirMode = 0o750

// Store manages the conversion history SQLite database.
type Store struct {
	db *sql.DB
}

// Run is one recorded batch invocation together with its per-job outcomes.
type Run struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Jobs       []JobRecord
	ID         int64
	Succeeded  int
	Failed     int
}

// JobRecord is the persisted outcome of a single conversion job.
type JobRecord struct {
	Source      string
	Output      string
	Status      string
	Detail      string
	OutputBytes int64
}

// New opens or creates the history database at path and ensures the schema exists.
func New(path string) (*Store, error) {
	mkdirErr := os.MkdirAll(filepath.Dir(path), defaultDirMode)
	if mkdirErr != nil {
		return nil, fmt.Errorf("could not create history directory: %w", mkdirErr)
	}

	db, openErr := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if openErr != nil {
		return nil, fmt.Errorf("could not open history database: %w", openErr)
	}

	store := &Store{db: db}

	schemaErr := store.createSchema()
	if schemaErr != nil {
		_ = db.Close()

		return nil, fmt.Errorf("could not create history schema: %w", schemaErr)
	}

	return store, nil
}

// Close releases the database connection.
func (store *Store) Close() error {
	closeErr := store.db.Close()
	if closeErr != nil {
		return fmt.Errorf("could not close history database: %w", closeErr)
	}

	return nil
}

func (store *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			started_at TEXT NOT NULL,
			finished_at TEXT NOT NULL,
			succeeded INTEGER NOT NULL,
			failed INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS run_jobs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			source TEXT NOT NULL,
			output TEXT NOT NULL,
			status TEXT NOT NULL,
			detail TEXT NOT NULL DEFAULT '',
			output_bytes INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_run_jobs_run_id ON run_jobs(run_id)`,
	}

	for _, stmt := range statements {
		_, execErr := store.db.Exec(stmt)
		if execErr != nil {
			return fmt.Errorf("executing schema statement: %w", execErr)
		}
	}

	return nil
}

// RecordRun stores one batch invocation and its per-job results, returning the new
// run's identifier.
func (store *Store) RecordRun(
	ctx context.Context,
	startedAt, finishedAt time.Time,
	results []mdrender.Result,
) (int64, error) {
	transaction, beginErr := store.db.BeginTx(ctx, nil)
	if beginErr != nil {
		return 0, fmt.Errorf("beginning transaction: %w", beginErr)
	}

	defer func() { _ = transaction.Rollback() }()

	summary := mdrender.Summarize(results)

	insertResult, insertErr := transaction.ExecContext(
		ctx,
		`INSERT INTO runs (started_at, finished_at, succeeded, failed)
		 VALUES (?, ?, ?, ?)`,
		startedAt.UTC().Format(time.RFC3339Nano),
		finishedAt.UTC().Format(time.RFC3339Nano),
		summary.Succeeded,
		summary.Failed,
	)
	if insertErr != nil {
		return 0, fmt.Errorf("inserting run: %w", insertErr)
	}

	runID, idErr := insertResult.LastInsertId()
	if idErr != nil {
		return 0, fmt.Errorf("reading run id: %w", idErr)
	}

	for _, result := range results {
		_, jobErr := transaction.ExecContext(
			ctx,
			`INSERT INTO run_jobs (run_id, source, output, status, detail, output_bytes)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			runID,
			result.Job.Source,
			result.Job.Output,
			string(result.Status),
			result.Reason,
			result.OutputBytes,
		)
		if jobErr != nil {
			return 0, fmt.Errorf("inserting run job: %w", jobErr)
		}
	}

	commitErr := transaction.Commit()
	if commitErr != nil {
		return 0, fmt.Errorf("committing run: %w", commitErr)
	}

	return runID, nil
}

// RecentRuns returns up to limit runs, newest first, each with its job records.
func (store *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, queryErr := store.db.QueryContext(
		ctx,
		`SELECT id, started_at, finished_at, succeeded, failed
		 FROM runs ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if queryErr != nil {
		return nil, fmt.Errorf("querying runs: %w", queryErr)
	}

	defer func() { _ = rows.Close() }()

	var runs []Run

	for rows.Next() {
		run, scanErr := scanRun(rows)
		if scanErr != nil {
			return nil, scanErr
		}

		runs = append(runs, run)
	}

	rowsErr := rows.Err()
	if rowsErr != nil {
		return nil, fmt.Errorf("iterating runs: %w", rowsErr)
	}

	for index := range runs {
		jobs, jobsErr := store.runJobs(ctx, runs[index].ID)
		if jobsErr != nil {
			return nil, jobsErr
		}

		runs[index].Jobs = jobs
	}

	return runs, nil
}

func scanRun(rows *sql.Rows) (Run, error) {
	var (
		run                   Run
		startedAt, finishedAt string
	)

	scanErr := rows.Scan(&run.ID, &startedAt, &finishedAt, &run.Succeeded, &run.Failed)
	if scanErr != nil {
		return Run{}, fmt.Errorf("scanning run: %w", scanErr)
	}

	run.StartedAt, _ = time.Parse(time.RFC3339Nano, startedAt)
	run.FinishedAt, _ = time.Parse(time.RFC3339Nano, finishedAt)

	return run, nil
}

func (store *Store) runJobs(ctx context.Context, runID int64) ([]JobRecord, error) {
	rows, queryErr := store.db.QueryContext(
		ctx,
		`SELECT source, output, status, detail, output_bytes
		 FROM run_jobs WHERE run_id = ? ORDER BY id`,
		runID,
	)
	if queryErr != nil {
		return nil, fmt.Errorf("querying run jobs: %w", queryErr)
	}

	defer func() { _ = rows.Close() }()

	var jobs []JobRecord

	for rows.Next() {
		var job JobRecord

		scanErr := rows.Scan(
			&job.Source,
			&job.Output,
			&job.Status,
			&job.Detail,
			&job.OutputBytes,
		)
		if scanErr != nil {
			return nil, fmt.Errorf("scanning run job: %w", scanErr)
		}

		jobs = append(jobs, job)
	}

	rowsErr := rows.Err()
	if rowsErr != nil {
		return nil, fmt.Errorf("iterating run jobs: %w", rowsErr)
	}

	return jobs, nil
}
