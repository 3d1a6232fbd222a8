package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/neardup/internal/model"
)

// DBFileName is the name of the history database file.
const DBFileName = "neardup.db"

// RunDB provides SQLite-based storage for run reports and decisions.
//
// Design decision: Reports are stored whole as JSON next to a few indexed
// columns. The columns serve listing and lookup; the JSON keeps every
// detail of the report without a schema migration per new field.
type RunDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures RunDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a RunDB in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*RunDB, error) {
	dbPath := filepath.Join(dbDir, DBFileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file, mode=rwc allows it
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	rdb := &RunDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := rdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return rdb, nil
}

// Close closes the database connection.
func (rdb *RunDB) Close() error {
	return rdb.db.Close()
}

// Path returns the database file path.
func (rdb *RunDB) Path() string {
	return rdb.dbPath
}

// createTables creates the database schema if it doesn't exist.
func (rdb *RunDB) createTables() error {
	schema := `
	-- One row per run
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		inputs TEXT,
		output_dir TEXT,
		params_json TEXT NOT NULL,
		documents_read INTEGER DEFAULT 0,
		documents_written INTEGER DEFAULT 0,
		documents_removed INTEGER DEFAULT 0,
		groups_found INTEGER DEFAULT 0,
		failures INTEGER DEFAULT 0,
		timed_out INTEGER DEFAULT 0,
		error TEXT,
		report_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	-- Decisions record what happened to a document in a run
	CREATE TABLE IF NOT EXISTS decisions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES runs(id),
		doc_id TEXT NOT NULL,
		retained INTEGER NOT NULL,
		superseded_by TEXT,
		similarity REAL,
		step TEXT NOT NULL,
		reason TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_decisions_run ON decisions(run_id);
	CREATE INDEX IF NOT EXISTS idx_decisions_doc ON decisions(doc_id);
	`

	_, err := rdb.db.ExecContext(context.Background(), schema)
	return err
}

// RunRecord is the listing view of a stored run.
type RunRecord struct {
	ID               int64
	StartedAt        time.Time
	FinishedAt       time.Time
	Inputs           []string
	OutputDir        string
	DocumentsRead    int
	DocumentsWritten int
	DocumentsRemoved int
	Groups           int
	Failures         int
	TimedOut         bool
	Error            string
}

// DocumentRecord is one decision about a document together with the run
// that made it.
type DocumentRecord struct {
	RunID     int64
	StartedAt time.Time
	model.Decision
}

// SaveRun stores a report and its decisions in one transaction and returns
// the new run ID.
func (rdb *RunDB) SaveRun(ctx context.Context, report *model.RunReport) (int64, error) {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize report: %w", err)
	}
	paramsJSON, err := json.Marshal(report.Params)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize parameters: %w", err)
	}
	inputsJSON, err := json.Marshal(report.Inputs)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize inputs: %w", err)
	}

	tx, err := rdb.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
	INSERT INTO runs (started_at, finished_at, inputs, output_dir, params_json,
		documents_read, documents_written, documents_removed, groups_found,
		failures, timed_out, error, report_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		formatTimestamp(report.StartedAt),
		formatTimestamp(report.FinishedAt),
		string(inputsJSON),
		report.OutputDir,
		string(paramsJSON),
		report.DocumentsRead,
		report.DocumentsWritten,
		len(report.RemovedIDs()),
		len(report.Groups),
		len(report.Failures),
		report.TimedOut,
		report.Error,
		string(reportJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save run: %w", err)
	}
	runID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get run id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO decisions (run_id, doc_id, retained, superseded_by, similarity, step, reason)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare decision insert: %w", err)
	}
	defer stmt.Close()

	for _, d := range report.Decisions {
		if _, err := stmt.ExecContext(ctx, runID, d.ID, d.Retained, d.SupersededBy, d.Similarity, d.Step, d.Reason); err != nil {
			return 0, fmt.Errorf("failed to save decision for %s: %w", d.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit run: %w", err)
	}
	return runID, nil
}

// GetRun returns the full report of a run, or nil if no such run exists.
func (rdb *RunDB) GetRun(ctx context.Context, id int64) (*model.RunReport, error) {
	var reportJSON string
	err := rdb.db.QueryRowContext(ctx, `SELECT report_json FROM runs WHERE id = ?`, id).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	var report model.RunReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &report, nil
}

// ListRuns returns stored runs, newest first. A limit <= 0 returns all runs.
func (rdb *RunDB) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	query := `
	SELECT id, started_at, finished_at, inputs, output_dir, documents_read,
		documents_written, documents_removed, groups_found, failures, timed_out, error
	FROM runs
	ORDER BY id DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := rdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var (
			rec                   RunRecord
			started, finished     string
			inputsJSON, outputDir sql.NullString
			runErr                sql.NullString
		)
		if err := rows.Scan(
			&rec.ID,
			&started,
			&finished,
			&inputsJSON,
			&outputDir,
			&rec.DocumentsRead,
			&rec.DocumentsWritten,
			&rec.DocumentsRemoved,
			&rec.Groups,
			&rec.Failures,
			&rec.TimedOut,
			&runErr,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		rec.StartedAt = parseTimestamp(started)
		rec.FinishedAt = parseTimestamp(finished)
		rec.OutputDir = outputDir.String
		rec.Error = runErr.String
		if inputsJSON.Valid && inputsJSON.String != "" {
			if err := json.Unmarshal([]byte(inputsJSON.String), &rec.Inputs); err != nil {
				return nil, fmt.Errorf("failed to parse inputs of run %d: %w", rec.ID, err)
			}
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// GetDecisions returns the decisions of a run in document ID order.
func (rdb *RunDB) GetDecisions(ctx context.Context, runID int64) ([]model.Decision, error) {
	rows, err := rdb.db.QueryContext(ctx, `
	SELECT doc_id, retained, superseded_by, similarity, step, reason
	FROM decisions
	WHERE run_id = ?
	ORDER BY doc_id, id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get decisions: %w", err)
	}
	defer rows.Close()

	var decisions []model.Decision
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, err
		}
		decisions = append(decisions, d)
	}
	return decisions, rows.Err()
}

// LookupDocument returns every recorded decision about a document across
// all runs, newest run first.
func (rdb *RunDB) LookupDocument(ctx context.Context, docID string) ([]DocumentRecord, error) {
	rows, err := rdb.db.QueryContext(ctx, `
	SELECT d.run_id, r.started_at, d.doc_id, d.retained, d.superseded_by, d.similarity, d.step, d.reason
	FROM decisions d
	JOIN runs r ON r.id = d.run_id
	WHERE d.doc_id = ?
	ORDER BY d.run_id DESC, d.id
	`, docID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up document: %w", err)
	}
	defer rows.Close()

	var records []DocumentRecord
	for rows.Next() {
		var (
			rec     DocumentRecord
			started string
		)
		d, err := scanDecision(rows, &rec.RunID, &started)
		if err != nil {
			return nil, err
		}
		rec.StartedAt = parseTimestamp(started)
		rec.Decision = d
		records = append(records, rec)
	}
	return records, rows.Err()
}

// scanDecision scans the decision columns, preceded by any extra
// destinations.
func scanDecision(rows *sql.Rows, extra ...any) (model.Decision, error) {
	var (
		d            model.Decision
		supersededBy sql.NullString
		similarity   sql.NullFloat64
		reason       sql.NullString
	)
	dest := make([]any, 0, len(extra)+6)
	dest = append(dest, extra...)
	dest = append(dest, &d.ID, &d.Retained, &supersededBy, &similarity, &d.Step, &reason)
	if err := rows.Scan(dest...); err != nil {
		return model.Decision{}, fmt.Errorf("failed to scan decision: %w", err)
	}
	d.SupersededBy = supersededBy.String
	d.Similarity = similarity.Float64
	d.Reason = reason.String
	return d, nil
}

// formatTimestamp stores times in UTC so that text ordering matches time
// ordering.
func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// timestampFormats contains the timestamp formats that may be stored.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	time.RFC3339Nano,          // written by formatTimestamp
	time.RFC3339,              // Full RFC3339 format
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
