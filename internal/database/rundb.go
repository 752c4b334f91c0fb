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

	"github.com/mxten777/overflowscan/internal/model"
)

// DBFileName is the history database file inside the data directory.
const DBFileName = "overflowscan.db"

// startedLayout is fixed-width so that started_at sorts lexically.
const startedLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrRunNotFound is returned when a run ID does not exist.
var ErrRunNotFound = errors.New("run not found")

// RunDB provides SQLite-based storage for run reports.
type RunDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures RunDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
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
// With CreateIfNotExists false a missing database is an error.
func Open(dbDir string, opts Options) (*RunDB, error) {
	dbPath := filepath.Join(dbDir, DBFileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (run a scan first)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite has a single writer.
	db.SetMaxOpenConns(1)
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

// Path returns the database file path.
func (rdb *RunDB) Path() string {
	return rdb.dbPath
}

// Close closes the database connection.
func (rdb *RunDB) Close() error {
	return rdb.db.Close()
}

func (rdb *RunDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL UNIQUE,
		target TEXT NOT NULL,
		url TEXT NOT NULL,
		started_at TEXT NOT NULL,
		total_findings INTEGER NOT NULL DEFAULT 0,
		aborted INTEGER NOT NULL DEFAULT 0,
		report_json TEXT NOT NULL,
		viewport_findings TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_runs_target ON runs(target);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	`

	_, err := rdb.db.ExecContext(context.Background(), schema)
	return err
}

// TargetKey is the history key of a run: the target name, or the URL
// for the unnamed default target.
func TargetKey(run *model.RunReport) string {
	if run.Target != "" {
		return run.Target
	}
	return run.URL
}

// SaveRun stores a run report and returns its database ID.
func (rdb *RunDB) SaveRun(ctx context.Context, run *model.RunReport) (int64, error) {
	reportJSON, err := json.Marshal(run)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize report: %w", err)
	}

	perViewport := make(map[string]int, len(run.Viewports))
	for _, vr := range run.Viewports {
		perViewport[vr.Viewport.Label()] = len(vr.Findings)
	}
	perViewportJSON, err := json.Marshal(perViewport)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize viewport counts: %w", err)
	}

	query := `
	INSERT INTO runs (run_id, target, url, started_at, total_findings, aborted, report_json, viewport_findings)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := rdb.db.ExecContext(ctx, query,
		run.ID,
		TargetKey(run),
		run.URL,
		run.StartedAt.UTC().Format(startedLayout),
		run.TotalFindings(),
		run.Aborted,
		string(reportJSON),
		string(perViewportJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save run: %w", err)
	}

	return result.LastInsertId()
}

// GetLatestRun retrieves the most recent run for a target key.
// It returns nil, nil when the target has no history.
func (rdb *RunDB) GetLatestRun(ctx context.Context, target string) (*model.RunReport, error) {
	query := `
	SELECT report_json FROM runs
	WHERE target = ?
	ORDER BY started_at DESC, id DESC
	LIMIT 1
	`

	var reportJSON string
	err := rdb.db.QueryRowContext(ctx, query, target).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	return decodeRun(reportJSON)
}

// GetRunHistory retrieves every run for a target key, newest first.
// Rows whose JSON no longer decodes are skipped.
func (rdb *RunDB) GetRunHistory(ctx context.Context, target string) ([]*model.RunReport, error) {
	query := `
	SELECT report_json FROM runs
	WHERE target = ?
	ORDER BY started_at DESC, id DESC
	`

	rows, err := rdb.db.QueryContext(ctx, query, target)
	if err != nil {
		return nil, fmt.Errorf("failed to get run history: %w", err)
	}
	defer rows.Close()

	var runs []*model.RunReport
	for rows.Next() {
		var reportJSON string
		if err := rows.Scan(&reportJSON); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run, err := decodeRun(reportJSON)
		if err != nil {
			continue
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// RunMetadata describes a stored run without loading the full report.
type RunMetadata struct {
	// ID is the database ID, accepted by GetRunByID.
	ID int64

	// RunID is the report's UUID.
	RunID string

	// Target is the history key.
	Target string

	// URL is the scanned page.
	URL string

	// StartedAt is when the run started.
	StartedAt time.Time

	// TotalFindings is the number of findings across all viewports.
	TotalFindings int

	// Aborted is true when the run stopped early.
	Aborted bool

	// ViewportFindings maps viewport label to its finding count.
	ViewportFindings map[string]int
}

// GetRunHistoryWithMetadata retrieves run metadata for a target key,
// newest first.
func (rdb *RunDB) GetRunHistoryWithMetadata(ctx context.Context, target string) ([]RunMetadata, error) {
	query := `
	SELECT id, run_id, target, url, started_at, total_findings, aborted, viewport_findings
	FROM runs
	WHERE target = ?
	ORDER BY started_at DESC, id DESC
	`

	rows, err := rdb.db.QueryContext(ctx, query, target)
	if err != nil {
		return nil, fmt.Errorf("failed to get run history: %w", err)
	}
	defer rows.Close()

	var results []RunMetadata
	for rows.Next() {
		var meta RunMetadata
		var startedAt string
		var perViewport sql.NullString

		if err := rows.Scan(&meta.ID, &meta.RunID, &meta.Target, &meta.URL,
			&startedAt, &meta.TotalFindings, &meta.Aborted, &perViewport); err != nil {
			return nil, fmt.Errorf("failed to scan metadata: %w", err)
		}

		meta.StartedAt = parseTimestamp(startedAt)

		meta.ViewportFindings = make(map[string]int)
		if perViewport.Valid && perViewport.String != "" {
			if err := json.Unmarshal([]byte(perViewport.String), &meta.ViewportFindings); err != nil {
				meta.ViewportFindings = make(map[string]int)
			}
		}

		results = append(results, meta)
	}

	return results, rows.Err()
}

// GetRunByID retrieves a run by its database ID.
// It returns ErrRunNotFound when no such run exists.
func (rdb *RunDB) GetRunByID(ctx context.Context, id int64) (*model.RunReport, error) {
	var reportJSON string
	err := rdb.db.QueryRowContext(ctx, `SELECT report_json FROM runs WHERE id = ?`, id).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	return decodeRun(reportJSON)
}

// ListTargets returns every target key with at least one stored run.
func (rdb *RunDB) ListTargets(ctx context.Context) ([]string, error) {
	rows, err := rdb.db.QueryContext(ctx, `SELECT DISTINCT target FROM runs ORDER BY target`)
	if err != nil {
		return nil, fmt.Errorf("failed to list targets: %w", err)
	}
	defer rows.Close()

	var targets []string
	for rows.Next() {
		var target string
		if err := rows.Scan(&target); err != nil {
			return nil, fmt.Errorf("failed to scan target: %w", err)
		}
		targets = append(targets, target)
	}

	return targets, rows.Err()
}

func decodeRun(reportJSON string) (*model.RunReport, error) {
	var run model.RunReport
	if err := json.Unmarshal([]byte(reportJSON), &run); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &run, nil
}

// timestampFormats lists the layouts SQLite may hand back, most specific first.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// parseTimestamp returns the zero time when no layout matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
