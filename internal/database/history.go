package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/pagewalk/internal/model"
)

// FileName is the database file created inside the history directory.
const FileName = "pagewalk.db"

// Run modes.
const (
	// ModeDiscover is a crawl that expands links from the base URL.
	ModeDiscover = "discover"

	// ModeSeedList is a crawl restricted to a supplied list of paths.
	ModeSeedList = "seed-list"
)

// timeLayout is the layout used for all stored timestamps. It sorts
// lexicographically in chronological order.
const timeLayout = "2006-01-02 15:04:05.000000"

var (
	// ErrRunNotFound is returned when no run matches an id.
	ErrRunNotFound = errors.New("run not found")

	// ErrAmbiguousRunID is returned when an id prefix matches several runs.
	ErrAmbiguousRunID = errors.New("run id prefix is ambiguous")
)

// HistoryDB is the SQLite-backed crawl history.
type HistoryDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures HistoryDB behavior.
type Options struct {
	// CreateIfNotExists creates the directory and database file if missing.
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

// Open opens or creates the history database in dbDir.
func Open(dbDir string, opts Options) (*HistoryDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer; crawl workers share this connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	h := &HistoryDB{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := h.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return h, nil
}

// Close closes the database connection.
func (h *HistoryDB) Close() error {
	return h.db.Close()
}

// Path returns the database file path.
func (h *HistoryDB) Path() string {
	return h.dbPath
}

func (h *HistoryDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		base_url TEXT NOT NULL,
		mode TEXT NOT NULL,
		output_path TEXT NOT NULL DEFAULT '',
		started_at TEXT NOT NULL,
		finished_at TEXT,
		page_count INTEGER NOT NULL DEFAULT 0,
		fetched_count INTEGER NOT NULL DEFAULT 0,
		interrupted INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_runs_base_url ON runs(base_url);
	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);

	CREATE TABLE IF NOT EXISTS pages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		url TEXT NOT NULL,
		status INTEGER NOT NULL,
		location TEXT NOT NULL DEFAULT '',
		final_location TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		content_hash TEXT NOT NULL DEFAULT '',
		fetched INTEGER NOT NULL DEFAULT 1,
		recorded_at TEXT NOT NULL,
		UNIQUE(run_id, url)
	);

	CREATE INDEX IF NOT EXISTS idx_pages_run ON pages(run_id);
	CREATE INDEX IF NOT EXISTS idx_pages_url ON pages(url);
	`

	_, err := h.db.ExecContext(context.Background(), schema)
	return err
}

// Run is one crawl in the history.
type Run struct {
	ID           string
	BaseURL      string
	Mode         string
	OutputPath   string
	StartedAt    time.Time
	FinishedAt   time.Time
	PageCount    int
	FetchedCount int
	Interrupted  bool
}

// Finished reports whether FinishRun was called for the run.
func (r Run) Finished() bool {
	return !r.FinishedAt.IsZero()
}

// ShortID returns the first eight characters of the id.
func (r Run) ShortID() string {
	if len(r.ID) > 8 {
		return r.ID[:8]
	}
	return r.ID
}

// StartRun creates a new run and returns it.
func (h *HistoryDB) StartRun(ctx context.Context, baseURL, mode, outputPath string) (*Run, error) {
	run := &Run{
		ID:         uuid.NewString(),
		BaseURL:    baseURL,
		Mode:       mode,
		OutputPath: outputPath,
		StartedAt:  time.Now().UTC(),
	}

	query := `
	INSERT INTO runs (id, base_url, mode, output_path, started_at)
	VALUES (?, ?, ?, ?, ?)
	`
	if _, err := h.db.ExecContext(ctx, query,
		run.ID, run.BaseURL, run.Mode, run.OutputPath, run.StartedAt.Format(timeLayout),
	); err != nil {
		return nil, fmt.Errorf("failed to start run: %w", err)
	}
	return run, nil
}

// PageDetail carries the fetch details stored next to a record.
type PageDetail struct {
	// Error is the fetch error message, if any.
	Error string

	// ContentHash is the digest of a 200 response body.
	ContentHash string
}

// InsertPage stores a page fetched during runID. A second insert for the
// same URL in the same run replaces the first.
func (h *HistoryDB) InsertPage(ctx context.Context, runID string, rec model.PageRecord, detail PageDetail) error {
	query := `
	INSERT INTO pages (run_id, url, status, location, final_location, error, content_hash, fetched, recorded_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?)
	ON CONFLICT(run_id, url) DO UPDATE SET
		status = excluded.status,
		location = excluded.location,
		final_location = excluded.final_location,
		error = excluded.error,
		content_hash = excluded.content_hash,
		fetched = 1,
		recorded_at = excluded.recorded_at
	`

	_, err := h.db.ExecContext(ctx, query,
		runID,
		rec.URL,
		rec.Status,
		rec.Location,
		rec.FinalLocation,
		detail.Error,
		detail.ContentHash,
		time.Now().UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to insert page: %w", err)
	}
	return nil
}

// FinishRun completes runID with its final result set. Records not fetched
// during the run, i.e. carried over from the cache, are stored as well so
// the run holds the complete set.
func (h *HistoryDB) FinishRun(ctx context.Context, runID string, results *model.ResultSet, fetched int, interrupted bool) error {
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	now := time.Now().UTC().Format(timeLayout)

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO pages (run_id, url, status, location, final_location, fetched, recorded_at)
	VALUES (?, ?, ?, ?, ?, 0, ?)
	ON CONFLICT(run_id, url) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, rec := range results.Records() {
		if _, err := stmt.ExecContext(ctx, runID, rec.URL, rec.Status, rec.Location, rec.FinalLocation, now); err != nil {
			return fmt.Errorf("failed to store carried page: %w", err)
		}
	}

	res, err := tx.ExecContext(ctx, `
	UPDATE runs SET finished_at = ?, page_count = ?, fetched_count = ?, interrupted = ?
	WHERE id = ?
	`, now, results.Len(), fetched, interrupted, runID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 { //nolint:errcheck // sqlite always reports rows affected
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	return tx.Commit()
}

const runColumns = `id, base_url, mode, output_path, started_at, finished_at, page_count, fetched_count, interrupted`

// GetRun returns the run whose id equals or uniquely starts with id.
func (h *HistoryDB) GetRun(ctx context.Context, id string) (*Run, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty id", ErrRunNotFound)
	}
	// A literal prefix comparison: % and _ in id are not wildcards.
	rows, err := h.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE id = ? OR substr(id, 1, length(?)) = ? ORDER BY started_at DESC LIMIT 2`,
		id, id, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	runs, err := scanRuns(rows)
	if err != nil {
		return nil, err
	}

	switch {
	case len(runs) == 0:
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	case len(runs) > 1 && runs[0].ID != id && runs[1].ID != id:
		return nil, fmt.Errorf("%w: %s", ErrAmbiguousRunID, id)
	case len(runs) > 1 && runs[1].ID == id:
		return &runs[1], nil
	default:
		return &runs[0], nil
	}
}

// ListRuns returns the runs for baseURL, newest first. An empty baseURL
// lists every run.
func (h *HistoryDB) ListRuns(ctx context.Context, baseURL string) ([]Run, error) {
	return h.LatestRuns(ctx, baseURL, -1)
}

// LatestRuns returns at most n runs for baseURL, newest first. A negative
// n means no limit.
func (h *HistoryDB) LatestRuns(ctx context.Context, baseURL string, n int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE 1=1`
	args := make([]any, 0, 2)

	if baseURL != "" {
		query += " AND base_url = ?"
		args = append(args, baseURL)
	}
	query += " ORDER BY started_at DESC, rowid DESC LIMIT ?"
	args = append(args, n)

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return scanRuns(rows)
}

// ListBaseURLs returns every base URL with at least one run.
func (h *HistoryDB) ListBaseURLs(ctx context.Context) ([]string, error) {
	rows, err := h.db.QueryContext(ctx, `SELECT DISTINCT base_url FROM runs ORDER BY base_url`)
	if err != nil {
		return nil, fmt.Errorf("failed to list base urls: %w", err)
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("failed to scan base url: %w", err)
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}

// RunPages returns the result set stored for runID.
func (h *HistoryDB) RunPages(ctx context.Context, runID string) (*model.ResultSet, error) {
	rows, err := h.db.QueryContext(ctx, `
	SELECT url, status, location, final_location
	FROM pages
	WHERE run_id = ?
	ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get run pages: %w", err)
	}
	defer rows.Close()

	rs := model.NewResultSet()
	for rows.Next() {
		var rec model.PageRecord
		if err := rows.Scan(&rec.URL, &rec.Status, &rec.Location, &rec.FinalLocation); err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		if err := rs.Append(rec); err != nil {
			return nil, err
		}
	}
	return rs, rows.Err()
}

// PageErrors returns url -> error message for failed fetches of runID.
func (h *HistoryDB) PageErrors(ctx context.Context, runID string) (map[string]string, error) {
	rows, err := h.db.QueryContext(ctx, `
	SELECT url, error FROM pages WHERE run_id = ? AND error != ''
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get page errors: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var u, msg string
		if err := rows.Scan(&u, &msg); err != nil {
			return nil, fmt.Errorf("failed to scan page error: %w", err)
		}
		out[u] = msg
	}
	return out, rows.Err()
}

func scanRuns(rows *sql.Rows) ([]Run, error) {
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run         Run
			startedAt   string
			finishedAt  sql.NullString
			interrupted int
		)
		if err := rows.Scan(
			&run.ID,
			&run.BaseURL,
			&run.Mode,
			&run.OutputPath,
			&startedAt,
			&finishedAt,
			&run.PageCount,
			&run.FetchedCount,
			&interrupted,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.StartedAt = parseTimestamp(startedAt)
		if finishedAt.Valid {
			run.FinishedAt = parseTimestamp(finishedAt.String)
		}
		run.Interrupted = interrupted != 0
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// timestampFormats lists the layouts accepted when reading timestamps,
// most specific first. Rows written by older tools or by SQLite defaults
// use the shorter forms.
var timestampFormats = []string{
	timeLayout,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
}

// parseTimestamp parses s with the first matching layout, or returns the
// zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
