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

	"github.com/nao1215/commentcrawl/internal/model"
)

// DefaultFileName is the database file created by Open inside a directory.
const DefaultFileName = "commentcrawl.db"

// ErrRunNotFound is returned when a crawl run id is not in the database.
var ErrRunNotFound = errors.New("crawl run not found")

// CrawlDB provides SQLite-based storage for crawled comments and crawl runs.
//
// Design decision: Every crawl is a run with its own id, and comment ids are
// only unique within a run. Re-crawling a video therefore never collides with
// earlier results, and the history of a video stays queryable.
type CrawlDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures CrawlDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging, which lets batch crawls of
	// several videos write to the same file.
	EnableWAL bool

	// BusyTimeout is how long a writer waits for a concurrent writer.
	BusyTimeout time.Duration
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
		BusyTimeout:       5 * time.Second,
	}
}

// Open opens or creates the default database file inside dbDir.
func Open(dbDir string, opts Options) (*CrawlDB, error) {
	return OpenFile(filepath.Join(dbDir, DefaultFileName), opts)
}

// OpenFile opens or creates a CrawlDB at dbPath.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func OpenFile(dbPath string, opts Options) (*CrawlDB, error) {
	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file, mode=rwc allows it.
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

	cdb := &CrawlDB{
		db:     db,
		dbPath: dbPath,
	}

	ctx := context.Background()
	if opts.BusyTimeout > 0 {
		pragma := fmt.Sprintf("PRAGMA busy_timeout = %d", opts.BusyTimeout.Milliseconds())
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set busy timeout: %w", err)
		}
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := cdb.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return cdb, nil
}

// Path returns the database file path.
func (cdb *CrawlDB) Path() string {
	return cdb.dbPath
}

// Close closes the database connection.
func (cdb *CrawlDB) Close() error {
	return cdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (cdb *CrawlDB) createTables(ctx context.Context) error {
	schema := `
	-- One row per crawl of one target
	CREATE TABLE IF NOT EXISTS crawl_runs (
		id TEXT PRIMARY KEY,
		target TEXT NOT NULL,
		target_id TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		threads INTEGER NOT NULL DEFAULT 0,
		replies INTEGER NOT NULL DEFAULT 0,
		rows INTEGER NOT NULL DEFAULT 0,
		skipped_threads INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		report_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_runs_target ON crawl_runs(target_id);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON crawl_runs(started_at);

	-- Comment rows, numbered per run in emission order
	CREATE TABLE IF NOT EXISTS comments (
		run_id TEXT NOT NULL REFERENCES crawl_runs(id),
		id INTEGER NOT NULL,
		contents TEXT NOT NULL,
		parent_id INTEGER,
		pubdate TEXT NOT NULL,
		like_count TEXT NOT NULL,
		PRIMARY KEY (run_id, id)
	);

	CREATE INDEX IF NOT EXISTS idx_comments_parent ON comments(run_id, parent_id);
	`

	_, err := cdb.db.ExecContext(ctx, schema)
	return err
}

// Run is a stored crawl run.
type Run struct {
	ID             string
	Target         string
	TargetID       string
	StartedAt      time.Time
	FinishedAt     time.Time
	Threads        int
	Replies        int
	Rows           int
	SkippedThreads int
	Error          string
}

// BeginRun records the start of a crawl.
func (cdb *CrawlDB) BeginRun(ctx context.Context, runID string, target model.Target, startedAt time.Time) error {
	query := `
	INSERT INTO crawl_runs (id, target, target_id, started_at)
	VALUES (?, ?, ?, ?)
	`

	if _, err := cdb.db.ExecContext(ctx, query, runID, target.URL, target.ID, formatTimestamp(startedAt)); err != nil {
		return fmt.Errorf("failed to begin crawl run: %w", err)
	}
	return nil
}

// InsertComments stores a batch of rows for a run in one transaction.
func (cdb *CrawlDB) InsertComments(ctx context.Context, runID string, batch []model.CommentRecord) error {
	tx, err := cdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO comments (run_id, id, contents, parent_id, pubdate, like_count)
	VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range batch {
		var parent sql.NullInt64
		if r.IsReply() {
			parent = sql.NullInt64{Int64: int64(r.ParentID), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, runID, r.ID, r.Contents, parent, r.PubDate, r.LikeCount); err != nil {
			return fmt.Errorf("failed to insert comment %d: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit comments: %w", err)
	}
	return nil
}

// FinishRun stores the final counters and the full report of a run.
func (cdb *CrawlDB) FinishRun(ctx context.Context, report *model.CrawlReport) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to serialize report: %w", err)
	}

	finished := report.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}

	query := `
	UPDATE crawl_runs
	SET finished_at = ?, threads = ?, replies = ?, rows = ?, skipped_threads = ?, error = ?, report_json = ?
	WHERE id = ?
	`

	res, err := cdb.db.ExecContext(ctx, query,
		formatTimestamp(finished),
		report.Stats.Threads,
		report.Stats.Replies,
		report.Stats.Rows,
		report.Stats.SkippedThreads,
		report.ErrorMessage,
		string(reportJSON),
		report.RunID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish crawl run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, report.RunID)
	}
	return nil
}

// GetRun returns a run by id.
func (cdb *CrawlDB) GetRun(ctx context.Context, runID string) (*Run, error) {
	query := `
	SELECT id, target, target_id, started_at, COALESCE(finished_at, ''),
	       threads, replies, rows, skipped_threads, COALESCE(error, '')
	FROM crawl_runs
	WHERE id = ?
	`

	run, err := scanRun(cdb.db.QueryRowContext(ctx, query, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return run, err
}

// LatestRun returns the most recently started run, optionally limited to
// one target id. Returns ErrRunNotFound when there is none.
func (cdb *CrawlDB) LatestRun(ctx context.Context, targetID string) (*Run, error) {
	runs, err := cdb.ListRuns(ctx, targetID, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, ErrRunNotFound
	}
	return &runs[0], nil
}

// ListRuns returns runs newest first, optionally filtered by target id.
// A limit of zero returns every run.
func (cdb *CrawlDB) ListRuns(ctx context.Context, targetID string, limit int) ([]Run, error) {
	query := `
	SELECT id, target, target_id, started_at, COALESCE(finished_at, ''),
	       threads, replies, rows, skipped_threads, COALESCE(error, '')
	FROM crawl_runs
	WHERE 1=1
	`
	args := make([]interface{}, 0)

	if targetID != "" {
		query += " AND target_id = ?"
		args = append(args, targetID)
	}

	query += " ORDER BY started_at DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := cdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list crawl runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}

	return runs, rows.Err()
}

// Comments returns the rows of a run in id order.
func (cdb *CrawlDB) Comments(ctx context.Context, runID string) ([]model.CommentRecord, error) {
	query := `
	SELECT id, contents, parent_id, pubdate, like_count
	FROM comments
	WHERE run_id = ?
	ORDER BY id
	`

	rows, err := cdb.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query comments: %w", err)
	}
	defer rows.Close()

	var records []model.CommentRecord
	for rows.Next() {
		var (
			r      model.CommentRecord
			parent sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &r.Contents, &parent, &r.PubDate, &r.LikeCount); err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		if parent.Valid {
			r.ParentID = model.ParentID(parent.Int64)
		}
		records = append(records, r)
	}

	return records, rows.Err()
}

// GetReport returns the report stored by FinishRun, or nil if the run has
// not finished.
func (cdb *CrawlDB) GetReport(ctx context.Context, runID string) (*model.CrawlReport, error) {
	var reportJSON sql.NullString
	err := cdb.db.QueryRowContext(ctx, `SELECT report_json FROM crawl_runs WHERE id = ?`, runID).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get crawl report: %w", err)
	}
	if !reportJSON.Valid {
		return nil, nil
	}

	var report model.CrawlReport
	if err := json.Unmarshal([]byte(reportJSON.String), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &report, nil
}

// rowScanner is implemented by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(s rowScanner) (*Run, error) {
	var (
		run              Run
		started, finished string
	)
	err := s.Scan(&run.ID, &run.Target, &run.TargetID, &started, &finished,
		&run.Threads, &run.Replies, &run.Rows, &run.SkippedThreads, &run.Error)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan crawl run: %w", err)
	}
	run.StartedAt = parseTimestamp(started)
	run.FinishedAt = parseTimestamp(finished)
	return &run, nil
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	time.RFC3339Nano,          // written by formatTimestamp
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05Z",    // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	time.RFC3339,              // Full RFC3339 format
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// storedLayout has a fixed-width fraction so that string order equals time order.
const storedLayout = "2006-01-02T15:04:05.000000000Z07:00"

// formatTimestamp renders t in UTC using storedLayout.
func formatTimestamp(t time.Time) string {
	return t.UTC().Format(storedLayout)
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
