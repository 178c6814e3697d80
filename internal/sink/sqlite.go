package sink

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/commentcrawl/internal/database"
	"github.com/nao1215/commentcrawl/internal/model"
)

// SQLiteSink stores rows in a CrawlDB under one run.
type SQLiteSink struct {
	db     *database.CrawlDB
	runID  string
	logger *slog.Logger
	closed bool
}

// OpenSQLite opens the crawl database at path, or the default file in
// opts.DataDir when path is empty, and registers a new run.
func OpenSQLite(ctx context.Context, path string, opts Options) (*SQLiteSink, error) {
	opts = opts.withDefaults()

	var (
		db  *database.CrawlDB
		err error
	)
	if path == "" {
		db, err = database.Open(opts.DataDir, database.DefaultOptions())
	} else {
		db, err = database.OpenFile(path, database.DefaultOptions())
	}
	if err != nil {
		return nil, err
	}
	return NewSQLiteSink(ctx, db, opts)
}

// NewSQLiteSink registers a new run in db and returns a sink writing to it.
// The sink takes ownership of db.
func NewSQLiteSink(ctx context.Context, db *database.CrawlDB, opts Options) (*SQLiteSink, error) {
	opts = opts.withDefaults()

	if err := db.BeginRun(ctx, opts.RunID, opts.Target, time.Now()); err != nil {
		_ = db.Close()
		return nil, err
	}
	opts.Logger.Debug("sqlite run started", "path", db.Path(), "run_id", opts.RunID)
	return &SQLiteSink{db: db, runID: opts.RunID, logger: opts.Logger}, nil
}

// RunID returns the id the rows are stored under.
func (s *SQLiteSink) RunID() string {
	return s.runID
}

// Emit inserts batch in one transaction.
func (s *SQLiteSink) Emit(ctx context.Context, batch []model.CommentRecord) error {
	if s.closed {
		return ErrClosed
	}
	return s.db.InsertComments(ctx, s.runID, batch)
}

// Finish stores the final counters and report of the run.
func (s *SQLiteSink) Finish(ctx context.Context, report *model.CrawlReport) error {
	if s.closed {
		return ErrClosed
	}
	r := *report
	r.RunID = s.runID
	if err := s.db.FinishRun(ctx, &r); err != nil {
		return fmt.Errorf("failed to finish run %s: %w", s.runID, err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteSink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
