package sink

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nao1215/commentcrawl/internal/model"
)

// postgresTable is the table PostgresSink writes to.
const postgresTable = "crawl_comments"

const postgresSchema = `
CREATE TABLE IF NOT EXISTS crawl_comments (
	run_id     TEXT   NOT NULL,
	target_id  TEXT   NOT NULL,
	id         BIGINT NOT NULL,
	contents   TEXT   NOT NULL,
	parent_id  BIGINT,
	pubdate    TEXT   NOT NULL DEFAULT '',
	like_count TEXT   NOT NULL DEFAULT '',
	PRIMARY KEY (run_id, id)
)`

var postgresColumns = []string{"run_id", "target_id", "id", "contents", "parent_id", "pubdate", "like_count"}

// postgresDB is the part of *pgxpool.Pool that PostgresSink uses.
type postgresDB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// PostgresSink copies rows into the crawl_comments table.
type PostgresSink struct {
	pool     postgresDB
	runID    string
	targetID string
	logger   *slog.Logger
	closed   bool
}

// OpenPostgres connects to the database at uri and creates the table if needed.
func OpenPostgres(ctx context.Context, uri string, opts Options) (*PostgresSink, error) {
	opts = opts.withDefaults()

	cfg, err := pgxpool.ParseConfig(uri)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres uri: %w", err)
	}
	cfg.MaxConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create %s: %w", postgresTable, err)
	}

	opts.Logger.Debug("postgres sink ready", "host", cfg.ConnConfig.Host, "database", cfg.ConnConfig.Database)
	return &PostgresSink{pool: pool, runID: opts.RunID, targetID: opts.Target.ID, logger: opts.Logger}, nil
}

// Emit copies batch inside one transaction.
func (s *PostgresSink) Emit(ctx context.Context, batch []model.CommentRecord) error {
	if s.closed {
		return ErrClosed
	}
	rows := postgresRows(s.runID, s.targetID, batch)
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		n, err := tx.CopyFrom(ctx, pgx.Identifier{postgresTable}, postgresColumns, pgx.CopyFromRows(rows))
		if err != nil {
			return fmt.Errorf("failed to copy comments: %w", err)
		}
		if n != int64(len(rows)) {
			return fmt.Errorf("copied %d of %d comments", n, len(rows))
		}
		return nil
	})
}

// Close closes the connection pool.
func (s *PostgresSink) Close() error {
	if !s.closed {
		s.closed = true
		s.pool.Close()
	}
	return nil
}

// postgresRows converts batch to CopyFrom rows; top-level comments get a NULL parent_id.
func postgresRows(runID, targetID string, batch []model.CommentRecord) [][]any {
	rows := make([][]any, len(batch))
	for i, r := range batch {
		var parent any
		if r.IsReply() {
			parent = int64(r.ParentID)
		}
		rows[i] = []any{runID, targetID, r.ID, r.Contents, parent, r.PubDate, r.LikeCount}
	}
	return rows
}
