package sink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/nao1215/commentcrawl/internal/model"
)

// Sink receives batches of rows. A batch is one thread: the parent row
// followed by its replies.
type Sink interface {
	// Emit appends batch, preserving its order.
	Emit(ctx context.Context, batch []model.CommentRecord) error

	// Close releases the underlying storage.
	Close() error
}

// Finisher is implemented by sinks that record per-run metadata once a
// crawl is over.
type Finisher interface {
	Finish(ctx context.Context, report *model.CrawlReport) error
}

// Options configures sinks opened by Open.
type Options struct {
	// Target is the crawled video. Database and message sinks tag rows with its id.
	Target model.Target

	// RunID identifies the crawl run. A random id is generated when empty.
	RunID string

	// DataDir is used by "sqlite://" without a path.
	DataDir string

	// Logger receives debug output. Defaults to slog.Default().
	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.RunID == "" {
		o.RunID = uuid.NewString()
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Kind names the sink an output URI selects.
type Kind string

// Supported sink kinds.
const (
	KindXLSX     Kind = "xlsx"
	KindCSV      Kind = "csv"
	KindSQLite   Kind = "sqlite"
	KindPostgres Kind = "postgres"
	KindMongo    Kind = "mongodb"
	KindNATS     Kind = "nats"
)

// KindOf returns the sink kind for uri.
func KindOf(uri string) (Kind, error) {
	lower := strings.ToLower(uri)
	switch {
	case strings.HasPrefix(lower, "sqlite://"):
		return KindSQLite, nil
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return KindPostgres, nil
	case strings.HasPrefix(lower, "mongodb://"), strings.HasPrefix(lower, "mongodb+srv://"):
		return KindMongo, nil
	case strings.HasPrefix(lower, "nats://"):
		return KindNATS, nil
	}
	switch filepath.Ext(lower) {
	case ".xlsx":
		return KindXLSX, nil
	case ".csv":
		return KindCSV, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedOutput, uri)
}

// Open opens the sink selected by uri.
func Open(ctx context.Context, uri string, opts Options) (Sink, error) {
	opts = opts.withDefaults()

	kind, err := KindOf(uri)
	if err != nil {
		return nil, err
	}

	switch kind {
	case KindXLSX:
		return NewXLSXSink(uri)
	case KindCSV:
		return NewCSVSink(uri)
	case KindSQLite:
		path, _, err := parseSQLiteURI(uri)
		if err != nil {
			return nil, err
		}
		return OpenSQLite(ctx, path, opts)
	case KindPostgres:
		return OpenPostgres(ctx, uri, opts)
	case KindMongo:
		return OpenMongo(ctx, uri, opts)
	default:
		return OpenNATS(ctx, uri, opts)
	}
}

// OpenAll opens one sink per uri and combines them. A single uri yields that
// sink directly. Sinks already opened are closed when a later one fails.
func OpenAll(ctx context.Context, uris []string, opts Options) (Sink, error) {
	opts = opts.withDefaults()

	sinks := make([]Sink, 0, len(uris))
	for _, uri := range uris {
		s, err := Open(ctx, uri, opts)
		if err != nil {
			_ = Multi(sinks...).Close()
			return nil, fmt.Errorf("open %s: %w", uri, err)
		}
		sinks = append(sinks, s)
	}
	if len(sinks) == 1 {
		return sinks[0], nil
	}
	return Multi(sinks...), nil
}

// MultiSink writes every batch to each of its sinks in order.
type MultiSink struct {
	sinks []Sink
}

// Multi combines sinks into one.
func Multi(sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

// Emit writes batch to every sink, stopping at the first failure.
func (m *MultiSink) Emit(ctx context.Context, batch []model.CommentRecord) error {
	for _, s := range m.sinks {
		if err := s.Emit(ctx, batch); err != nil {
			return err
		}
	}
	return nil
}

// Finish forwards report to every sink implementing Finisher.
func (m *MultiSink) Finish(ctx context.Context, report *model.CrawlReport) error {
	var errs []error
	for _, s := range m.sinks {
		if f, ok := s.(Finisher); ok {
			errs = append(errs, f.Finish(ctx, report))
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink and joins their errors.
func (m *MultiSink) Close() error {
	var errs []error
	for _, s := range m.sinks {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}

// Finish calls s.Finish when s implements Finisher.
func Finish(ctx context.Context, s Sink, report *model.CrawlReport) error {
	if f, ok := s.(Finisher); ok {
		return f.Finish(ctx, report)
	}
	return nil
}
