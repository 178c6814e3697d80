package sink

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/nao1215/commentcrawl/internal/database"
	"github.com/nao1215/commentcrawl/internal/model"
)

// ReadTable reads every row of a comment table.
//
// uri is an .xlsx or .csv file, or "sqlite://path" with an optional
// "?run=<id>" query; without a run id the most recent run is read.
// Blank rows are skipped.
func ReadTable(ctx context.Context, uri string) ([]model.CommentRecord, error) {
	kind, err := KindOf(uri)
	if err != nil {
		return nil, err
	}

	var rows [][]string
	switch kind {
	case KindXLSX:
		rows, err = readXLSX(uri)
	case KindCSV:
		rows, err = readCSV(uri)
	case KindSQLite:
		return readSQLite(ctx, uri)
	default:
		return nil, fmt.Errorf("%w: %s cannot be read back", ErrUnsupportedOutput, kind)
	}
	if err != nil {
		return nil, err
	}
	return parseRows(uri, rows)
}

func parseRows(source string, rows [][]string) ([]model.CommentRecord, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyTable, source)
	}
	index, err := model.ColumnIndex(rows[0])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}

	records := make([]model.CommentRecord, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if blank(row) {
			continue
		}
		r, err := model.RecordFromRow(index, row)
		if err != nil {
			return nil, fmt.Errorf("%s: row %d: %w", source, i+2, err)
		}
		records = append(records, r)
	}
	return records, nil
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func readSQLite(ctx context.Context, uri string) ([]model.CommentRecord, error) {
	path, query, err := parseSQLiteURI(uri)
	if err != nil {
		return nil, err
	}

	opts := database.DefaultOptions()
	opts.CreateIfNotExists = false
	db, err := database.OpenFile(path, opts)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	runID := query.Get("run")
	if runID == "" {
		run, err := db.LatestRun(ctx, "")
		if err != nil {
			return nil, err
		}
		runID = run.ID
	}
	return db.Comments(ctx, runID)
}

// parseSQLiteURI returns the database path of a "sqlite://" uri and its query.
// Both "sqlite://relative/file.db" and "sqlite:///absolute/file.db" are accepted.
func parseSQLiteURI(uri string) (string, url.Values, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", nil, fmt.Errorf("failed to parse sqlite uri: %w", err)
	}
	return u.Host + u.Path, u.Query(), nil
}

// WriteTable writes records to a new .xlsx or .csv file at path,
// replacing any existing file.
func WriteTable(path string, records []model.CommentRecord) (err error) {
	kind, err := KindOf(path)
	if err != nil {
		return err
	}
	if kind != KindXLSX && kind != KindCSV {
		return fmt.Errorf("%w: tables are written as xlsx or csv, got %s", ErrUnsupportedOutput, kind)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}

	var s Sink
	if kind == KindXLSX {
		s, err = NewXLSXSink(path)
	} else {
		s, err = NewCSVSink(path)
	}
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); err == nil {
			err = cerr
		}
	}()

	if len(records) == 0 {
		return nil
	}
	return s.Emit(context.Background(), records)
}
