package sink

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/nao1215/commentcrawl/internal/model"
)

// utf8BOM prefixes new CSV files so spreadsheet tools detect UTF-8.
const utf8BOM = "\ufeff"

// CSVSink appends rows to a CSV file.
type CSVSink struct {
	file   *os.File
	w      *csv.Writer
	closed bool
}

// NewCSVSink opens path for appending, writing the header when the file is new or empty.
func NewCSVSink(path string) (*CSVSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644) //nolint:gosec // output path is chosen by the user
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	s := &CSVSink{file: f, w: csv.NewWriter(f)}
	if info.Size() == 0 {
		if _, err := io.WriteString(f, utf8BOM); err != nil {
			_ = f.Close()
			return nil, err
		}
		if err := s.flush([][]string{model.Columns}); err != nil {
			_ = f.Close()
			return nil, err
		}
	}
	return s, nil
}

// Emit appends batch and syncs the file.
func (s *CSVSink) Emit(_ context.Context, batch []model.CommentRecord) error {
	if s.closed {
		return ErrClosed
	}
	rows := make([][]string, len(batch))
	for i, r := range batch {
		rows[i] = r.Row()
	}
	return s.flush(rows)
}

func (s *CSVSink) flush(rows [][]string) error {
	if err := s.w.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write %s: %w", s.file.Name(), err)
	}
	return s.file.Sync()
}

// Close closes the file.
func (s *CSVSink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.file.Close()
}

// readCSV returns every record of a CSV file, without the BOM.
func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path) //nolint:gosec // input path is chosen by the user
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(rows) > 0 && len(rows[0]) > 0 {
		rows[0][0] = strings.TrimPrefix(rows[0][0], utf8BOM)
	}
	return rows, nil
}
