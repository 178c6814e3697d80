package sink

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/xuri/excelize/v2"

	"github.com/nao1215/commentcrawl/internal/model"
)

// XLSXSink appends rows to the first sheet of an Excel workbook.
type XLSXSink struct {
	path   string
	file   *excelize.File
	sheet  string
	next   int // 1-based row number of the next row to write
	closed bool
}

// NewXLSXSink opens the workbook at path, creating it with a header row when
// it does not exist. Rows are appended after the last used row.
func NewXLSXSink(path string) (*XLSXSink, error) {
	s := &XLSXSink{path: path}

	f, err := excelize.OpenFile(path)
	switch {
	case err == nil:
		s.file = f
		s.sheet = f.GetSheetName(f.GetActiveSheetIndex())
		rows, err := f.GetRows(s.sheet)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		s.next = len(rows) + 1
	case errors.Is(err, os.ErrNotExist):
		s.file = excelize.NewFile()
		s.sheet = s.file.GetSheetName(0)
		s.next = 1
	default:
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	if s.next == 1 {
		if err := s.writeRow(stringCells(model.Columns)); err != nil {
			_ = s.file.Close()
			return nil, err
		}
		if err := s.file.SaveAs(path); err != nil {
			_ = s.file.Close()
			return nil, fmt.Errorf("failed to create %s: %w", path, err)
		}
	}
	return s, nil
}

// Emit appends batch and saves the workbook.
func (s *XLSXSink) Emit(_ context.Context, batch []model.CommentRecord) error {
	if s.closed {
		return ErrClosed
	}
	for _, r := range batch {
		if err := s.writeRow(xlsxCells(r)); err != nil {
			return err
		}
	}
	if err := s.file.SaveAs(s.path); err != nil {
		return fmt.Errorf("failed to save %s: %w", s.path, err)
	}
	return nil
}

// Close closes the workbook. Rows are already saved by Emit.
func (s *XLSXSink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.file.Close()
}

func (s *XLSXSink) writeRow(cells []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, s.next)
	if err != nil {
		return err
	}
	if err := s.file.SetSheetRow(s.sheet, cell, &cells); err != nil {
		return fmt.Errorf("failed to write row %d: %w", s.next, err)
	}
	s.next++
	return nil
}

// xlsxCells keeps ids numeric so spreadsheet tools can sort and filter them.
func xlsxCells(r model.CommentRecord) []interface{} {
	var parent interface{} = r.ParentID.String()
	if r.IsReply() {
		parent = int64(r.ParentID)
	}
	return []interface{}{r.ID, r.Contents, parent, r.PubDate, r.LikeCount}
}

func stringCells(values []string) []interface{} {
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return cells
}

// readXLSX returns every row of the workbook's active sheet.
func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(f.GetActiveSheetIndex()))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return rows, nil
}
