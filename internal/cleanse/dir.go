package cleanse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nao1215/commentcrawl/internal/sink"
)

// ErrSameDir is returned when the output directory is the input directory.
// Numbered outputs would overwrite raw tables that have not been read yet.
var ErrSameDir = errors.New("output directory must differ from input directory")

// Result describes one cleaned table.
type Result struct {
	// Source is the raw table that was read.
	Source string `json:"source"`

	// Output is the cleaned table that was written.
	Output string `json:"output"`

	// Read is the number of rows in the raw table.
	Read int `json:"read"`

	// Kept is the number of rows written.
	Kept int `json:"kept"`
}

// Dropped returns the number of rows removed for having no contents.
func (r Result) Dropped() int {
	return r.Read - r.Kept
}

// Options configures Dir.
type Options struct {
	// Format is the output extension, "xlsx" (default) or "csv".
	Format string

	// Logger receives one info line per table. Defaults to slog.Default().
	Logger *slog.Logger
}

// Dir cleans every .xlsx and .csv table in inDir, in name order, and writes
// them to outDir as 1.xlsx, 2.xlsx, and so on. outDir is created if needed.
func Dir(ctx context.Context, inDir, outDir string, opts Options) ([]Result, error) {
	if opts.Format == "" {
		opts.Format = "xlsx"
	}
	opts.Format = strings.TrimPrefix(strings.ToLower(opts.Format), ".")
	if opts.Format != "xlsx" && opts.Format != "csv" {
		return nil, fmt.Errorf("%w: %s", sink.ErrUnsupportedOutput, opts.Format)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	same, err := sameDir(inDir, outDir)
	if err != nil {
		return nil, err
	}
	if same {
		return nil, ErrSameDir
	}

	sources, err := Tables(inDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(outDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", outDir, err)
	}

	results := make([]Result, 0, len(sources))
	for i, src := range sources {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		raw, err := sink.ReadTable(ctx, src)
		if err != nil {
			return results, err
		}
		cleaned := Records(raw)

		out := filepath.Join(outDir, strconv.Itoa(i+1)+"."+opts.Format)
		if err := sink.WriteTable(out, cleaned); err != nil {
			return results, err
		}

		res := Result{Source: src, Output: out, Read: len(raw), Kept: len(cleaned)}
		opts.Logger.Info("table cleaned", "source", src, "output", out, "rows", res.Kept, "dropped", res.Dropped())
		results = append(results, res)
	}
	return results, nil
}

// Tables lists the raw tables in dir sorted by name, the order os.ReadDir returns. Office lock files
// ("~$name.xlsx") and subdirectories are ignored.
func Tables(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	var tables []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, "~$") {
			continue
		}
		switch strings.ToLower(filepath.Ext(name)) {
		case ".xlsx", ".csv":
			tables = append(tables, filepath.Join(dir, name))
		}
	}
	return tables, nil
}

func sameDir(a, b string) (bool, error) {
	absA, err := filepath.Abs(a)
	if err != nil {
		return false, err
	}
	absB, err := filepath.Abs(b)
	if err != nil {
		return false, err
	}
	return absA == absB, nil
}
