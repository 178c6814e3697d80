package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nao1215/commentcrawl/internal/cleanse"
	"github.com/nao1215/commentcrawl/internal/log"
)

// defaultCleanDir is the output directory below the input directory.
const defaultCleanDir = "cleaned"

// NewCleanseCmd creates the cleanse command.
func NewCleanseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cleanse <dir>",
		Short: "Clean every crawled table in a directory",
		Long: `Cleanse reads every .xlsx and .csv table in a directory, in name order,
and writes a cleaned copy of each as 1.xlsx, 2.xlsx, ... to the output
directory. Cleaning:

- drops rows with empty contents
- strips a leading "回复 @name :" reply quote
- strips emoji
- normalizes the text to NFC and trims surrounding whitespace

Ids, parent ids, dates and like counts are kept as they are.

Examples:
  # Clean ./raw into ./raw/cleaned
  commentcrawl cleanse raw

  # Clean into another directory as CSV
  commentcrawl cleanse raw -o clean -f csv`,
		Args: cobra.ExactArgs(1),
		RunE: runCleanseCmd,
	}

	cmd.Flags().StringP("output", "o", "",
		"Output directory (default: <dir>/"+defaultCleanDir+")")
	cmd.Flags().StringP("format", "f", "xlsx",
		"Output format: xlsx or csv")

	return cmd
}

// runCleanseCmd executes the cleanse command.
func runCleanseCmd(cmd *cobra.Command, args []string) error {
	inDir := args[0]

	outDir, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	if outDir == "" {
		outDir = filepath.Join(inDir, defaultCleanDir)
	}

	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return err
	}

	logger := log.NewSecureLogger(cmd.ErrOrStderr(), getVerboseFlag(cmd), log.WithJSON(getLogJSONFlag(cmd)))

	results, err := cleanse.Dir(cmd.Context(), inDir, outDir, cleanse.Options{Format: format, Logger: logger})
	out := cmd.OutOrStdout()
	for _, r := range results {
		fmt.Fprintf(out, "%s -> %s: %d rows kept, %d dropped\n", r.Source, r.Output, r.Kept, r.Dropped())
	}
	if err != nil {
		return err
	}

	if len(results) == 0 {
		fmt.Fprintf(out, "No .xlsx or .csv tables found in %s\n", inDir)
	}
	return nil
}
