package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nao1215/commentcrawl/internal/config"
	"github.com/nao1215/commentcrawl/internal/model"
	"github.com/nao1215/commentcrawl/internal/report"
	"github.com/nao1215/commentcrawl/internal/sink"
)

// NewReportCmd creates the report command.
func NewReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report <table>",
		Short: "Summarize a crawled comment table",
		Long: `Report reads a comment table and prints its totals (rows, threads,
replies, replies per thread, threads with replies), the most-liked comments
and, when the dates carry a time of day, the number of comments per hour.

The table is an .xlsx or .csv file, or a SQLite database:
  sqlite://                    latest run in the XDG data directory
  sqlite:///path/crawl.db      latest run in that database
  sqlite://?run=<run id>       a specific run

Examples:
  commentcrawl report BV1xx411c7mD.xlsx
  commentcrawl report --markdown --top 20 cleaned/1.xlsx > summary.md
  commentcrawl report --json sqlite://`,
		Args: cobra.ExactArgs(1),
		RunE: runReportCmd,
	}

	cmd.Flags().IntP("top", "n", model.DefaultTopN,
		"Number of most-liked comments to list")
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write the summary to a file instead of stdout")

	return cmd
}

// runReportCmd executes the report command.
func runReportCmd(cmd *cobra.Command, args []string) error {
	topN, err := cmd.Flags().GetInt("top")
	if err != nil {
		return err
	}
	jsonOut, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	markdownOut, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return err
	}
	if jsonOut && markdownOut {
		return config.ErrConflictingReportFormats
	}
	path, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	records, err := sink.ReadTable(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}
	summary := model.NewSummary(args[0], records, topN)

	out, closeOut, err := openReportOutput(path, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer closeOut()

	_, err = newSummaryWriter(out, jsonOut, markdownOut).WriteSummary(summary)
	return err
}

// newSummaryWriter returns the writer for the selected format.
func newSummaryWriter(out io.Writer, jsonOut, markdownOut bool) report.Writer {
	switch {
	case jsonOut:
		return report.NewJSONWriter(out, report.WithPrettyPrint())
	case markdownOut:
		return report.NewMarkdownWriter(out)
	default:
		return report.NewSimpleWriter(out)
	}
}
