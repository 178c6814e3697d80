package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/commentcrawl/internal/config"
	"github.com/nao1215/commentcrawl/internal/database"
	"github.com/nao1215/commentcrawl/internal/model"
	"github.com/nao1215/commentcrawl/internal/report"
)

// runTimeLayout formats run timestamps in listings.
const runTimeLayout = "2006-01-02 15:04:05"

// NewRunsCmd creates the runs command.
func NewRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs [video-id]",
		Short: "List crawl runs stored in the SQLite history",
		Long: `Runs lists the crawls recorded by the sqlite:// output, newest first.
Pass a video id to only list the runs of that video.

A run id can be passed to "commentcrawl report sqlite://?run=<id>".

Examples:
  commentcrawl runs
  commentcrawl runs BV1xx411c7mD --limit 5
  commentcrawl runs --db ./crawl.db --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: runRunsCmd,
	}

	cmd.Flags().String("db", "",
		"SQLite database file (default: "+database.DefaultFileName+" in the XDG data directory)")
	cmd.Flags().IntP("limit", "l", 20,
		"Maximum number of runs to list (0 lists all)")
	cmd.Flags().BoolP("json", "j", false,
		"Output the stored crawl reports as JSON")

	return cmd
}

// runRunsCmd executes the runs command.
func runRunsCmd(cmd *cobra.Command, args []string) error {
	dbPath, err := cmd.Flags().GetString("db")
	if err != nil {
		return err
	}
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}
	jsonOut, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	var targetID string
	if len(args) == 1 {
		targetID = args[0]
	}

	opts := database.DefaultOptions()
	opts.CreateIfNotExists = false

	var db *database.CrawlDB
	if dbPath != "" {
		db, err = database.OpenFile(dbPath, opts)
	} else {
		db, err = database.Open(config.XDGDataDir(), opts)
	}
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if jsonOut {
		return writeRunReports(cmd.Context(), cmd.OutOrStdout(), db, targetID, limit)
	}
	return listRuns(cmd.Context(), cmd.OutOrStdout(), db, targetID, limit)
}

// listRuns prints one line per run.
func listRuns(ctx context.Context, w io.Writer, db *database.CrawlDB, targetID string, limit int) error {
	runs, err := db.ListRuns(ctx, targetID, limit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if len(runs) == 0 {
		fmt.Fprintln(w, "No crawl runs found.")
		fmt.Fprintln(w, "\nUse 'commentcrawl crawl -o sqlite:// <video>' to record one.")
		return nil
	}

	fmt.Fprintf(w, "%d crawl runs:\n\n", len(runs))
	fmt.Fprintf(w, "  %-36s  %-14s  %-19s  %8s  %8s  %s\n", "ID", "Video", "Started", "Rows", "Duration", "Status")
	fmt.Fprintln(w, "  "+strings.Repeat("-", 104))

	for _, r := range runs {
		fmt.Fprintf(w, "  %-36s  %-14s  %-19s  %8d  %8s  %s\n",
			r.ID,
			r.TargetID,
			r.StartedAt.Local().Format(runTimeLayout),
			r.Rows,
			runDuration(r),
			runStatus(r),
		)
	}

	fmt.Fprintln(w, "\nUse 'commentcrawl report sqlite://?run=<id>' to summarize a run.")
	return nil
}

// writeRunReports prints the stored reports of the listed runs as JSON.
func writeRunReports(ctx context.Context, w io.Writer, db *database.CrawlDB, targetID string, limit int) error {
	runs, err := db.ListRuns(ctx, targetID, limit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	reports := make([]*model.CrawlReport, 0, len(runs))
	for _, r := range runs {
		rep, err := db.GetReport(ctx, r.ID)
		if err != nil {
			return err
		}
		if rep != nil {
			reports = append(reports, rep)
		}
	}

	_, err = report.NewJSONWriter(w, report.WithPrettyPrint()).WriteCrawls(reports)
	return err
}

func runDuration(r database.Run) string {
	if r.FinishedAt.IsZero() {
		return "-"
	}
	return r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String()
}

func runStatus(r database.Run) string {
	switch {
	case r.FinishedAt.IsZero():
		return "running or interrupted"
	case r.Error != "":
		return "failed: " + r.Error
	default:
		return "ok"
	}
}
