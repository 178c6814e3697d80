package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for commentcrawl.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "commentcrawl",
		Short: "Crawl the comment section of video pages into flat tables",
		Long: `commentcrawl drives a browser through the comment widget of a video page,
expanding every reply list and walking its pages, and writes each comment as
one row. Rows are flushed after every thread, so an interrupted crawl keeps
everything collected so far.

The cleanse and report subcommands post-process the collected tables.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("log-json", false, "Write logs to stderr as JSON lines")

	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewCleanseCmd())
	cmd.AddCommand(NewReportCmd())
	cmd.AddCommand(NewRunsCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	return persistentBool(cmd, "verbose")
}

// getLogJSONFlag retrieves the log-json flag from the command or its parent.
func getLogJSONFlag(cmd *cobra.Command) bool {
	return persistentBool(cmd, "log-json")
}

// persistentBool reads a boolean root flag. Before parsing, a subcommand's
// own flag set does not contain the inherited flags yet.
func persistentBool(cmd *cobra.Command, name string) bool {
	v, err := cmd.Flags().GetBool(name)
	if err != nil {
		v, err = cmd.Root().PersistentFlags().GetBool(name)
		if err != nil {
			return false
		}
	}
	return v
}
