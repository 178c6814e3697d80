package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/nao1215/commentcrawl/internal/model"
)

const (
	// ruleWidth is the width of section rules in text output.
	ruleWidth = 70

	// barWidth is the length of the longest bar in the hourly histogram.
	barWidth = 40

	// commentWidth is the number of characters of a comment shown in rankings.
	commentWidth = 56
)

// SimpleWriter outputs human-readable text reports.
//
// Design decision: We use plain text with ASCII formatting rather than
// ANSI colors so the output can be piped to files or other tools unchanged.
type SimpleWriter struct {
	baseWriter

	// verbose enables additional detail in the output.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// WithLanguage selects the digit grouping used for numbers.
func WithLanguage(tag language.Tag) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.printer = message.NewPrinter(tag)
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// WriteCrawl outputs the crawl report in human-readable format.
func (w *SimpleWriter) WriteCrawl(report *model.CrawlReport) (int, error) {
	var sb strings.Builder

	w.writeTitle(&sb, "CRAWL REPORT")

	fmt.Fprintf(&sb, "Target:         %s\n", report.Target)
	fmt.Fprintf(&sb, "Video:          %s\n", report.TargetID)
	if report.Output != "" {
		fmt.Fprintf(&sb, "Output:         %s\n", report.Output)
	}
	fmt.Fprintf(&sb, "Started:        %s\n", report.StartedAt.Format("2006-01-02 15:04:05 MST"))
	if d := report.Duration(); d > 0 {
		fmt.Fprintf(&sb, "Duration:       %s\n", d.Round(100*time.Millisecond))
	}
	fmt.Fprintf(&sb, "Logged in:      %s\n", yesNo(report.LoggedIn))
	fmt.Fprintf(&sb, "Status:         %s\n", status(report))
	sb.WriteString("\n")

	w.writeSection(&sb, "COUNTS")
	fmt.Fprintf(&sb, "  Threads:         %s\n", w.number(report.Stats.Threads))
	fmt.Fprintf(&sb, "  Replies:         %s\n", w.number(report.Stats.Replies))
	fmt.Fprintf(&sb, "  Rows:            %s\n", w.number(report.Stats.Rows))
	fmt.Fprintf(&sb, "  Reply pages:     %s\n", w.number(report.Stats.ReplyPages))
	fmt.Fprintf(&sb, "  Skipped threads: %s\n", w.number(report.Stats.SkippedThreads))
	sb.WriteString("\n")

	if w.verbose {
		w.writeSection(&sb, "DETAILS")
		if report.RunID != "" {
			fmt.Fprintf(&sb, "  Run ID: %s\n", report.RunID)
		}
		if len(report.PerformedSteps) > 0 {
			fmt.Fprintf(&sb, "  Steps:  %s\n", strings.Join(report.PerformedSteps, " -> "))
		}
		sb.WriteString("\n")
	}

	return w.output.Write([]byte(sb.String()))
}

// WriteSummary outputs the table summary in human-readable format.
func (w *SimpleWriter) WriteSummary(summary *model.Summary) (int, error) {
	var sb strings.Builder

	w.writeTitle(&sb, "COMMENT SUMMARY")

	fmt.Fprintf(&sb, "Source:               %s\n", summary.Source)
	fmt.Fprintf(&sb, "Rows:                 %s\n", w.number(summary.Rows))
	fmt.Fprintf(&sb, "Threads:              %s\n", w.number(summary.Threads))
	fmt.Fprintf(&sb, "Replies:              %s\n", w.number(summary.Replies))
	fmt.Fprintf(&sb, "Threads with replies: %s\n", w.number(summary.ThreadsWithReplies))
	fmt.Fprintf(&sb, "Replies per thread:   %s\n", w.ratio(summary.RepliesPerThread))
	sb.WriteString("\n")

	w.writeTopLiked(&sb, summary)
	w.writeHourly(&sb, summary)

	return w.output.Write([]byte(sb.String()))
}

func (w *SimpleWriter) writeTopLiked(sb *strings.Builder, summary *model.Summary) {
	if len(summary.TopLiked) == 0 {
		return
	}

	w.writeSection(sb, fmt.Sprintf("TOP %d LIKED", len(summary.TopLiked)))
	for i, c := range summary.TopLiked {
		fmt.Fprintf(sb, "  %2d. [%s] #%d %s\n", i+1, w.number(c.Likes), c.Record.ID, truncateString(c.Record.Contents, commentWidth))
		if w.verbose && c.Record.IsReply() {
			fmt.Fprintf(sb, "      reply to #%d, %s\n", c.Record.ParentID, c.Record.PubDate)
		}
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeHourly(sb *strings.Builder, summary *model.Summary) {
	if summary.Hourly == nil {
		return
	}

	w.writeSection(sb, "COMMENTS BY HOUR")

	peak := 0
	for _, n := range summary.Hourly {
		peak = max(peak, n)
	}
	for hour, n := range summary.Hourly {
		bar := 0
		if peak > 0 {
			bar = n * barWidth / peak
		}
		fmt.Fprintf(sb, "  %02d  %-*s %s\n", hour, barWidth, strings.Repeat("#", bar), w.number(n))
	}
	if summary.UndatedRows > 0 {
		fmt.Fprintf(sb, "\n  %s rows have no absolute time of day\n", w.number(summary.UndatedRows))
	}
	sb.WriteString("\n")
}

// writeTitle writes the double-ruled report title.
func (w *SimpleWriter) writeTitle(sb *strings.Builder, title string) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat(" ", (ruleWidth-len(title))/2))
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n\n")
}

// writeSection writes a single-ruled section header.
func (w *SimpleWriter) writeSection(sb *strings.Builder, name string) {
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString(name)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n\n")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
