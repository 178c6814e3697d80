package report

import (
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/commentcrawl/internal/model"
)

// MarkdownWriter outputs reports in Markdown format.
// This format is designed for documentation and sharing.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation, which gives tables, GitHub alerts and mermaid charts without
// hand-escaping.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// WriteCrawl outputs the crawl report in Markdown format.
func (w *MarkdownWriter) WriteCrawl(report *model.CrawlReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Crawl Report")
	md.PlainText("")

	rows := [][]string{
		{"Target", report.Target},
		{"Video", "`" + report.TargetID + "`"},
	}
	if report.Output != "" {
		rows = append(rows, []string{"Output", "`" + report.Output + "`"})
	}
	rows = append(rows,
		[]string{"Started", report.StartedAt.Format("2006-01-02 15:04:05 MST")},
		[]string{"Logged in", yesNo(report.LoggedIn)},
		[]string{"Status", w.crawlStatus(report)},
	)
	md.Table(markdown.TableSet{Header: []string{"Property", "Value"}, Rows: rows})
	md.PlainText("")

	md.H2("Counts")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Counter", "Value"},
		Rows: [][]string{
			{"Threads", w.number(report.Stats.Threads)},
			{"Replies", w.number(report.Stats.Replies)},
			{"Rows", w.number(report.Stats.Rows)},
			{"Reply pages", w.number(report.Stats.ReplyPages)},
			{"Skipped threads", w.number(report.Stats.SkippedThreads)},
		},
	})
	md.PlainText("")

	switch {
	case report.ErrorMessage != "":
		md.Cautionf("The crawl ended with an error. Rows written before it are kept: %s", report.ErrorMessage)
	case report.TimedOut:
		md.Warningf("The crawl hit its deadline after %s rows.", w.number(report.Stats.Rows))
	case report.Stats.SkippedThreads > 0:
		md.Warningf("%s thread(s) were skipped because a required field was missing.", w.number(report.Stats.SkippedThreads))
	default:
		md.Tip("Every visited thread was written.")
	}
	md.PlainText("")

	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// crawlStatus returns the status text based on report state.
func (w *MarkdownWriter) crawlStatus(report *model.CrawlReport) string {
	if report.TimedOut {
		return "⚠️ Timed Out (partial results)"
	}
	if report.ErrorMessage != "" {
		return "❌ Error"
	}
	return "✅ Complete"
}

// WriteSummary outputs the table summary in Markdown format.
func (w *MarkdownWriter) WriteSummary(summary *model.Summary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Comment Summary")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Source", "`" + summary.Source + "`"},
			{"Rows", w.number(summary.Rows)},
			{"Threads", w.number(summary.Threads)},
			{"Replies", w.number(summary.Replies)},
			{"Threads with replies", w.number(summary.ThreadsWithReplies)},
			{"Replies per thread", w.ratio(summary.RepliesPerThread)},
		},
	})
	md.PlainText("")

	if summary.Rows == 0 {
		md.Warningf("The table %s has no rows.", summary.Source)
		md.PlainText("")
	} else {
		w.writePieChart(md, summary)
	}

	w.writeTopLiked(md, summary)
	w.writeHourly(md, summary)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writePieChart writes a mermaid pie chart of top-level comments against replies.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, summary *model.Summary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Comments by Kind"),
		piechart.WithShowData(true),
	)
	if summary.Threads > 0 {
		chart.LabelAndIntValue("Top-level", uint64(summary.Threads))
	}
	if summary.Replies > 0 {
		chart.LabelAndIntValue("Replies", uint64(summary.Replies))
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeTopLiked(md *markdown.Markdown, summary *model.Summary) {
	if len(summary.TopLiked) == 0 {
		return
	}

	md.H2("Most Liked")
	md.PlainText("")

	rows := make([][]string, len(summary.TopLiked))
	for i, c := range summary.TopLiked {
		parent := "-"
		if c.Record.IsReply() {
			parent = c.Record.ParentID.String()
		}
		rows[i] = []string{
			strconv.Itoa(i + 1),
			w.number(c.Likes),
			strconv.FormatInt(c.Record.ID, 10),
			parent,
			tableCell(truncateString(c.Record.Contents, 80)),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Rank", "Likes", "ID", "Parent", "Comment"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeHourly(md *markdown.Markdown, summary *model.Summary) {
	if summary.Hourly == nil {
		return
	}

	md.H2("Comments by Hour")
	md.PlainText("")

	var rows [][]string
	for hour, n := range summary.Hourly {
		if n == 0 {
			continue
		}
		rows = append(rows, []string{strconv.Itoa(hour) + ":00", w.number(n)})
	}
	md.Table(markdown.TableSet{Header: []string{"Hour", "Comments"}, Rows: rows})
	md.PlainText("")

	if summary.UndatedRows > 0 {
		md.Note(w.number(summary.UndatedRows) + " row(s) show a relative date and are not counted by hour.")
		md.PlainText("")
	}
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [commentcrawl](https://github.com/nao1215/commentcrawl)*")
}

// tableCell escapes the pipe, which would otherwise end the cell.
func tableCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
