package report

import (
	"io"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/nao1215/commentcrawl/internal/model"
)

// Writer defines the interface for report output.
type Writer interface {
	// WriteCrawl outputs the result of crawling one target.
	// Returns the number of bytes written and any error encountered.
	WriteCrawl(report *model.CrawlReport) (int, error)

	// WriteSummary outputs the aggregate view of a comment table.
	WriteSummary(summary *model.Summary) (int, error)
}

// MultiWriter writes to multiple Writers in order.
//
// Design decision: We implement this as a separate type rather than
// using io.MultiWriter because our Writer interface writes reports,
// not raw bytes.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// WriteCrawl outputs the crawl report to all configured Writers.
// Returns the total bytes written across all writers and stops on the first error.
func (m *MultiWriter) WriteCrawl(report *model.CrawlReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteCrawl(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteSummary outputs the summary to all configured Writers.
func (m *MultiWriter) WriteSummary(summary *model.Summary) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteSummary(summary)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output  io.Writer
	printer *message.Printer
}

// newBaseWriter creates a baseWriter with the given output destination.
// Numbers are grouped the English way ("12,345") unless a writer option
// picks another language.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output, printer: message.NewPrinter(language.English)}
}

// number formats n with digit grouping.
func (b baseWriter) number(n int) string {
	return b.printer.Sprintf("%d", n)
}

// ratio formats f with digit grouping and two decimals.
func (b baseWriter) ratio(f float64) string {
	return b.printer.Sprintf("%.2f", f)
}

// status describes how a crawl ended.
func status(report *model.CrawlReport) string {
	switch {
	case report.TimedOut:
		return "TIMED OUT (partial results)"
	case report.ErrorMessage != "":
		return "ERROR - " + report.ErrorMessage
	default:
		return "Complete"
	}
}

// truncateString shortens s to maxLen characters with an ellipsis and
// folds line breaks into spaces. Lengths count runes, not bytes, because
// comments are mostly CJK text.
func truncateString(s string, maxLen int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
