// Package report renders crawl results and comment table summaries.
//
// This package contains writers for different output formats:
//   - SimpleWriter: Human-readable text output for terminal display
//   - JSONWriter: Structured JSON output for tool integration
//   - MarkdownWriter: Markdown for sharing in issues and notes
//
// Design decision: We separate report writing from report data structures
// (which are in the model package) so that a new output format never
// touches the crawler or the summary computation.
//
// Writers implement the Writer interface, allowing them to be used
// interchangeably and composed for multi-format output.
package report
