// Package model defines the data structures shared by the crawler, the
// sinks and the reports.
//
// This package contains the following main types:
//   - Target: A page whose comment section is crawled
//   - CommentRecord: One row of the comment table with its parent link
//   - CrawlState: The identifier counters of a crawl in progress
//   - CrawlReport: The result of crawling one target
//   - Summary: Aggregates computed over a finished comment table
//
// Design decision: The row layout (Columns) lives here rather than in the
// sink package because the cleanser and the report command locate columns
// by name when they read tables back.
//
// CrawlReport and Summary serialize to JSON for report output and for the
// SQLite run history.
package model
