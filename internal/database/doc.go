// Package database provides SQLite-based storage for crawled comments.
//
// This package implements the CrawlDB, which stores:
//   - Crawl runs: one row per crawl of one video with its counters and report
//   - Comments: every emitted row, keyed by run id and comment id
//
// Design decision: We use SQLite (via modernc.org/sqlite) because:
// 1. The database is a single file next to the user's other data
// 2. CGO-free implementation allows easy cross-compilation
// 3. WAL mode lets several concurrent crawls append to the same file
package database
