// Package sink writes comment rows to durable storage.
//
// Every sink appends batches in order and keeps rows from earlier batches
// when a later batch fails. A sink is chosen from an output URI:
//
//	comments.xlsx                         Excel workbook (default)
//	comments.csv                          CSV file
//	sqlite://path/to/commentcrawl.db      SQLite crawl database
//	postgres://user@host/db               PostgreSQL table crawl_comments
//	mongodb://host/db?collection=name     MongoDB collection
//	nats://host:4222/subject              one JSON message per batch
//
// Design decision: The XLSX sink saves the whole workbook after every batch
// because the format has no append mode. Very large crawls are better written
// to CSV or a database.
package sink
