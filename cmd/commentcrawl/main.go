// Package main provides the entry point for the commentcrawl CLI.
//
// commentcrawl crawls the nested comment section of a video page and writes
// every comment and reply as one flat row (id, contents, parent_id, pubdate,
// like_count) to spreadsheets, databases or a message bus.
//
// Usage:
//
//	commentcrawl crawl <video-id or URL>...
//	commentcrawl cleanse <dir>
//	commentcrawl report <table>
//
// See --help for all available options.
package main

// main is the entry point for commentcrawl.
func main() {
	Execute()
}
