// Package pipeline runs the crawl of one target as a sequence of steps.
//
// A crawl opens a browser tab, opens the output sinks, logs in, walks the
// comment section, and finally closes the sinks and the tab. Each stage is
// a Step that receives the target's report and records what it did.
//
// Design decision: We use a pipeline pattern instead of direct function calls
// because:
// 1. Cleanup stages run as final steps even when an earlier step fails
// 2. It provides consistent error handling and logging across steps
// 3. It supports cancellation via context for long-running crawls
//
// The pipeline supports both individual crawls and batch processing with
// concurrency control using errgroup.
package pipeline
