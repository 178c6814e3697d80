// Package crawler walks the comment section of a video page and turns every
// comment and reply into a flat row.
//
// # Architecture
//
// The Engine coordinates four components, all driven through the page
// capability interface so they run the same against a real browser and the
// in-memory test DOM:
//
//   - Authenticator: opens the target and logs in (or detects a live session)
//   - Walker: yields top-level comment threads one at a time, in feed order
//   - Paginator: expands one thread's replies and reads every reply page
//   - Emitter: assigns ids and hands each finished thread to a sink
//
// Within one page the engine is strictly sequential. It never sleeps for a
// fixed time: every wait is a bounded poll configured through Timing.
//
// Design decision: Traversal progress lives in a model.CrawlState value owned
// by Run. Ids are assigned only when a thread is emitted, so a thread skipped
// by the skip extraction policy leaves no gap in the id sequence.
//
// # Usage
//
//	engine := crawler.NewEngine(crawler.WithMaxThreads(100))
//	if _, err := engine.Authenticator(creds).Establish(ctx, tab, target.URL); err != nil {
//		return err
//	}
//	stats, err := engine.Run(ctx, tab, out)
package crawler
