// Package page defines the small set of DOM capabilities the comment crawler
// needs, independent of the browser driver that provides them.
//
// An Element can look up children by CSS selector, descend into its open
// shadow root, scroll itself into view, be clicked and report its text.
// Lookups never wait: an absent element is reported immediately with
// ErrNotFound. Waiting for a widget to render is done explicitly with a
// Poller, which retries a condition at a fixed interval up to a deadline and
// fails with a *TimeoutError.
//
// Selector paths chain hops with ">>". The hop "::shadow" descends into the
// shadow root of the current element, so
//
//	#commentapp >> bili-comments >> ::shadow >> #feed
//
// reads the #feed element inside the shadow root of the bili-comments
// element under #commentapp.
//
// Design decision: Production code uses the go-rod implementation in package
// browser, tests use the in-memory DOM in package pagetest. Keeping the
// interface this narrow is what makes the fake cheap to maintain.
package page
