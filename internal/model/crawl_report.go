package model

import "time"

// CrawlReport is the result of crawling one target.
// The pipeline fills it in step by step and the CLI prints or stores it.
type CrawlReport struct {
	// Target is the page URL that was crawled.
	Target string `json:"target"`

	// TargetID is the short identifier derived from the target (the video id).
	TargetID string `json:"target_id"`

	// Output is the sink URI the rows were written to.
	Output string `json:"output"`

	// RunID uniquely identifies the run in database sinks.
	RunID string `json:"run_id"`

	// StartedAt is when the crawl started.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is when the crawl ended, successfully or not.
	FinishedAt time.Time `json:"finished_at"`

	// Stats holds the traversal counters.
	Stats CrawlStats `json:"stats"`

	// LoggedIn is true when the page was authenticated, either by the
	// login sequence or by a restored session.
	LoggedIn bool `json:"logged_in"`

	// TimedOut is true if the crawl was terminated by the overall deadline.
	TimedOut bool `json:"timed_out"`

	// PerformedSteps lists the pipeline steps that completed.
	PerformedSteps []string `json:"performed_steps,omitempty"`

	// Error contains the error that ended the crawl, if any.
	Error error `json:"-"`

	// ErrorMessage is the string representation of Error for serialization.
	ErrorMessage string `json:"error,omitempty"` //nolint:tagliatelle // error is conventional
}

// CrawlStats counts what the traversal engine visited and emitted.
type CrawlStats struct {
	// Threads is the number of top-level comments emitted.
	Threads int `json:"threads"`

	// Replies is the number of replies emitted.
	Replies int `json:"replies"`

	// Rows is the total number of rows handed to the sink.
	Rows int `json:"rows"`

	// SkippedThreads is the number of threads dropped by the skip policy.
	SkippedThreads int `json:"skipped_threads"`

	// ReplyPages is the number of reply pages read across all threads.
	ReplyPages int `json:"reply_pages"`
}

// Add accumulates another set of counters.
func (s *CrawlStats) Add(o CrawlStats) {
	s.Threads += o.Threads
	s.Replies += o.Replies
	s.Rows += o.Rows
	s.SkippedThreads += o.SkippedThreads
	s.ReplyPages += o.ReplyPages
}

// NewCrawlReport creates a report for the given target.
func NewCrawlReport(target Target) *CrawlReport {
	return &CrawlReport{
		Target:    target.URL,
		TargetID:  target.ID,
		StartedAt: time.Now(),
	}
}

// AddStep records a completed pipeline step.
func (r *CrawlReport) AddStep(name string) {
	r.PerformedSteps = append(r.PerformedSteps, name)
}

// SetError records the error that ended the crawl.
func (r *CrawlReport) SetError(err error) {
	r.Error = err
	if err != nil {
		r.ErrorMessage = err.Error()
	}
}

// Duration returns how long the crawl ran.
func (r *CrawlReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
