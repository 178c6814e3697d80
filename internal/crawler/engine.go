package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/commentcrawl/internal/model"
	"github.com/nao1215/commentcrawl/internal/page"
)

const (
	// DefaultMaxReplyPages bounds the reply pages read for one thread.
	DefaultMaxReplyPages = 1000

	// DefaultReadyTimeout bounds the wait for required elements.
	DefaultReadyTimeout = 10 * time.Second

	// DefaultProbeTimeout bounds the wait for optional controls.
	DefaultProbeTimeout = 500 * time.Millisecond

	// DefaultSettleTimeout bounds the wait for a re-render after a click or
	// for lazily loaded threads at the end of the feed.
	DefaultSettleTimeout = 3 * time.Second

	// DefaultLoginTimeout bounds the wait for the login dialog to close.
	// It is long because a person may have to solve a captcha.
	DefaultLoginTimeout = 2 * time.Minute

	// DefaultPollInterval is the pause between readiness checks.
	DefaultPollInterval = 100 * time.Millisecond
)

// Timing holds the bounded waits used by the engine.
type Timing struct {
	// Ready waits for elements that must appear.
	Ready page.Poller

	// Probe waits for optional controls that may legitimately be absent.
	Probe page.Poller

	// Settle waits for the widget to re-render after an interaction.
	Settle page.Poller

	// Login waits for the login dialog to close after submitting.
	Login page.Poller
}

// DefaultTiming returns the timing used against a real browser.
func DefaultTiming() Timing {
	return Timing{
		Ready:  page.Poller{Interval: DefaultPollInterval, Timeout: DefaultReadyTimeout},
		Probe:  page.Poller{Interval: DefaultPollInterval, Timeout: DefaultProbeTimeout},
		Settle: page.Poller{Interval: DefaultPollInterval, Timeout: DefaultSettleTimeout},
		Login:  page.Poller{Interval: time.Second, Timeout: DefaultLoginTimeout},
	}
}

// Sink receives each finished thread as one ordered batch of rows.
type Sink interface {
	Emit(ctx context.Context, batch []model.CommentRecord) error
}

// Engine crawls the comment section of one page at a time.
// An Engine holds configuration only and may be shared by concurrent crawls
// of different pages.
type Engine struct {
	selectors     Selectors
	paths         paths
	timing        Timing
	maxThreads    int
	maxReplyPages int
	policy        ExtractionPolicy
	logger        *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithSelectors overrides the widget selectors. Empty fields keep their defaults.
func WithSelectors(s Selectors) Option {
	return func(e *Engine) {
		e.selectors = s.Merge(DefaultSelectors())
	}
}

// WithTiming sets the bounded waits.
func WithTiming(t Timing) Option {
	return func(e *Engine) {
		e.timing = t
	}
}

// WithMaxThreads caps the number of threads visited. 0 means no limit.
func WithMaxThreads(n int) Option {
	return func(e *Engine) {
		e.maxThreads = n
	}
}

// WithMaxReplyPages caps the reply pages read per thread.
func WithMaxReplyPages(n int) Option {
	return func(e *Engine) {
		e.maxReplyPages = n
	}
}

// WithExtractionPolicy sets what happens to threads that cannot be extracted.
func WithExtractionPolicy(p ExtractionPolicy) Option {
	return func(e *Engine) {
		e.policy = p
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// NewEngine creates an Engine with default selectors and timing.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		selectors:     DefaultSelectors(),
		timing:        DefaultTiming(),
		maxReplyPages: DefaultMaxReplyPages,
		policy:        PolicyAbort,
		logger:        slog.Default(),
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.maxReplyPages <= 0 {
		e.maxReplyPages = DefaultMaxReplyPages
	}
	e.paths = compile(e.selectors)

	return e
}

// Run walks every thread below root and emits it to out.
// Batches already emitted stay in the sink when Run fails or is canceled.
func (e *Engine) Run(ctx context.Context, root page.Element, out Sink) (model.CrawlStats, error) {
	var stats model.CrawlStats

	app, err := e.timing.Ready.Find(ctx, root, e.paths.commentApp)
	if err != nil {
		return stats, fmt.Errorf("locate comment section: %w", err)
	}
	if err := app.ScrollIntoView(ctx); err != nil {
		return stats, fmt.Errorf("scroll to comment section: %w", err)
	}

	feed, err := e.timing.Ready.Find(ctx, root, e.paths.commentRoot)
	if err != nil {
		return stats, fmt.Errorf("locate comment feed: %w", err)
	}

	walker := e.Walker(feed)
	paginator := e.Paginator()
	emitter := NewEmitter(out, e.logger)
	state := model.NewCrawlState()

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		thread, err := walker.Next(ctx, state.ThreadIndex)
		if errors.Is(err, ErrEnd) {
			break
		}
		if err != nil {
			return stats, err
		}

		cursor := model.ThreadCursor{ThreadIndex: state.ThreadIndex, ParentCommentID: state.NextID}
		collected, err := paginator.Collect(ctx, thread, &cursor)
		state.ThreadIndex++
		stats.ReplyPages += cursor.ReplyPages

		if err != nil {
			var xe *ExtractionError
			if errors.As(err, &xe) && e.policy == PolicySkip {
				e.logger.Warn("skipping thread", "thread", cursor.ThreadIndex, "error", err)
				stats.SkippedThreads++
				continue
			}
			return stats, err
		}

		batch, next, err := emitter.Emit(ctx, state, collected)
		if err != nil {
			return stats, fmt.Errorf("emit thread %d: %w", cursor.ThreadIndex, err)
		}
		state = next

		stats.Threads++
		stats.Replies += len(collected.Replies)
		stats.Rows += len(batch)

		e.logger.Debug("thread emitted",
			"thread", cursor.ThreadIndex,
			"id", cursor.ParentCommentID,
			"replies", len(collected.Replies),
			"reply_hint", cursor.ReplyCountHint,
			"pages", cursor.ReplyPages)
	}

	e.logger.Info("comment section finished",
		"threads", stats.Threads,
		"replies", stats.Replies,
		"skipped", stats.SkippedThreads)

	return stats, nil
}
