package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nao1215/commentcrawl/internal/page"
)

// Walker yields the top-level threads of a feed in order.
//
// The feed is re-queried on every call because the site appends threads as
// the page scrolls and may re-render earlier ones. Once the walker reports
// ErrEnd it stays done.
type Walker struct {
	feed    page.Element
	threads page.Path
	settle  page.Poller
	max     int
	done    bool
	logger  *slog.Logger
}

// Walker returns a Walker over the threads below feed.
func (e *Engine) Walker(feed page.Element) *Walker {
	return &Walker{
		feed:    feed,
		threads: e.paths.threads,
		settle:  e.timing.Settle,
		max:     e.maxThreads,
		logger:  e.logger,
	}
}

// Next returns the thread at index after scrolling it into view, or ErrEnd.
// When index is just past the rendered threads, Next waits one settle
// interval for lazily loaded threads before giving up.
func (w *Walker) Next(ctx context.Context, index int) (page.Element, error) {
	if w.done {
		return nil, ErrEnd
	}
	if w.max > 0 && index >= w.max {
		w.logger.Info("thread limit reached", "max_threads", w.max)
		w.done = true
		return nil, ErrEnd
	}

	threads, err := page.ResolveAll(ctx, w.feed, w.threads)
	if err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}

	if index >= len(threads) {
		err := w.settle.Until(ctx, "more comment threads", func(ctx context.Context) (bool, error) {
			threads, err = page.ResolveAll(ctx, w.feed, w.threads)
			if err != nil {
				return false, err
			}
			return index < len(threads), nil
		})
		if errors.Is(err, page.ErrTimeout) {
			w.logger.Debug("end of comment feed", "threads", len(threads))
			w.done = true
			return nil, ErrEnd
		}
		if err != nil {
			return nil, fmt.Errorf("list threads: %w", err)
		}
	}

	thread := threads[index]
	if err := thread.ScrollIntoView(ctx); err != nil {
		return nil, fmt.Errorf("scroll thread %d into view: %w", index, err)
	}
	return thread, nil
}

// Done reports whether the walker has reached the end of the feed.
func (w *Walker) Done() bool {
	return w.done
}
