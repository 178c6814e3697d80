package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"

	"github.com/nao1215/commentcrawl/internal/model"
	"github.com/nao1215/commentcrawl/internal/page"
)

// digits finds the reply count in the "view more" label ("共23条回复").
var digits = regexp.MustCompile(`\d+`)

// Paginator harvests one thread: the top-level comment and every reply on
// every reply page.
type Paginator struct {
	paths    paths
	timing   Timing
	maxPages int
	logger   *slog.Logger
}

// Paginator returns a Paginator using the engine's selectors and timing.
func (e *Engine) Paginator() *Paginator {
	return &Paginator{
		paths:    e.paths,
		timing:   e.timing,
		maxPages: e.maxReplyPages,
		logger:   e.logger,
	}
}

// Collect extracts the thread rooted at thread. A missing required field
// yields an *ExtractionError and nothing else. Missing optional controls
// ("view more", page controls, "collapse") are not errors.
func (p *Paginator) Collect(ctx context.Context, thread page.Element, cursor *model.ThreadCursor) (model.Thread, error) {
	parent, err := p.extract(ctx, thread, p.paths.parentText, p.paths.parentActions, cursor.ThreadIndex, -1)
	if err != nil {
		return model.Thread{}, err
	}
	out := model.Thread{Parent: parent}

	replies, err := p.timing.Probe.Lookup(ctx, thread, p.paths.replies)
	if err != nil {
		return model.Thread{}, fmt.Errorf("thread %d: locate replies: %w", cursor.ThreadIndex, err)
	}
	if replies == nil {
		p.logger.Debug("thread has no reply container", "thread", cursor.ThreadIndex)
		return out, nil
	}

	if err := p.expand(ctx, replies, cursor); err != nil {
		return model.Thread{}, err
	}

	out.Replies, err = p.readPages(ctx, replies, cursor)
	if err != nil {
		return model.Thread{}, err
	}

	p.collapse(ctx, replies, cursor.ThreadIndex)
	return out, nil
}

// extract reads contents, pubdate and like count below root.
func (p *Paginator) extract(ctx context.Context, root page.Element, text, actions page.Path, thread, reply int) (model.Comment, error) {
	fail := func(field string, err error) (model.Comment, error) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return model.Comment{}, ctxErr
		}
		return model.Comment{}, &ExtractionError{Thread: thread, Reply: reply, Field: field, Err: err}
	}

	textEl, err := p.timing.Ready.Find(ctx, root, text)
	if err != nil {
		return fail("contents", err)
	}
	contents, err := textEl.Text(ctx)
	if err != nil {
		return fail("contents", err)
	}

	bar, err := p.timing.Ready.Find(ctx, root, actions)
	if err != nil {
		return fail("actions", err)
	}
	pubdate, err := page.TextAt(ctx, bar, p.paths.pubDate)
	if err != nil {
		return fail("pubdate", err)
	}
	likes, err := page.TextAt(ctx, bar, p.paths.likes)
	if err != nil {
		return fail("like_count", err)
	}

	return model.Comment{Contents: contents, PubDate: pubdate, LikeCount: likes}, nil
}

// expand clicks the "view more" control when there is one.
func (p *Paginator) expand(ctx context.Context, replies page.Element, cursor *model.ThreadCursor) error {
	viewMore, err := p.timing.Probe.Lookup(ctx, replies, p.paths.viewMore)
	if err != nil {
		return fmt.Errorf("thread %d: locate view-more: %w", cursor.ThreadIndex, err)
	}
	if viewMore == nil {
		p.logger.Debug("no view-more control", "thread", cursor.ThreadIndex)
		return nil
	}

	if label, err := page.TextAt(ctx, viewMore, p.paths.viewMoreLabel); err == nil {
		if n, ok := parseReplyCount(label); ok {
			cursor.ReplyCountHint = n
		}
	}

	button, err := p.timing.Probe.Lookup(ctx, viewMore, p.paths.viewMoreBt)
	if err != nil {
		return fmt.Errorf("thread %d: locate view-more button: %w", cursor.ThreadIndex, err)
	}
	if button == nil {
		p.logger.Debug("view-more control has no button", "thread", cursor.ThreadIndex)
		return nil
	}

	p.logger.Debug("expanding replies", "thread", cursor.ThreadIndex, "replies", cursor.ReplyCountHint)
	if err := button.ScrollIntoView(ctx); err != nil {
		return fmt.Errorf("thread %d: scroll to view-more: %w", cursor.ThreadIndex, err)
	}
	if err := button.Click(ctx); err != nil {
		return fmt.Errorf("thread %d: click view-more: %w", cursor.ThreadIndex, err)
	}

	err = p.timing.Settle.Until(ctx, "expanded replies", func(ctx context.Context) (bool, error) {
		items, err := page.ResolveAll(ctx, replies, p.paths.replyList)
		return len(items) > 0, err
	})
	if err != nil && !errors.Is(err, page.ErrTimeout) {
		return fmt.Errorf("thread %d: wait for replies: %w", cursor.ThreadIndex, err)
	}
	return nil
}

// readPages collects the replies on the current page, then follows the
// next-page control until the last page.
func (p *Paginator) readPages(ctx context.Context, replies page.Element, cursor *model.ThreadCursor) ([]model.Comment, error) {
	var out []model.Comment
	pc := model.PaginationCursor{Page: 1}

	for {
		items, err := page.ResolveAll(ctx, replies, p.paths.replyList)
		if err != nil {
			return nil, fmt.Errorf("thread %d: list replies: %w", cursor.ThreadIndex, err)
		}

		first := ""
		for i, item := range items {
			c, err := p.extract(ctx, item, p.paths.replyText, p.paths.replyActions, cursor.ThreadIndex, cursor.RepliesSeen)
			if err != nil {
				return nil, err
			}
			if i == 0 {
				first = c.Contents
			}
			out = append(out, c)
			cursor.RepliesSeen++
		}
		cursor.ReplyPages++

		next, err := p.nextControl(ctx, replies, &pc)
		if err != nil {
			return nil, fmt.Errorf("thread %d: read page controls: %w", cursor.ThreadIndex, err)
		}
		if next == nil {
			return out, nil
		}
		if pc.Page >= p.maxPages {
			p.logger.Warn("reply page limit reached", "thread", cursor.ThreadIndex, "max_reply_pages", p.maxPages)
			return out, nil
		}

		if err := next.ScrollIntoView(ctx); err != nil {
			return nil, fmt.Errorf("thread %d: scroll to next page: %w", cursor.ThreadIndex, err)
		}
		if err := next.Click(ctx); err != nil {
			return nil, fmt.Errorf("thread %d: click next page: %w", cursor.ThreadIndex, err)
		}
		pc.Page++

		if err := p.awaitPage(ctx, replies, first, pc.Page); err != nil {
			if !errors.Is(err, page.ErrTimeout) {
				return nil, fmt.Errorf("thread %d: %w", cursor.ThreadIndex, err)
			}
			p.logger.Warn("reply list did not change after paging", "thread", cursor.ThreadIndex, "page", pc.Page)
		}
	}
}

// nextControl returns the next-page control, or nil on the last page or
// when the thread has no page controls.
func (p *Paginator) nextControl(ctx context.Context, replies page.Element, pc *model.PaginationCursor) (page.Element, error) {
	region, err := p.timing.Probe.Lookup(ctx, replies, p.paths.pagination)
	if err != nil || region == nil {
		pc.HasMorePages = false
		return nil, err
	}
	if pc.Page == 1 {
		if err := region.ScrollIntoView(ctx); err != nil {
			return nil, err
		}
	}

	buttons, err := page.ResolveAll(ctx, region, p.paths.pageButtons)
	if err != nil {
		return nil, err
	}
	pc.ButtonCount = len(buttons)
	if len(buttons) == 0 {
		pc.HasMorePages = false
		return nil, nil
	}

	last := buttons[len(buttons)-1]
	label, err := last.Text(ctx)
	if err != nil {
		return nil, err
	}
	pc.HasMorePages = label == p.paths.nextPageLabel
	if !pc.HasMorePages {
		return nil, nil
	}
	return last, nil
}

// awaitPage polls until the first rendered reply differs from previous.
func (p *Paginator) awaitPage(ctx context.Context, replies page.Element, previous string, pageNo int) error {
	return p.timing.Settle.Until(ctx, "reply page "+strconv.Itoa(pageNo), func(ctx context.Context) (bool, error) {
		items, err := page.ResolveAll(ctx, replies, p.paths.replyList)
		if err != nil || len(items) == 0 {
			return false, err
		}
		text, err := page.TextAt(ctx, items[0], p.paths.replyText)
		if err != nil {
			if isAbsent(err) {
				return false, nil
			}
			return false, err
		}
		return text != previous, nil
	})
}

// collapse folds the reply list back. Failures are logged and ignored.
func (p *Paginator) collapse(ctx context.Context, replies page.Element, thread int) {
	button, err := p.timing.Probe.Lookup(ctx, replies, p.paths.collapse)
	if err != nil || button == nil {
		p.logger.Debug("no collapse control", "thread", thread)
		return
	}
	if err := button.ScrollIntoView(ctx); err != nil {
		p.logger.Debug("scroll to collapse failed", "thread", thread, "error", err)
		return
	}
	if err := button.Click(ctx); err != nil {
		p.logger.Debug("collapse failed", "thread", thread, "error", err)
	}
}

// parseReplyCount returns the first run of digits in label.
func parseReplyCount(label string) (int, bool) {
	m := digits.FindString(label)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return n, true
}
