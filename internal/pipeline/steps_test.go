package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/nao1215/commentcrawl/internal/crawler"
	"github.com/nao1215/commentcrawl/internal/model"
	"github.com/nao1215/commentcrawl/internal/page"
	"github.com/nao1215/commentcrawl/internal/page/pagetest"
	"github.com/nao1215/commentcrawl/internal/sink"
)

// fakeBrowser hands out one prepared page and records lifecycle calls.
type fakeBrowser struct {
	page    *pagetest.Page
	openErr error
	saveErr error

	mu     sync.Mutex
	closed int
	saved  []string
}

func (b *fakeBrowser) OpenPage(context.Context) (page.Page, func() error, error) {
	if b.openErr != nil {
		return nil, nil, b.openErr
	}
	return b.page, func() error {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.closed++
		return nil
	}, nil
}

func (b *fakeBrowser) SaveSession(path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.saved = append(b.saved, path)
	return b.saveErr
}

// recordingSink keeps rows in memory and records Finish and Close.
type recordingSink struct {
	rows     []model.CommentRecord
	emitErr  error
	finished *model.CrawlReport
	closed   bool
}

func (s *recordingSink) Emit(_ context.Context, batch []model.CommentRecord) error {
	if s.emitErr != nil {
		return s.emitErr
	}
	s.rows = append(s.rows, batch...)
	return nil
}

func (s *recordingSink) Finish(_ context.Context, report *model.CrawlReport) error {
	s.finished = report
	return nil
}

func (s *recordingSink) Close() error {
	s.closed = true
	return nil
}

func instantEngine() *crawler.Engine {
	return crawler.NewEngine(
		crawler.WithTiming(crawler.Timing{}),
		crawler.WithLogger(discardLogger()),
	)
}

// examplePage renders thread A with replies on two pages and thread B without replies.
func examplePage(loggedIn bool) *pagetest.Page {
	return pagetest.NewWidgetPage(pagetest.Widget{
		LoggedIn: loggedIn,
		Threads: []pagetest.Thread{
			{
				Text:     "A",
				ViewMore: true,
				Pages: [][]pagetest.Reply{
					{{Text: "a1"}, {Text: "a2"}},
					{{Text: "a3"}},
				},
			},
			{Text: "B"},
		},
	})
}

func newDeps(b *fakeBrowser, out *recordingSink, creds crawler.Credentials) Deps {
	engine := instantEngine()
	return Deps{
		Pages: b,
		OpenSink: func(_ context.Context, r *model.CrawlReport) (sink.Sink, error) {
			r.Output = "memory"
			return out, nil
		},
		Auth:        engine.Authenticator(creds),
		Crawler:     engine,
		Sessions:    b,
		SessionFile: "session.json",
		Logger:      discardLogger(),
	}
}

// TestNewCrawlPipeline runs the whole pipeline against the in-memory widget.
func TestNewCrawlPipeline(t *testing.T) {
	t.Parallel()

	t.Run("crawls a logged-in page", func(t *testing.T) {
		t.Parallel()

		b := &fakeBrowser{page: examplePage(true)}
		out := &recordingSink{}
		p := NewCrawlPipeline(testTarget, newDeps(b, out, crawler.Credentials{}))

		report := model.NewCrawlReport(testTarget)
		if err := p.Execute(context.Background(), report); err != nil {
			t.Fatalf("Execute() error = %v", err)
		}

		want := []model.CommentRecord{
			{ID: 1, Contents: "A"},
			{ID: 2, Contents: "a1", ParentID: 1},
			{ID: 3, Contents: "a2", ParentID: 1},
			{ID: 4, Contents: "a3", ParentID: 1},
			{ID: 5, Contents: "B"},
		}
		if len(out.rows) != len(want) {
			t.Fatalf("got %d rows, want %d: %+v", len(out.rows), len(want), out.rows)
		}
		for i := range want {
			if out.rows[i].ID != want[i].ID || out.rows[i].Contents != want[i].Contents || out.rows[i].ParentID != want[i].ParentID {
				t.Errorf("row %d = %+v, want %+v", i, out.rows[i], want[i])
			}
		}

		if !report.LoggedIn || report.Stats.Rows != 5 || report.Output != "memory" {
			t.Errorf("report = %+v", report)
		}
		if out.finished != report || !out.closed || b.closed != 1 {
			t.Errorf("cleanup: finished=%v closed=%v pageClosed=%d", out.finished != nil, out.closed, b.closed)
		}
		if len(b.saved) != 1 || b.saved[0] != "session.json" {
			t.Errorf("saved sessions = %v", b.saved)
		}
		if b.page.URL() != testTarget.URL {
			t.Errorf("navigated to %q", b.page.URL())
		}
	})

	t.Run("logs in with credentials", func(t *testing.T) {
		t.Parallel()

		b := &fakeBrowser{page: examplePage(false)}
		out := &recordingSink{}
		p := NewCrawlPipeline(testTarget, newDeps(b, out, crawler.Credentials{Account: "user", Password: "pw"}))

		report := model.NewCrawlReport(testTarget)
		if err := p.Execute(context.Background(), report); err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		if !report.LoggedIn {
			t.Error("expected LoggedIn after the login sequence")
		}
		if b.page.Count("input") != 2 {
			t.Errorf("inputs = %d, want account and password", b.page.Count("input"))
		}
	})

	t.Run("anonymous crawl does not save a session", func(t *testing.T) {
		t.Parallel()

		b := &fakeBrowser{page: examplePage(false)}
		out := &recordingSink{}
		p := NewCrawlPipeline(testTarget, newDeps(b, out, crawler.Credentials{}))

		report := model.NewCrawlReport(testTarget)
		if err := p.Execute(context.Background(), report); err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		if report.LoggedIn || len(b.saved) != 0 {
			t.Errorf("LoggedIn = %v, saved = %v", report.LoggedIn, b.saved)
		}
		if len(out.rows) != 5 {
			t.Errorf("got %d rows, want 5", len(out.rows))
		}
	})

	t.Run("sink failure keeps earlier steps and still cleans up", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("disk full")
		b := &fakeBrowser{page: examplePage(true)}
		out := &recordingSink{emitErr: boom}
		p := NewCrawlPipeline(testTarget, newDeps(b, out, crawler.Credentials{}))

		report := model.NewCrawlReport(testTarget)
		if err := p.Execute(context.Background(), report); !errors.Is(err, boom) {
			t.Fatalf("Execute() error = %v, want disk full", err)
		}
		if !out.closed || b.closed != 1 {
			t.Error("final steps did not run")
		}
		if out.finished == nil || out.finished.ErrorMessage == "" {
			t.Error("sink should be finished with the failed report")
		}
	})

	t.Run("open page failure skips everything else", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("no browser")
		b := &fakeBrowser{openErr: boom}
		out := &recordingSink{}
		p := NewCrawlPipeline(testTarget, newDeps(b, out, crawler.Credentials{}))

		report := model.NewCrawlReport(testTarget)
		if err := p.Execute(context.Background(), report); !errors.Is(err, boom) {
			t.Fatalf("Execute() error = %v, want no browser", err)
		}
		if out.closed || b.closed != 0 {
			t.Error("nothing was opened, so nothing should be closed")
		}
	})

	t.Run("pipeline step names", func(t *testing.T) {
		t.Parallel()

		deps := newDeps(&fakeBrowser{}, &recordingSink{}, crawler.Credentials{})
		want := []string{"open_page", "open_sink", "authenticate", "save_session", "crawl", "close_sink", "close_page"}
		got := NewCrawlPipeline(testTarget, deps).StepNames()
		if len(got) != len(want) {
			t.Fatalf("StepNames() = %v", got)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("step %d = %s, want %s", i, got[i], want[i])
			}
		}

		deps.Sessions = nil
		if n := NewCrawlPipeline(testTarget, deps).StepCount(); n != len(want)-1 {
			t.Errorf("StepCount() without sessions = %d, want %d", n, len(want)-1)
		}
	})
}

// TestStepsWithoutSession tests guards against missing state.
func TestStepsWithoutSession(t *testing.T) {
	t.Parallel()

	s := NewSession(testTarget)
	engine := instantEngine()
	report := model.NewCrawlReport(testTarget)

	if err := NewAuthenticateStep(engine.Authenticator(crawler.Credentials{}), s).Do(context.Background(), report); !errors.Is(err, ErrNoPage) {
		t.Errorf("authenticate error = %v, want ErrNoPage", err)
	}
	if err := NewCrawlStep(engine, s).Do(context.Background(), report); !errors.Is(err, ErrNoPage) {
		t.Errorf("crawl error = %v, want ErrNoPage", err)
	}

	s.Page = examplePage(true)
	if err := NewCrawlStep(engine, s).Do(context.Background(), report); !errors.Is(err, ErrNoSink) {
		t.Errorf("crawl error = %v, want ErrNoSink", err)
	}

	if err := NewCloseSinkStep(s).Do(context.Background(), report); err != nil {
		t.Errorf("close_sink without sink error = %v", err)
	}
	if err := NewClosePageStep(s).Do(context.Background(), report); err != nil {
		t.Errorf("close_page without page error = %v", err)
	}
}

// TestSaveSessionStepIgnoresFailure tests that a failed save does not fail the crawl.
func TestSaveSessionStepIgnoresFailure(t *testing.T) {
	t.Parallel()

	b := &fakeBrowser{saveErr: errors.New("read-only")}
	report := model.NewCrawlReport(testTarget)
	report.LoggedIn = true

	if err := NewSaveSessionStep(b, "s.json", discardLogger()).Do(context.Background(), report); err != nil {
		t.Errorf("Do() error = %v, want nil", err)
	}
	if err := NewSaveSessionStep(b, "", nil).Do(context.Background(), report); err != nil {
		t.Errorf("Do() without path error = %v", err)
	}
	if len(b.saved) != 1 {
		t.Errorf("SaveSession calls = %d, want 1", len(b.saved))
	}
}
