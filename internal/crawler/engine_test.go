package crawler

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/nao1215/commentcrawl/internal/model"
	"github.com/nao1215/commentcrawl/internal/page"
	"github.com/nao1215/commentcrawl/internal/page/pagetest"
)

func TestEngineRunEndToEnd(t *testing.T) {
	t.Parallel()

	p := pagetest.NewWidgetPage(pagetest.Widget{Threads: []pagetest.Thread{
		{
			Text: "A", PubDate: "2024-05-01 10:00", Likes: "12",
			ViewMore: true,
			Pages: [][]pagetest.Reply{
				{{Text: "a1", Likes: "1"}, {Text: "a2"}},
				{{Text: "a3"}},
			},
		},
		{Text: "B", PubDate: "2024-05-02", Likes: "0"},
	}})

	out := &memorySink{}
	stats, err := newTestEngine().Run(context.Background(), p, out)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := []model.CommentRecord{
		{ID: 1, Contents: "A", PubDate: "2024-05-01 10:00", LikeCount: "12"},
		{ID: 2, Contents: "a1", ParentID: 1, LikeCount: "1"},
		{ID: 3, Contents: "a2", ParentID: 1},
		{ID: 4, Contents: "a3", ParentID: 1},
		{ID: 5, Contents: "B", PubDate: "2024-05-02", LikeCount: "0"},
	}
	got := out.rows()
	if len(got) != len(want) {
		t.Fatalf("got %d rows, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("row %d = %+v, want %+v", i, got[i], want[i])
		}
	}

	if len(out.batches) != 2 || len(out.batches[0]) != 4 || len(out.batches[1]) != 1 {
		t.Errorf("batches sizes wrong: %d batches", len(out.batches))
	}

	wantStats := model.CrawlStats{Threads: 2, Replies: 3, Rows: 5, ReplyPages: 2}
	if stats != wantStats {
		t.Errorf("stats = %+v, want %+v", stats, wantStats)
	}
}

func TestEngineRecordOrderingAndIDs(t *testing.T) {
	t.Parallel()

	threads := make([]pagetest.Thread, 0, 4)
	for i := range 4 {
		th := pagetest.Thread{Text: fmt.Sprintf("t%d", i)}
		for j := range i {
			th.Pages = append(th.Pages, []pagetest.Reply{{Text: fmt.Sprintf("t%d-r%d", i, j)}})
		}
		threads = append(threads, th)
	}

	out := &memorySink{}
	if _, err := newTestEngine().Run(context.Background(), pagetest.NewWidgetPage(pagetest.Widget{Threads: threads}), out); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	rows := out.rows()
	var parent int64
	for i, r := range rows {
		if r.ID != int64(i+1) {
			t.Errorf("row %d has id %d, want %d", i, r.ID, i+1)
		}
		if !r.IsReply() {
			parent = r.ID
			continue
		}
		if int64(r.ParentID) != parent {
			t.Errorf("reply %d has parent %d, want %d", r.ID, r.ParentID, parent)
		}
	}

	// 4 parents, 0+1+2+3 replies
	if len(rows) != 10 {
		t.Errorf("got %d rows, want 10", len(rows))
	}
}

func TestEnginePaginationVisitsEachPageOnce(t *testing.T) {
	t.Parallel()

	const pages = 5
	thread := pagetest.Thread{Text: "A", ViewMore: true}
	for i := range pages {
		thread.Pages = append(thread.Pages, []pagetest.Reply{
			{Text: fmt.Sprintf("p%d-1", i)},
			{Text: fmt.Sprintf("p%d-2", i)},
		})
	}
	p := pagetest.NewWidgetPage(pagetest.Widget{Threads: []pagetest.Thread{thread}})

	out := &memorySink{}
	stats, err := newTestEngine().Run(context.Background(), p, out)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if stats.ReplyPages != pages {
		t.Errorf("ReplyPages = %d, want %d", stats.ReplyPages, pages)
	}

	seen := make(map[string]int)
	for _, r := range out.rows() {
		seen[r.Contents]++
	}
	for text, n := range seen {
		if n != 1 {
			t.Errorf("%q collected %d times", text, n)
		}
	}
	if len(seen) != 1+2*pages {
		t.Errorf("collected %d distinct comments, want %d", len(seen), 1+2*pages)
	}

	nextClicks := 0
	for _, e := range p.Events() {
		if e.Kind == "click" && e.Target == "bili-text-button" {
			nextClicks++
		}
	}
	if nextClicks != pages-1 {
		t.Errorf("next-page clicks = %d, want %d", nextClicks, pages-1)
	}
}

func TestEngineOptionalControlsAbsent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		thread pagetest.Thread
		want   []string
	}{
		{
			name:   "no view-more and no pagination",
			thread: pagetest.Thread{Text: "A", Pages: [][]pagetest.Reply{{{Text: "a1"}, {Text: "a2"}}}},
			want:   []string{"A", "a1", "a2"},
		},
		{
			name: "expand control without page controls reads the rendered page",
			thread: pagetest.Thread{
				Text: "A", ViewMore: true, NoPagination: true,
				Pages: [][]pagetest.Reply{{{Text: "a1"}}, {{Text: "a2"}}},
			},
			want: []string{"A", "a1"},
		},
		{
			name:   "empty reply container",
			thread: pagetest.Thread{Text: "A", Pages: [][]pagetest.Reply{}},
			want:   []string{"A"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			out := &memorySink{}
			p := pagetest.NewWidgetPage(pagetest.Widget{Threads: []pagetest.Thread{tt.thread}})
			if _, err := newTestEngine().Run(context.Background(), p, out); err != nil {
				t.Fatalf("Run() error = %v", err)
			}

			rows := out.rows()
			if len(rows) != len(tt.want) {
				t.Fatalf("got %d rows, want %d", len(rows), len(tt.want))
			}
			for i, w := range tt.want {
				if rows[i].Contents != w {
					t.Errorf("row %d = %q, want %q", i, rows[i].Contents, w)
				}
			}
		})
	}
}

func TestEngineExtractionPolicy(t *testing.T) {
	t.Parallel()

	widget := pagetest.Widget{Threads: []pagetest.Thread{
		{Text: "A", Pages: [][]pagetest.Reply{{{Text: "a1"}}}},
		{Text: "broken", OmitContents: true, Pages: [][]pagetest.Reply{{{Text: "x1"}}}},
		{Text: "C"},
	}}

	t.Run("abort keeps earlier batches", func(t *testing.T) {
		t.Parallel()

		out := &memorySink{}
		_, err := newTestEngine().Run(context.Background(), pagetest.NewWidgetPage(widget), out)

		var xe *ExtractionError
		if !errors.As(err, &xe) {
			t.Fatalf("Run() error = %v, want *ExtractionError", err)
		}
		if xe.Thread != 1 || xe.Field != "contents" || xe.Reply != -1 {
			t.Errorf("ExtractionError = %+v", xe)
		}
		if !errors.Is(err, page.ErrTimeout) {
			t.Errorf("error should wrap the lookup timeout: %v", err)
		}
		if len(out.rows()) != 2 {
			t.Errorf("kept %d rows, want the 2 rows of the first thread", len(out.rows()))
		}
	})

	t.Run("skip leaves no id gap", func(t *testing.T) {
		t.Parallel()

		out := &memorySink{}
		stats, err := newTestEngine(WithExtractionPolicy(PolicySkip)).Run(context.Background(), pagetest.NewWidgetPage(widget), out)
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if stats.SkippedThreads != 1 {
			t.Errorf("SkippedThreads = %d, want 1", stats.SkippedThreads)
		}

		rows := out.rows()
		wantText := []string{"A", "a1", "C"}
		if len(rows) != len(wantText) {
			t.Fatalf("got %d rows, want %d", len(rows), len(wantText))
		}
		for i, w := range wantText {
			if rows[i].ID != int64(i+1) || rows[i].Contents != w {
				t.Errorf("row %d = %+v, want id %d %q", i, rows[i], i+1, w)
			}
		}
	})
}

func TestEngineLimits(t *testing.T) {
	t.Parallel()

	t.Run("max reply pages", func(t *testing.T) {
		t.Parallel()

		p := pagetest.NewWidgetPage(pagetest.Widget{Threads: []pagetest.Thread{{
			Text: "A", ViewMore: true,
			Pages: [][]pagetest.Reply{{{Text: "a1"}}, {{Text: "a2"}}, {{Text: "a3"}}},
		}}})

		out := &memorySink{}
		if _, err := newTestEngine(WithMaxReplyPages(2)).Run(context.Background(), p, out); err != nil {
			t.Fatal(err)
		}
		if got := len(out.rows()); got != 3 {
			t.Errorf("got %d rows, want parent plus two pages", got)
		}
	})

	t.Run("max threads", func(t *testing.T) {
		t.Parallel()

		p := pagetest.NewWidgetPage(pagetest.Widget{Threads: []pagetest.Thread{{Text: "A"}, {Text: "B"}, {Text: "C"}}})

		out := &memorySink{}
		stats, err := newTestEngine(WithMaxThreads(2)).Run(context.Background(), p, out)
		if err != nil {
			t.Fatal(err)
		}
		if stats.Threads != 2 {
			t.Errorf("Threads = %d, want 2", stats.Threads)
		}
	})
}

func TestEngineSinkAndContextErrors(t *testing.T) {
	t.Parallel()

	widget := pagetest.Widget{Threads: []pagetest.Thread{{Text: "A"}, {Text: "B"}}}

	t.Run("sink error", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("disk full")
		_, err := newTestEngine().Run(context.Background(), pagetest.NewWidgetPage(widget), &memorySink{err: boom})
		if !errors.Is(err, boom) {
			t.Errorf("Run() error = %v, want %v", err, boom)
		}
	})

	t.Run("cancellation between threads", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		out := &memorySink{onEmit: cancel}
		_, err := newTestEngine().Run(ctx, pagetest.NewWidgetPage(widget), out)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() error = %v, want context.Canceled", err)
		}
		if len(out.rows()) != 1 {
			t.Errorf("kept %d rows, want 1", len(out.rows()))
		}
	})

	t.Run("page without comment section", func(t *testing.T) {
		t.Parallel()

		_, err := newTestEngine().Run(context.Background(), pagetest.MustNew(`<html><body></body></html>`), &memorySink{})
		if !errors.Is(err, page.ErrTimeout) {
			t.Errorf("Run() error = %v, want ErrTimeout", err)
		}
	})
}
