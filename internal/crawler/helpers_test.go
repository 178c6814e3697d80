package crawler

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/nao1215/commentcrawl/internal/model"
	"github.com/nao1215/commentcrawl/internal/page"
)

// instantTiming checks every condition once. The in-memory DOM applies
// interactions synchronously, so nothing ever needs a second attempt.
func instantTiming() Timing {
	return Timing{
		Ready:  page.Poller{},
		Probe:  page.Poller{},
		Settle: page.Poller{},
		Login:  page.Poller{},
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(opts ...Option) *Engine {
	base := []Option{WithTiming(instantTiming()), WithLogger(discardLogger())}
	return NewEngine(append(base, opts...)...)
}

// memorySink records every batch it receives.
type memorySink struct {
	mu      sync.Mutex
	batches [][]model.CommentRecord
	err     error
	onEmit  func()
}

func (s *memorySink) Emit(_ context.Context, batch []model.CommentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.batches = append(s.batches, append([]model.CommentRecord(nil), batch...))
	if s.onEmit != nil {
		s.onEmit()
	}
	return nil
}

func (s *memorySink) rows() []model.CommentRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.CommentRecord
	for _, b := range s.batches {
		out = append(out, b...)
	}
	return out
}
