package crawler

import (
	"context"
	"log/slog"

	"github.com/nao1215/commentcrawl/internal/model"
)

// Emitter turns harvested threads into rows and writes them to a sink.
type Emitter struct {
	sink   Sink
	logger *slog.Logger
}

// NewEmitter creates an Emitter writing to sink.
func NewEmitter(sink Sink, logger *slog.Logger) *Emitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Emitter{sink: sink, logger: logger}
}

// Emit assigns ids to thread from state and writes the batch.
// The advanced state is returned only when the sink accepted the batch;
// on error the caller keeps the old state.
func (e *Emitter) Emit(ctx context.Context, state model.CrawlState, thread model.Thread) ([]model.CommentRecord, model.CrawlState, error) {
	batch, next := state.Batch(thread)
	if err := e.sink.Emit(ctx, batch); err != nil {
		return nil, state, err
	}
	e.logger.Debug("batch written", "first_id", batch[0].ID, "rows", len(batch))
	return batch, next, nil
}
