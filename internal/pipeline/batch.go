package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/commentcrawl/internal/model"
)

// Factory builds the pipeline for one target.
type Factory func(target model.Target) *Pipeline

// BatchProcessor crawls several targets concurrently.
// It uses errgroup to manage goroutines and respect concurrency limits.
//
// Design decision: We use a separate BatchProcessor rather than adding batch
// functionality to Pipeline because it keeps the Pipeline focused on a
// single target, and every target gets a fresh pipeline from the factory
// so that tabs and sinks are never shared.
type BatchProcessor struct {
	// factory creates a new pipeline for each target.
	factory Factory

	// concurrency is the maximum number of concurrent crawls.
	concurrency int

	// logger is used for batch-level logging.
	logger *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent crawls.
// Default is 1: one tab at a time looks like one person reading.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor.
func NewBatchProcessor(factory Factory, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		factory:     factory,
		concurrency: 1,
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// ProcessBatch crawls every target, respecting the concurrency limit and
// context cancellation.
//
// Design decision: We use errgroup.SetLimit rather than a worker pool
// because it's simpler and errgroup handles the concurrency correctly.
//
// Returns one report per target in target order, even for targets that
// failed. A target that never started because the context was cancelled
// gets a report carrying the context error.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, targets []model.Target) ([]*model.CrawlReport, error) {
	reports := make([]*model.CrawlReport, len(targets))
	err := bp.ProcessBatchWithCallback(ctx, targets, func(report *model.CrawlReport, index int) {
		// Each index is written by exactly one goroutine.
		reports[index] = report
	})

	for i, r := range reports {
		if r == nil {
			r = model.NewCrawlReport(targets[i])
			r.SetError(ctx.Err())
			reports[i] = r
		}
	}
	return reports, err
}

// ProcessBatchWithCallback crawls every target and calls callback for each
// completed crawl. The callback is called from the goroutine that ran the
// crawl, so it must be safe for concurrent use when concurrency is above one.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	targets []model.Target,
	callback func(report *model.CrawlReport, index int),
) error {
	bp.logger.Info("starting batch processing",
		"total_targets", len(targets),
		"concurrency", bp.concurrency,
	)
	startTime := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, target := range targets {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			bp.logger.Info("crawling target",
				"target", target.ID,
				"index", i+1,
				"total", len(targets),
			)

			report := model.NewCrawlReport(target)
			if err := bp.factory(target).Execute(ctx, report); err != nil {
				// Don't return the error to errgroup: the other targets keep going.
				bp.logger.Warn("crawl failed",
					"target", target.ID,
					"error", err,
				)
			} else {
				bp.logger.Info("crawl completed",
					"target", target.ID,
					"rows", report.Stats.Rows,
				)
			}

			callback(report, i)
			return nil
		})
	}

	err := g.Wait()

	bp.logger.Info("batch processing complete",
		"total_targets", len(targets),
		"elapsed", time.Since(startTime),
	)

	return err
}
