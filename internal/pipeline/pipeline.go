package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/nao1215/commentcrawl/internal/model"
)

// Step defines the interface that all pipeline steps must implement.
// Steps are executed in sequence, with each step receiving the accumulated
// report from previous steps.
//
// Design decision: We use an interface rather than function types because
// it allows steps to carry configuration state and provides a Name() method
// for logging and debugging.
type Step interface {
	// Do executes the pipeline step.
	// It receives the context for cancellation, and the report to modify.
	// Returns an error if the step fails critically; non-critical errors
	// should be logged and return nil.
	Do(ctx context.Context, report *model.CrawlReport) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline orchestrates the execution of multiple steps.
// It maintains a list of steps and executes them in order, followed by
// the final steps, which always run.
type Pipeline struct {
	// steps contains the ordered list of steps to execute.
	steps []Step

	// finalSteps run after steps, even when a step failed or the context
	// was cancelled. They release what the earlier steps acquired.
	finalSteps []Step

	// logger is used for structured logging during execution.
	logger *slog.Logger

	// continueOnError determines whether to continue executing steps
	// after one fails. If false, the pipeline stops on first error.
	continueOnError bool

	// timeout bounds the regular steps. Zero means no deadline.
	timeout time.Duration
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
// If not set, slog.Default() is used.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError configures the pipeline to continue execution
// even when a step fails. The first error is still recorded in the report.
//
// Design decision: The default is to stop on error because in a crawl every
// step depends on the previous one: there is nothing to log into without a
// tab and nothing to crawl into without a sink.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// WithTimeout bounds the regular steps of one Execute call. Final steps
// still run after the deadline. Zero or negative disables the deadline.
func WithTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		p.timeout = d
	}
}

// New creates a new Pipeline with the given options.
// Steps should be added using AddStep after creation.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps:           make([]Step, 0),
		continueOnError: false,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p
}

// AddStep appends a step to the pipeline.
// Steps are executed in the order they are added.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// AddFinalSteps appends steps that run after all other steps regardless of
// their outcome. Final steps run with a context that is not cancelled.
func (p *Pipeline) AddFinalSteps(steps ...Step) {
	p.finalSteps = append(p.finalSteps, steps...)
}

// Execute runs all pipeline steps in sequence, then the final steps.
//
// Design decision: We check context.Done() before each step rather than
// during, because steps handle their own timeouts.
//
// Returns the first error encountered. The report always carries it too,
// along with FinishedAt.
func (p *Pipeline) Execute(ctx context.Context, report *model.CrawlReport) error {
	runCtx := ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	err := p.run(runCtx, report)

	report.FinishedAt = time.Now()
	if errors.Is(err, context.DeadlineExceeded) {
		report.TimedOut = true
	}

	cleanupCtx := context.WithoutCancel(ctx)
	for _, step := range p.finalSteps {
		if ferr := p.runStep(cleanupCtx, step, report); ferr != nil && err == nil {
			err = ferr
		}
	}

	return err
}

func (p *Pipeline) run(ctx context.Context, report *model.CrawlReport) error {
	var firstErr error
	for _, step := range p.steps {
		// Check for cancellation before starting each step
		select {
		case <-ctx.Done():
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"target", report.TargetID,
				"reason", ctx.Err(),
			)
			if firstErr == nil {
				firstErr = ctx.Err()
				report.SetError(firstErr)
			}
			return firstErr
		default:
		}

		if err := p.runStep(ctx, step, report); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			if !p.continueOnError {
				return err
			}
		}
	}
	return firstErr
}

func (p *Pipeline) runStep(ctx context.Context, step Step, report *model.CrawlReport) error {
	p.logger.Info("executing step",
		"step", step.Name(),
		"target", report.TargetID,
	)

	if err := step.Do(ctx, report); err != nil {
		p.logger.Error("step failed",
			"step", step.Name(),
			"target", report.TargetID,
			"error", err,
		)
		if report.Error == nil {
			report.SetError(err)
		}
		return err
	}

	p.logger.Debug("step completed",
		"step", step.Name(),
		"target", report.TargetID,
	)
	report.AddStep(step.Name())
	return nil
}

// StepCount returns the number of steps in the pipeline, final steps included.
func (p *Pipeline) StepCount() int {
	return len(p.steps) + len(p.finalSteps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, 0, p.StepCount())
	for _, step := range p.steps {
		names = append(names, step.Name())
	}
	for _, step := range p.finalSteps {
		names = append(names, step.Name())
	}
	return names
}
