package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/nao1215/threadtracker/internal/model"
)

// Step defines the interface that all pipeline steps must implement.
// Steps are executed in sequence, with each step receiving the run
// built up by the previous ones.
type Step interface {
	// Do executes the pipeline step.
	// Board-side problems are recorded in the run and return nil;
	// an error means the step itself could not work.
	Do(ctx context.Context, run *model.Run) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Finisher is implemented by steps that still run after the run's context
// has ended. They work only on what earlier steps collected, so they get a
// context without cancellation.
type Finisher interface {
	Step

	// Finishes reports whether the step runs after cancellation.
	Finishes() bool
}

func finishes(step Step) bool {
	f, ok := step.(Finisher)
	return ok && f.Finishes()
}

// Pipeline orchestrates the execution of multiple steps.
type Pipeline struct {
	steps []Step

	logger *slog.Logger

	// continueOnError determines whether to continue executing steps
	// after one fails. If false, the pipeline stops on first error.
	continueOnError bool
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
// If not set, slog.Default is used.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError configures the pipeline to continue execution
// even when a step fails. The error is still recorded in the run.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
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

// Execute runs all pipeline steps in sequence.
// Cancellation is checked before each step. Once the context has ended,
// only Finisher steps run, so a cut-short crawl still gets sorted,
// placed and backfilled.
//
// Returns the context error if the run was cut short, the first step error
// if continueOnError is false, or nil (errors are recorded in the run).
func (p *Pipeline) Execute(ctx context.Context, run *model.Run) error {
	defer func() {
		run.FinishedAt = time.Now()
	}()

	var cancelErr error
	for _, step := range p.steps {
		stepCtx := ctx
		if cancelErr == nil && ctx.Err() != nil {
			cancelErr = ctx.Err()
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"user", run.UserID,
				"reason", cancelErr,
			)
			run.TimedOut = true
		}
		if cancelErr != nil {
			if !finishes(step) {
				continue
			}
			stepCtx = context.WithoutCancel(ctx)
		}

		p.logger.Debug("executing step",
			"step", step.Name(),
			"user", run.UserID,
		)

		if err := step.Do(stepCtx, run); err != nil {
			p.logger.Error("step failed",
				"step", step.Name(),
				"user", run.UserID,
				"error", err,
			)

			run.Error = err
			run.ErrorMessage = err.Error()

			if !p.continueOnError {
				return err
			}
		} else {
			p.logger.Debug("step completed",
				"step", step.Name(),
				"user", run.UserID,
			)
		}

		run.PerformedSteps = append(run.PerformedSteps, step.Name())
	}

	return cancelErr
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
