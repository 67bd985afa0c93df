package pipeline

import (
	"context"
	"log/slog"

	"github.com/nao1215/magicscraper/internal/model"
)

// Step is one stage of the per-URL extraction loop.
type Step interface {
	// Do works on result. Problems that should not end the loop are
	// recorded on result and nil is returned.
	Do(ctx context.Context, result *model.Result) error

	// Name identifies the step in logs and in Result.PerformedSteps.
	Name() string
}

// Pipeline runs its steps in order on a single Result.
type Pipeline struct {
	steps  []Step
	logger *slog.Logger

	// continueOnError keeps running later steps after a failed one.
	continueOnError bool
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger. slog.Default is used otherwise.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError makes a failed step non-fatal: its error is recorded
// on the result and the next step runs. Cancellation still stops the run.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates an empty Pipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// AddStep appends step.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends steps in order.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs every step on result.
//
// When ctx is done, before or during a step, the result is marked timed out
// and ctx's error is returned. A failing step ends the run unless
// continueOnError is set.
func (p *Pipeline) Execute(ctx context.Context, result *model.Result) error {
	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("extraction cancelled", "url", result.OriginalURL, "next_step", step.Name())
			result.TimedOut = true
			return err
		}

		log := p.logger.With("url", result.OriginalURL, "step", step.Name())
		log.Debug("step started")

		err := step.Do(ctx, result)
		result.PerformedSteps = append(result.PerformedSteps, step.Name())

		switch {
		case err == nil:
			log.Debug("step finished", "complete", result.Complete, "tokens", result.TokensUsed)
		case ctx.Err() != nil:
			result.TimedOut = true
			return ctx.Err()
		default:
			log.Error("step failed", "error", err)
			result.AddError(err)
			if !p.continueOnError {
				return err
			}
		}
	}
	return nil
}

// StepCount returns the number of steps.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the step names in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, 0, len(p.steps))
	for _, step := range p.steps {
		names = append(names, step.Name())
	}
	return names
}
