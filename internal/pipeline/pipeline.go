package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/nao1215/neardup/internal/model"
)

// Step is one stage of a run. Each step sees the document set left by the
// previous one and may replace it.
//
// Design decision: Steps are values carrying their own collaborators (hash
// family, classifier, sink), so the pipeline itself knows nothing about
// deduplication and every step can be tested alone with a hand-made Run.
type Step interface {
	// Do executes the step. A returned error is fatal for the run;
	// problems with single documents are recorded with run.AddFailure.
	Do(ctx context.Context, run *model.Run) error

	// Name identifies the step in logs and the report.
	Name() string
}

// Pipeline runs steps in order and records what each one did.
type Pipeline struct {
	steps  []Step
	logger *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New creates an empty pipeline.
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

// AddStep appends a step.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// StepNames returns the step names in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}

// Execute runs the steps in order and stops at the first error.
//
// A failed step leaves the document set half processed, so no later step
// runs on it: in particular nothing reaches the sink. Cancellation is
// checked before each step and marks the report as timed out. FinishedAt is
// stamped on every return path.
func (p *Pipeline) Execute(ctx context.Context, run *model.Run) error {
	report := run.Report
	defer func() { report.FinishedAt = time.Now() }()

	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("run cancelled before step", "step", step.Name(), "reason", err)
			report.TimedOut = true
			return err
		}

		if err := p.runStep(ctx, step, run); err != nil {
			report.Error = err.Error()
			if ctx.Err() != nil {
				report.TimedOut = true
			}
			return err
		}
		report.PerformedSteps = append(report.PerformedSteps, step.Name())
	}
	return nil
}

// runStep executes one step and appends its StepResult.
func (p *Pipeline) runStep(ctx context.Context, step Step, run *model.Run) error {
	result := model.StepResult{
		Name:        step.Name(),
		DocumentsIn: len(run.Documents),
	}
	p.logger.Info("step started", "step", result.Name, "documents", result.DocumentsIn)

	started := time.Now()
	err := step.Do(ctx, run)
	elapsed := time.Since(started)

	result.DocumentsOut = len(run.Documents)
	result.ElapsedMS = elapsed.Milliseconds()
	result.Failed = err != nil
	run.Report.StepResults = append(run.Report.StepResults, result)

	if err != nil {
		p.logger.Error("step failed", "step", result.Name, "error", err)
		return err
	}
	p.logger.Debug("step finished",
		"step", result.Name,
		"documents_in", result.DocumentsIn,
		"documents_out", result.DocumentsOut,
		"elapsed", elapsed.Round(time.Millisecond),
	)
	return nil
}
