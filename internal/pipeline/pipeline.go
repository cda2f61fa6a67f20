package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/nao1215/pagetrail/internal/model"
)

// Job is one capture of one URL in one tab.
type Job struct {
	// TabID is the tab the capture was queued for.
	TabID int

	// URL is the URL that was navigated to when the job was queued.
	URL string

	// PageID is the tracked page that was current for the tab when the job
	// was queued, or "" if none matched URL.
	PageID string

	// Superseded is set when the tab showed another URL while the job waited.
	Superseded bool

	// QueuedAt is when the job was created.
	QueuedAt time.Time

	// Result is filled in by the scrape step.
	Result *model.FetchedPage

	// Attributed is true once the result has been linked to a tracked page.
	Attributed bool

	// Completed lists the names of the steps that finished successfully.
	Completed []string
}

// Step defines the interface that all capture steps implement.
// Steps run in sequence and share the Job.
type Step interface {
	// Do executes the step. A returned error stops the pipeline.
	Do(ctx context.Context, job *Job) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// StepFunc adapts a function to the Step interface.
type StepFunc struct {
	name string
	fn   func(ctx context.Context, job *Job) error
}

// NewStep returns a Step that calls fn.
func NewStep(name string, fn func(ctx context.Context, job *Job) error) *StepFunc {
	return &StepFunc{name: name, fn: fn}
}

// Do implements Step.
func (s *StepFunc) Do(ctx context.Context, job *Job) error {
	return s.fn(ctx, job)
}

// Name implements Step.
func (s *StepFunc) Name() string {
	return s.name
}

// Pipeline orchestrates the execution of multiple steps.
type Pipeline struct {
	steps  []Step
	logger *slog.Logger
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New creates a new Pipeline with the given options.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
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
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all steps in sequence and stops at the first failure.
// Cancellation is checked before each step; steps handle their own timeouts.
// A step failure is returned as a *StepError naming the step.
func (p *Pipeline) Execute(ctx context.Context, job *Job) error {
	for _, step := range p.steps {
		select {
		case <-ctx.Done():
			p.logger.Warn("capture cancelled",
				"step", step.Name(),
				"url", job.URL,
				"reason", ctx.Err(),
			)
			return &StepError{Step: step.Name(), Err: ctx.Err()}
		default:
		}

		p.logger.Debug("executing step",
			"step", step.Name(),
			"tab_id", job.TabID,
			"url", job.URL,
		)

		if err := step.Do(ctx, job); err != nil {
			p.logger.Warn("step failed",
				"step", step.Name(),
				"url", job.URL,
				"error", err,
			)
			return &StepError{Step: step.Name(), Err: err}
		}
		job.Completed = append(job.Completed, step.Name())
	}
	return nil
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
