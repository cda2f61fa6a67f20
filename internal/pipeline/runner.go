package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the number of captures that run at once when
// WithConcurrency is not given.
const DefaultConcurrency = 4

// Runner executes capture jobs in the background with bounded concurrency.
type Runner struct {
	factory     func() *Pipeline
	concurrency int
	logger      *slog.Logger

	group errgroup.Group
	wg    sync.WaitGroup
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithRunnerLogger sets a custom logger for the runner.
func WithRunnerLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent captures.
func WithConcurrency(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// NewRunner creates a Runner. factory is called once per job so pipelines
// never share state.
func NewRunner(factory func() *Pipeline, opts ...RunnerOption) *Runner {
	r := &Runner{
		factory:     factory,
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	r.group.SetLimit(r.concurrency)
	return r
}

// Submit starts job in the background and returns immediately. done, if
// non-nil, is called with the pipeline result once the job finishes.
func (r *Runner) Submit(ctx context.Context, job *Job, done func(*Job, error)) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		finished := make(chan struct{})
		r.group.Go(func() error {
			defer close(finished)

			start := time.Now()
			err := r.factory().Execute(ctx, job)
			r.logger.Debug("capture finished",
				"url", job.URL,
				"tab_id", job.TabID,
				"elapsed", time.Since(start),
				"error", err,
			)
			if done != nil {
				done(job, err)
			}
			// Failures are handled by done; returning nil keeps the group usable.
			return nil
		})
		<-finished
	}()
}

// Wait blocks until every submitted job has finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}
