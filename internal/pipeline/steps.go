package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/nao1215/pagetrail/internal/model"
)

// Step names.
const (
	StepSettle    = "settle"
	StepStabilize = "stabilize"
	StepScrape    = "scrape"
	StepAttribute = "attribute"
	StepSubmit    = "submit"
)

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// SettleStep waits a fixed delay so the document can finish loading.
type SettleStep struct {
	delay time.Duration
}

// NewSettleStep creates a SettleStep.
func NewSettleStep(delay time.Duration) *SettleStep {
	return &SettleStep{delay: delay}
}

// Name returns the step name.
func (s *SettleStep) Name() string { return StepSettle }

// Do waits for the settle delay.
func (s *SettleStep) Do(ctx context.Context, _ *Job) error {
	return sleep(ctx, s.delay)
}

// URLProbe reports the URL currently tracked for a tab.
type URLProbe interface {
	CurrentURL(tabID int) (string, bool)
}

// StabilizeStep polls the tracked URL of the tab until it has been seen
// unchanged on every attempt. If the tab moves to another URL or goes away
// the job is marked superseded and polling stops; the capture itself still
// proceeds since it refetches the URL rather than reading the tab.
type StabilizeStep struct {
	probe    URLProbe
	attempts int
	interval time.Duration
}

// NewStabilizeStep creates a StabilizeStep. attempts below one is treated as one.
func NewStabilizeStep(probe URLProbe, attempts int, interval time.Duration) *StabilizeStep {
	if attempts < 1 {
		attempts = 1
	}
	return &StabilizeStep{probe: probe, attempts: attempts, interval: interval}
}

// Name returns the step name.
func (s *StabilizeStep) Name() string { return StepStabilize }

// Do polls until the URL has been stable for every attempt.
func (s *StabilizeStep) Do(ctx context.Context, job *Job) error {
	for i := range s.attempts {
		if i > 0 {
			if err := sleep(ctx, s.interval); err != nil {
				return err
			}
		}
		current, ok := s.probe.CurrentURL(job.TabID)
		if !ok || current != job.URL {
			job.Superseded = true
			return nil
		}
	}
	return nil
}

// Scraper captures the content of the document shown in a tab.
type Scraper interface {
	Scrape(ctx context.Context, tabID int, url string) (*model.FetchedPage, error)
}

// ScrapeStep runs the scraper with an overall timeout.
type ScrapeStep struct {
	scraper Scraper
	timeout time.Duration
}

// NewScrapeStep creates a ScrapeStep. A zero timeout disables the limit.
func NewScrapeStep(scraper Scraper, timeout time.Duration) *ScrapeStep {
	return &ScrapeStep{scraper: scraper, timeout: timeout}
}

// Name returns the step name.
func (s *ScrapeStep) Name() string { return StepScrape }

// Do runs the scraper and stores its result on the job.
func (s *ScrapeStep) Do(ctx context.Context, job *Job) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	result, err := s.scraper.Scrape(ctx, job.TabID, job.URL)
	if err != nil {
		return err
	}
	if result == nil {
		return ErrEmptyCapture
	}
	if result.URL == "" {
		result.URL = job.URL
	}
	job.Result = result
	return nil
}

// PageSubmitter delivers a capture to the backend.
type PageSubmitter interface {
	SubmitFetchedPage(ctx context.Context, url string, page *model.FetchedPage) error
}

// SubmitStep hands the job's result to the backend.
type SubmitStep struct {
	submitter PageSubmitter
	logger    *slog.Logger
}

// NewSubmitStep creates a SubmitStep.
func NewSubmitStep(submitter PageSubmitter, logger *slog.Logger) *SubmitStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &SubmitStep{submitter: submitter, logger: logger}
}

// Name returns the step name.
func (s *SubmitStep) Name() string { return StepSubmit }

// Do submits the capture.
func (s *SubmitStep) Do(ctx context.Context, job *Job) error {
	if job.Result == nil {
		return ErrEmptyCapture
	}
	if err := s.submitter.SubmitFetchedPage(ctx, job.URL, job.Result); err != nil {
		return err
	}
	s.logger.Debug("capture submitted",
		"url", job.URL,
		"attributed", job.Attributed,
	)
	return nil
}
