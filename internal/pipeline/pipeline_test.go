package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/pagetrail/internal/model"
)

// mockStep is a test helper that implements the Step interface.
type mockStep struct {
	name      string
	doFunc    func(ctx context.Context, job *Job) error
	callCount int
}

// Do implements Step.Do.
func (m *mockStep) Do(ctx context.Context, job *Job) error {
	m.callCount++
	if m.doFunc != nil {
		return m.doFunc(ctx, job)
	}
	return nil
}

// Name implements Step.Name.
func (m *mockStep) Name() string {
	return m.name
}

type fakeProbe struct {
	mu   sync.Mutex
	urls []string
	call int
}

func (f *fakeProbe) CurrentURL(int) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.urls) == 0 {
		return "", false
	}
	i := f.call
	if i >= len(f.urls) {
		i = len(f.urls) - 1
	}
	f.call++
	return f.urls[i], true
}

type fakeScraper struct {
	result *model.FetchedPage
	err    error
}

func (f *fakeScraper) Scrape(context.Context, int, string) (*model.FetchedPage, error) {
	return f.result, f.err
}

type fakeSubmitter struct {
	mu   sync.Mutex
	urls []string
	err  error
}

func (f *fakeSubmitter) SubmitFetchedPage(_ context.Context, url string, _ *model.FetchedPage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.urls = append(f.urls, url)
	return nil
}

// TestPipelineExecute tests sequential execution.
func TestPipelineExecute(t *testing.T) {
	t.Parallel()

	t.Run("runs steps in order", func(t *testing.T) {
		t.Parallel()

		var order []string
		p := New()
		for _, name := range []string{"a", "b", "c"} {
			p.AddStep(&mockStep{name: name, doFunc: func(context.Context, *Job) error {
				order = append(order, name)
				return nil
			}})
		}

		job := &Job{URL: "https://example.com/"}
		if err := p.Execute(context.Background(), job); err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		if len(order) != 3 || order[0] != "a" || order[2] != "c" {
			t.Errorf("order = %v", order)
		}
		if len(job.Completed) != 3 {
			t.Errorf("Completed = %v", job.Completed)
		}
	})

	t.Run("stops at first failure with step error", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("boom")
		last := &mockStep{name: "last"}
		p := New()
		p.AddSteps(
			&mockStep{name: "first"},
			&mockStep{name: "broken", doFunc: func(context.Context, *Job) error { return boom }},
			last,
		)

		err := p.Execute(context.Background(), &Job{})
		if !errors.Is(err, boom) {
			t.Errorf("Execute() error = %v, want boom", err)
		}
		if FailedStep(err) != "broken" {
			t.Errorf("FailedStep() = %q, want broken", FailedStep(err))
		}
		if last.callCount != 0 {
			t.Error("step after failure was executed")
		}
	})

	t.Run("respects cancelled context", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		step := &mockStep{name: "never"}
		p := New()
		p.AddStep(step)

		if err := p.Execute(ctx, &Job{}); !errors.Is(err, context.Canceled) {
			t.Errorf("Execute() error = %v, want context.Canceled", err)
		}
		if step.callCount != 0 {
			t.Error("step ran after cancellation")
		}
	})

	t.Run("step names", func(t *testing.T) {
		t.Parallel()

		p := New()
		p.AddSteps(NewSettleStep(0), NewStep("custom", func(context.Context, *Job) error { return nil }))
		names := p.StepNames()
		if p.StepCount() != 2 || names[0] != StepSettle || names[1] != "custom" {
			t.Errorf("StepNames() = %v", names)
		}
	})
}

// TestStabilizeStep tests URL stability polling.
func TestStabilizeStep(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		urls           []string
		wantSuperseded bool
		wantCalls      int
	}{
		{name: "stable", urls: []string{"https://a/", "https://a/", "https://a/"}, wantCalls: 3},
		{name: "changed", urls: []string{"https://a/", "https://b/"}, wantSuperseded: true, wantCalls: 2},
		{name: "tab gone", urls: nil, wantSuperseded: true, wantCalls: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			probe := &fakeProbe{urls: tt.urls}
			step := NewStabilizeStep(probe, 3, time.Millisecond)
			job := &Job{TabID: 1, URL: "https://a/"}
			if err := step.Do(context.Background(), job); err != nil {
				t.Fatalf("Do() error = %v", err)
			}
			if job.Superseded != tt.wantSuperseded {
				t.Errorf("Superseded = %v, want %v", job.Superseded, tt.wantSuperseded)
			}
			if probe.call != tt.wantCalls {
				t.Errorf("probe called %d times, want %d", probe.call, tt.wantCalls)
			}
		})
	}
}

// TestScrapeStep tests the scrape step.
func TestScrapeStep(t *testing.T) {
	t.Parallel()

	t.Run("stores result", func(t *testing.T) {
		t.Parallel()

		job := &Job{URL: "https://a/"}
		step := NewScrapeStep(&fakeScraper{result: &model.FetchedPage{Title: "A"}}, time.Second)
		if err := step.Do(context.Background(), job); err != nil {
			t.Fatalf("Do() error = %v", err)
		}
		if job.Result == nil || job.Result.URL != "https://a/" || job.Result.Title != "A" {
			t.Errorf("Result = %+v", job.Result)
		}
	})

	t.Run("nil result is an error", func(t *testing.T) {
		t.Parallel()

		step := NewScrapeStep(&fakeScraper{}, 0)
		if err := step.Do(context.Background(), &Job{}); !errors.Is(err, ErrEmptyCapture) {
			t.Errorf("Do() error = %v, want ErrEmptyCapture", err)
		}
	})
}

// TestRunner tests bounded background execution.
func TestRunner(t *testing.T) {
	t.Parallel()

	var (
		running atomic.Int32
		peak    atomic.Int32
	)
	sub := &fakeSubmitter{}
	factory := func() *Pipeline {
		p := New()
		p.AddSteps(
			NewStep("track", func(context.Context, *Job) error {
				n := running.Add(1)
				for {
					old := peak.Load()
					if n <= old || peak.CompareAndSwap(old, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				running.Add(-1)
				return nil
			}),
			NewScrapeStep(&fakeScraper{result: &model.FetchedPage{}}, 0),
			NewSubmitStep(sub, nil),
		)
		return p
	}

	r := NewRunner(factory, WithConcurrency(2))
	var done atomic.Int32
	for range 6 {
		r.Submit(context.Background(), &Job{URL: "https://a/"}, func(_ *Job, err error) {
			if err != nil {
				t.Errorf("job error = %v", err)
			}
			done.Add(1)
		})
	}
	r.Wait()

	if done.Load() != 6 {
		t.Errorf("done = %d, want 6", done.Load())
	}
	if peak.Load() > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", peak.Load())
	}
	if len(sub.urls) != 6 {
		t.Errorf("submitted %d, want 6", len(sub.urls))
	}
}
