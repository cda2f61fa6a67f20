package tracker

import (
	"context"
	"net/url"
	"slices"
	"strings"

	"github.com/nao1215/pagetrail/internal/model"
	"github.com/nao1215/pagetrail/internal/pipeline"
)

// capturableSchemes are the URL schemes a capture may be attempted for.
var capturableSchemes = []string{"http", "https", "file", "data"}

// pagePossiblyAllowed applies the static part of the capture gate.
func (t *Tracker) pagePossiblyAllowed(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if !slices.Contains(capturableSchemes, strings.ToLower(u.Scheme)) {
		return false
	}
	host := strings.ToLower(u.Hostname())
	return !slices.Contains(t.excludedHosts, host)
}

// addPageToSerialize drops any capture queued for tabID and, if url passes
// the gate, asks the backend whether a capture is wanted. Must be called
// with t.mu held; the backend call runs in the background.
func (t *Tracker) addPageToSerialize(tabID int, rawURL string) {
	delete(t.pagesToSerialize, tabID)
	t.serializeGen[tabID]++
	if t.scraper == nil || t.backend == nil {
		return
	}
	if !t.pagePossiblyAllowed(rawURL) || t.seen[rawURL] {
		return
	}

	gen := t.serializeGen[tabID]
	t.checks.Add(1)
	go func() {
		defer t.checks.Done()
		t.checkAndQueue(tabID, rawURL, gen)
	}()
}

// checkIfURLNeeded reports whether a capture of rawURL is wanted and marks
// it seen if so.
func (t *Tracker) checkIfURLNeeded(ctx context.Context, rawURL string) (bool, error) {
	t.mu.Lock()
	seen := t.seen[rawURL]
	t.mu.Unlock()
	if seen {
		return false, nil
	}

	needed, err := t.backend.CheckPageNeeded(ctx, rawURL)
	if err != nil {
		return false, err
	}
	if needed {
		t.mu.Lock()
		t.seen[rawURL] = true
		t.mu.Unlock()
	}
	return needed, nil
}

// checkAndQueue runs the needed-check and starts the capture unless the tab
// navigated again meanwhile.
func (t *Tracker) checkAndQueue(tabID int, rawURL string, gen uint64) {
	needed, err := t.checkIfURLNeeded(t.ctx, rawURL)
	if err != nil {
		if t.ctx.Err() != nil {
			return
		}
		t.logger.Warn("failed to check whether page is needed", "url", rawURL, "error", err)
		t.report(err, "url", rawURL)
		return
	}
	if !needed {
		return
	}

	t.mu.Lock()
	if t.serializeGen[tabID] != gen {
		delete(t.seen, rawURL)
		t.mu.Unlock()
		t.logger.Debug("capture superseded before start", "tab_id", tabID, "url", rawURL)
		return
	}
	t.pagesToSerialize[tabID] = rawURL
	pageID := ""
	if page := t.currentPages[tabID]; page != nil && page.URL == rawURL {
		pageID = page.ID
	}
	t.mu.Unlock()

	t.startQueue(tabID, rawURL, pageID)
}

// startQueue submits a capture job for rawURL in tabID.
func (t *Tracker) startQueue(tabID int, rawURL, pageID string) {
	job := &pipeline.Job{
		TabID:    tabID,
		URL:      rawURL,
		PageID:   pageID,
		QueuedAt: t.now(),
	}
	t.runner.Submit(t.ctx, job, t.captureDone)
}

// newCapturePipeline builds the steps of one capture.
func (t *Tracker) newCapturePipeline() *pipeline.Pipeline {
	p := pipeline.New(pipeline.WithLogger(t.logger))
	p.AddSteps(
		pipeline.NewSettleStep(t.settleDelay),
		pipeline.NewStabilizeStep(t, t.attempts, t.interval),
		pipeline.NewScrapeStep(t.scraper, t.scrapeTimeout),
		pipeline.NewStep(pipeline.StepAttribute, t.attribute),
		pipeline.NewSubmitStep(t.backend, t.logger),
	)
	return p
}

// attribute links the capture to the page it was queued for. The page may
// have been closed since; it is found by id among current and pending pages
// and must still carry the captured URL.
func (t *Tracker) attribute(_ context.Context, job *pipeline.Job) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	page := t.pageByID(job.PageID)
	if job.Superseded || page == nil || page.URL != job.URL {
		t.logger.Debug("capture not attributed", "tab_id", job.TabID, "url", job.URL)
		return nil
	}
	page.AddToScrapedData(job.Result)
	job.Attributed = true
	return nil
}

// pageByID returns the open or pending page with id. Must be called with
// t.mu held.
func (t *Tracker) pageByID(id string) *model.Page {
	if id == "" {
		return nil
	}
	for _, page := range t.currentPages {
		if page.ID == id {
			return page
		}
	}
	for _, page := range t.pendingPages {
		if page.ID == id {
			return page
		}
	}
	return nil
}

// captureDone clears the queued marker and records failures.
func (t *Tracker) captureDone(job *pipeline.Job, err error) {
	t.mu.Lock()
	if t.pagesToSerialize[job.TabID] == job.URL {
		delete(t.pagesToSerialize, job.TabID)
	}
	if err != nil && pipeline.FailedStep(err) != pipeline.StepSubmit {
		delete(t.seen, job.URL)
	}
	t.mu.Unlock()

	if err == nil {
		return
	}
	if pipeline.FailedStep(err) == pipeline.StepSubmit {
		t.logger.Warn("failed to submit capture", "url", job.URL, "error", err)
		t.report(err, "url", job.URL)
		return
	}
	t.logger.Info("capture failed", "url", job.URL, "step", pipeline.FailedStep(err), "error", err)
	if t.ctx.Err() != nil {
		return
	}
	if ferr := t.backend.SubmitFetchFailure(t.ctx, job.URL, err.Error()); ferr != nil {
		t.logger.Warn("failed to record fetch failure", "url", job.URL, "error", ferr)
	}
}

// report hands err to the configured reporter.
func (t *Tracker) report(err error, attrs ...any) {
	if t.reporter != nil {
		t.reporter.Report(t.ctx, err, attrs...)
	}
}
