// Package tracker turns browser and content events into Page records.
//
// A Tracker keeps one current Page per tab and a list of closed pages that
// have not been flushed yet. All state is guarded by a single mutex, so
// event handlers run one at a time. Work that waits on the backend or on
// timers runs outside the lock and checks the state again when it resumes.
package tracker

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nao1215/pagetrail/internal/backend"
	"github.com/nao1215/pagetrail/internal/event"
	"github.com/nao1215/pagetrail/internal/model"
	"github.com/nao1215/pagetrail/internal/pipeline"
)

// Defaults used when the matching option is not given.
const (
	DefaultSettleDelay       = 2 * time.Second
	DefaultStabilizeAttempts = 3
	DefaultStabilizeInterval = time.Second
	DefaultScrapeTimeout     = 30 * time.Second
	DefaultUpdatePeriod      = time.Minute
)

// DefaultExcludedHosts are never captured.
var DefaultExcludedHosts = []string{"addons.mozilla.org", "testpilot.firefox.com"}

// Clock returns the current time.
type Clock func() time.Time

// Tracker is the activity tracker.
type Tracker struct {
	mu sync.Mutex

	currentPages       map[int]*model.Page
	pendingPages       []*model.Page
	pendingAnnotations map[int]model.Annotation
	lastClick          map[int]model.ClickInfo
	activeTabID        int
	baselineRatio      float64

	seen             map[string]bool
	pagesToSerialize map[int]string
	serializeGen     map[int]uint64

	backend       backend.Backend
	scraper       pipeline.Scraper
	reporter      event.ErrorReporter
	runner        *pipeline.Runner
	logger        *slog.Logger
	now           Clock
	browserID     string
	sessionID     string
	excludedHosts []string
	settleDelay   time.Duration
	attempts      int
	interval      time.Duration
	scrapeTimeout time.Duration
	updatePeriod  time.Duration
	clearPolicy   ClearPolicy
	concurrency   int

	handlers map[event.Kind]event.Handler
	detach   []func()

	ctx    context.Context
	cancel context.CancelFunc
	checks sync.WaitGroup
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) { t.logger = logger }
}

// WithClock replaces time.Now.
func WithClock(now Clock) Option {
	return func(t *Tracker) { t.now = now }
}

// WithScraper enables full-page captures using s.
func WithScraper(s pipeline.Scraper) Option {
	return func(t *Tracker) { t.scraper = s }
}

// WithReporter sets where failures of background work are reported.
func WithReporter(r event.ErrorReporter) Option {
	return func(t *Tracker) { t.reporter = r }
}

// WithBrowserID sets the browser id sent with activity batches.
func WithBrowserID(id string) Option {
	return func(t *Tracker) { t.browserID = id }
}

// WithSessionID sets the session id stamped on new pages.
func WithSessionID(id string) Option {
	return func(t *Tracker) { t.sessionID = id }
}

// WithExcludedHosts replaces the hosts that are never captured.
func WithExcludedHosts(hosts []string) Option {
	return func(t *Tracker) { t.excludedHosts = slices.Clone(hosts) }
}

// WithSettleDelay sets the pause before a capture starts.
func WithSettleDelay(d time.Duration) Option {
	return func(t *Tracker) { t.settleDelay = d }
}

// WithStability sets how often and how far apart the tab URL is checked
// before a capture.
func WithStability(attempts int, interval time.Duration) Option {
	return func(t *Tracker) {
		t.attempts = attempts
		t.interval = interval
	}
}

// WithScrapeTimeout bounds a single capture.
func WithScrapeTimeout(d time.Duration) Option {
	return func(t *Tracker) { t.scrapeTimeout = d }
}

// WithUpdatePeriod sets the base period the flush interval is derived from.
func WithUpdatePeriod(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.updatePeriod = d
		}
	}
}

// WithClearPolicy sets how pending pages are cleared on flush.
func WithClearPolicy(p ClearPolicy) Option {
	return func(t *Tracker) { t.clearPolicy = p }
}

// WithConcurrency sets the number of captures that may run at once.
func WithConcurrency(n int) Option {
	return func(t *Tracker) { t.concurrency = n }
}

// New creates a Tracker delivering to b.
func New(b backend.Backend, opts ...Option) *Tracker {
	t := &Tracker{
		currentPages:       make(map[int]*model.Page),
		pendingAnnotations: make(map[int]model.Annotation),
		lastClick:          make(map[int]model.ClickInfo),
		seen:               make(map[string]bool),
		pagesToSerialize:   make(map[int]string),
		serializeGen:       make(map[int]uint64),
		backend:            b,
		now:                time.Now,
		excludedHosts:      slices.Clone(DefaultExcludedHosts),
		settleDelay:        DefaultSettleDelay,
		attempts:           DefaultStabilizeAttempts,
		interval:           DefaultStabilizeInterval,
		scrapeTimeout:      DefaultScrapeTimeout,
		updatePeriod:       DefaultUpdatePeriod,
		clearPolicy:        ClearAlways,
		baselineRatio:      1,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.logger == nil {
		t.logger = slog.Default()
	}
	if t.sessionID == "" {
		t.sessionID = uuid.NewString()
	}
	t.ctx, t.cancel = context.WithCancel(context.Background())
	t.runner = pipeline.NewRunner(t.newCapturePipeline,
		pipeline.WithRunnerLogger(t.logger),
		pipeline.WithConcurrency(t.concurrency),
	)
	t.handlers = t.handlerTable()
	return t
}

// SessionID returns the session id stamped on new pages.
func (t *Tracker) SessionID() string { return t.sessionID }

// BrowserID returns the browser id sent with activity batches.
func (t *Tracker) BrowserID() string { return t.browserID }

// Init seeds one page per already-open tab, queues a capture for each, and
// records the baseline device pixel ratio. Tabs that are already tracked
// are left alone.
func (t *Tracker) Init(tabs []event.Tab, devicePixelRatio float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if devicePixelRatio > 0 {
		t.baselineRatio = devicePixelRatio
	}
	now := t.now()
	for _, tab := range tabs {
		if tab.ID <= 0 || t.currentPages[tab.ID] != nil {
			continue
		}
		t.addPageToSerialize(tab.ID, tab.URL)
		t.addNewPage(pageEvent{
			tabID:          tab.ID,
			url:            tab.URL,
			at:             now,
			transitionType: model.TransitionExistedOnload,
			title:          tab.Title,
		})
		if tab.Active {
			t.setActiveTabID(tab.ID)
		}
	}
	t.logger.Debug("tracker initialized", "tabs", len(tabs), "baseline_ratio", t.baselineRatio)
}

// Uninit detaches the tracker from its bus, stops background captures and
// waits for them to return.
func (t *Tracker) Uninit() {
	t.mu.Lock()
	detach := t.detach
	t.detach = nil
	t.mu.Unlock()

	for _, d := range detach {
		d()
	}
	t.cancel()
	t.Wait()
}

// Wait blocks until every needed-check and capture started so far has finished.
func (t *Tracker) Wait() {
	t.checks.Wait()
	t.runner.Wait()
}

// CurrentURL returns the URL of the page currently tracked for tabID.
func (t *Tracker) CurrentURL(tabID int) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p := t.currentPages[tabID]
	if p == nil {
		return "", false
	}
	return p.URL, true
}

// pageEvent carries the navigation fields used by addNewPage.
type pageEvent struct {
	tabID          int
	url            string
	at             time.Time
	transitionType string
	qualifiers     []string
	sourceTabID    int
	newTab         bool
	isHashChange   bool
	title          string
}

// addNewPage creates the page for a committed navigation and makes it
// current for its tab. Must be called with t.mu held.
func (t *Tracker) addNewPage(ev pageEvent) {
	previous := t.currentPages[ev.tabID]
	if ev.sourceTabID != 0 {
		previous = t.currentPages[ev.sourceTabID]
	}

	// A new-tab page is followed by a commit for the same tab and url, and
	// some browsers report the new tab twice.
	if existing := t.currentPages[ev.tabID]; existing != nil &&
		existing.URL == ev.url && existing.NewTab &&
		(ev.sourceTabID != 0 || !ev.newTab) {
		t.logger.Debug("ignoring duplicate navigation", "tab_id", ev.tabID, "url", ev.url)
		return
	}

	if t.currentPages[ev.tabID] != nil {
		t.closePage(ev.tabID, model.ClosedReasonNavigation)
	}

	clickTab := ev.tabID
	if ev.sourceTabID != 0 {
		clickTab = ev.sourceTabID
	}
	var click *model.ClickInfo
	if c, ok := t.lastClick[clickTab]; ok {
		click = &c
		delete(t.lastClick, clickTab)
	}

	loadTime := ev.at
	if loadTime.IsZero() {
		loadTime = t.now()
	}
	page := model.NewPage(model.PageOptions{
		URL:            ev.url,
		LoadTime:       loadTime,
		TransitionType: ev.transitionType,
		Qualifiers:     ev.qualifiers,
		Previous:       previous,
		NewTab:         ev.newTab,
		IsHashChange:   ev.isHashChange,
		Title:          ev.title,
		Click:          click,
		SessionID:      t.sessionID,
	})
	if ev.isHashChange && previous != nil {
		page.InitialLoadID = previous.InitialLoadID
		if page.InitialLoadID == "" {
			page.InitialLoadID = previous.ID
		}
	}

	t.currentPages[ev.tabID] = page
	if ev.tabID == t.activeTabID {
		page.SetActive(t.now())
	}
	if ann, ok := t.pendingAnnotations[ev.tabID]; ok && ann.URL == ev.url {
		page.Apply(ann)
		delete(t.pendingAnnotations, ev.tabID)
	}
	t.logger.Debug("page created",
		"tab_id", ev.tabID,
		"page_id", page.ID,
		"url", page.URL,
		"transition", page.TransitionType,
	)
}

// closePage closes the current page of tabID and moves it to the pending
// list. Must be called with t.mu held.
func (t *Tracker) closePage(tabID int, reason string) {
	if tabID == 0 {
		panic("tracker: closePage called without a tab id")
	}
	page := t.currentPages[tabID]
	if page == nil {
		t.logger.Warn("no page to close", "tab_id", tabID, "reason", reason)
		return
	}
	page.Close(reason, t.now())
	delete(t.currentPages, tabID)
	t.pendingPages = append(t.pendingPages, page)
}

// annotatePage applies ann to the current page of tabID if its URL matches,
// or keeps it until a page with that URL is created. Must be called with
// t.mu held.
func (t *Tracker) annotatePage(tabID int, ann model.Annotation) {
	if page := t.currentPages[tabID]; page != nil && page.URL == ann.URL {
		page.Apply(ann)
		return
	}
	if pending, ok := t.pendingAnnotations[tabID]; ok && pending.URL == ann.URL {
		t.pendingAnnotations[tabID] = pending.Merge(ann)
		return
	}
	t.pendingAnnotations[tabID] = model.Annotation{}.Merge(ann)
}

// setActiveTabID moves the foreground marker to tabID. Must be called with
// t.mu held.
func (t *Tracker) setActiveTabID(tabID int) {
	now := t.now()
	if prev := t.currentPages[t.activeTabID]; prev != nil && prev.Active {
		prev.SetInactive(now)
	}
	if page := t.currentPages[tabID]; page != nil && !page.Active {
		page.SetActive(now)
	}
	t.activeTabID = tabID
}

// contentType strips parameters from a Content-Type header value.
func contentType(v string) string {
	ct, _, _ := strings.Cut(v, ";")
	return strings.TrimSpace(ct)
}
