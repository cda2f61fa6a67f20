// Package daemon assembles the running pagetrail process.
//
// A Daemon owns the message bus, the tracker, the history syncer and the
// backend, registers the control message handlers and supervises the
// periodic loops and transports with an errgroup.
package daemon

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/pagetrail/internal/backend"
	"github.com/nao1215/pagetrail/internal/config"
	"github.com/nao1215/pagetrail/internal/database"
	"github.com/nao1215/pagetrail/internal/event"
	"github.com/nao1215/pagetrail/internal/fault"
	"github.com/nao1215/pagetrail/internal/history"
	"github.com/nao1215/pagetrail/internal/ingest"
	"github.com/nao1215/pagetrail/internal/model"
	"github.com/nao1215/pagetrail/internal/pipeline"
	"github.com/nao1215/pagetrail/internal/report"
	"github.com/nao1215/pagetrail/internal/scrape"
	"github.com/nao1215/pagetrail/internal/tracker"
)

// Service is a long-running component supervised by Run.
type Service func(ctx context.Context) error

// Daemon is one pagetrail process.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	version  string
	now      func() time.Time
	notifier fault.Notifier

	backend backend.Backend
	closers []io.Closer
	scraper pipeline.Scraper

	bus      *event.Bus
	reporter *fault.Reporter
	tracker  *tracker.Tracker
	posted   *history.MemorySource
	syncer   *history.Syncer

	browserID string
	sessionID string
	started   bool
}

// Option configures a Daemon.
type Option func(*Daemon)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Daemon) { d.logger = logger }
}

// WithVersion sets the version reported to the backend and in status output.
func WithVersion(v string) Option {
	return func(d *Daemon) { d.version = v }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(d *Daemon) { d.now = now }
}

// WithBackend uses b instead of the backend selected by the configuration.
func WithBackend(b backend.Backend) Option {
	return func(d *Daemon) { d.backend = b }
}

// WithScraper uses s for captures instead of the HTTP scraper.
func WithScraper(s pipeline.Scraper) Option {
	return func(d *Daemon) { d.scraper = s }
}

// WithNotifier sets where faults are shown to the user.
func WithNotifier(n fault.Notifier) Option {
	return func(d *Daemon) { d.notifier = n }
}

// New builds a Daemon from cfg. It opens the backend but does not contact it.
func New(cfg *config.Config, opts ...Option) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	d := &Daemon{cfg: cfg, now: time.Now, version: "dev"}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}

	clearPolicy, err := tracker.ParseClearPolicy(cfg.ClearPolicy)
	if err != nil {
		return nil, err
	}

	d.browserID = cfg.BrowserID
	if d.browserID == "" {
		d.browserID, err = config.LoadOrCreateBrowserID(config.XDGStateDir())
		if err != nil {
			return nil, err
		}
	}

	if d.backend == nil {
		if err := d.openBackend(); err != nil {
			return nil, err
		}
	}

	reporterOpts := []fault.Option{fault.WithLogger(d.logger)}
	if d.notifier == nil && cfg.Notify {
		if n := fault.NewDesktopNotifier(); n != nil {
			d.notifier = n
		} else {
			d.logger.Warn("notify-send not found, desktop notifications disabled")
		}
	}
	if d.notifier != nil {
		reporterOpts = append(reporterOpts, fault.WithNotifier(d.notifier))
	}
	d.reporter = fault.NewReporter(reporterOpts...)
	d.bus = event.NewBus(event.WithLogger(d.logger), event.WithReporter(d.reporter))

	if d.scraper == nil && cfg.CaptureEnabled {
		if d.scraper, err = d.newScraper(); err != nil {
			return nil, err
		}
	}

	trackerOpts := []tracker.Option{
		tracker.WithLogger(d.logger),
		tracker.WithClock(d.now),
		tracker.WithReporter(d.reporter),
		tracker.WithBrowserID(d.browserID),
		tracker.WithExcludedHosts(cfg.ExcludedHosts),
		tracker.WithSettleDelay(cfg.SettleDelay),
		tracker.WithStability(cfg.StabilizeAttempts, cfg.StabilizeInterval),
		tracker.WithScrapeTimeout(cfg.CaptureTimeout),
		tracker.WithUpdatePeriod(cfg.UpdatePeriod),
		tracker.WithClearPolicy(clearPolicy),
		tracker.WithConcurrency(cfg.CaptureConcurrency),
	}
	if d.scraper != nil {
		trackerOpts = append(trackerOpts, tracker.WithScraper(d.scraper))
	}
	d.tracker = tracker.New(d.backend, trackerOpts...)
	d.sessionID = d.tracker.SessionID()

	d.posted = history.NewMemorySource()
	sources := history.MultiSource{d.posted}
	if cfg.PlacesPath != "" {
		sources = append(sources, history.NewPlacesSource(cfg.PlacesPath))
	}
	d.syncer = history.NewSyncer(d.backend, sources,
		history.WithLogger(d.logger),
		history.WithClock(d.now),
		history.WithBrowserID(d.browserID),
		history.WithSessionID(d.sessionID),
		history.WithServerURL(cfg.BackendURL),
		history.WithPeriod(cfg.HistoryPeriod),
	)

	d.tracker.Attach(d.bus)
	if err := d.registerControl(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Daemon) openBackend() error {
	if d.cfg.BackendURL != "" {
		c, err := backend.NewClient(d.cfg.BackendURL,
			backend.WithLogger(d.logger),
			backend.WithUserAgent(d.cfg.UserAgent),
		)
		if err != nil {
			return fmt.Errorf("failed to create backend client: %w", err)
		}
		d.backend = c
		return nil
	}
	store, err := database.Open(d.cfg.DBDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	d.backend = store
	d.closers = append(d.closers, store)
	return nil
}

func (d *Daemon) newScraper() (*scrape.HTTPScraper, error) {
	opts := []scrape.Option{
		scrape.WithLogger(d.logger),
		scrape.WithRate(d.cfg.CaptureRate, d.cfg.CaptureBurst),
		scrape.WithMaxBodySize(d.cfg.MaxBodySize),
		scrape.WithUserAgent(d.cfg.UserAgent),
		scrape.WithFileAccess(d.cfg.CaptureFiles),
	}
	if d.cfg.CaptureProxy != "" {
		client, err := scrape.NewProxyClient(d.cfg.CaptureProxy, d.cfg.CaptureTimeout)
		if err != nil {
			return nil, fmt.Errorf("failed to configure capture proxy: %w", err)
		}
		opts = append(opts, scrape.WithHTTPClient(client))
	}
	return scrape.NewHTTPScraper(opts...), nil
}

// Bus returns the message bus transports dispatch to.
func (d *Daemon) Bus() *event.Bus { return d.bus }

// Tracker returns the activity tracker.
func (d *Daemon) Tracker() *tracker.Tracker { return d.tracker }

// BrowserID returns the persistent browser id.
func (d *Daemon) BrowserID() string { return d.browserID }

// SessionID returns the id of this process lifetime.
func (d *Daemon) SessionID() string { return d.sessionID }

// Start registers the browser and the session with the backend.
func (d *Daemon) Start(ctx context.Context) error {
	err := d.backend.RegisterBrowser(ctx, model.BrowserInfo{
		BrowserID: d.browserID,
		UserAgent: d.cfg.UserAgent,
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	})
	if err != nil {
		return fmt.Errorf("failed to register browser: %w", err)
	}
	err = d.backend.RegisterSession(ctx, model.SessionInfo{
		BrowserID: d.browserID,
		SessionID: d.sessionID,
		StartTime: d.now().UnixMilli(),
		Version:   d.version,
	})
	if err != nil {
		return fmt.Errorf("failed to register session: %w", err)
	}
	d.started = true
	d.logger.Info("daemon started", "browser_id", d.browserID, "version", d.version)
	return nil
}

// IngestService returns a Service serving the HTTP ingest API on the
// configured listen address.
func (d *Daemon) IngestService() Service {
	srv := ingest.NewServer(d.cfg.ListenAddr, d.bus, ingest.WithLogger(d.logger))
	return srv.ListenAndServe
}

// Run runs the flush loop, the history loop and extra until ctx is done or
// any of them returns. The first error is returned.
func (d *Daemon) Run(ctx context.Context, extra ...Service) error {
	if !d.started {
		return ErrNotStarted
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	services := append([]Service{d.tracker.Run, d.syncer.Run}, extra...)
	for _, svc := range services {
		g.Go(func() error {
			defer cancel()
			return svc(ctx)
		})
	}
	return g.Wait()
}

// Close stops background captures and releases the backend.
func (d *Daemon) Close() error {
	d.tracker.Uninit()
	var firstErr error
	for _, c := range d.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Report returns the current status report.
func (d *Daemon) Report() *report.Report {
	syncStatus := d.syncer.Status()
	status := d.tracker.Status()
	status.Sync = &syncStatus
	return &report.Report{
		Status:      status,
		Version:     d.version,
		BrowserID:   d.browserID,
		SessionID:   d.sessionID,
		GeneratedAt: d.now(),
		FaultCount:  d.reporter.Count(),
		Faults:      d.reporter.Recent(),
	}
}
