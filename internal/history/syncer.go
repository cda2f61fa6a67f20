// Package history sends the browser's history to the backend.
//
// A Syncer asks the backend for the newest visit it already has, reads
// everything newer from a Source and submits it as one list. It runs on a
// fixed period and on demand.
package history

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/nao1215/pagetrail/internal/backend"
	"github.com/nao1215/pagetrail/internal/model"
)

// DefaultPeriod is the sync period used when WithPeriod is not given.
const DefaultPeriod = time.Hour

// Syncer periodically sends new history items to a backend.
type Syncer struct {
	backend   backend.Backend
	source    Source
	logger    *slog.Logger
	now       func() time.Time
	browserID string
	sessionID string
	serverURL string
	period    time.Duration

	flight singleflight.Group

	mu          sync.Mutex
	lastUpdated time.Time
	lastError   error
	lastSince   time.Time
	synced      int
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Syncer) { s.logger = logger }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Syncer) { s.now = now }
}

// WithBrowserID sets the browser the history belongs to.
func WithBrowserID(id string) Option {
	return func(s *Syncer) { s.browserID = id }
}

// WithSessionID sets the session id sent with each list.
func WithSessionID(id string) Option {
	return func(s *Syncer) { s.sessionID = id }
}

// WithServerURL drops history items that point at the collection server itself.
func WithServerURL(u string) Option {
	return func(s *Syncer) { s.serverURL = u }
}

// WithPeriod sets the interval between automatic syncs.
func WithPeriod(d time.Duration) Option {
	return func(s *Syncer) {
		if d > 0 {
			s.period = d
		}
	}
}

// NewSyncer creates a Syncer reading from src and delivering to b.
func NewSyncer(b backend.Backend, src Source, opts ...Option) *Syncer {
	s := &Syncer{
		backend: b,
		source:  src,
		now:     time.Now,
		period:  DefaultPeriod,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Sync sends every history item newer than the backend's latest one, or
// the whole history if force is set. Concurrent calls share one run.
// It returns the number of items sent.
func (s *Syncer) Sync(ctx context.Context, force bool) (int, error) {
	key := "incremental"
	if force {
		key = "force"
	}
	v, err, _ := s.flight.Do(key, func() (any, error) {
		n, err := s.sync(ctx, force)
		s.mu.Lock()
		defer s.mu.Unlock()
		s.lastError = err
		if err == nil {
			s.lastUpdated = s.now()
			s.synced = n
		}
		return n, err
	})
	if err != nil {
		return 0, err
	}
	return v.(int), nil //nolint:forcetypeassert
}

func (s *Syncer) sync(ctx context.Context, force bool) (int, error) {
	var since time.Time
	if !force {
		latest, err := backend.LatestHistoryTime(ctx, s.backend, s.browserID)
		if err != nil {
			return 0, fmt.Errorf("failed to query latest history time: %w", err)
		}
		since = latest
	}
	s.mu.Lock()
	s.lastSince = since
	s.mu.Unlock()

	items, err := s.source.Search(ctx, since)
	if err != nil {
		return 0, fmt.Errorf("failed to read history: %w", err)
	}
	if s.serverURL != "" {
		maps.DeleteFunc(items, func(_ string, item model.HistoryItem) bool {
			return strings.HasPrefix(item.URL, s.serverURL)
		})
	}
	if len(items) == 0 {
		s.logger.Debug("no new history", "since", since)
		return 0, nil
	}

	s.logger.Info("sending history", "items", len(items), "force", force)
	if err := s.backend.SubmitHistory(ctx, s.browserID, s.sessionID, items); err != nil {
		return 0, fmt.Errorf("failed to send history: %w", err)
	}
	return len(items), nil
}

// Status reports the outcome of the last sync.
func (s *Syncer) Status() model.SyncStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := model.SyncStatus{Synced: s.synced}
	if !s.lastSince.IsZero() {
		st.ServerTimestamp = s.lastSince.UnixMilli()
	}
	if !s.lastUpdated.IsZero() {
		st.LastUpdated = model.Ptr(s.lastUpdated.UnixMilli())
	}
	if s.lastError != nil {
		st.LastError = s.lastError.Error()
	}
	return st
}

// Run syncs once per period until ctx is done.
func (s *Syncer) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.Sync(ctx, false); err != nil {
				s.logger.Warn("history sync failed", "error", err)
			}
		}
	}
}
