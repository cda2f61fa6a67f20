package tracker

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/nao1215/pagetrail/internal/model"
)

// ClearPolicy decides when flushed pending pages are dropped.
type ClearPolicy string

const (
	// ClearAlways drops pending pages as soon as they are snapshotted,
	// whether or not the backend accepts the batch.
	ClearAlways ClearPolicy = "always"

	// ClearOnAck drops the snapshotted pending pages only after the backend
	// accepted the batch; pages closed during the submit are kept.
	ClearOnAck ClearPolicy = "on-ack"
)

// ParseClearPolicy parses a configured clear policy.
func ParseClearPolicy(s string) (ClearPolicy, error) {
	switch p := ClearPolicy(s); p {
	case ClearAlways, ClearOnAck:
		return p, nil
	case "":
		return ClearAlways, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidClearPolicy, s)
	}
}

// flushTimeout bounds the final flush on shutdown.
const flushTimeout = 5 * time.Second

// FlushInterval returns the period of the background flush loop.
func (t *Tracker) FlushInterval() time.Duration {
	return t.updatePeriod/4 + time.Second
}

// currentRecords returns snapshots of the current pages ordered by load
// time. Must be called with t.mu held.
func (t *Tracker) currentRecords(now time.Time) []model.PageRecord {
	pages := make([]*model.Page, 0, len(t.currentPages))
	for _, p := range t.currentPages {
		pages = append(pages, p)
	}
	slices.SortFunc(pages, func(a, b *model.Page) int {
		if c := a.LoadTime.Compare(b.LoadTime); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	records := make([]model.PageRecord, len(pages))
	for i, p := range pages {
		records[i] = p.Record(now)
	}
	return records
}

// pendingRecords returns snapshots of the pending pages in close order.
// Must be called with t.mu held.
func (t *Tracker) pendingRecords(now time.Time) []model.PageRecord {
	records := make([]model.PageRecord, len(t.pendingPages))
	for i, p := range t.pendingPages {
		records[i] = p.Record(now)
	}
	return records
}

// Status returns snapshots of the current and pending pages.
func (t *Tracker) Status() model.Status {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	return model.Status{
		CurrentPages: t.currentRecords(now),
		PendingPages: t.pendingRecords(now),
	}
}

// Flush sends the current pages followed by the pending pages to the
// backend as one batch. Nothing is sent when there are no pages, so an idle
// tracker produces no periodic empty batch.
func (t *Tracker) Flush(ctx context.Context) error {
	t.mu.Lock()
	now := t.now()
	batch := append(t.currentRecords(now), t.pendingRecords(now)...)
	sent := slices.Clone(t.pendingPages)
	if t.clearPolicy != ClearOnAck {
		t.pendingPages = nil
	}
	t.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}
	if err := t.backend.SubmitActivityBatch(ctx, t.browserID, batch); err != nil {
		return fmt.Errorf("failed to send activity batch: %w", err)
	}
	t.logger.Debug("activity flushed", "pages", len(batch), "pending", len(sent))

	if t.clearPolicy == ClearOnAck && len(sent) > 0 {
		t.mu.Lock()
		t.pendingPages = slices.DeleteFunc(t.pendingPages, func(p *model.Page) bool {
			return slices.Contains(sent, p)
		})
		t.mu.Unlock()
	}
	return nil
}

// Run flushes on every FlushInterval until ctx is done, then flushes once
// more before returning.
func (t *Tracker) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.FlushInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			final, cancel := context.WithTimeout(context.WithoutCancel(ctx), flushTimeout)
			defer cancel()
			if err := t.Flush(final); err != nil {
				t.logger.Warn("final flush failed", "error", err)
				t.report(err)
			}
			return nil
		case <-ticker.C:
			if err := t.Flush(ctx); err != nil {
				t.logger.Warn("flush failed", "error", err)
				t.report(err)
			}
		}
	}
}
