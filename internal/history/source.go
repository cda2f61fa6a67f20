package history

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/nao1215/pagetrail/internal/model"
)

// Source lists browser history.
type Source interface {
	// Search returns the items visited at or after since, keyed by a
	// source-specific history id. Visits older than since are left out.
	Search(ctx context.Context, since time.Time) (map[string]model.HistoryItem, error)
}

// MemorySource holds history items posted by the browser extension.
type MemorySource struct {
	mu    sync.Mutex
	items map[string]model.HistoryItem
}

// NewMemorySource creates an empty MemorySource.
func NewMemorySource() *MemorySource {
	return &MemorySource{items: make(map[string]model.HistoryItem)}
}

// Add stores items keyed by URL. A later item for the same URL replaces the
// earlier one.
func (m *MemorySource) Add(items []model.HistoryItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, item := range items {
		if item.URL == "" {
			continue
		}
		item.Visits = slices.Clone(item.Visits)
		m.items[item.URL] = item
	}
}

// Len returns the number of stored items.
func (m *MemorySource) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// Search implements Source.
func (m *MemorySource) Search(_ context.Context, since time.Time) (map[string]model.HistoryItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := int64(0)
	if !since.IsZero() {
		cutoff = since.UnixMilli()
	}
	out := make(map[string]model.HistoryItem)
	for _, key := range slices.Sorted(maps.Keys(m.items)) {
		item := m.items[key]
		if item.LastVisitTime < cutoff {
			continue
		}
		item.Visits = slices.DeleteFunc(slices.Clone(item.Visits), func(v model.Visit) bool {
			return v.VisitTime < cutoff
		})
		out[key] = item
	}
	return out, nil
}

// MultiSource reads from several sources. On a key collision the later
// source wins.
type MultiSource []Source

// Search implements Source.
func (m MultiSource) Search(ctx context.Context, since time.Time) (map[string]model.HistoryItem, error) {
	out := make(map[string]model.HistoryItem)
	for _, src := range m {
		items, err := src.Search(ctx, since)
		if err != nil {
			return nil, err
		}
		maps.Copy(out, items)
	}
	return out, nil
}
