package report

import (
	"cmp"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/nao1215/pagetrail/internal/fault"
	"github.com/nao1215/pagetrail/internal/model"
)

// Report is a point-in-time view of a running daemon.
type Report struct {
	model.Status

	Version     string        `json:"version,omitempty"`
	BrowserID   string        `json:"browserId"`
	SessionID   string        `json:"sessionId"`
	GeneratedAt time.Time     `json:"generatedAt"`
	FaultCount  int           `json:"faultCount"`
	Faults      []fault.Fault `json:"faults,omitempty"`
}

// HostSummary aggregates the pages of one host.
type HostSummary struct {
	Host       string
	Pages      int
	ActiveTime time.Duration
}

// Pages returns the current pages followed by the pending pages.
func (r *Report) Pages() []model.PageRecord {
	out := make([]model.PageRecord, 0, len(r.CurrentPages)+len(r.PendingPages))
	out = append(out, r.CurrentPages...)
	return append(out, r.PendingPages...)
}

// TotalActiveTime sums the active time of every page in the report.
func (r *Report) TotalActiveTime() time.Duration {
	var total int64
	for _, p := range r.Pages() {
		total += p.ActiveTime
	}
	return time.Duration(total) * time.Millisecond
}

// Hosts groups the pages by host, ordered by active time and then by name.
func (r *Report) Hosts() []HostSummary {
	byHost := make(map[string]*HostSummary)
	for _, p := range r.Pages() {
		host := hostOf(p.URL)
		s, ok := byHost[host]
		if !ok {
			s = &HostSummary{Host: host}
			byHost[host] = s
		}
		s.Pages++
		s.ActiveTime += time.Duration(p.ActiveTime) * time.Millisecond
	}

	out := make([]HostSummary, 0, len(byHost))
	for _, s := range byHost {
		out = append(out, *s)
	}
	slices.SortFunc(out, func(a, b HostSummary) int {
		if c := cmp.Compare(b.ActiveTime, a.ActiveTime); c != 0 {
			return c
		}
		return strings.Compare(a.Host, b.Host)
	})
	return out
}

// Transitions counts pages per transition type. Pages without one are
// counted under "unknown".
func (r *Report) Transitions() map[string]int {
	out := make(map[string]int)
	for _, p := range r.Pages() {
		tt := "unknown"
		if p.TransitionType != nil && *p.TransitionType != "" {
			tt = *p.TransitionType
		}
		out[tt]++
	}
	return out
}

// hostOf returns the host of raw, or "scheme:" for URLs without one.
func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if u.Host != "" {
		return u.Hostname()
	}
	if u.Scheme != "" {
		return u.Scheme + ":"
	}
	return raw
}
