package report

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"time"
)

const ruleWidth = 70

// SimpleWriter outputs a plain-text report for terminals.
type SimpleWriter struct {
	baseWriter

	// verbose lists every page instead of only the host summary.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose lists every page.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) { w.verbose = verbose }
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write renders r.
func (w *SimpleWriter) Write(r *Report) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, r)
	w.writeHosts(&sb, r)
	if w.verbose {
		w.writePages(&sb, r)
	}
	w.writeSync(&sb, r)
	w.writeFaults(&sb, r)

	return io.WriteString(w.output, sb.String())
}

func section(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString(strings.ToUpper(title))
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n\n")
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, r *Report) {
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString("PAGETRAIL STATUS\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Browser:        %s\n", r.BrowserID)
	fmt.Fprintf(sb, "Session:        %s\n", r.SessionID)
	if !r.GeneratedAt.IsZero() {
		fmt.Fprintf(sb, "Generated:      %s\n", r.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	}
	fmt.Fprintf(sb, "Open pages:     %d\n", len(r.CurrentPages))
	fmt.Fprintf(sb, "Pending pages:  %d\n", len(r.PendingPages))
	fmt.Fprintf(sb, "Active time:    %s\n", r.TotalActiveTime().Round(time.Second))
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeHosts(sb *strings.Builder, r *Report) {
	hosts := r.Hosts()
	if len(hosts) == 0 {
		return
	}
	section(sb, "Hosts")
	for _, h := range hosts {
		fmt.Fprintf(sb, "  %-40s %3d page(s) %10s\n", truncate(h.Host, 40), h.Pages, h.ActiveTime.Round(time.Second))
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writePages(sb *strings.Builder, r *Report) {
	pages := r.Pages()
	if len(pages) == 0 {
		return
	}
	section(sb, "Pages")
	for _, p := range pages {
		state := "open"
		if p.ClosedReason != nil {
			state = heading(*p.ClosedReason)
		}
		fmt.Fprintf(sb, "  [%s] %s\n", state, truncate(p.URL, 60))
		if title := deref(p.Title); title != "" {
			fmt.Fprintf(sb, "    Title: %s\n", truncate(title, 60))
		}
		if tt := deref(p.TransitionType); tt != "" {
			fmt.Fprintf(sb, "    Transition: %s\n", heading(tt))
		}
		fmt.Fprintf(sb, "    Active: %s (%d time(s))\n",
			(time.Duration(p.ActiveTime) * time.Millisecond).Round(time.Second), p.ActiveCount)
	}
	sb.WriteString("\n")

	section(sb, "Transitions")
	counts := r.Transitions()
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		fmt.Fprintf(sb, "  %-20s %d\n", heading(name), counts[name])
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeSync(sb *strings.Builder, r *Report) {
	if r.Sync == nil {
		return
	}
	section(sb, "History sync")
	if r.Sync.LastUpdated != nil {
		fmt.Fprintf(sb, "  Last sync:  %s\n", time.UnixMilli(*r.Sync.LastUpdated).Format(time.RFC3339))
	} else {
		sb.WriteString("  Last sync:  never\n")
	}
	fmt.Fprintf(sb, "  Synced:     %d item(s)\n", r.Sync.Synced)
	if r.Sync.LastError != "" {
		fmt.Fprintf(sb, "  Last error: %s\n", r.Sync.LastError)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeFaults(sb *strings.Builder, r *Report) {
	if r.FaultCount == 0 && len(r.Faults) == 0 {
		return
	}
	section(sb, "Faults")
	fmt.Fprintf(sb, "  %d fault(s) reported\n", r.FaultCount)
	for _, f := range r.Faults {
		fmt.Fprintf(sb, "  [%s] %s\n", f.Time.Format(time.TimeOnly), f.Message)
	}
	sb.WriteString("\n")
}
