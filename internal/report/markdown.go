package report

import (
	"io"
	"slices"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
)

// maxChartHosts limits the pie chart to the busiest hosts.
const maxChartHosts = 8

// MarkdownWriter outputs reports as GitHub-flavored Markdown.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write renders r.
func (w *MarkdownWriter) Write(r *Report) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, r)
	w.writeHosts(md, r)
	w.writePages(md, r)
	w.writeSync(md, r)
	w.writeFaults(md, r)

	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Generated by pagetrail %s*", r.Version)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, r *Report) {
	md.H1("Pagetrail Status")
	md.PlainText("")

	generated := "-"
	if !r.GeneratedAt.IsZero() {
		generated = r.GeneratedAt.Format("2006-01-02 15:04:05 MST")
	}
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Browser", "`" + r.BrowserID + "`"},
			{"Session", "`" + r.SessionID + "`"},
			{"Generated", generated},
			{"Open Pages", strconv.Itoa(len(r.CurrentPages))},
			{"Pending Pages", strconv.Itoa(len(r.PendingPages))},
			{"Active Time", r.TotalActiveTime().Round(time.Second).String()},
		},
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeHosts(md *markdown.Markdown, r *Report) {
	md.H2("Hosts")
	md.PlainText("")

	hosts := r.Hosts()
	if len(hosts) == 0 {
		md.PlainText("No pages tracked yet.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(hosts))
	for i, h := range hosts {
		rows[i] = []string{h.Host, strconv.Itoa(h.Pages), h.ActiveTime.Round(time.Second).String()}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Host", "Pages", "Active Time"},
		Rows:   rows,
	})
	md.PlainText("")

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Active Seconds by Host"),
		piechart.WithShowData(true),
	)
	plotted := 0
	for _, h := range hosts[:min(len(hosts), maxChartHosts)] {
		secs := uint64(h.ActiveTime / time.Second)
		if secs == 0 {
			continue
		}
		chart.LabelAndIntValue(h.Host, secs)
		plotted++
	}
	if plotted > 0 {
		md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
		md.PlainText("")
	}
}

func (w *MarkdownWriter) writePages(md *markdown.Markdown, r *Report) {
	pages := r.Pages()
	if len(pages) == 0 {
		return
	}
	md.H2("Pages")
	md.PlainText("")

	rows := make([][]string, len(pages))
	for i, p := range pages {
		state := "Open"
		if p.ClosedReason != nil {
			state = heading(*p.ClosedReason)
		}
		transition := "-"
		if tt := deref(p.TransitionType); tt != "" {
			transition = heading(tt)
		}
		title := deref(p.Title)
		if title == "" {
			title = "-"
		}
		rows[i] = []string{
			truncate(p.URL, 50),
			truncate(title, 40),
			transition,
			state,
			(time.Duration(p.ActiveTime) * time.Millisecond).Round(time.Second).String(),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"URL", "Title", "Transition", "State", "Active"},
		Rows:   rows,
	})
	md.PlainText("")

	counts := r.Transitions()
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	slices.Sort(names)
	items := make([]string, len(names))
	for i, name := range names {
		items[i] = heading(name) + ": " + strconv.Itoa(counts[name])
	}
	md.H3("Transitions")
	md.PlainText("")
	md.BulletList(items...)
	md.PlainText("")
}

func (w *MarkdownWriter) writeSync(md *markdown.Markdown, r *Report) {
	if r.Sync == nil {
		return
	}
	md.H2("History Sync")
	md.PlainText("")

	last := "never"
	if r.Sync.LastUpdated != nil {
		last = time.UnixMilli(*r.Sync.LastUpdated).Format(time.RFC3339)
	}
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Last Sync", last},
			{"Synced Items", strconv.Itoa(r.Sync.Synced)},
		},
	})
	md.PlainText("")
	if r.Sync.LastError != "" {
		md.Warningf("Last history sync failed: %s", r.Sync.LastError)
		md.PlainText("")
	}
}

func (w *MarkdownWriter) writeFaults(md *markdown.Markdown, r *Report) {
	if r.FaultCount == 0 {
		md.Tip("No faults reported.")
		md.PlainText("")
		return
	}
	md.H2("Faults")
	md.PlainText("")
	md.Cautionf("%d fault(s) reported since start.", r.FaultCount)
	md.PlainText("")

	items := make([]string, len(r.Faults))
	for i, f := range r.Faults {
		items[i] = f.Time.Format(time.TimeOnly) + " " + f.Message
	}
	if len(items) > 0 {
		md.BulletList(items...)
		md.PlainText("")
	}
}
