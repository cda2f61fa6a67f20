package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/pagetrail/internal/fault"
	"github.com/nao1215/pagetrail/internal/model"
)

func createTestReport() *Report {
	updated := int64(1_700_000_000_000)
	return &Report{
		Status: model.Status{
			CurrentPages: []model.PageRecord{
				{
					ID:             "p1",
					URL:            "https://docs.example.com/guide",
					Title:          model.Ptr("Guide"),
					TransitionType: model.Ptr("typed"),
					ActiveTime:     90_000,
					ActiveCount:    2,
				},
			},
			PendingPages: []model.PageRecord{
				{
					ID:             "p0",
					URL:            "https://docs.example.com/",
					TransitionType: model.Ptr("auto_bookmark"),
					ActiveTime:     30_000,
					ClosedReason:   model.Ptr(model.ClosedReasonNavigation),
				},
				{
					ID:           "p2",
					URL:          "file:///tmp/notes.txt",
					ActiveTime:   500,
					ClosedReason: model.Ptr(model.ClosedReasonTabClose),
				},
			},
			Sync: &model.SyncStatus{LastUpdated: &updated, Synced: 12, LastError: "backend unavailable"},
		},
		Version:     "1.0.0",
		BrowserID:   "browser-1",
		SessionID:   "session-1",
		GeneratedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		FaultCount:  1,
		Faults:      []fault.Fault{{Time: time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC), Message: "capture failed"}},
	}
}

// TestReportHosts tests host aggregation and ordering.
func TestReportHosts(t *testing.T) {
	t.Parallel()

	r := createTestReport()
	hosts := r.Hosts()
	if len(hosts) != 2 {
		t.Fatalf("Hosts() = %+v", hosts)
	}
	if hosts[0].Host != "docs.example.com" || hosts[0].Pages != 2 || hosts[0].ActiveTime != 2*time.Minute {
		t.Errorf("hosts[0] = %+v", hosts[0])
	}
	if hosts[1].Host != "file:" {
		t.Errorf("hosts[1] = %+v", hosts[1])
	}
	if got := r.TotalActiveTime(); got != 120500*time.Millisecond {
		t.Errorf("TotalActiveTime() = %v", got)
	}
	if got := r.Transitions(); got["unknown"] != 1 || got["typed"] != 1 || got["auto_bookmark"] != 1 {
		t.Errorf("Transitions() = %v", got)
	}
}

// TestHeading tests display headings for wire identifiers.
func TestHeading(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"auto_bookmark": "Auto Bookmark",
		"tabClose":      "TabClose",
		"link":          "Link",
	}
	for in, want := range tests {
		if got := heading(in); got != want {
			t.Errorf("heading(%q) = %q, want %q", in, got, want)
		}
	}
}

// TestSimpleWriter tests the plain-text writer.
func TestSimpleWriter(t *testing.T) {
	t.Parallel()

	t.Run("summary", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
		out := buf.String()
		for _, want := range []string{"PAGETRAIL STATUS", "browser-1", "docs.example.com", "HISTORY SYNC", "backend unavailable", "capture failed"} {
			if !strings.Contains(out, want) {
				t.Errorf("output missing %q", want)
			}
		}
		if strings.Contains(out, "https://docs.example.com/guide") {
			t.Error("page list written without verbose")
		}
	})

	t.Run("verbose lists pages", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf, WithVerbose(true)).Write(createTestReport()); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
		out := buf.String()
		for _, want := range []string{"https://docs.example.com/guide", "Transition: Typed", "[Navigation]", "Auto Bookmark"} {
			if !strings.Contains(out, want) {
				t.Errorf("output missing %q", want)
			}
		}
	})

	t.Run("empty report", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(&Report{}); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
		if strings.Contains(buf.String(), "HOSTS") {
			t.Error("hosts section written for empty report")
		}
	})
}

// TestJSONWriter tests that the JSON output flattens the status.
func TestJSONWriter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if _, err := NewJSONWriter(&buf, WithPrettyPrint()).Write(createTestReport()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if !strings.HasSuffix(buf.String(), "}\n") {
		t.Error("output does not end with a newline")
	}

	var decoded Report
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if len(decoded.CurrentPages) != 1 || len(decoded.PendingPages) != 2 || decoded.BrowserID != "browser-1" {
		t.Errorf("decoded = %+v", decoded)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(buf.Bytes(), &raw); err != nil {
		t.Fatal(err)
	}
	if _, ok := raw["currentPages"]; !ok {
		t.Error("currentPages is not a top-level key")
	}
}

// TestMarkdownWriter tests the Markdown writer.
func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	n, err := NewMarkdownWriter(&buf).Write(createTestReport())
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if n == 0 {
		t.Error("Write() reported zero bytes")
	}
	out := buf.String()
	for _, want := range []string{"# Pagetrail Status", "## Hosts", "```mermaid", "docs.example.com", "## History Sync", "## Faults", "Auto Bookmark"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

// TestNewWriter tests format selection.
func TestNewWriter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		format string
		want   any
	}{
		{format: "", want: &SimpleWriter{}},
		{format: "text", want: &SimpleWriter{}},
		{format: "JSON", want: &JSONWriter{}},
		{format: "md", want: &MarkdownWriter{}},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			t.Parallel()

			w, err := NewWriter(tt.format, &bytes.Buffer{})
			if err != nil {
				t.Fatalf("NewWriter() error = %v", err)
			}
			switch tt.want.(type) {
			case *SimpleWriter:
				if _, ok := w.(*SimpleWriter); !ok {
					t.Errorf("NewWriter(%q) = %T", tt.format, w)
				}
			case *JSONWriter:
				if _, ok := w.(*JSONWriter); !ok {
					t.Errorf("NewWriter(%q) = %T", tt.format, w)
				}
			case *MarkdownWriter:
				if _, ok := w.(*MarkdownWriter); !ok {
					t.Errorf("NewWriter(%q) = %T", tt.format, w)
				}
			}
		})
	}

	if _, err := NewWriter("xml", &bytes.Buffer{}); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("NewWriter(xml) error = %v", err)
	}
}

// TestMultiWriter tests writing to several writers.
func TestMultiWriter(t *testing.T) {
	t.Parallel()

	var text, js bytes.Buffer
	mw := NewMultiWriter(NewSimpleWriter(&text), NewJSONWriter(&js))
	n, err := mw.Write(createTestReport())
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if n != text.Len()+js.Len() {
		t.Errorf("Write() = %d, want %d", n, text.Len()+js.Len())
	}
}
