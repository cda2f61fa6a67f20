package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nao1215/pagetrail/internal/config"
	"github.com/nao1215/pagetrail/internal/database"
	"github.com/nao1215/pagetrail/internal/event"
	"github.com/nao1215/pagetrail/internal/ingest"
	"github.com/nao1215/pagetrail/internal/model"
	"github.com/nao1215/pagetrail/internal/report"
)

type statusDispatcher struct{}

func (statusDispatcher) Dispatch(_ context.Context, msg event.Message) (any, error) {
	switch msg.(type) {
	case *event.RequestStatus:
		return &report.Report{
			BrowserID: "browser-9",
			Status: model.Status{
				CurrentPages: []model.PageRecord{{ID: "p1", URL: "https://example.com/", ActiveTime: 3000}},
			},
		}, nil
	case *event.SendNow:
		return map[string]int{"synced": 4}, nil
	default:
		return map[string]bool{"flushed": true}, nil
	}
}

func newTestDaemonServer(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(ingest.NewServer("", statusDispatcher{}, ingest.WithLogger(discardLogger())).Handler())
	t.Cleanup(srv.Close)
	return srv.URL
}

// TestStatusCmd tests rendering the status of a running daemon.
func TestStatusCmd(t *testing.T) {
	t.Parallel()

	addr := newTestDaemonServer(t)
	envFile := t.TempDir() + "/.env"

	tests := []struct {
		format string
		want   string
	}{
		{format: "text", want: "PAGETRAIL STATUS"},
		{format: "json", want: `"browserId"`},
		{format: "markdown", want: "# Pagetrail Status"},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			root := NewRootCmd()
			root.SetOut(&buf)
			root.SetArgs([]string{"status", "--env-file", envFile, "--addr", addr, "--format", tt.format})
			if err := root.Execute(); err != nil {
				t.Fatalf("Execute() error = %v", err)
			}
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("output missing %q:\n%s", tt.want, buf.String())
			}
			if !strings.Contains(buf.String(), "example.com") {
				t.Error("output missing the tracked host")
			}
		})
	}
}

// TestFlushAndSyncCmd tests the control commands.
func TestFlushAndSyncCmd(t *testing.T) {
	t.Parallel()

	addr := newTestDaemonServer(t)
	envFile := t.TempDir() + "/.env"

	var buf bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&buf)
	root.SetArgs([]string{"flush", "--env-file", envFile, "--addr", addr})
	if err := root.Execute(); err != nil {
		t.Fatalf("flush error = %v", err)
	}
	if !strings.Contains(buf.String(), "flushed") {
		t.Errorf("flush output = %q", buf.String())
	}

	buf.Reset()
	root = NewRootCmd()
	root.SetOut(&buf)
	root.SetArgs([]string{"sync", "--env-file", envFile, "--addr", addr, "--force"})
	if err := root.Execute(); err != nil {
		t.Fatalf("sync error = %v", err)
	}
	if !strings.Contains(buf.String(), "synced 4") {
		t.Errorf("sync output = %q", buf.String())
	}
}

// TestStatusUnreachable tests the error for a daemon that is not running.
func TestStatusUnreachable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(nil)
	addr := srv.URL
	srv.Close()

	root := NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"status", "--env-file", t.TempDir() + "/.env", "--addr", addr})
	err := root.Execute()
	if err == nil || !strings.Contains(err.Error(), "--archive") {
		t.Errorf("Execute() error = %v", err)
	}
}

// TestArchiveReport tests building a report from the local archive.
func TestArchiveReport(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := database.Open(dir, database.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	records := []model.PageRecord{
		{ID: "a", URL: "https://one.example/", LoadTime: 1000, ActiveTime: 5000},
		{ID: "b", URL: "https://two.example/", LoadTime: 2000, ActiveTime: 1000},
	}
	if err := store.SubmitActivityBatch(context.Background(), "browser-1", records); err != nil {
		t.Fatal(err)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	cfg := config.NewConfig()
	cfg.DBDir = dir
	cfg.BrowserID = "browser-1"
	r, err := archiveReport(context.Background(), cfg)
	if err != nil {
		t.Fatalf("archiveReport() error = %v", err)
	}
	if len(r.PendingPages) != 2 || r.BrowserID != "browser-1" {
		t.Errorf("report = %+v", r)
	}

	var buf bytes.Buffer
	if err := writeReport(&buf, "text", true, r); err != nil {
		t.Fatalf("writeReport() error = %v", err)
	}
	if !strings.Contains(buf.String(), "https://one.example/") {
		t.Errorf("output = %s", buf.String())
	}
}
