package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/nao1215/pagetrail/internal/model"
)

// setupTestStore creates a temporary archive for testing.
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// TestOpen tests database opening and creation.
func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("creates database in new directory", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "newdir", "subdir")
		s, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer s.Close()

		if _, err := os.Stat(filepath.Join(dbDir, FileName)); os.IsNotExist(err) {
			t.Error("database file was not created")
		}
	})

	t.Run("CreateIfNotExists=false requires existing database", func(t *testing.T) {
		t.Parallel()

		_, err := Open(filepath.Join(t.TempDir(), "missing"), Options{CreateIfNotExists: false})
		if err == nil {
			t.Error("expected error for missing database")
		}
	})
}

// TestStorePages tests capture storage and the needed check.
func TestStorePages(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := setupTestStore(t)
	url := "https://example.com/article"

	needed, err := s.CheckPageNeeded(ctx, url)
	if err != nil || !needed {
		t.Fatalf("CheckPageNeeded() = %v, %v; want true", needed, err)
	}

	if err := s.SubmitFetchFailure(ctx, url, "timeout"); err != nil {
		t.Fatalf("SubmitFetchFailure() error = %v", err)
	}
	if msg, ok, err := s.FetchFailure(ctx, url); err != nil || !ok || msg != "timeout" {
		t.Errorf("FetchFailure() = %q, %v, %v", msg, ok, err)
	}

	page := &model.FetchedPage{
		URL:        "https://example.com/article?redirected=1",
		Title:      "Article",
		ActivityID: "act-1",
	}
	if err := s.SubmitFetchedPage(ctx, url, page); err != nil {
		t.Fatalf("SubmitFetchedPage() error = %v", err)
	}

	needed, err = s.CheckPageNeeded(ctx, url)
	if err != nil || needed {
		t.Errorf("CheckPageNeeded() after submit = %v, %v; want false", needed, err)
	}
	if _, ok, _ := s.FetchFailure(ctx, url); ok {
		t.Error("fetch failure should be cleared by a successful capture")
	}

	got, err := s.GetFetchedPage(ctx, url)
	if err != nil || got == nil {
		t.Fatalf("GetFetchedPage() = %v, %v", got, err)
	}
	if got.Page.Title != "Article" || got.RedirectURL != page.URL {
		t.Errorf("GetFetchedPage() = %+v", got)
	}
	if got.Fetched.IsZero() {
		t.Error("expected fetched timestamp")
	}

	missing, err := s.GetFetchedPage(ctx, "https://nope/")
	if err != nil || missing != nil {
		t.Errorf("GetFetchedPage(missing) = %v, %v", missing, err)
	}
}

// TestStoreActivity tests that re-flushed records replace earlier ones.
func TestStoreActivity(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := setupTestStore(t)

	open := model.PageRecord{ID: "p1", URL: "https://a/", LoadTime: 100, SessionID: "s"}
	other := model.PageRecord{ID: "p2", URL: "https://b/", LoadTime: 50, SessionID: "s"}
	if err := s.SubmitActivityBatch(ctx, "b1", []model.PageRecord{open, other}); err != nil {
		t.Fatalf("SubmitActivityBatch() error = %v", err)
	}

	closed := open
	closed.UnloadTime = model.Ptr(int64(200))
	closed.ClosedReason = model.Ptr(model.ClosedReasonNavigation)
	if err := s.SubmitActivityBatch(ctx, "b1", []model.PageRecord{closed}); err != nil {
		t.Fatalf("SubmitActivityBatch() error = %v", err)
	}

	records, err := s.ActivityRecords(ctx, "b1")
	if err != nil {
		t.Fatalf("ActivityRecords() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].ID != "p2" {
		t.Errorf("records not ordered by load time: %v", records[0].ID)
	}
	if records[1].UnloadTime == nil || *records[1].UnloadTime != 200 {
		t.Errorf("record was not replaced: %+v", records[1])
	}

	if err := s.SubmitActivityBatch(ctx, "", nil); err == nil {
		t.Error("expected error without browser id")
	}
}

// TestStoreHistory tests history storage and the status summary.
func TestStoreHistory(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := setupTestStore(t)

	if err := s.RegisterBrowser(ctx, model.BrowserInfo{BrowserID: "b1", UserAgent: "test"}); err != nil {
		t.Fatalf("RegisterBrowser() error = %v", err)
	}
	if err := s.RegisterSession(ctx, model.SessionInfo{BrowserID: "b1", SessionID: "s1", StartTime: 1}); err != nil {
		t.Fatalf("RegisterSession() error = %v", err)
	}

	items := map[string]model.HistoryItem{
		"h1": {URL: "https://a/", LastVisitTime: 1000, Visits: []model.Visit{{VisitID: "v1", VisitTime: 1000, Transition: "link"}}},
		"h2": {URL: "https://b/", LastVisitTime: 3000},
	}
	if err := s.SubmitHistory(ctx, "b1", "s1", items); err != nil {
		t.Fatalf("SubmitHistory() error = %v", err)
	}
	if err := s.SubmitFetchedPage(ctx, "https://a/", &model.FetchedPage{URL: "https://a/"}); err != nil {
		t.Fatalf("SubmitFetchedPage() error = %v", err)
	}

	st, err := s.Status(ctx, "b1")
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if st.HistoryCount != 2 || st.Latest != 3000 || st.FetchedCount != 1 || st.UnfetchedCount != 1 {
		t.Errorf("Status() = %+v", st)
	}
	if st.Oldest == nil || *st.Oldest != 1000 {
		t.Errorf("Oldest = %v", st.Oldest)
	}

	needed, err := s.NeededPages(ctx, 10)
	if err != nil {
		t.Fatalf("NeededPages() error = %v", err)
	}
	if len(needed) != 1 || needed[0].URL != "https://b/" {
		t.Errorf("NeededPages() = %+v", needed)
	}

	fresh, err := s.Status(ctx, "unknown")
	if err != nil || fresh.Latest != 0 || fresh.HistoryCount != 0 {
		t.Errorf("Status(unknown) = %+v, %v", fresh, err)
	}
}
