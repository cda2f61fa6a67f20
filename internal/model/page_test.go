package model

import (
	"encoding/json"
	"testing"
	"time"
)

var epoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// TestPageActiveTime tests the active-time bookkeeping.
func TestPageActiveTime(t *testing.T) {
	t.Parallel()

	t.Run("accumulates across intervals", func(t *testing.T) {
		t.Parallel()

		p := NewPage(PageOptions{URL: "https://example.com/", LoadTime: epoch})
		p.SetActive(epoch)
		p.SetInactive(epoch.Add(3 * time.Second))
		p.SetActive(epoch.Add(10 * time.Second))
		p.SetInactive(epoch.Add(12 * time.Second))

		if got := p.ActiveTime(epoch.Add(time.Minute)); got != 5*time.Second {
			t.Errorf("ActiveTime() = %v, want 5s", got)
		}
		if p.ActiveCount != 2 {
			t.Errorf("ActiveCount = %d, want 2", p.ActiveCount)
		}
	})

	t.Run("includes running interval", func(t *testing.T) {
		t.Parallel()

		p := NewPage(PageOptions{URL: "https://example.com/", LoadTime: epoch})
		p.SetActive(epoch)

		if got := p.ActiveTime(epoch.Add(4 * time.Second)); got != 4*time.Second {
			t.Errorf("ActiveTime() = %v, want 4s", got)
		}
		if !p.Active {
			t.Error("expected page to be active")
		}
	})

	t.Run("brief interval reverts count but keeps time", func(t *testing.T) {
		t.Parallel()

		p := NewPage(PageOptions{URL: "https://example.com/", LoadTime: epoch})
		p.SetActive(epoch)
		p.SetInactive(epoch.Add(400 * time.Millisecond))

		if p.ActiveCount != 0 {
			t.Errorf("ActiveCount = %d, want 0", p.ActiveCount)
		}
		if got := p.ActiveTime(epoch.Add(time.Hour)); got != 400*time.Millisecond {
			t.Errorf("ActiveTime() = %v, want 400ms", got)
		}
	})

	t.Run("set inactive on inactive page is a no-op", func(t *testing.T) {
		t.Parallel()

		p := NewPage(PageOptions{URL: "https://example.com/", LoadTime: epoch})
		p.SetInactive(epoch.Add(time.Second))

		if p.ActiveCount != 0 || p.ActiveTime(epoch) != 0 {
			t.Errorf("unexpected state: count=%d time=%v", p.ActiveCount, p.ActiveTime(epoch))
		}
	})
}

// TestPageClose tests Close.
func TestPageClose(t *testing.T) {
	t.Parallel()

	p := NewPage(PageOptions{URL: "https://example.com/", LoadTime: epoch})
	p.SetActive(epoch)
	p.Close(ClosedReasonTabClose, epoch.Add(2*time.Second))

	if p.Active {
		t.Error("closed page should not be active")
	}
	if !p.Closed || p.ClosedReason != ClosedReasonTabClose {
		t.Errorf("Closed=%v ClosedReason=%q", p.Closed, p.ClosedReason)
	}
	if !p.UnloadTime.Equal(epoch.Add(2 * time.Second)) {
		t.Errorf("UnloadTime = %v", p.UnloadTime)
	}
	if got := p.ActiveTime(epoch.Add(time.Hour)); got != 2*time.Second {
		t.Errorf("ActiveTime() = %v, want 2s", got)
	}
}

// TestNewPage tests the fields derived from PageOptions.
func TestNewPage(t *testing.T) {
	t.Parallel()

	prev := NewPage(PageOptions{ID: "prev", URL: "https://a.example/"})
	p := NewPage(PageOptions{
		URL:        "https://b.example/",
		LoadTime:   epoch,
		Previous:   prev,
		Qualifiers: []string{"from_address_bar", "server_redirect", "unknown"},
		Click:      &ClickInfo{Text: "go", Href: "https://b.example/"},
		SessionID:  "s1",
	})

	if p.ID == "" {
		t.Error("expected generated ID")
	}
	if p.SourceID != "prev" {
		t.Errorf("SourceID = %q, want prev", p.SourceID)
	}
	want := TransitionQualifiers{ServerRedirect: true, FromAddressBar: true}
	if p.Qualifiers != want {
		t.Errorf("Qualifiers = %+v, want %+v", p.Qualifiers, want)
	}
	if p.SourceClickText == nil || *p.SourceClickText != "go" {
		t.Errorf("SourceClickText = %v", p.SourceClickText)
	}
	if p.Title != nil {
		t.Errorf("Title = %v, want nil", *p.Title)
	}
}

// TestPageHash tests fragment extraction.
func TestPageHash(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		url  string
		want string
	}{
		{name: "no fragment", url: "https://example.com/a", want: ""},
		{name: "simple fragment", url: "https://example.com/a#sec", want: "sec"},
		{name: "escaped fragment", url: "https://example.com/a#a%20b", want: "a%20b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := &Page{URL: tt.url}
			if got := p.Hash(); got != tt.want {
				t.Errorf("Hash() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestPageRecord tests the wire snapshot.
func TestPageRecord(t *testing.T) {
	t.Parallel()

	p := NewPage(PageOptions{ID: "p1", URL: "https://example.com/", LoadTime: epoch})
	p.SetActive(epoch)
	p.Apply(Annotation{StatusCode: Ptr(200), HasSetCookie: Ptr(true)})

	rec := p.Record(epoch.Add(1500 * time.Millisecond))
	if rec.ActiveTime != 1500 {
		t.Errorf("ActiveTime = %d, want 1500", rec.ActiveTime)
	}
	if rec.LoadTime != epoch.UnixMilli() {
		t.Errorf("LoadTime = %d", rec.LoadTime)
	}
	if rec.UnloadTime != nil {
		t.Errorf("UnloadTime = %v, want nil", *rec.UnloadTime)
	}

	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	for _, key := range []string{"activeStart", "activeCumulated", "closed"} {
		if _, ok := fields[key]; ok {
			t.Errorf("internal field %q leaked into record", key)
		}
	}
	if fields["statusCode"] != float64(200) {
		t.Errorf("statusCode = %v", fields["statusCode"])
	}
	if fields["sourceId"] != nil {
		t.Errorf("sourceId = %v, want null", fields["sourceId"])
	}
}

// TestAddToScrapedData tests capture stamping.
func TestAddToScrapedData(t *testing.T) {
	t.Parallel()

	p := NewPage(PageOptions{
		ID:             "p1",
		URL:            "https://example.com/",
		LoadTime:       epoch,
		TransitionType: "link",
		Qualifiers:     []string{"forward_back"},
	})
	p.Apply(Annotation{Method: Ptr("GET")})

	fp := &FetchedPage{URL: p.URL}
	p.AddToScrapedData(fp)

	if fp.ActivityID != "p1" {
		t.Errorf("ActivityID = %q", fp.ActivityID)
	}
	if fp.Activity == nil || !fp.Activity.ForwardBack || *fp.Activity.Method != "GET" {
		t.Errorf("Activity = %+v", fp.Activity)
	}
	if *fp.Activity.TransitionType != "link" {
		t.Errorf("TransitionType = %v", *fp.Activity.TransitionType)
	}
}

// TestAnnotationMerge tests that newer fields win and older ones survive.
func TestAnnotationMerge(t *testing.T) {
	t.Parallel()

	old := Annotation{URL: "https://a/", Method: Ptr("GET"), HasCookie: Ptr(true)}
	merged := old.Merge(Annotation{URL: "https://b/", StatusCode: Ptr(301), HasCookie: Ptr(false)})

	if merged.URL != "https://b/" {
		t.Errorf("URL = %q", merged.URL)
	}
	if *merged.Method != "GET" || *merged.StatusCode != 301 || *merged.HasCookie {
		t.Errorf("merged = %+v", merged)
	}
	if !*old.HasCookie {
		t.Error("merge mutated the receiver")
	}
	if (Annotation{}).IsEmpty() != true || merged.IsEmpty() {
		t.Error("IsEmpty mismatch")
	}
}
