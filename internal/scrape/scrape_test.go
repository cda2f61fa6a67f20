package scrape

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const samplePage = `<html><head>
	<title>  Sample
	Page </title>
	<meta property="og:title" content="OG Sample">
	<link rel="canonical" href="/canonical">
	<link rel="alternate" type="application/rss+xml" title="Feed" href="/feed.xml">
	<link rel="alternate" type="text/html" href="/other">
</head><body>
	<h1>Heading</h1>
	<p>Some <b>text</b>.</p>
	<a href="/next"> Next   <span>page</span></a>
	<a href="javascript:void(0)">js</a>
	<a href="mailto:a@example.com">mail</a>
	<script>alert(1)</script>
</body></html>`

// TestParser tests HTML metadata extraction.
func TestParser(t *testing.T) {
	t.Parallel()

	parser, err := NewParser("https://example.com/article")
	if err != nil {
		t.Fatalf("failed to create parser: %v", err)
	}
	result, err := parser.Parse(strings.NewReader(samplePage))
	if err != nil {
		t.Fatalf("failed to parse: %v", err)
	}

	if result.Title != "Sample Page" {
		t.Errorf("Title = %q", result.Title)
	}
	if result.OGTitle != "OG Sample" {
		t.Errorf("OGTitle = %q", result.OGTitle)
	}
	if result.CanonicalURL != "https://example.com/canonical" {
		t.Errorf("CanonicalURL = %q", result.CanonicalURL)
	}
	if len(result.Feeds) != 1 || result.Feeds[0].Href != "https://example.com/feed.xml" || result.Feeds[0].Title != "Feed" {
		t.Errorf("Feeds = %+v", result.Feeds)
	}
	if len(result.Links) != 1 {
		t.Fatalf("Links = %+v, want only the http link", result.Links)
	}
	if result.Links[0].Text != "Next page" || result.Links[0].URL != "https://example.com/next" {
		t.Errorf("Links[0] = %+v", result.Links[0])
	}
}

// TestNormalizeText tests whitespace and Unicode normalization.
func TestNormalizeText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "collapses whitespace", input: "  a \n\t b  ", want: "a b"},
		{name: "composes accents", input: "e\u0301te\u0301", want: "\u00e9t\u00e9"},
		{name: "empty", input: "   ", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := NormalizeText(tt.input); got != tt.want {
				t.Errorf("NormalizeText(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// TestHTTPScraper tests capturing over HTTP.
func TestHTTPScraper(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/article", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(samplePage)) //nolint:errcheck
	})
	mux.HandleFunc("/image", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte{0x89, 'P', 'N', 'G'}) //nolint:errcheck
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	s := NewHTTPScraper(WithRate(1000, 10))

	t.Run("captures html", func(t *testing.T) {
		t.Parallel()

		page, err := s.Scrape(context.Background(), 1, srv.URL+"/article")
		if err != nil {
			t.Fatalf("Scrape() error = %v", err)
		}
		if page.Title != "Sample Page" || page.OGTitle != "OG Sample" {
			t.Errorf("metadata = %q / %q", page.Title, page.OGTitle)
		}
		if strings.Contains(page.HTML, "<script") {
			t.Error("sanitized HTML still contains script")
		}
		if !strings.Contains(page.Readable, "# Heading") {
			t.Errorf("Readable = %q", page.Readable)
		}
		if len(page.ContentHash) != 64 {
			t.Errorf("ContentHash = %q", page.ContentHash)
		}
		if page.FetchedAt == 0 {
			t.Error("FetchedAt not set")
		}
	})

	t.Run("rejects non-html", func(t *testing.T) {
		t.Parallel()

		if _, err := s.Scrape(context.Background(), 1, srv.URL+"/image"); !errors.Is(err, ErrNotHTML) {
			t.Errorf("Scrape() error = %v, want ErrNotHTML", err)
		}
	})

	t.Run("fails on error status", func(t *testing.T) {
		t.Parallel()

		if _, err := s.Scrape(context.Background(), 1, srv.URL+"/missing"); err == nil {
			t.Error("expected error for 404")
		}
	})

	t.Run("rejects data urls", func(t *testing.T) {
		t.Parallel()

		if _, err := s.Scrape(context.Background(), 1, "data:text/html,hi"); !errors.Is(err, ErrUnsupportedScheme) {
			t.Errorf("Scrape() error = %v, want ErrUnsupportedScheme", err)
		}
	})
}

// TestHTTPScraperFiles tests opt-in file captures.
func TestHTTPScraperFiles(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "page.html")
	if err := os.WriteFile(path, []byte(samplePage), 0o600); err != nil {
		t.Fatal(err)
	}
	fileURL := "file://" + filepath.ToSlash(path)

	if _, err := NewHTTPScraper().Scrape(context.Background(), 1, fileURL); !errors.Is(err, ErrUnsupportedScheme) {
		t.Errorf("Scrape() without file access error = %v", err)
	}

	page, err := NewHTTPScraper(WithFileAccess(true)).Scrape(context.Background(), 1, fileURL)
	if err != nil {
		t.Fatalf("Scrape() error = %v", err)
	}
	if page.Title != "Sample Page" {
		t.Errorf("Title = %q", page.Title)
	}
}

// TestNewProxyClient tests proxy address validation.
func TestNewProxyClient(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		addr    string
		wantErr bool
	}{
		{name: "valid", addr: "127.0.0.1:9050"},
		{name: "missing port", addr: "127.0.0.1", wantErr: true},
		{name: "empty host", addr: ":9050", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := NewProxyClient(tt.addr, DefaultTimeout)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewProxyClient(%q) error = %v, wantErr %v", tt.addr, err, tt.wantErr)
			}
		})
	}
}
