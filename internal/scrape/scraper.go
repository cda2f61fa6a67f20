// Package scrape captures page content for pagetrail.
//
// HTTPScraper refetches a URL the user visited, extracts its metadata with
// Parser, sanitizes the markup and renders a Markdown version for reading.
// It can route requests through a SOCKS5 proxy and limits its own request
// rate so background captures stay polite.
package scrape

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/crypto/sha3"
	"golang.org/x/net/proxy"
	"golang.org/x/time/rate"

	"github.com/nao1215/pagetrail/internal/model"
)

// Defaults for HTTPScraper.
const (
	DefaultMaxBodySize = 5 * 1024 * 1024
	DefaultTimeout     = 30 * time.Second
	DefaultRate        = 2
	DefaultBurst       = 4
	DefaultUserAgent   = "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0"
)

var (
	// ErrUnsupportedScheme is returned for URLs the scraper cannot fetch.
	ErrUnsupportedScheme = errors.New("unsupported url scheme for capture")

	// ErrNotHTML is returned when the response is not an HTML document.
	ErrNotHTML = errors.New("response is not html")

	// ErrInvalidProxyAddress is returned when the proxy is not in host:port form.
	ErrInvalidProxyAddress = errors.New("invalid proxy address: expected host:port")
)

// HTTPScraper captures pages by fetching them again.
type HTTPScraper struct {
	client      *http.Client
	limiter     *rate.Limiter
	sanitizer   *bluemonday.Policy
	md          *converter.Converter
	maxBodySize int64
	userAgent   string
	allowFiles  bool
	logger      *slog.Logger
	now         func() time.Time
}

// Option configures an HTTPScraper.
type Option func(*HTTPScraper)

// WithHTTPClient sets the HTTP client. It overrides WithProxy.
func WithHTTPClient(c *http.Client) Option {
	return func(s *HTTPScraper) {
		s.client = c
	}
}

// WithRate limits captures to r requests per second with the given burst.
func WithRate(r float64, burst int) Option {
	return func(s *HTTPScraper) {
		if r > 0 && burst > 0 {
			s.limiter = rate.NewLimiter(rate.Limit(r), burst)
		}
	}
}

// WithMaxBodySize limits how much of each response is read.
func WithMaxBodySize(n int64) Option {
	return func(s *HTTPScraper) {
		if n > 0 {
			s.maxBodySize = n
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(s *HTTPScraper) {
		if ua != "" {
			s.userAgent = ua
		}
	}
}

// WithFileAccess allows capturing file:// URLs from the local disk.
func WithFileAccess(allow bool) Option {
	return func(s *HTTPScraper) {
		s.allowFiles = allow
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *HTTPScraper) {
		s.logger = logger
	}
}

// NewHTTPScraper creates an HTTPScraper.
func NewHTTPScraper(opts ...Option) *HTTPScraper {
	s := &HTTPScraper{
		client:      &http.Client{Timeout: DefaultTimeout},
		limiter:     rate.NewLimiter(rate.Limit(DefaultRate), DefaultBurst),
		sanitizer:   bluemonday.UGCPolicy(),
		maxBodySize: DefaultMaxBodySize,
		userAgent:   DefaultUserAgent,
		now:         time.Now,
		md: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// NewProxyClient returns an HTTP client that dials through the SOCKS5
// proxy at proxyAddress.
func NewProxyClient(proxyAddress string, timeout time.Duration) (*http.Client, error) {
	host, port, err := net.SplitHostPort(proxyAddress)
	if err != nil || host == "" || port == "" {
		return nil, ErrInvalidProxyAddress
	}

	dialer, err := proxy.SOCKS5("tcp", proxyAddress, nil, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
	}

	transport := &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			if cd, ok := dialer.(proxy.ContextDialer); ok {
				return cd.DialContext(ctx, network, addr)
			}
			return dialer.Dial(network, addr)
		},
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
	}
	return &http.Client{Transport: transport, Timeout: timeout}, nil
}

// Scrape captures pageURL. tabID is only used for logging; the page is
// fetched again rather than read from the tab.
func (s *HTTPScraper) Scrape(ctx context.Context, tabID int, pageURL string) (*model.FetchedPage, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid capture url: %w", err)
	}

	start := s.now()
	var (
		body     []byte
		finalURL = pageURL
	)
	switch u.Scheme {
	case "http", "https":
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		body, finalURL, err = s.fetch(ctx, pageURL)
	case "file":
		if !s.allowFiles {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, u.Scheme)
		}
		body, err = s.readFile(u.Path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, u.Scheme)
	}
	if err != nil {
		return nil, err
	}

	page, err := s.build(finalURL, body)
	if err != nil {
		return nil, err
	}
	page.FetchedAt = s.now().UnixMilli()

	s.logger.Debug("captured page",
		"tab_id", tabID,
		"url", pageURL,
		"bytes", len(body),
		"elapsed", s.now().Sub(start),
	)
	return page, nil
}

func (s *HTTPScraper) fetch(ctx context.Context, pageURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", fmt.Errorf("failed to fetch %s: status %d", pageURL, resp.StatusCode)
	}
	ct := strings.ToLower(resp.Header.Get("Content-Type"))
	if ct != "" && !strings.Contains(ct, "html") {
		return nil, "", fmt.Errorf("%w: %s", ErrNotHTML, ct)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBodySize))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read %s: %w", pageURL, err)
	}
	return body, resp.Request.URL.String(), nil
}

func (s *HTTPScraper) readFile(path string) ([]byte, error) {
	f, err := os.Open(path) //nolint:gosec // file captures are opt-in
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, s.maxBodySize))
}

func (s *HTTPScraper) build(pageURL string, body []byte) (*model.FetchedPage, error) {
	parser, err := NewParser(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid capture url: %w", err)
	}
	parsed, err := parser.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", pageURL, err)
	}

	clean := s.sanitizer.SanitizeBytes(body)
	readable, err := s.md.ConvertString(string(clean), converter.WithDomain(pageURL))
	if err != nil {
		s.logger.Warn("failed to render readable text", "url", pageURL, "error", err)
		readable = ""
	}

	sum := sha3.Sum256(body)
	return &model.FetchedPage{
		URL:          pageURL,
		Title:        parsed.Title,
		OGTitle:      parsed.OGTitle,
		CanonicalURL: parsed.CanonicalURL,
		Feeds:        parsed.Feeds,
		Links:        parsed.Links,
		HTML:         string(clean),
		Readable:     readable,
		ContentHash:  hex.EncodeToString(sum[:]),
	}, nil
}
