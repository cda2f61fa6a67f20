package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/nao1215/pagetrail/internal/model"
)

// DefaultTimeout bounds every request made by Client.
const DefaultTimeout = 30 * time.Second

// maxErrorBody limits how much of an error response is kept.
const maxErrorBody = 512

// Client talks to a collection server over HTTP.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	logger     *slog.Logger
	userAgent  string

	needed singleflight.Group
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// NewClient creates a Client for the server at baseURL.
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid backend url %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid backend url %q: scheme must be http or https", baseURL)
	}

	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		userAgent:  "pagetrail",
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c, nil
}

// BaseURL returns the server URL. History entries pointing at the server
// itself are filtered with it.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// CheckPageNeeded asks GET /check-page-needed. Concurrent checks for the
// same URL share one request.
func (c *Client) CheckPageNeeded(ctx context.Context, pageURL string) (bool, error) {
	v, err, shared := c.needed.Do(pageURL, func() (any, error) {
		var resp struct {
			Needed bool `json:"needed"`
		}
		q := url.Values{"url": {pageURL}}
		if err := c.getJSON(ctx, "/check-page-needed", q, &resp); err != nil {
			return false, err
		}
		return resp.Needed, nil
	})
	if err != nil {
		return false, err
	}
	if shared {
		c.logger.Debug("collapsed duplicate needed-check", "url", pageURL)
	}
	return v.(bool), nil
}

// SubmitFetchedPage posts to /add-fetched-page.
func (c *Client) SubmitFetchedPage(ctx context.Context, pageURL string, page *model.FetchedPage) error {
	body := struct {
		URL  string             `json:"url"`
		Data *model.FetchedPage `json:"data"`
	}{URL: pageURL, Data: page}
	return c.postJSON(ctx, "/add-fetched-page", body)
}

// SubmitFetchFailure posts to /add-fetch-failure.
func (c *Client) SubmitFetchFailure(ctx context.Context, pageURL, message string) error {
	body := struct {
		URL          string `json:"url"`
		ErrorMessage string `json:"error_message"`
	}{URL: pageURL, ErrorMessage: message}
	return c.postJSON(ctx, "/add-fetch-failure", body)
}

// SubmitActivityBatch posts to /add-activity-list.
func (c *Client) SubmitActivityBatch(ctx context.Context, browserID string, pages []model.PageRecord) error {
	if browserID == "" {
		return ErrNoBrowserID
	}
	body := struct {
		BrowserID     string             `json:"browserId"`
		ActivityItems []model.PageRecord `json:"activityItems"`
	}{BrowserID: browserID, ActivityItems: pages}
	return c.postJSON(ctx, "/add-activity-list", body)
}

// SubmitHistory posts to /add-history-list.
func (c *Client) SubmitHistory(ctx context.Context, browserID, sessionID string, items map[string]model.HistoryItem) error {
	if browserID == "" {
		return ErrNoBrowserID
	}
	body := struct {
		BrowserID    string                       `json:"browserId"`
		SessionID    string                       `json:"sessionId"`
		HistoryItems map[string]model.HistoryItem `json:"historyItems"`
	}{BrowserID: browserID, SessionID: sessionID, HistoryItems: items}
	return c.postJSON(ctx, "/add-history-list", body)
}

// Status asks GET /status.
func (c *Client) Status(ctx context.Context, browserID string) (model.BackendStatus, error) {
	var st model.BackendStatus
	if browserID == "" {
		return st, ErrNoBrowserID
	}
	err := c.getJSON(ctx, "/status", url.Values{"browserId": {browserID}}, &st)
	return st, err
}

// RegisterBrowser posts to /register.
func (c *Client) RegisterBrowser(ctx context.Context, info model.BrowserInfo) error {
	if info.BrowserID == "" {
		return ErrNoBrowserID
	}
	return c.postJSON(ctx, "/register", info)
}

// RegisterSession posts to /register-session.
func (c *Client) RegisterSession(ctx context.Context, info model.SessionInfo) error {
	if info.BrowserID == "" {
		return ErrNoBrowserID
	}
	return c.postJSON(ctx, "/register-session", info)
}

func (c *Client) endpoint(path string, q url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	if q != nil {
		u.RawQuery = q.Encode()
	}
	return u.String()
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(path, q), nil)
	if err != nil {
		return fmt.Errorf("failed to create request for %s: %w", path, err)
	}
	return c.do(req, path, out)
}

func (c *Client) postJSON(ctx context.Context, path string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode %s body: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path, nil), bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request for %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.logger.Debug("sending to backend", "endpoint", path, "bytes", len(data))
	return c.do(req, path, nil)
}

func (c *Client) do(req *http.Request, path string, out any) error {
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody)) //nolint:errcheck // best effort detail
		return &StatusError{Endpoint: path, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body) //nolint:errcheck // drain for connection reuse
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}
