// Package backend defines where pagetrail delivers what it collects and
// provides an HTTP client for a remote collection server.
package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nao1215/pagetrail/internal/model"
)

// Backend receives captures, activity batches and history.
// Implementations do not retry; callers decide what a failure means.
type Backend interface {
	// CheckPageNeeded reports whether the backend still wants a capture of url.
	CheckPageNeeded(ctx context.Context, url string) (bool, error)

	// SubmitFetchedPage stores a capture of url.
	SubmitFetchedPage(ctx context.Context, url string, page *model.FetchedPage) error

	// SubmitFetchFailure records that url could not be captured.
	SubmitFetchFailure(ctx context.Context, url, message string) error

	// SubmitActivityBatch stores page records for a browser.
	SubmitActivityBatch(ctx context.Context, browserID string, pages []model.PageRecord) error

	// SubmitHistory stores history items keyed by their history id.
	SubmitHistory(ctx context.Context, browserID, sessionID string, items map[string]model.HistoryItem) error

	// Status returns the collection summary for a browser.
	Status(ctx context.Context, browserID string) (model.BackendStatus, error)

	// RegisterBrowser announces a browser profile.
	RegisterBrowser(ctx context.Context, info model.BrowserInfo) error

	// RegisterSession announces a daemon process lifetime.
	RegisterSession(ctx context.Context, info model.SessionInfo) error
}

// ErrNoBrowserID is returned when a call needs a browser id and got none.
var ErrNoBrowserID = errors.New("no browser id")

// StatusError is returned when the server answers with a non-2xx status.
type StatusError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

// Error implements error.
func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("bad response from %s: %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("bad response from %s: %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// LatestHistoryTime returns the newest history visit time the backend has
// for browserID, or the zero time if it has none.
func LatestHistoryTime(ctx context.Context, b Backend, browserID string) (time.Time, error) {
	st, err := b.Status(ctx, browserID)
	if err != nil {
		return time.Time{}, err
	}
	if st.Latest <= 0 {
		return time.Time{}, nil
	}
	return time.UnixMilli(st.Latest), nil
}
