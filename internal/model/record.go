package model

// PageRecord is the wire snapshot of a Page. Times are epoch milliseconds
// and optional fields serialize as null.
type PageRecord struct {
	ID                     string      `json:"id"`
	URL                    string      `json:"url"`
	Title                  *string     `json:"title"`
	OGTitle                *string     `json:"ogTitle"`
	CanonicalURL           *string     `json:"canonicalUrl"`
	LoadTime               int64       `json:"loadTime"`
	UnloadTime             *int64      `json:"unloadTime"`
	TransitionType         *string     `json:"transitionType"`
	ClientRedirect         bool        `json:"client_redirect"`
	ServerRedirect         bool        `json:"server_redirect"`
	ForwardBack            bool        `json:"forward_back"`
	FromAddressBar         bool        `json:"from_address_bar"`
	SourceID               *string     `json:"sourceId"`
	NewTab                 bool        `json:"newTab"`
	IsHashChange           bool        `json:"isHashChange"`
	InitialLoadID          *string     `json:"initialLoadId"`
	SourceClickText        *string     `json:"sourceClickText"`
	SourceClickHref        *string     `json:"sourceClickHref"`
	CopyEvents             []CopyEvent `json:"copyEvents"`
	FormControlInteraction int         `json:"formControlInteraction"`
	FormTextInteraction    int         `json:"formTextInteraction"`
	MaxScroll              *int        `json:"maxScroll"`
	DocumentHeight         *int        `json:"documentHeight"`
	HashPointsToElement    *bool       `json:"hashPointsToElement"`
	ZoomLevel              *float64    `json:"zoomLevel"`
	MainFeedURL            *string     `json:"mainFeedUrl"`
	AllFeeds               []Feed      `json:"allFeeds"`
	LinkInformation        []LinkInfo  `json:"linkInformation"`
	Active                 bool        `json:"active"`
	ActiveCount            int         `json:"activeCount"`
	ActiveTime             int64       `json:"activeTime"`
	ClosedReason           *string     `json:"closedReason"`
	Method                 *string     `json:"method"`
	StatusCode             *int        `json:"statusCode"`
	ContentType            *string     `json:"contentType"`
	HasSetCookie           *bool       `json:"hasSetCookie"`
	HasCookie              *bool       `json:"hasCookie"`
	SessionID              string      `json:"sessionId"`
}

// CopyEvent is one clipboard copy observed inside a page.
type CopyEvent struct {
	Text          string `json:"text"`
	StartLocation string `json:"startLocation"`
	EndLocation   string `json:"endLocation"`
	Time          int64  `json:"time"`
}

// Feed is an RSS or Atom feed advertised by a page.
type Feed struct {
	Href  string `json:"href"`
	Title string `json:"title"`
	Type  string `json:"type"`
}

// LinkInfo describes one anchor element found in a page.
type LinkInfo struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

// ClickInfo is the most recent anchor click remembered for a tab.
type ClickInfo struct {
	Text string `json:"text"`
	Href string `json:"href"`
}

// Status is the in-memory view of the tracker handed out for
// requestStatus and for report rendering.
type Status struct {
	CurrentPages []PageRecord `json:"currentPages"`
	PendingPages []PageRecord `json:"pendingPages"`
	Sync         *SyncStatus  `json:"sync,omitempty"`
}

// SyncStatus reports the state of the history syncer.
type SyncStatus struct {
	// ServerTimestamp is the starting point of the last sync in epoch ms;
	// zero means the whole history was requested.
	ServerTimestamp int64  `json:"currentServerTimestamp"`
	LastUpdated     *int64 `json:"lastUpdated"`
	LastError       string `json:"lastError,omitempty"`
	Synced          int    `json:"synced"`
}
