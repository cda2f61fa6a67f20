package model

// HistoryItem is a browser history entry keyed by URL.
type HistoryItem struct {
	URL           string  `json:"url"`
	Title         string  `json:"title"`
	LastVisitTime int64   `json:"lastVisitTime"`
	VisitCount    int     `json:"visitCount"`
	TypedCount    int     `json:"typedCount"`
	Visits        []Visit `json:"visits"`
}

// Visit is one visit to a HistoryItem's URL.
type Visit struct {
	VisitID          string `json:"visitId"`
	VisitTime        int64  `json:"visitTime"`
	ReferringVisitID string `json:"referringVisitId,omitempty"`
	Transition       string `json:"transition"`
}

// BrowserInfo identifies a browser profile to the backend.
type BrowserInfo struct {
	BrowserID string `json:"browserId"`
	UserAgent string `json:"userAgent,omitempty"`
	Platform  string `json:"platform,omitempty"`
	TestPilot bool   `json:"testPilot"`
}

// SessionInfo identifies one daemon process lifetime.
type SessionInfo struct {
	BrowserID string `json:"browserId"`
	SessionID string `json:"sessionId"`
	StartTime int64  `json:"startTime"`
	Version   string `json:"version,omitempty"`
}

// BackendStatus is the collection summary a backend reports for a browser.
type BackendStatus struct {
	HistoryCount   int    `json:"historyCount"`
	Latest         int64  `json:"latest"`
	Oldest         *int64 `json:"oldest"`
	FetchedCount   int    `json:"fetchedCount"`
	UnfetchedCount int    `json:"unfetchedCount"`
}
