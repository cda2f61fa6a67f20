package event

// Navigation carries the fields shared by webNavigation events.
type Navigation struct {
	TabID                int      `json:"tabId"`
	FrameID              int      `json:"frameId"`
	URL                  string   `json:"url"`
	TimeStamp            Millis   `json:"timeStamp"`
	TransitionType       string   `json:"transitionType,omitempty"`
	TransitionQualifiers []string `json:"transitionQualifiers,omitempty"`
}

// IsMainFrame reports whether the navigation happened in the top-level document.
func (n Navigation) IsMainFrame() bool { return n.FrameID == MainFrameID }

// NavigationCommitted is a committed full navigation.
type NavigationCommitted struct {
	Navigation
}

// Kind implements Message.
func (*NavigationCommitted) Kind() Kind { return KindNavigationCommitted }

// NavigationCreatedTarget reports a tab or window opened from a source tab.
type NavigationCreatedTarget struct {
	Navigation
	SourceTabID   int `json:"sourceTabId"`
	SourceFrameID int `json:"sourceFrameId"`
}

// Kind implements Message.
func (*NavigationCreatedTarget) Kind() Kind { return KindNavigationCreatedTarget }

// HistoryStateUpdated is a script-driven navigation via the History API.
type HistoryStateUpdated struct {
	Navigation
}

// Kind implements Message.
func (*HistoryStateUpdated) Kind() Kind { return KindNavigationHistoryState }

// ReferenceFragmentUpdated is an in-document fragment navigation.
type ReferenceFragmentUpdated struct {
	Navigation
}

// Kind implements Message.
func (*ReferenceFragmentUpdated) Kind() Kind { return KindNavigationFragmentUpdated }

// ResourceMainFrame is the webRequest resource type of a top-level document.
const ResourceMainFrame = "main_frame"

// Request carries the fields shared by webRequest events.
type Request struct {
	RequestID    string `json:"requestId,omitempty"`
	TabID        int    `json:"tabId"`
	FrameID      int    `json:"frameId"`
	URL          string `json:"url"`
	Method       string `json:"method"`
	ResourceType string `json:"resourceType"`
	TimeStamp    Millis `json:"timeStamp"`
}

// IsMainFrame reports whether the request loads a top-level document.
func (r Request) IsMainFrame() bool { return r.ResourceType == ResourceMainFrame }

// HeadersReceived is webRequest.onHeadersReceived.
type HeadersReceived struct {
	Request
	StatusCode      int     `json:"statusCode"`
	ResponseHeaders Headers `json:"responseHeaders"`
}

// Kind implements Message.
func (*HeadersReceived) Kind() Kind { return KindRequestHeadersReceived }

// SendHeaders is webRequest.onSendHeaders.
type SendHeaders struct {
	Request
	RequestHeaders Headers `json:"requestHeaders"`
}

// Kind implements Message.
func (*SendHeaders) Kind() Kind { return KindRequestSendHeaders }

// TabActivated reports that a tab became the foreground tab of its window.
type TabActivated struct {
	TabID    int `json:"tabId"`
	WindowID int `json:"windowId"`
}

// Kind implements Message.
func (*TabActivated) Kind() Kind { return KindTabActivated }

// TabRemoved reports that a tab was closed.
type TabRemoved struct {
	TabID           int  `json:"tabId"`
	WindowID        int  `json:"windowId"`
	IsWindowClosing bool `json:"isWindowClosing"`
}

// Kind implements Message.
func (*TabRemoved) Kind() Kind { return KindTabRemoved }

// Tab describes a tab that was already open when tracking started.
type Tab struct {
	ID     int    `json:"id"`
	URL    string `json:"url"`
	Title  string `json:"title"`
	Active bool   `json:"active"`
}

// TabsExisting lists the tabs open when the extension connected, plus the
// device pixel ratio used as the zoom baseline.
type TabsExisting struct {
	Tabs             []Tab   `json:"tabs"`
	DevicePixelRatio float64 `json:"devicePixelRatio,omitempty"`
}

// Kind implements Message.
func (*TabsExisting) Kind() Kind { return KindTabsExisting }
