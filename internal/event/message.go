package event

import (
	"math"
	"strings"
	"time"
)

// Kind names a message variant. It is the value of the envelope's type field.
type Kind string

// Browser event kinds.
const (
	KindNavigationCommitted       Kind = "navigation.committed"
	KindNavigationCreatedTarget   Kind = "navigation.createdNavigationTarget"
	KindNavigationHistoryState    Kind = "navigation.historyStateUpdated"
	KindNavigationFragmentUpdated Kind = "navigation.referenceFragmentUpdated"
	KindRequestHeadersReceived    Kind = "request.headersReceived"
	KindRequestSendHeaders        Kind = "request.sendHeaders"
	KindTabActivated              Kind = "tabs.activated"
	KindTabRemoved                Kind = "tabs.removed"
	KindTabsExisting              Kind = "tabs.existing"
)

// Content message kinds.
const (
	KindAnchorClick      Kind = "anchorClick"
	KindCopy             Kind = "copy"
	KindChange           Kind = "change"
	KindScroll           Kind = "scroll"
	KindHashChange       Kind = "hashchange"
	KindIdle             Kind = "idle"
	KindActivity         Kind = "activity"
	KindDevicePixelRatio Kind = "devicePixelRatio"
	KindPageMetadata     Kind = "pageMetadata"
	KindCanonicalURL     Kind = "canonicalUrl"
	KindFeedInfo         Kind = "feedInfo"
	KindLinkInformation  Kind = "linkInformation"
)

// Control message kinds.
const (
	KindFlushNow      Kind = "flushNow"
	KindRequestStatus Kind = "requestStatus"
	KindSendNow       Kind = "sendNow"
	KindReportError   Kind = "reportError"
	KindLog           Kind = "log"
	KindHistoryItems  Kind = "historyItems"
)

// MainFrameID is the frame id browsers use for a tab's top-level document.
const MainFrameID = 0

// Message is implemented by every variant of the inbound message union.
type Message interface {
	Kind() Kind
}

// Millis is a browser timestamp in fractional epoch milliseconds.
type Millis float64

// Time converts m to a time.Time. The zero Millis maps to the zero time.
func (m Millis) Time() time.Time {
	if m == 0 {
		return time.Time{}
	}
	return time.UnixMicro(int64(math.Round(float64(m) * 1000)))
}

// FromTime converts t to Millis.
func FromTime(t time.Time) Millis {
	return Millis(float64(t.UnixMicro()) / 1000)
}

// Header is one HTTP header as reported by the webRequest API.
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Headers is a header list with case-insensitive lookup.
type Headers []Header

// Get returns the first value for name and whether it was present.
func (h Headers) Get(name string) (string, bool) {
	for _, hdr := range h {
		if strings.EqualFold(hdr.Name, name) {
			return hdr.Value, true
		}
	}
	return "", false
}

// Has reports whether a header called name is present.
func (h Headers) Has(name string) bool {
	_, ok := h.Get(name)
	return ok
}

// Sender identifies the page context that posted a content message.
type Sender struct {
	SenderTabID   int    `json:"senderTabId"`
	SenderFrameID int    `json:"senderFrameId"`
	SenderURL     string `json:"senderUrl"`
}

// TabID returns the sender's tab.
func (s Sender) TabID() int { return s.SenderTabID }

// IsMainFrame reports whether the message came from the top-level document.
func (s Sender) IsMainFrame() bool { return s.SenderFrameID == MainFrameID }

// ContentMessage is implemented by every message posted from page context.
type ContentMessage interface {
	Message
	TabID() int
	IsMainFrame() bool
}
