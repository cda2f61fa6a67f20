package model

import (
	"net/url"
	"time"

	"github.com/google/uuid"
)

// Closed reasons recorded on a Page when it stops being current.
const (
	// ClosedReasonNavigation means another navigation in the same tab replaced the page.
	ClosedReasonNavigation = "navigation"

	// ClosedReasonTabClose means the tab hosting the page was removed.
	ClosedReasonTabClose = "tabClose"
)

// TransitionExistedOnload is the transition type given to pages that were
// already open when tracking started.
const TransitionExistedOnload = "existed_onload"

// BriefActiveInterval is the shortest foreground interval that counts as an
// activation. Shorter intervals still add to the accumulated active time.
const BriefActiveInterval = time.Second

// Transition qualifier names as reported by the browser.
const (
	QualifierClientRedirect = "client_redirect"
	QualifierServerRedirect = "server_redirect"
	QualifierForwardBack    = "forward_back"
	QualifierFromAddressBar = "from_address_bar"
)

// TransitionQualifiers are the four boolean flags derived from the
// qualifier list of a navigation event.
type TransitionQualifiers struct {
	ClientRedirect bool
	ServerRedirect bool
	ForwardBack    bool
	FromAddressBar bool
}

// ParseQualifiers converts the browser's qualifier list into flags.
// Unknown qualifiers are ignored.
func ParseQualifiers(qualifiers []string) TransitionQualifiers {
	var q TransitionQualifiers
	for _, name := range qualifiers {
		switch name {
		case QualifierClientRedirect:
			q.ClientRedirect = true
		case QualifierServerRedirect:
			q.ServerRedirect = true
		case QualifierForwardBack:
			q.ForwardBack = true
		case QualifierFromAddressBar:
			q.FromAddressBar = true
		}
	}
	return q
}

// Page represents one document instance shown in a browser tab.
//
// A Page is created by the tracker when a top-level navigation commits,
// annotated while it is open, and closed when it is superseded by another
// navigation in the same tab or when the tab goes away. The unexported
// fields hold the active-time bookkeeping and never leave the process.
type Page struct {
	// ID is an opaque unique identifier generated at creation.
	ID string

	// URL is the document URL. A fragment change produces a new Page.
	URL string

	// Title, OGTitle and CanonicalURL are filled in by content messages.
	Title        *string
	OGTitle      *string
	CanonicalURL *string

	// LoadTime is when the navigation committed.
	LoadTime time.Time

	// UnloadTime is set when the page is closed; zero while open.
	UnloadTime time.Time

	// TransitionType is the browser-reported navigation category; empty if unknown.
	TransitionType string

	// Qualifiers holds the transition qualifier flags.
	Qualifiers TransitionQualifiers

	// SourceID is the ID of the page this one was reached from; empty for roots.
	SourceID string

	// NewTab is true if the page was opened in a new tab or window from a source tab.
	NewTab bool

	// IsHashChange is true if the page is an in-document fragment navigation.
	IsHashChange bool

	// InitialLoadID threads a chain of fragment navigations back to the first full load.
	InitialLoadID string

	// SourceClickText and SourceClickHref describe the click that led here, if any.
	SourceClickText *string
	SourceClickHref *string

	// Interaction accumulators.
	CopyEvents             []CopyEvent
	FormControlInteraction int
	FormTextInteraction    int
	MaxScroll              *int
	DocumentHeight         *int
	HashPointsToElement    *bool
	ZoomLevel              *float64
	MainFeedURL            *string
	AllFeeds               []Feed
	LinkInformation        []LinkInfo

	// Active is true while this page is the foreground document.
	Active bool

	// ActiveCount is the number of times the page became the foreground tab.
	ActiveCount int

	// Closed is true once the page has been superseded or its tab removed.
	Closed bool

	// ClosedReason is one of the ClosedReason constants once Closed is true.
	ClosedReason string

	// Response and request annotations; nil until a header event arrives.
	Method       *string
	StatusCode   *int
	ContentType  *string
	HasSetCookie *bool
	HasCookie    *bool

	// SessionID is the process-wide session identifier at creation time.
	SessionID string

	activeStart     time.Time
	activeCumulated time.Duration
}

// PageOptions carries the event-derived fields used to create a Page.
type PageOptions struct {
	// ID overrides the generated identifier. Used by tests.
	ID string

	URL            string
	LoadTime       time.Time
	TransitionType string
	Qualifiers     []string
	Previous       *Page
	NewTab         bool
	IsHashChange   bool
	Title          string
	Click          *ClickInfo
	SessionID      string
}

// NewPage creates an open, inactive Page from the given options.
func NewPage(opts PageOptions) *Page {
	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}

	p := &Page{
		ID:             id,
		URL:            opts.URL,
		LoadTime:       opts.LoadTime,
		TransitionType: opts.TransitionType,
		Qualifiers:     ParseQualifiers(opts.Qualifiers),
		NewTab:         opts.NewTab,
		IsHashChange:   opts.IsHashChange,
		SessionID:      opts.SessionID,
	}
	if opts.Previous != nil {
		p.SourceID = opts.Previous.ID
	}
	if opts.Title != "" {
		p.Title = Ptr(opts.Title)
	}
	if opts.Click != nil {
		p.SourceClickText = Ptr(opts.Click.Text)
		p.SourceClickHref = Ptr(opts.Click.Href)
	}
	return p
}

// SetActive marks the page as the foreground document starting at now.
func (p *Page) SetActive(now time.Time) {
	p.Active = true
	p.activeStart = now
	p.ActiveCount++
}

// SetInactive ends the current active interval at now.
// An interval shorter than BriefActiveInterval does not count as an
// activation, but its duration is still accumulated.
func (p *Page) SetInactive(now time.Time) {
	if !p.Active {
		return
	}
	elapsed := now.Sub(p.activeStart)
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed < BriefActiveInterval {
		p.ActiveCount--
	}
	p.activeCumulated += elapsed
	p.Active = false
	p.activeStart = time.Time{}
}

// ActiveTime returns the accumulated foreground time as of now.
func (p *Page) ActiveTime(now time.Time) time.Duration {
	if !p.Active {
		return p.activeCumulated
	}
	running := now.Sub(p.activeStart)
	if running < 0 {
		running = 0
	}
	return p.activeCumulated + running
}

// Close marks the page closed for the given reason, folding any running
// active interval into the accumulated time.
func (p *Page) Close(reason string, now time.Time) {
	if p.Active {
		p.SetInactive(now)
	}
	p.UnloadTime = now
	p.Closed = true
	p.ClosedReason = reason
}

// Hash returns the URL fragment without the leading '#', in the escaped
// form a document reports for location.hash.
func (p *Page) Hash() string {
	u, err := url.Parse(p.URL)
	if err != nil {
		return ""
	}
	return u.EscapedFragment()
}

// Apply copies every field set on the annotation onto the page.
func (p *Page) Apply(a Annotation) {
	if a.Method != nil {
		p.Method = Ptr(*a.Method)
	}
	if a.StatusCode != nil {
		p.StatusCode = Ptr(*a.StatusCode)
	}
	if a.ContentType != nil {
		p.ContentType = Ptr(*a.ContentType)
	}
	if a.HasSetCookie != nil {
		p.HasSetCookie = Ptr(*a.HasSetCookie)
	}
	if a.HasCookie != nil {
		p.HasCookie = Ptr(*a.HasCookie)
	}
}

// AddToScrapedData stamps a capture payload with this page's identity,
// load time, transition and response metadata.
func (p *Page) AddToScrapedData(scraped *FetchedPage) {
	scraped.ActivityID = p.ID
	scraped.Activity = &ActivityFields{
		LoadTime:       p.LoadTime.UnixMilli(),
		TransitionType: nullString(p.TransitionType),
		ClientRedirect: p.Qualifiers.ClientRedirect,
		ServerRedirect: p.Qualifiers.ServerRedirect,
		ForwardBack:    p.Qualifiers.ForwardBack,
		FromAddressBar: p.Qualifiers.FromAddressBar,
		Method:         p.Method,
		StatusCode:     p.StatusCode,
		ContentType:    p.ContentType,
		HasSetCookie:   p.HasSetCookie,
		HasCookie:      p.HasCookie,
	}
}

// Record returns the JSON-serializable snapshot of the page as of now.
// The internal active-interval fields are dropped and activeTime is computed.
func (p *Page) Record(now time.Time) PageRecord {
	r := PageRecord{
		ID:                     p.ID,
		URL:                    p.URL,
		Title:                  p.Title,
		OGTitle:                p.OGTitle,
		CanonicalURL:           p.CanonicalURL,
		LoadTime:               p.LoadTime.UnixMilli(),
		TransitionType:         nullString(p.TransitionType),
		ClientRedirect:         p.Qualifiers.ClientRedirect,
		ServerRedirect:         p.Qualifiers.ServerRedirect,
		ForwardBack:            p.Qualifiers.ForwardBack,
		FromAddressBar:         p.Qualifiers.FromAddressBar,
		SourceID:               nullString(p.SourceID),
		NewTab:                 p.NewTab,
		IsHashChange:           p.IsHashChange,
		InitialLoadID:          nullString(p.InitialLoadID),
		SourceClickText:        p.SourceClickText,
		SourceClickHref:        p.SourceClickHref,
		CopyEvents:             append([]CopyEvent(nil), p.CopyEvents...),
		FormControlInteraction: p.FormControlInteraction,
		FormTextInteraction:    p.FormTextInteraction,
		MaxScroll:              p.MaxScroll,
		DocumentHeight:         p.DocumentHeight,
		HashPointsToElement:    p.HashPointsToElement,
		ZoomLevel:              p.ZoomLevel,
		MainFeedURL:            p.MainFeedURL,
		AllFeeds:               append([]Feed(nil), p.AllFeeds...),
		LinkInformation:        append([]LinkInfo(nil), p.LinkInformation...),
		Active:                 p.Active,
		ActiveCount:            p.ActiveCount,
		ActiveTime:             p.ActiveTime(now).Milliseconds(),
		ClosedReason:           nullString(p.ClosedReason),
		Method:                 p.Method,
		StatusCode:             p.StatusCode,
		ContentType:            p.ContentType,
		HasSetCookie:           p.HasSetCookie,
		HasCookie:              p.HasCookie,
		SessionID:              p.SessionID,
	}
	if !p.UnloadTime.IsZero() {
		r.UnloadTime = Ptr(p.UnloadTime.UnixMilli())
	}
	return r
}

// Ptr returns a pointer to a copy of v.
func Ptr[T any](v T) *T {
	return &v
}

// nullString maps the empty string to nil so it serializes as JSON null.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
