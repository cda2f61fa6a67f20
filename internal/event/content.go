package event

import "github.com/nao1215/pagetrail/internal/model"

// AnchorClick records the anchor the user clicked.
type AnchorClick struct {
	Sender
	Text string `json:"text"`
	Href string `json:"href"`
}

// Kind implements Message.
func (*AnchorClick) Kind() Kind { return KindAnchorClick }

// Copy records a clipboard copy.
type Copy struct {
	Sender
	Text          string `json:"text"`
	StartLocation string `json:"startLocation"`
	EndLocation   string `json:"endLocation"`
	Time          Millis `json:"time"`
}

// Kind implements Message.
func (*Copy) Kind() Kind { return KindCopy }

// Change records an edit to a form field.
type Change struct {
	Sender
	IsText bool `json:"isText"`
}

// Kind implements Message.
func (*Change) Kind() Kind { return KindChange }

// Scroll reports the furthest scroll position seen so far.
type Scroll struct {
	Sender
	MaxScroll      int `json:"maxScroll"`
	DocumentHeight int `json:"documentHeight"`
}

// Kind implements Message.
func (*Scroll) Kind() Kind { return KindScroll }

// HashChange reports a fragment change and whether it targets an element.
type HashChange struct {
	Sender
	Hash       string `json:"hash"`
	HasElement bool   `json:"hasElement"`
}

// Kind implements Message.
func (*HashChange) Kind() Kind { return KindHashChange }

// Idle reports that the user stopped interacting with the page.
type Idle struct {
	Sender
	LastActivity Millis `json:"lastActivity"`
}

// Kind implements Message.
func (*Idle) Kind() Kind { return KindIdle }

// Activity reports that the user resumed interacting with the page.
type Activity struct {
	Sender
}

// Kind implements Message.
func (*Activity) Kind() Kind { return KindActivity }

// DevicePixelRatio reports the page's current device pixel ratio.
type DevicePixelRatio struct {
	Sender
	Ratio float64 `json:"devicePixelRatio"`
}

// Kind implements Message.
func (*DevicePixelRatio) Kind() Kind { return KindDevicePixelRatio }

// PageMetadata carries document metadata. Empty fields are left untouched.
type PageMetadata struct {
	Sender
	Title        string `json:"title,omitempty"`
	OGTitle      string `json:"ogTitle,omitempty"`
	CanonicalURL string `json:"canonicalUrl,omitempty"`
}

// Kind implements Message.
func (*PageMetadata) Kind() Kind { return KindPageMetadata }

// CanonicalURL carries the document's rel=canonical link.
type CanonicalURL struct {
	Sender
	Href string `json:"href"`
}

// Kind implements Message.
func (*CanonicalURL) Kind() Kind { return KindCanonicalURL }

// FeedInfo lists the feeds a page advertises.
type FeedInfo struct {
	Sender
	MainFeedURL string       `json:"mainFeedUrl,omitempty"`
	Feeds       []model.Feed `json:"feeds"`
}

// Kind implements Message.
func (*FeedInfo) Kind() Kind { return KindFeedInfo }

// LinkInformation lists the anchors found in a page.
type LinkInformation struct {
	Sender
	Links []model.LinkInfo `json:"links"`
}

// Kind implements Message.
func (*LinkInformation) Kind() Kind { return KindLinkInformation }
