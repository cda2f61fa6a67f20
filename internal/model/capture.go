package model

// FetchedPage is the result of capturing a document's content.
//
// The capture collaborator fills in the content fields; the tracker then
// stamps ActivityID and Activity from the Page that was current when the
// capture started, if that Page is still current.
type FetchedPage struct {
	URL          string     `json:"url"`
	Title        string     `json:"title,omitempty"`
	OGTitle      string     `json:"ogTitle,omitempty"`
	CanonicalURL string     `json:"canonicalUrl,omitempty"`
	Feeds        []Feed     `json:"feeds,omitempty"`
	Links        []LinkInfo `json:"links,omitempty"`

	// HTML is the sanitized document markup.
	HTML string `json:"html,omitempty"`

	// Readable is the document rendered as Markdown.
	Readable string `json:"readable,omitempty"`

	// ContentHash is the hex SHA3-256 of the raw body.
	ContentHash string `json:"contentHash,omitempty"`

	// FetchedAt is the capture time in epoch milliseconds.
	FetchedAt int64 `json:"fetchedAt"`

	ActivityID string          `json:"activityId,omitempty"`
	Activity   *ActivityFields `json:"activity,omitempty"`
}

// ActivityFields are the Page fields copied onto a capture so the backend
// can reconstruct the navigation without waiting for the activity batch.
type ActivityFields struct {
	LoadTime       int64   `json:"loadTime"`
	TransitionType *string `json:"transitionType"`
	ClientRedirect bool    `json:"client_redirect"`
	ServerRedirect bool    `json:"server_redirect"`
	ForwardBack    bool    `json:"forward_back"`
	FromAddressBar bool    `json:"from_address_bar"`
	Method         *string `json:"method"`
	StatusCode     *int    `json:"statusCode"`
	ContentType    *string `json:"contentType"`
	HasSetCookie   *bool   `json:"hasSetCookie"`
	HasCookie      *bool   `json:"hasCookie"`
}
