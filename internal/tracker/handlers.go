package tracker

import (
	"context"
	"fmt"
	"strings"

	"github.com/nao1215/pagetrail/internal/event"
	"github.com/nao1215/pagetrail/internal/model"
	"github.com/nao1215/pagetrail/internal/scrape"
)

// on adapts a typed handler to event.Handler.
func on[T event.Message](fn func(ctx context.Context, msg T) error) event.Handler {
	return func(ctx context.Context, msg event.Message) (any, error) {
		m, ok := msg.(T)
		if !ok {
			return nil, fmt.Errorf("%w: %T", ErrUnexpectedMessage, msg)
		}
		return nil, fn(ctx, m)
	}
}

// handlerTable maps every browser and content message kind to its handler.
func (t *Tracker) handlerTable() map[event.Kind]event.Handler {
	return map[event.Kind]event.Handler{
		event.KindNavigationCommitted:       on(t.onCommitted),
		event.KindNavigationCreatedTarget:   on(t.onCreatedTarget),
		event.KindNavigationHistoryState:    on(t.onHistoryState),
		event.KindNavigationFragmentUpdated: on(t.onFragmentUpdated),
		event.KindRequestHeadersReceived:    on(t.onHeadersReceived),
		event.KindRequestSendHeaders:        on(t.onSendHeaders),
		event.KindTabActivated:              on(t.onTabActivated),
		event.KindTabRemoved:                on(t.onTabRemoved),
		event.KindTabsExisting:              on(t.onTabsExisting),
		event.KindAnchorClick:               on(t.onAnchorClick),
		event.KindCopy:                      on(t.onCopy),
		event.KindChange:                    on(t.onChange),
		event.KindScroll:                    on(t.onScroll),
		event.KindHashChange:                on(t.onHashChange),
		event.KindIdle:                      on(t.onIdle),
		event.KindActivity:                  on(t.onActivity),
		event.KindDevicePixelRatio:          on(t.onDevicePixelRatio),
		event.KindPageMetadata:              on(t.onPageMetadata),
		event.KindCanonicalURL:              on(t.onCanonicalURL),
		event.KindFeedInfo:                  on(t.onFeedInfo),
		event.KindLinkInformation:           on(t.onLinkInformation),
	}
}

// Kinds returns the message kinds the tracker handles.
func (t *Tracker) Kinds() []event.Kind {
	kinds := make([]event.Kind, 0, len(t.handlers))
	for k := range t.handlers {
		kinds = append(kinds, k)
	}
	return kinds
}

// Attach subscribes the tracker to every kind it handles on bus. Uninit
// removes the subscriptions.
func (t *Tracker) Attach(bus *event.Bus) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for kind, h := range t.handlers {
		t.detach = append(t.detach, bus.Listen(kind, h))
	}
}

// Handle delivers msg directly to the tracker's handler for its kind.
func (t *Tracker) Handle(ctx context.Context, msg event.Message) error {
	h, ok := t.handlers[msg.Kind()]
	if !ok {
		return fmt.Errorf("%w: %s", event.ErrNoHandler, msg.Kind())
	}
	_, err := h(ctx, msg)
	return err
}

// navigation handles a main-frame navigation of any flavor.
func (t *Tracker) navigation(nav event.Navigation, sourceTabID int, newTab, isHashChange bool) {
	if !nav.IsMainFrame() || nav.TabID <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	t.addPageToSerialize(nav.TabID, nav.URL)
	t.addNewPage(pageEvent{
		tabID:          nav.TabID,
		url:            nav.URL,
		at:             nav.TimeStamp.Time(),
		transitionType: nav.TransitionType,
		qualifiers:     nav.TransitionQualifiers,
		sourceTabID:    sourceTabID,
		newTab:         newTab,
		isHashChange:   isHashChange,
	})
}

func (t *Tracker) onCommitted(_ context.Context, msg *event.NavigationCommitted) error {
	t.navigation(msg.Navigation, 0, false, false)
	return nil
}

func (t *Tracker) onCreatedTarget(_ context.Context, msg *event.NavigationCreatedTarget) error {
	t.navigation(msg.Navigation, msg.SourceTabID, true, false)
	return nil
}

func (t *Tracker) onHistoryState(_ context.Context, msg *event.HistoryStateUpdated) error {
	t.navigation(msg.Navigation, 0, false, false)
	return nil
}

func (t *Tracker) onFragmentUpdated(_ context.Context, msg *event.ReferenceFragmentUpdated) error {
	t.navigation(msg.Navigation, 0, false, true)
	return nil
}

func (t *Tracker) onHeadersReceived(_ context.Context, msg *event.HeadersReceived) error {
	if !msg.IsMainFrame() || msg.TabID <= 0 {
		return nil
	}
	ann := model.Annotation{
		URL:          msg.URL,
		StatusCode:   model.Ptr(msg.StatusCode),
		HasSetCookie: model.Ptr(msg.ResponseHeaders.Has("set-cookie")),
	}
	if msg.Method != "" {
		ann.Method = model.Ptr(msg.Method)
	}
	if ct, ok := msg.ResponseHeaders.Get("content-type"); ok {
		ann.ContentType = model.Ptr(contentType(ct))
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.annotatePage(msg.TabID, ann)
	return nil
}

func (t *Tracker) onSendHeaders(_ context.Context, msg *event.SendHeaders) error {
	if !msg.IsMainFrame() || msg.TabID <= 0 {
		return nil
	}
	ann := model.Annotation{
		URL:       msg.URL,
		HasCookie: model.Ptr(msg.RequestHeaders.Has("cookie")),
	}
	if msg.Method != "" {
		ann.Method = model.Ptr(msg.Method)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.annotatePage(msg.TabID, ann)
	return nil
}

func (t *Tracker) onTabActivated(_ context.Context, msg *event.TabActivated) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.setActiveTabID(msg.TabID)
	return nil
}

func (t *Tracker) onTabRemoved(_ context.Context, msg *event.TabRemoved) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closePage(msg.TabID, model.ClosedReasonTabClose)
	delete(t.lastClick, msg.TabID)
	delete(t.pendingAnnotations, msg.TabID)
	delete(t.pagesToSerialize, msg.TabID)
	t.serializeGen[msg.TabID]++
	if t.activeTabID == msg.TabID {
		t.activeTabID = 0
	}
	return nil
}

func (t *Tracker) onTabsExisting(_ context.Context, msg *event.TabsExisting) error {
	t.Init(msg.Tabs, msg.DevicePixelRatio)
	return nil
}

// contentPage returns the current page for a content message, or nil if
// the message came from a sub-frame or an untracked tab. Must be called
// with t.mu held.
func (t *Tracker) contentPage(msg event.ContentMessage) *model.Page {
	if !msg.IsMainFrame() {
		return nil
	}
	page := t.currentPages[msg.TabID()]
	if page == nil {
		t.logger.Warn("content message for untracked tab",
			"type", msg.Kind(),
			"tab_id", msg.TabID(),
		)
	}
	return page
}

func (t *Tracker) onAnchorClick(_ context.Context, msg *event.AnchorClick) error {
	if !msg.IsMainFrame() {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastClick[msg.TabID()] = model.ClickInfo{
		Text: scrape.NormalizeText(msg.Text),
		Href: msg.Href,
	}
	return nil
}

func (t *Tracker) onCopy(_ context.Context, msg *event.Copy) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	page := t.contentPage(msg)
	if page == nil {
		return nil
	}
	at := msg.Time.Time()
	if at.IsZero() {
		at = t.now()
	}
	page.CopyEvents = append(page.CopyEvents, model.CopyEvent{
		Text:          msg.Text,
		StartLocation: msg.StartLocation,
		EndLocation:   msg.EndLocation,
		Time:          at.UnixMilli(),
	})
	return nil
}

func (t *Tracker) onChange(_ context.Context, msg *event.Change) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	page := t.contentPage(msg)
	if page == nil {
		return nil
	}
	if msg.IsText {
		page.FormTextInteraction++
	} else {
		page.FormControlInteraction++
	}
	return nil
}

func (t *Tracker) onScroll(_ context.Context, msg *event.Scroll) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	page := t.contentPage(msg)
	if page == nil {
		return nil
	}
	page.MaxScroll = model.Ptr(msg.MaxScroll)
	page.DocumentHeight = model.Ptr(msg.DocumentHeight)
	return nil
}

func (t *Tracker) onHashChange(_ context.Context, msg *event.HashChange) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	page := t.contentPage(msg)
	if page == nil {
		return nil
	}
	if got := strings.TrimPrefix(msg.Hash, "#"); got != page.Hash() {
		t.logger.Warn("hash change does not match current page",
			"tab_id", msg.TabID(),
			"hash", got,
			"page_hash", page.Hash(),
		)
		return nil
	}
	page.HashPointsToElement = model.Ptr(msg.HasElement)
	return nil
}

func (t *Tracker) onIdle(_ context.Context, msg *event.Idle) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	page := t.contentPage(msg)
	if page == nil {
		return nil
	}
	if !page.Active {
		t.logger.Warn("idle for inactive page", "tab_id", msg.TabID(), "url", page.URL)
		return nil
	}
	page.SetInactive(t.now())
	return nil
}

func (t *Tracker) onActivity(_ context.Context, msg *event.Activity) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	page := t.contentPage(msg)
	if page == nil {
		return nil
	}
	switch {
	case page.Active:
		t.logger.Debug("activity for already active page", "tab_id", msg.TabID())
	case msg.TabID() != t.activeTabID:
		t.logger.Warn("activity for background tab", "tab_id", msg.TabID(), "active_tab_id", t.activeTabID)
	default:
		page.SetActive(t.now())
	}
	return nil
}

func (t *Tracker) onDevicePixelRatio(_ context.Context, msg *event.DevicePixelRatio) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	page := t.contentPage(msg)
	if page == nil || msg.Ratio <= 0 {
		return nil
	}
	page.ZoomLevel = model.Ptr(msg.Ratio / t.baselineRatio)
	return nil
}

func (t *Tracker) onPageMetadata(_ context.Context, msg *event.PageMetadata) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	page := t.contentPage(msg)
	if page == nil {
		return nil
	}
	if msg.Title != "" {
		page.Title = model.Ptr(msg.Title)
	}
	if msg.OGTitle != "" {
		page.OGTitle = model.Ptr(msg.OGTitle)
	}
	if msg.CanonicalURL != "" {
		page.CanonicalURL = model.Ptr(msg.CanonicalURL)
	}
	return nil
}

func (t *Tracker) onCanonicalURL(_ context.Context, msg *event.CanonicalURL) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	page := t.contentPage(msg)
	if page == nil || msg.Href == "" {
		return nil
	}
	page.CanonicalURL = model.Ptr(msg.Href)
	return nil
}

func (t *Tracker) onFeedInfo(_ context.Context, msg *event.FeedInfo) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	page := t.contentPage(msg)
	if page == nil {
		return nil
	}
	if msg.MainFeedURL != "" {
		page.MainFeedURL = model.Ptr(msg.MainFeedURL)
	}
	page.AllFeeds = msg.Feeds
	return nil
}

func (t *Tracker) onLinkInformation(_ context.Context, msg *event.LinkInformation) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	page := t.contentPage(msg)
	if page == nil {
		return nil
	}
	page.LinkInformation = msg.Links
	return nil
}
