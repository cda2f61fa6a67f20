package event

import (
	"encoding/json"
	"fmt"
	"sort"
)

// variants maps every kind to a constructor for its zero value.
var variants = map[Kind]func() Message{
	KindNavigationCommitted:       func() Message { return &NavigationCommitted{} },
	KindNavigationCreatedTarget:   func() Message { return &NavigationCreatedTarget{} },
	KindNavigationHistoryState:    func() Message { return &HistoryStateUpdated{} },
	KindNavigationFragmentUpdated: func() Message { return &ReferenceFragmentUpdated{} },
	KindRequestHeadersReceived:    func() Message { return &HeadersReceived{} },
	KindRequestSendHeaders:        func() Message { return &SendHeaders{} },
	KindTabActivated:              func() Message { return &TabActivated{} },
	KindTabRemoved:                func() Message { return &TabRemoved{} },
	KindTabsExisting:              func() Message { return &TabsExisting{} },

	KindAnchorClick:      func() Message { return &AnchorClick{} },
	KindCopy:             func() Message { return &Copy{} },
	KindChange:           func() Message { return &Change{} },
	KindScroll:           func() Message { return &Scroll{} },
	KindHashChange:       func() Message { return &HashChange{} },
	KindIdle:             func() Message { return &Idle{} },
	KindActivity:         func() Message { return &Activity{} },
	KindDevicePixelRatio: func() Message { return &DevicePixelRatio{} },
	KindPageMetadata:     func() Message { return &PageMetadata{} },
	KindCanonicalURL:     func() Message { return &CanonicalURL{} },
	KindFeedInfo:         func() Message { return &FeedInfo{} },
	KindLinkInformation:  func() Message { return &LinkInformation{} },

	KindFlushNow:      func() Message { return &FlushNow{} },
	KindRequestStatus: func() Message { return &RequestStatus{} },
	KindSendNow:       func() Message { return &SendNow{} },
	KindReportError:   func() Message { return &ReportError{} },
	KindLog:           func() Message { return &Log{} },
	KindHistoryItems:  func() Message { return &HistoryItems{} },
}

// Kinds returns every known message kind in sorted order.
func Kinds() []Kind {
	kinds := make([]Kind, 0, len(variants))
	for k := range variants {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

type envelope struct {
	Type Kind `json:"type"`
}

// Decode parses a JSON envelope into its message variant.
func Decode(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode envelope: %w", err)
	}
	if env.Type == "" {
		return nil, ErrMissingType
	}

	newMsg, ok := variants[env.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}

	msg := newMsg()
	if err := json.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("failed to decode %s message: %w", env.Type, err)
	}
	return msg, nil
}

// Encode renders msg as a JSON envelope with its type field set.
func Encode(msg Message) ([]byte, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s message: %w", msg.Kind(), err)
	}

	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("failed to encode %s message: %w", msg.Kind(), err)
	}
	kind, err := json.Marshal(msg.Kind())
	if err != nil {
		return nil, err
	}
	fields["type"] = kind
	return json.Marshal(fields)
}
