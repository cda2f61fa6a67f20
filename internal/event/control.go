package event

import "github.com/nao1215/pagetrail/internal/model"

// FlushNow asks for an immediate activity flush.
type FlushNow struct{}

// Kind implements Message.
func (*FlushNow) Kind() Kind { return KindFlushNow }

// RequestStatus asks for the tracker and sync status.
type RequestStatus struct{}

// Kind implements Message.
func (*RequestStatus) Kind() Kind { return KindRequestStatus }

// SendNow asks for an immediate history sync. Force resends everything
// regardless of the backend's last known timestamp.
type SendNow struct {
	Force bool `json:"force"`
}

// Kind implements Message.
func (*SendNow) Kind() Kind { return KindSendNow }

// ReportError forwards an error raised inside the extension.
type ReportError struct {
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
	Context string `json:"context,omitempty"`
}

// Kind implements Message.
func (*ReportError) Kind() Kind { return KindReportError }

// Log forwards an extension log line.
type Log struct {
	Level   string         `json:"level"`
	Message string         `json:"message"`
	Attrs   map[string]any `json:"attrs,omitempty"`
}

// Kind implements Message.
func (*Log) Kind() Kind { return KindLog }

// HistoryItems carries browser history entries read by the extension.
type HistoryItems struct {
	Items []model.HistoryItem `json:"items"`
}

// Kind implements Message.
func (*HistoryItems) Kind() Kind { return KindHistoryItems }
