package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nao1215/pagetrail/internal/event"
)

// FlushResult answers flushNow.
type FlushResult struct {
	Flushed bool `json:"flushed"`
}

// SyncResult answers sendNow.
type SyncResult struct {
	Synced int `json:"synced"`
}

// HistoryResult answers historyItems.
type HistoryResult struct {
	Stored int `json:"stored"`
}

// control adapts a typed handler to event.Handler.
func control[T event.Message](fn func(context.Context, T) (any, error)) event.Handler {
	return func(ctx context.Context, msg event.Message) (any, error) {
		m, ok := msg.(T)
		if !ok {
			return nil, fmt.Errorf("%w: %T", ErrUnexpectedMessage, msg)
		}
		return fn(ctx, m)
	}
}

// registerControl installs the exclusive handlers for the control messages.
func (d *Daemon) registerControl() error {
	handlers := map[event.Kind]event.Handler{
		event.KindFlushNow:      control(d.onFlushNow),
		event.KindRequestStatus: control(d.onRequestStatus),
		event.KindSendNow:       control(d.onSendNow),
		event.KindReportError:   control(d.onReportError),
		event.KindLog:           control(d.onLog),
		event.KindHistoryItems:  control(d.onHistoryItems),
	}
	for kind, h := range handlers {
		if _, err := d.bus.Register(kind, h); err != nil {
			return err
		}
	}
	return nil
}

func (d *Daemon) onFlushNow(ctx context.Context, _ *event.FlushNow) (any, error) {
	if err := d.tracker.Flush(ctx); err != nil {
		return nil, err
	}
	return FlushResult{Flushed: true}, nil
}

func (d *Daemon) onRequestStatus(context.Context, *event.RequestStatus) (any, error) {
	return d.Report(), nil
}

func (d *Daemon) onSendNow(ctx context.Context, m *event.SendNow) (any, error) {
	n, err := d.syncer.Sync(ctx, m.Force)
	if err != nil {
		return nil, err
	}
	return SyncResult{Synced: n}, nil
}

// onReportError records the error and never fails the message.
func (d *Daemon) onReportError(ctx context.Context, m *event.ReportError) (any, error) {
	attrs := []any{"source", "extension"}
	if m.Context != "" {
		attrs = append(attrs, "context", m.Context)
	}
	if m.Stack != "" {
		attrs = append(attrs, "stack", m.Stack)
	}
	d.reporter.Report(ctx, fmt.Errorf("%w: %s", ErrExtension, m.Message), attrs...)
	return nil, nil
}

func (d *Daemon) onLog(ctx context.Context, m *event.Log) (any, error) {
	attrs := make([]any, 0, len(m.Attrs))
	for k, v := range m.Attrs {
		attrs = append(attrs, slog.Any(k, v))
	}
	d.logger.Log(ctx, logLevel(m.Level), m.Message, slog.Group("extension", attrs...))
	return nil, nil
}

func (d *Daemon) onHistoryItems(_ context.Context, m *event.HistoryItems) (any, error) {
	d.posted.Add(m.Items)
	return HistoryResult{Stored: d.posted.Len()}, nil
}

// logLevel maps console method names to slog levels. Unknown names log at Info.
func logLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug", "trace":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
