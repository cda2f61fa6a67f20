// Package nativemsg speaks the browser native messaging protocol on a pair
// of streams.
//
// Each message is a 32-bit length in native (little-endian) byte order
// followed by that many bytes of UTF-8 JSON. Requests that carry an "id"
// get a response with the same id and either a result or an error.
package nativemsg

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/nao1215/pagetrail/internal/event"
)

// Size limits of the protocol.
const (
	MaxIncoming = 64 << 20
	MaxOutgoing = 1 << 20
)

// ErrMessageTooLarge is returned for frames over the size limit.
var ErrMessageTooLarge = errors.New("native message too large")

// ReadMessage reads one framed message from r. It returns io.EOF when r is
// closed between messages.
func ReadMessage(r io.Reader) ([]byte, error) {
	var size uint32
	if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("truncated length prefix: %w", err)
		}
		return nil, err
	}
	if size > MaxIncoming {
		return nil, fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, size)
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("failed to read message body: %w", err)
	}
	return buf, nil
}

// WriteMessage encodes v as JSON and writes it as one frame.
func WriteMessage(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}
	if len(data) > MaxOutgoing {
		return fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, len(data))
	}
	frame := make([]byte, 4+len(data))
	binary.LittleEndian.PutUint32(frame, uint32(len(data))) //nolint:gosec // bounded by MaxOutgoing
	copy(frame[4:], data)
	_, err = w.Write(frame)
	return err
}

// Dispatcher delivers decoded messages. *event.Bus implements it.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg event.Message) (any, error)
}

// Response answers a request that carried an id.
type Response struct {
	ID     json.RawMessage `json:"id"`
	Result any             `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Host reads messages from the browser and dispatches them in order.
type Host struct {
	r          io.Reader
	w          io.Writer
	dispatcher Dispatcher
	logger     *slog.Logger
	wmu        sync.Mutex
}

// Option configures a Host.
type Option func(*Host)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Host) { h.logger = logger }
}

// NewHost creates a Host reading from r and answering on w.
func NewHost(r io.Reader, w io.Writer, d Dispatcher, opts ...Option) *Host {
	h := &Host{r: r, w: w, dispatcher: d}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	return h
}

// Serve handles messages until the browser closes the stream or ctx is
// done. A closed stream is a normal shutdown and returns nil.
func (h *Host) Serve(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		data, err := ReadMessage(h.r)
		if errors.Is(err, io.EOF) {
			h.logger.Info("browser closed the native messaging stream")
			return nil
		}
		if err != nil {
			return err
		}
		h.handle(ctx, data)
	}
}

// handle decodes and dispatches one message, answering if it has an id.
func (h *Host) handle(ctx context.Context, data []byte) {
	var req struct {
		ID json.RawMessage `json:"id"`
	}
	_ = json.Unmarshal(data, &req) //nolint:errcheck // Decode reports malformed input

	var (
		result any
		err    error
	)
	msg, err := event.Decode(data)
	if err == nil {
		result, err = h.dispatcher.Dispatch(ctx, msg)
	}
	if err != nil {
		h.logger.Warn("native message failed", "error", err)
	}
	if len(req.ID) == 0 {
		return
	}

	resp := Response{ID: req.ID, Result: result}
	if err != nil {
		resp.Error = err.Error()
		resp.Result = nil
	}
	if werr := h.Send(resp); werr != nil {
		h.logger.Warn("failed to answer native message", "error", werr)
	}
}

// Send writes an unsolicited message to the browser.
func (h *Host) Send(v any) error {
	h.wmu.Lock()
	defer h.wmu.Unlock()
	return WriteMessage(h.w, v)
}
