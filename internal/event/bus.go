package event

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Handler processes one message. The result of an exclusive handler is
// returned to the sender; listener results are discarded.
type Handler func(ctx context.Context, msg Message) (any, error)

// ErrorReporter receives handler failures. fault.Reporter implements it.
type ErrorReporter interface {
	Report(ctx context.Context, err error, attrs ...any)
}

// Bus routes messages by kind to an exclusive handler and to listeners.
//
// Every handler invocation is isolated: an error or panic is reported and
// logged, and delivery continues with the next handler. A message is
// delivered at most once to each handler.
type Bus struct {
	mu        sync.RWMutex
	handlers  map[Kind]Handler
	listeners map[Kind][]*listener
	logger    *slog.Logger
	reporter  ErrorReporter
}

type listener struct {
	handler Handler
}

// BusOption configures a Bus.
type BusOption func(*Bus)

// WithLogger sets the logger used for delivery diagnostics.
func WithLogger(logger *slog.Logger) BusOption {
	return func(b *Bus) {
		b.logger = logger
	}
}

// WithReporter sets where handler failures are reported.
func WithReporter(r ErrorReporter) BusOption {
	return func(b *Bus) {
		b.reporter = r
	}
}

// NewBus creates an empty Bus.
func NewBus(opts ...BusOption) *Bus {
	b := &Bus{
		handlers:  make(map[Kind]Handler),
		listeners: make(map[Kind][]*listener),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	return b
}

// Register installs the exclusive handler for kind. It fails with
// ErrAlreadyRegistered if one is already installed. The returned function
// removes the handler.
func (b *Bus) Register(kind Kind, h Handler) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.handlers[kind]; ok {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyRegistered, kind)
	}
	b.handlers[kind] = h
	return func() { b.Unregister(kind) }, nil
}

// Unregister removes the exclusive handler for kind, if any.
func (b *Bus) Unregister(kind Kind) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.handlers, kind)
}

// Listen adds a listener for kind. Listeners run after the exclusive
// handler, in registration order. The returned function removes it.
func (b *Bus) Listen(kind Kind, h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	l := &listener{handler: h}
	b.listeners[kind] = append(b.listeners[kind], l)

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		ls := b.listeners[kind]
		for i, cur := range ls {
			if cur == l {
				b.listeners[kind] = append(ls[:i:i], ls[i+1:]...)
				break
			}
		}
	}
}

// Dispatch delivers msg to the exclusive handler and every listener for its
// kind. It returns the exclusive handler's result and the joined errors of
// all invocations. Handler errors have already been reported when Dispatch
// returns them.
func (b *Bus) Dispatch(ctx context.Context, msg Message) (any, error) {
	kind := msg.Kind()

	b.mu.RLock()
	h, hasHandler := b.handlers[kind]
	ls := append([]*listener(nil), b.listeners[kind]...)
	b.mu.RUnlock()

	if !hasHandler && len(ls) == 0 {
		b.logger.Warn("dropping message without handler", "type", string(kind))
		return nil, fmt.Errorf("%w: %s", ErrNoHandler, kind)
	}

	var (
		result any
		errs   []error
	)
	if hasHandler {
		res, err := b.invoke(ctx, kind, h, msg)
		if err != nil {
			errs = append(errs, err)
		} else {
			result = res
		}
	}
	for _, l := range ls {
		if _, err := b.invoke(ctx, kind, l.handler, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return result, errors.Join(errs...)
}

// invoke runs one handler, converting a panic into an error.
func (b *Bus) invoke(ctx context.Context, kind Kind, h Handler, msg Message) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: %v", ErrHandlerPanic, kind, r)
		}
		if err != nil {
			b.logger.Error("message handler failed", "type", string(kind), "error", err)
			if b.reporter != nil {
				b.reporter.Report(ctx, err, "type", string(kind))
			}
		}
	}()
	return h(ctx, msg)
}
