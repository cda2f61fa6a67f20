// Package fault collects failures that happen away from any caller.
//
// Message handlers, background captures and timers have nobody to return
// an error to. They hand it to a Reporter, which logs it, keeps the most
// recent ones for status output and optionally raises a desktop
// notification.
package fault

import (
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"sync"
	"time"
)

// DefaultKeep is the number of recent faults kept when WithKeep is not given.
const DefaultKeep = 20

// Fault is one reported failure.
type Fault struct {
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
	Attrs   []any     `json:"attrs,omitempty"`
}

// Notifier shows a failure to the user.
type Notifier interface {
	Notify(ctx context.Context, title, body string) error
}

// Reporter records failures. It implements event.ErrorReporter.
type Reporter struct {
	logger   *slog.Logger
	notifier Notifier
	keep     int
	now      func() time.Time

	mu     sync.Mutex
	recent []Fault
	count  int
}

// Option configures a Reporter.
type Option func(*Reporter)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reporter) { r.logger = logger }
}

// WithNotifier raises a notification for every fault.
func WithNotifier(n Notifier) Option {
	return func(r *Reporter) { r.notifier = n }
}

// WithKeep sets how many recent faults are kept.
func WithKeep(n int) Option {
	return func(r *Reporter) {
		if n > 0 {
			r.keep = n
		}
	}
}

// NewReporter creates a Reporter.
func NewReporter(opts ...Option) *Reporter {
	r := &Reporter{keep: DefaultKeep, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Report records err with optional slog-style attributes.
func (r *Reporter) Report(ctx context.Context, err error, attrs ...any) {
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	r.logger.Error("unhandled failure", append([]any{"error", err}, attrs...)...)

	r.mu.Lock()
	r.count++
	r.recent = append(r.recent, Fault{Time: r.now(), Message: err.Error(), Attrs: attrs})
	if len(r.recent) > r.keep {
		r.recent = r.recent[len(r.recent)-r.keep:]
	}
	r.mu.Unlock()

	if r.notifier != nil {
		if nerr := r.notifier.Notify(ctx, "pagetrail error", err.Error()); nerr != nil {
			r.logger.Debug("notification failed", "error", nerr)
		}
	}
}

// Recent returns the kept faults, oldest first.
func (r *Reporter) Recent() []Fault {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Fault(nil), r.recent...)
}

// Count returns the number of faults reported since creation.
func (r *Reporter) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// CommandNotifier shows notifications by running a command such as
// notify-send with the title and body as its last two arguments.
type CommandNotifier struct {
	Command string
	Args    []string
}

// NewDesktopNotifier returns a notifier using notify-send, or nil if it is
// not installed.
func NewDesktopNotifier() *CommandNotifier {
	path, err := exec.LookPath("notify-send")
	if err != nil {
		return nil
	}
	return &CommandNotifier{Command: path, Args: []string{"--app-name=pagetrail"}}
}

// Notify implements Notifier.
func (n *CommandNotifier) Notify(ctx context.Context, title, body string) error {
	args := append(append([]string(nil), n.Args...), title, body)
	return exec.CommandContext(ctx, n.Command, args...).Run() //nolint:gosec // command is fixed at construction
}
