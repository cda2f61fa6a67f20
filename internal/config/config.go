package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "pagetrail"

	// DefaultListenAddr is where the ingest server listens.
	DefaultListenAddr = "127.0.0.1:8765"

	// DefaultUpdatePeriod is the base period of the activity flush loop.
	// Activity is flushed every quarter period plus one second.
	DefaultUpdatePeriod = time.Minute

	// DefaultHistoryPeriod is how often browser history is synced.
	DefaultHistoryPeriod = time.Hour

	// DefaultSettleDelay is the pause between a navigation and its capture.
	DefaultSettleDelay = 2 * time.Second

	// DefaultStabilizeAttempts and DefaultStabilizeInterval bound the wait
	// for a tab's URL to stop changing before a capture.
	DefaultStabilizeAttempts = 3
	DefaultStabilizeInterval = time.Second

	// DefaultCaptureTimeout bounds one capture.
	DefaultCaptureTimeout = 30 * time.Second

	// DefaultCaptureConcurrency is the number of captures that run at once.
	DefaultCaptureConcurrency = 4

	// DefaultCaptureRate and DefaultCaptureBurst limit capture requests per second.
	DefaultCaptureRate  = 2.0
	DefaultCaptureBurst = 4

	// DefaultMaxBodySize limits how much of a captured document is read.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// DefaultUserAgent identifies pagetrail captures.
	DefaultUserAgent = "pagetrail/1.0 (+https://github.com/nao1215/pagetrail)"

	// DefaultClearPolicy is the pending-page policy of the flush loop.
	DefaultClearPolicy = "always"
)

// DefaultExcludedHosts are never captured.
var DefaultExcludedHosts = []string{"addons.mozilla.org", "testpilot.firefox.com"}

// Config holds all configuration options for pagetrail.
// It is populated from defaults, the config file, the environment and CLI
// flags, in that order, and passed down explicitly.
type Config struct {
	// BackendURL is the collection server. When empty, results are stored
	// in the local SQLite archive under DBDir.
	BackendURL string

	// DBDir is the directory of the local SQLite archive.
	DBDir string

	// ListenAddr is the address of the HTTP ingest server.
	ListenAddr string

	// Verbose enables debug logging. When false, only warnings and errors are logged.
	Verbose bool

	// JSONLog switches log output to JSON lines.
	JSONLog bool

	// BrowserID identifies the browser profile. When empty, a persistent
	// id is read from or created under the XDG state directory.
	BrowserID string

	// UpdatePeriod is the base period of the activity flush loop.
	UpdatePeriod time.Duration

	// HistoryPeriod is how often browser history is synced.
	HistoryPeriod time.Duration

	// PlacesPath is a Firefox profile directory or places.sqlite file to
	// read history from. When empty, only history posted by the extension is synced.
	PlacesPath string

	// CaptureEnabled turns full-page captures on.
	CaptureEnabled bool

	// SettleDelay, StabilizeAttempts and StabilizeInterval shape the wait
	// before a capture.
	SettleDelay       time.Duration
	StabilizeAttempts int
	StabilizeInterval time.Duration

	// CaptureTimeout bounds one capture.
	CaptureTimeout time.Duration

	// CaptureConcurrency is the number of captures that run at once.
	CaptureConcurrency int

	// CaptureRate and CaptureBurst limit capture requests.
	CaptureRate  float64
	CaptureBurst int

	// CaptureProxy is an optional SOCKS5 proxy in "host:port" form.
	CaptureProxy string

	// CaptureFiles allows capturing file:// URLs.
	CaptureFiles bool

	// MaxBodySize is the maximum captured body size in bytes.
	MaxBodySize int64

	// UserAgent is sent with capture requests.
	UserAgent string

	// ExcludedHosts are never captured.
	ExcludedHosts []string

	// ClearPolicy is "always" or "on-ack".
	ClearPolicy string

	// Notify raises desktop notifications for unhandled failures.
	Notify bool

	// ConfigFilePath is the configuration file to load. If empty, the
	// default locations are searched.
	ConfigFilePath string
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		DBDir:              XDGDataDir(),
		ListenAddr:         DefaultListenAddr,
		UpdatePeriod:       DefaultUpdatePeriod,
		HistoryPeriod:      DefaultHistoryPeriod,
		SettleDelay:        DefaultSettleDelay,
		StabilizeAttempts:  DefaultStabilizeAttempts,
		StabilizeInterval:  DefaultStabilizeInterval,
		CaptureTimeout:     DefaultCaptureTimeout,
		CaptureConcurrency: DefaultCaptureConcurrency,
		CaptureRate:        DefaultCaptureRate,
		CaptureBurst:       DefaultCaptureBurst,
		MaxBodySize:        DefaultMaxBodySize,
		UserAgent:          DefaultUserAgent,
		ExcludedHosts:      append([]string(nil), DefaultExcludedHosts...),
		ClearPolicy:        DefaultClearPolicy,
	}
}

// XDGDataDir returns the XDG data directory for pagetrail.
// On Linux: ~/.local/share/pagetrail
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for pagetrail.
// On Linux: ~/.config/pagetrail
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGStateDir returns the XDG state directory for pagetrail.
// On Linux: ~/.local/state/pagetrail
func XDGStateDir() string {
	return filepath.Join(xdg.StateHome, AppName)
}

// Validate checks if the configuration is valid and returns the first
// problem found.
func (c *Config) Validate() error {
	if c.UpdatePeriod <= 0 {
		return ErrInvalidUpdatePeriod
	}
	if c.HistoryPeriod <= 0 {
		return ErrInvalidHistoryPeriod
	}
	if c.BackendURL == "" && c.DBDir == "" {
		return ErrNoBackend
	}
	if c.SettleDelay < 0 || c.StabilizeInterval < 0 {
		return ErrInvalidDelay
	}
	if c.StabilizeAttempts <= 0 {
		return ErrInvalidStabilizeAttempts
	}
	if c.CaptureTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.CaptureConcurrency <= 0 {
		return ErrInvalidConcurrency
	}
	if c.CaptureRate <= 0 || c.CaptureBurst <= 0 {
		return ErrInvalidRate
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	switch c.ClearPolicy {
	case "", "always", "on-ack":
	default:
		return ErrInvalidClearPolicy
	}
	return nil
}
