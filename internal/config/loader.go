package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".pagetrail"

// File is the YAML configuration file. Unset fields leave the current
// value alone.
type File struct {
	BackendURL    string         `yaml:"backend_url,omitempty"`
	DBDir         string         `yaml:"db_dir,omitempty"`
	ListenAddr    string         `yaml:"listen,omitempty"`
	Verbose       *bool          `yaml:"verbose,omitempty"`
	JSONLog       *bool          `yaml:"json_log,omitempty"`
	BrowserID     string         `yaml:"browser_id,omitempty"`
	UpdatePeriod  time.Duration  `yaml:"update_period,omitempty"`
	HistoryPeriod time.Duration  `yaml:"history_period,omitempty"`
	PlacesPath    string         `yaml:"places,omitempty"`
	ClearPolicy   string         `yaml:"clear_policy,omitempty"`
	Notify        *bool          `yaml:"notify,omitempty"`
	Capture       *CaptureConfig `yaml:"capture,omitempty"`
}

// CaptureConfig is the capture section of the configuration file.
type CaptureConfig struct {
	Enabled           *bool         `yaml:"enabled,omitempty"`
	SettleDelay       time.Duration `yaml:"settle_delay,omitempty"`
	StabilizeAttempts int           `yaml:"stabilize_attempts,omitempty"`
	StabilizeInterval time.Duration `yaml:"stabilize_interval,omitempty"`
	Timeout           time.Duration `yaml:"timeout,omitempty"`
	Concurrency       int           `yaml:"concurrency,omitempty"`
	Rate              float64       `yaml:"rate,omitempty"`
	Burst             int           `yaml:"burst,omitempty"`
	Proxy             string        `yaml:"proxy,omitempty"`
	Files             *bool         `yaml:"files,omitempty"`
	MaxBodySize       int64         `yaml:"max_body_size,omitempty"`
	UserAgent         string        `yaml:"user_agent,omitempty"`
	ExcludedHosts     []string      `yaml:"excluded_hosts,omitempty"`
}

// LoadConfigFile loads a YAML configuration file.
// If the file does not exist, it returns ErrConfigNotFound.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, err
	}
	return &cf, nil
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for .pagetrail in the current directory
// 3. Look for config.yaml in the XDG config directory
// 4. Look for .pagetrail in the user's home directory
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	var candidates []string
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, DefaultConfigFile))
	}
	candidates = append(candidates, filepath.Join(XDGConfigDir(), "config.yaml"))
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, DefaultConfigFile))
	}

	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

// Apply copies every field set in the file onto cfg.
func (f *File) Apply(cfg *Config) {
	setString(&cfg.BackendURL, f.BackendURL)
	setString(&cfg.DBDir, f.DBDir)
	setString(&cfg.ListenAddr, f.ListenAddr)
	setString(&cfg.BrowserID, f.BrowserID)
	setString(&cfg.PlacesPath, f.PlacesPath)
	setString(&cfg.ClearPolicy, f.ClearPolicy)
	setBool(&cfg.Verbose, f.Verbose)
	setBool(&cfg.JSONLog, f.JSONLog)
	setBool(&cfg.Notify, f.Notify)
	setPositive(&cfg.UpdatePeriod, f.UpdatePeriod)
	setPositive(&cfg.HistoryPeriod, f.HistoryPeriod)

	c := f.Capture
	if c == nil {
		return
	}
	setBool(&cfg.CaptureEnabled, c.Enabled)
	setBool(&cfg.CaptureFiles, c.Files)
	setPositive(&cfg.SettleDelay, c.SettleDelay)
	setPositive(&cfg.StabilizeAttempts, c.StabilizeAttempts)
	setPositive(&cfg.StabilizeInterval, c.StabilizeInterval)
	setPositive(&cfg.CaptureTimeout, c.Timeout)
	setPositive(&cfg.CaptureConcurrency, c.Concurrency)
	setPositive(&cfg.CaptureRate, c.Rate)
	setPositive(&cfg.CaptureBurst, c.Burst)
	setPositive(&cfg.MaxBodySize, c.MaxBodySize)
	setString(&cfg.CaptureProxy, c.Proxy)
	setString(&cfg.UserAgent, c.UserAgent)
	if len(c.ExcludedHosts) > 0 {
		cfg.ExcludedHosts = append([]string(nil), c.ExcludedHosts...)
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setPositive[T int | int64 | float64 | time.Duration](dst *T, v T) {
	if v > 0 {
		*dst = v
	}
}
