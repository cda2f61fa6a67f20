package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// EnvPrefix is the prefix of environment variables read by ApplyEnv.
const EnvPrefix = "PAGETRAIL_"

// LoadDotEnv loads variables from a .env file into the process environment
// without overriding variables that are already set. A missing file is not
// an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays PAGETRAIL_* variables onto cfg. lookup is usually os.LookupEnv.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"BACKEND_URL":   &cfg.BackendURL,
		"DB_DIR":        &cfg.DBDir,
		"LISTEN":        &cfg.ListenAddr,
		"BROWSER_ID":    &cfg.BrowserID,
		"PLACES":        &cfg.PlacesPath,
		"CLEAR_POLICY":  &cfg.ClearPolicy,
		"CAPTURE_PROXY": &cfg.CaptureProxy,
		"USER_AGENT":    &cfg.UserAgent,
	}
	for name, dst := range strs {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}

	bools := map[string]*bool{
		"VERBOSE":       &cfg.Verbose,
		"JSON_LOG":      &cfg.JSONLog,
		"NOTIFY":        &cfg.Notify,
		"CAPTURE":       &cfg.CaptureEnabled,
		"CAPTURE_FILES": &cfg.CaptureFiles,
	}
	for name, dst := range bools {
		v, ok := lookup(EnvPrefix + name)
		if !ok || v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: %s%s=%q", ErrInvalidEnv, EnvPrefix, name, v)
		}
		*dst = b
	}

	durations := map[string]*time.Duration{
		"UPDATE_PERIOD":  &cfg.UpdatePeriod,
		"HISTORY_PERIOD": &cfg.HistoryPeriod,
	}
	for name, dst := range durations {
		v, ok := lookup(EnvPrefix + name)
		if !ok || v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: %s%s=%q", ErrInvalidEnv, EnvPrefix, name, v)
		}
		*dst = d
	}

	if v, ok := lookup(EnvPrefix + "EXCLUDED_HOSTS"); ok && v != "" {
		cfg.ExcludedHosts = nil
		for h := range strings.SplitSeq(v, ",") {
			if h = strings.TrimSpace(h); h != "" {
				cfg.ExcludedHosts = append(cfg.ExcludedHosts, h)
			}
		}
	}
	return nil
}
