package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/nao1215/pagetrail/internal/config"
	"github.com/nao1215/pagetrail/internal/log"
)

// loadConfig builds the configuration from defaults, the .env file, the
// configuration file, PAGETRAIL_* variables and finally the command flags,
// each overriding the previous.
func loadConfig(cmd *cobra.Command, lookup func(string) (string, bool)) (*config.Config, error) {
	cfg := config.NewConfig()

	envFile, err := cmd.Flags().GetString("env-file")
	if err != nil {
		return nil, err
	}
	if err := config.LoadDotEnv(envFile); err != nil {
		return nil, err
	}

	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	explicit := cfg.ConfigFilePath != ""
	if path := config.FindConfigFile(cfg.ConfigFilePath); path != "" {
		file, err := config.LoadConfigFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
		file.Apply(cfg)
	} else if explicit {
		return nil, fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	}

	if err := config.ApplyEnv(cfg, lookup); err != nil {
		return nil, err
	}
	if err := applyFlags(cmd, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyFlags copies the flags the user actually set onto cfg.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	var errs []error
	str := func(name string, dst *string) {
		if flags.Lookup(name) != nil && flags.Changed(name) {
			v, err := flags.GetString(name)
			errs = append(errs, err)
			*dst = v
		}
	}
	boolean := func(name string, dst *bool) {
		if flags.Lookup(name) != nil && flags.Changed(name) {
			v, err := flags.GetBool(name)
			errs = append(errs, err)
			*dst = v
		}
	}

	boolean("verbose", &cfg.Verbose)
	boolean("json-log", &cfg.JSONLog)
	boolean("capture", &cfg.CaptureEnabled)
	boolean("notify", &cfg.Notify)
	str("backend", &cfg.BackendURL)
	str("db-dir", &cfg.DBDir)
	str("listen", &cfg.ListenAddr)
	str("places", &cfg.PlacesPath)
	str("clear-policy", &cfg.ClearPolicy)
	str("capture-proxy", &cfg.CaptureProxy)

	if flags.Lookup("update-period") != nil && flags.Changed("update-period") {
		v, err := flags.GetDuration("update-period")
		errs = append(errs, err)
		cfg.UpdatePeriod = v
	}
	return errors.Join(errs...)
}

// addDaemonFlags registers the flags shared by run and host.
func addDaemonFlags(cmd *cobra.Command) {
	cmd.Flags().String("backend", "", "Collection server URL (default: local archive)")
	cmd.Flags().String("db-dir", "", "Directory of the local SQLite archive")
	cmd.Flags().String("places", "", "Firefox profile directory or places.sqlite to read history from")
	cmd.Flags().Bool("capture", false, "Capture full page contents for pages the backend needs")
	cmd.Flags().String("capture-proxy", "", "SOCKS5 proxy (host:port) used for captures")
	cmd.Flags().String("clear-policy", "", `When pending pages are cleared on flush: "always" or "on-ack"`)
	cmd.Flags().Duration("update-period", config.DefaultUpdatePeriod, "Base period the flush interval is derived from")
	cmd.Flags().Bool("json-log", false, "Write logs as JSON")
	cmd.Flags().Bool("notify", false, "Show desktop notifications for failures")
}

// setupLogger creates the redacting logger and makes it the default.
func setupLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	logger := log.New(w, log.Options{Verbose: cfg.Verbose, JSON: cfg.JSONLog})
	slog.SetDefault(logger)
	return logger
}
