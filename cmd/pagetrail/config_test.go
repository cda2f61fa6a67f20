package main

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
)

// subcommand returns the named subcommand of a fresh root with args parsed.
func subcommand(t *testing.T, name string, args ...string) *cobra.Command {
	t.Helper()
	for _, c := range NewRootCmd().Commands() {
		if c.Name() == name {
			if err := c.ParseFlags(args); err != nil {
				t.Fatalf("ParseFlags(%v) error = %v", args, err)
			}
			return c
		}
	}
	t.Fatalf("no %s subcommand", name)
	return nil
}

func noEnv(string) (string, bool) { return "", false }

// TestLoadConfig tests the precedence of file, environment and flags.
func TestLoadConfig(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "backend_url: http://file.example\nupdate_period: 2m\nverbose: true\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	envFile := filepath.Join(dir, "missing.env")

	t.Run("file values", func(t *testing.T) {
		t.Parallel()

		cmd := subcommand(t, "run", "--config", path, "--env-file", envFile)
		cfg, err := loadConfig(cmd, noEnv)
		if err != nil {
			t.Fatalf("loadConfig() error = %v", err)
		}
		if cfg.BackendURL != "http://file.example" || cfg.UpdatePeriod != 2*time.Minute || !cfg.Verbose {
			t.Errorf("cfg = %+v", cfg)
		}
	})

	t.Run("environment overrides file", func(t *testing.T) {
		t.Parallel()

		cmd := subcommand(t, "run", "--config", path, "--env-file", envFile)
		env := func(k string) (string, bool) {
			if k == "PAGETRAIL_BACKEND_URL" {
				return "http://env.example", true
			}
			return "", false
		}
		cfg, err := loadConfig(cmd, env)
		if err != nil {
			t.Fatalf("loadConfig() error = %v", err)
		}
		if cfg.BackendURL != "http://env.example" {
			t.Errorf("BackendURL = %q", cfg.BackendURL)
		}
	})

	t.Run("flags override everything", func(t *testing.T) {
		t.Parallel()

		cmd := subcommand(t, "run", "--config", path, "--env-file", envFile,
			"--backend", "http://flag.example", "--update-period", "30s", "--capture", "--listen", "127.0.0.1:9999")
		cfg, err := loadConfig(cmd, noEnv)
		if err != nil {
			t.Fatalf("loadConfig() error = %v", err)
		}
		if cfg.BackendURL != "http://flag.example" || cfg.UpdatePeriod != 30*time.Second {
			t.Errorf("cfg = %+v", cfg)
		}
		if !cfg.CaptureEnabled || cfg.ListenAddr != "127.0.0.1:9999" {
			t.Errorf("capture = %v, listen = %q", cfg.CaptureEnabled, cfg.ListenAddr)
		}
	})

	t.Run("unset flags keep file values", func(t *testing.T) {
		t.Parallel()

		cmd := subcommand(t, "host", "--config", path, "--env-file", envFile)
		cfg, err := loadConfig(cmd, noEnv)
		if err != nil {
			t.Fatalf("loadConfig() error = %v", err)
		}
		if cfg.UpdatePeriod != 2*time.Minute {
			t.Errorf("UpdatePeriod = %v, want the file value", cfg.UpdatePeriod)
		}
	})

	t.Run("explicit missing file", func(t *testing.T) {
		t.Parallel()

		cmd := subcommand(t, "run", "--config", filepath.Join(dir, "nope.yaml"), "--env-file", envFile)
		if _, err := loadConfig(cmd, noEnv); err == nil {
			t.Error("expected an error for a missing config file")
		}
	})
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
