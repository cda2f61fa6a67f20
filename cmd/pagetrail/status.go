package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/pagetrail/internal/config"
	"github.com/nao1215/pagetrail/internal/database"
	"github.com/nao1215/pagetrail/internal/model"
	"github.com/nao1215/pagetrail/internal/report"
)

// NewStatusCmd creates the status command.
func NewStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show what a running daemon is tracking",
		Long: `Status asks a running daemon for its open and pending pages, history sync
state and recent faults, and renders the result.

With --archive the local SQLite archive is read instead, which works
without a running daemon.

Examples:
  pagetrail status
  pagetrail status --format markdown -o status.md
  pagetrail status --archive --format json`,
		Args: cobra.NoArgs,
		RunE: runStatusCmd,
	}
	addDaemonAddrFlag(cmd)
	cmd.Flags().StringP("format", "f", report.FormatText, "Output format: text, json or markdown")
	cmd.Flags().StringP("output", "o", "", "Write the report to a file instead of stdout")
	cmd.Flags().Bool("archive", false, "Read the local archive instead of asking the daemon")
	cmd.Flags().Bool("pages", false, "List every page in text output")
	return cmd
}

func runStatusCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd, os.LookupEnv)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	format, err := flags.GetString("format")
	if err != nil {
		return err
	}
	outputPath, err := flags.GetString("output")
	if err != nil {
		return err
	}
	fromArchive, err := flags.GetBool("archive")
	if err != nil {
		return err
	}
	listPages, err := flags.GetBool("pages")
	if err != nil {
		return err
	}

	var r *report.Report
	if fromArchive {
		r, err = archiveReport(cmd.Context(), cfg)
	} else {
		r, err = daemonReport(cmd, cfg)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if outputPath != "" {
		if dir := filepath.Dir(outputPath); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return fmt.Errorf("failed to create directory: %w", err)
			}
		}
		f, err := os.Create(outputPath) //nolint:gosec // user-chosen output path
		if err != nil {
			return fmt.Errorf("failed to create report file: %w", err)
		}
		defer f.Close() //nolint:errcheck
		out = f
	}
	return writeReport(out, format, listPages, r)
}

func writeReport(out io.Writer, format string, listPages bool, r *report.Report) error {
	var w report.Writer
	if format == "" || format == report.FormatText {
		w = report.NewSimpleWriter(out, report.WithVerbose(listPages))
	} else {
		var err error
		if w, err = report.NewWriter(format, out); err != nil {
			return err
		}
	}
	_, err := w.Write(r)
	return err
}

func daemonReport(cmd *cobra.Command, cfg *config.Config) (*report.Report, error) {
	c, err := clientFor(cmd, cfg)
	if err != nil {
		return nil, err
	}
	var r report.Report
	if err := c.call(cmd.Context(), http.MethodGet, "/status", nil, &r); err != nil {
		if errors.Is(err, errDaemonUnreachable) {
			return nil, fmt.Errorf("%w (start it with \"pagetrail run\" or use --archive)", err)
		}
		return nil, err
	}
	return &r, nil
}

// archiveReport builds a report from the activity stored in the local archive.
func archiveReport(ctx context.Context, cfg *config.Config) (*report.Report, error) {
	browserID := cfg.BrowserID
	if browserID == "" {
		var err error
		if browserID, err = config.LoadOrCreateBrowserID(config.XDGStateDir()); err != nil {
			return nil, err
		}
	}
	store, err := database.Open(cfg.DBDir, database.Options{})
	if err != nil {
		return nil, err
	}
	defer store.Close() //nolint:errcheck

	records, err := store.ActivityRecords(ctx, browserID)
	if err != nil {
		return nil, err
	}
	backendStatus, err := store.Status(ctx, browserID)
	if err != nil {
		return nil, err
	}
	var lastUpdated *int64
	if backendStatus.Latest > 0 {
		lastUpdated = &backendStatus.Latest
	}
	return &report.Report{
		Status: model.Status{
			PendingPages: records,
			Sync:         &model.SyncStatus{LastUpdated: lastUpdated, Synced: backendStatus.HistoryCount},
		},
		Version:     getVersion(),
		BrowserID:   browserID,
		GeneratedAt: time.Now(),
	}, nil
}
