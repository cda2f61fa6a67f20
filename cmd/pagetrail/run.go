package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nao1215/pagetrail/internal/config"
	"github.com/nao1215/pagetrail/internal/daemon"
)

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the tracking daemon with the local HTTP ingest API",
		Long: `Run starts the tracking daemon and serves the ingest API on the listen
address. The browser extension posts message envelopes to /events.

Routes:
  POST /events         one envelope or a JSON array of envelopes
  GET  /status         tracker and history sync status
  POST /flush          send activity now
  POST /history/sync   sync history now (?force=true resends everything)
  GET  /healthz        liveness

Examples:
  # Archive locally under the XDG data directory
  pagetrail run

  # Send to a collection server and capture page contents
  pagetrail run --backend http://localhost:11180 --capture`,
		Args: cobra.NoArgs,
		RunE: runRunCmd,
	}
	addDaemonFlags(cmd)
	cmd.Flags().StringP("listen", "l", config.DefaultListenAddr, "Ingest API listen address")
	return cmd
}

func runRunCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd, os.LookupEnv)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cmd, cfg, func(d *daemon.Daemon) []daemon.Service {
		return []daemon.Service{d.IngestService()}
	})
}

// serve builds, starts and runs a daemon with the services from extra.
func serve(ctx context.Context, cmd *cobra.Command, cfg *config.Config, extra func(*daemon.Daemon) []daemon.Service) error {
	logger := setupLogger(cmd.ErrOrStderr(), cfg)

	d, err := daemon.New(cfg, daemon.WithLogger(logger), daemon.WithVersion(getVersion()))
	if err != nil {
		return err
	}
	defer func() {
		if err := d.Close(); err != nil {
			logger.Error("failed to close daemon", "error", err)
		}
	}()

	if err := d.Start(ctx); err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}
	return d.Run(ctx, extra(d)...)
}
