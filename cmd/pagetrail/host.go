package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nao1215/pagetrail/internal/daemon"
	"github.com/nao1215/pagetrail/internal/nativemsg"
)

// NewHostCmd creates the host command.
func NewHostCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "host [extension-origin]",
		Short: "Run as the browser's native messaging host",
		Long: `Host runs the tracking daemon on the native messaging stream: messages are
read from stdin and answered on stdout, each framed with a 32-bit length.
The browser starts this command and passes the extension origin as an
argument. Logs go to stderr.

The daemon stops when the browser closes the stream. The HTTP ingest API is
off unless --listen is given.`,
		Args: cobra.ArbitraryArgs,
		RunE: runHostCmd,
	}
	addDaemonFlags(cmd)
	cmd.Flags().StringP("listen", "l", "", "Also serve the ingest API on this address")
	return cmd
}

func runHostCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd, os.LookupEnv)
	if err != nil {
		return err
	}
	listen, err := cmd.Flags().GetString("listen")
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cmd, cfg, func(d *daemon.Daemon) []daemon.Service {
		services := []daemon.Service{nativeService(cmd.InOrStdin(), cmd.OutOrStdout(), d)}
		if listen != "" {
			services = append(services, d.IngestService())
		}
		return services
	})
}

// nativeService serves the native messaging stream. Cancelling ctx closes
// r when it is closable so that a blocked read returns.
func nativeService(r io.Reader, w io.Writer, d *daemon.Daemon) daemon.Service {
	return func(ctx context.Context) error {
		if c, ok := r.(io.Closer); ok {
			stop := context.AfterFunc(ctx, func() { _ = c.Close() }) //nolint:errcheck
			defer stop()
		}
		host := nativemsg.NewHost(r, w, d.Bus(), nativemsg.WithLogger(slog.Default()))
		if err := host.Serve(ctx); err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	}
}
