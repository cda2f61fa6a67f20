package main

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nao1215/pagetrail/internal/daemon"
)

// NewFlushCmd creates the flush command.
func NewFlushCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flush",
		Short: "Ask a running daemon to send its activity now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, os.LookupEnv)
			if err != nil {
				return err
			}
			c, err := clientFor(cmd, cfg)
			if err != nil {
				return err
			}
			var res daemon.FlushResult
			if err := c.call(cmd.Context(), http.MethodPost, "/flush", nil, &res); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "activity flushed")
			return nil
		},
	}
	addDaemonAddrFlag(cmd)
	return cmd
}

// NewSyncCmd creates the sync command.
func NewSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Ask a running daemon to sync browser history now",
		Long: `Sync asks a running daemon to send the history visited since the newest
visit the backend already has. With --force the whole history is sent.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, os.LookupEnv)
			if err != nil {
				return err
			}
			force, err := cmd.Flags().GetBool("force")
			if err != nil {
				return err
			}
			c, err := clientFor(cmd, cfg)
			if err != nil {
				return err
			}
			var res daemon.SyncResult
			q := url.Values{"force": {strconv.FormatBool(force)}}
			if err := c.call(cmd.Context(), http.MethodPost, "/history/sync", q, &res); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "synced %d history item(s)\n", res.Synced)
			return nil
		},
	}
	addDaemonAddrFlag(cmd)
	cmd.Flags().BoolP("force", "f", false, "Send the whole history")
	return cmd
}
