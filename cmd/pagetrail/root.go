package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for pagetrail.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pagetrail",
		Short: "Browser activity tracking daemon",
		Long: `pagetrail turns browser navigation and page events into one record per
visited document, with the page it came from, how long it was in the
foreground and what was done on it.

The browser extension talks to pagetrail either through native messaging
("pagetrail host") or over local HTTP ("pagetrail run"). Records are sent to
a collection server when backend_url is set, and to a local SQLite archive
otherwise.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().StringP("config", "c", "",
		"Configuration file path (default: .pagetrail, then the XDG config dir)")
	cmd.PersistentFlags().String("env-file", ".env", "Environment file with PAGETRAIL_* variables")

	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewHostCmd())
	cmd.AddCommand(NewStatusCmd())
	cmd.AddCommand(NewFlushCmd())
	cmd.AddCommand(NewSyncCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
