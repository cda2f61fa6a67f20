package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/pagetrail/internal/config"
)

// clientTimeout bounds one request to a running daemon.
const clientTimeout = 30 * time.Second

// errDaemonUnreachable is returned when no daemon answers on the address.
var errDaemonUnreachable = errors.New("daemon is not reachable")

// daemonClient calls the ingest API of a running daemon.
type daemonClient struct {
	base string
	http *http.Client
}

func newDaemonClient(addr string) *daemonClient {
	base := addr
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &daemonClient{base: strings.TrimRight(base, "/"), http: &http.Client{Timeout: clientTimeout}}
}

// call sends a request to path and decodes the result into out.
func (c *daemonClient) call(ctx context.Context, method, path string, q url.Values, out any) error {
	u := c.base + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w at %s: %w", errDaemonUnreachable, c.base, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	var res struct {
		Type   string          `json:"type"`
		Result json.RawMessage `json:"result"`
		Error  string          `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return fmt.Errorf("failed to decode daemon response: %w", err)
	}
	if res.Error != "" {
		return fmt.Errorf("daemon: %s", res.Error)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("daemon: unexpected status %s", resp.Status)
	}
	if out == nil || len(res.Result) == 0 {
		return nil
	}
	return json.Unmarshal(res.Result, out)
}

// addDaemonAddrFlag registers --addr on commands that talk to a running daemon.
func addDaemonAddrFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("addr", "a", "", "Address of the running daemon (default: listen address from the configuration)")
}

// clientFor returns a client for the daemon selected by --addr or the configuration.
func clientFor(cmd *cobra.Command, cfg *config.Config) (*daemonClient, error) {
	addr, err := cmd.Flags().GetString("addr")
	if err != nil {
		return nil, err
	}
	if addr == "" {
		addr = cfg.ListenAddr
	}
	return newDaemonClient(addr), nil
}
