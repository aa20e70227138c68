package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/coachpo/riftpilot/internal/infra/config"
	"github.com/coachpo/riftpilot/internal/infra/lcu"
	"github.com/coachpo/riftpilot/internal/infra/lockfile"
)

const controlClientTimeout = 10 * time.Second

// newLaunchCommand asks a running daemon to switch accounts, so its automation picks up the new
// current account.
func newLaunchCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "launch <username>",
		Short:         "Launch a stored account through the running daemon",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()
			appCfg, _, err := loadConfig(ctx, nil, root)
			if err != nil {
				return err
			}
			endpoint := controlURL(appCfg.APIServer.Addr, "/accounts/"+url.PathEscape(args[0])+"/launch")
			if err := postControl(ctx, endpoint); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "launching %s\n", args[0])
			return nil
		},
	}
}

// newAcceptCommand accepts the pending ready check directly against the client.
func newAcceptCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "accept",
		Short:         "Accept the pending match ready check",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()
			appCfg, _, err := loadConfig(ctx, nil, root)
			if err != nil {
				return err
			}
			gateway := oneShotGateway(appCfg, lockfile.Discover)
			if err := gateway.AcceptReadyCheck(ctx).Error(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ready check accepted")
			return nil
		},
	}
}

// lockfileCredentials discovers credentials on every call instead of waiting for a session.
type lockfileCredentials struct {
	hint     string
	discover lcu.DiscoverFunc
}

func (c lockfileCredentials) Credentials() (lockfile.Credentials, bool) {
	return c.discover(c.hint)
}

func oneShotGateway(appCfg config.AppConfig, discover lcu.DiscoverFunc) *lcu.Gateway {
	opts := lcu.Options{
		Config: lcu.Config{
			LockfileHint:      appCfg.Client.InstallPath,
			Host:              appCfg.Connector.Host,
			Principal:         appCfg.Connector.Principal,
			ReconnectInterval: 0,
			RequestTimeout:    appCfg.Connector.RequestTimeout,
			RequestRate:       0,
			RequestBurst:      0,
		},
		Logger:        newLogger("lcu "),
		Discover:      discover,
		OnStateChange: nil,
	}
	return lcu.NewGateway(lockfileCredentials{hint: appCfg.Client.InstallPath, discover: discover}, opts)
}

func controlURL(addr, path string) string {
	host := strings.TrimSpace(addr)
	if strings.HasPrefix(host, ":") {
		host = "127.0.0.1" + host
	}
	return "http://" + host + path
}

type controlError struct {
	Error string `json:"error"`
}

func postControl(ctx context.Context, endpoint string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, http.NoBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	client := &http.Client{Transport: nil, CheckRedirect: nil, Jar: nil, Timeout: controlClientTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("daemon unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var payload controlError
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		return fmt.Errorf("daemon: %s (status %d)", payload.Error, resp.StatusCode)
	}
	return fmt.Errorf("daemon: status %d", resp.StatusCode)
}
