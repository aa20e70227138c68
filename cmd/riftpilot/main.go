// Command riftpilot runs the client connector, the automation engine and the local control API,
// and offers a few one-shot account and client commands.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/coachpo/riftpilot/internal/infra/config"
	"github.com/coachpo/riftpilot/internal/infra/persistence/migrations"
	"github.com/coachpo/riftpilot/internal/infra/persistence/sqlstore"
)

const (
	defaultConfigPath            = "config/app.yaml"
	riftpilotLoggerPrefix        = "riftpilot "
	accountsPoolName             = "accounts"
	shutdownTimeout              = 30 * time.Second
	controlServerShutdownTimeout = 5 * time.Second
	lifecycleShutdownTimeout     = 10 * time.Second
	sessionShutdownTimeout       = 5 * time.Second
	uiHubShutdownTimeout         = 2 * time.Second
	storeShutdownTimeout         = 5 * time.Second
	telemetryShutdownTimeout     = 5 * time.Second
	controlReadHeaderTimeout     = 5 * time.Second
	commandTimeout               = 30 * time.Second
)

type rootOptions struct {
	configPath string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "riftpilot",
		Short:         "Account switcher and client automation for the League client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "",
		fmt.Sprintf("Path to application configuration file (default: %s)", defaultConfigPath))

	root.AddCommand(
		newRunCommand(opts),
		newAccountsCommand(opts),
		newLaunchCommand(opts),
		newAcceptCommand(opts),
		newMigrateCommand(opts),
	)
	return root
}

func newSignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func newLogger(prefix string) *log.Logger {
	return log.New(os.Stdout, prefix, log.LstdFlags|log.Lmicroseconds)
}

func resolveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return filepath.Clean(defaultConfigPath)
}

func loadConfig(ctx context.Context, logger *log.Logger, opts *rootOptions) (config.AppConfig, string, error) {
	configPath := resolveConfigPath(opts.configPath)
	appCfg, loadedFromFile, err := config.LoadOrDefault(ctx, configPath)
	if err != nil {
		return config.AppConfig{}, "", fmt.Errorf("load config: %w", err)
	}
	if !loadedFromFile && logger != nil {
		logger.Printf("configuration file not found, using defaults")
	}
	return appCfg, configPath, nil
}

// openAccountStore migrates the database when configured and opens the account store.
func openAccountStore(ctx context.Context, logger *log.Logger, cfg config.StorageConfig) (*sqlstore.Store, error) {
	if cfg.RunMigrations {
		if err := migrations.Apply(ctx, migrations.Options{
			Driver: cfg.Driver,
			DSN:    cfg.DSN,
			Dir:    cfg.MigrationsDir,
		}, logger); err != nil {
			return nil, fmt.Errorf("apply migrations: %w", err)
		}
	}
	store, err := sqlstore.Open(ctx, sqlstore.Options{
		Driver:       cfg.Driver,
		DSN:          cfg.DSN,
		MaxOpenConns: cfg.MaxOpenConns,
	})
	if err != nil {
		return nil, fmt.Errorf("open account store: %w", err)
	}
	sqlstore.ObservePoolMetrics(store.DB(), accountsPoolName)
	return store, nil
}
