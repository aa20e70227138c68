package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/coachpo/riftpilot/internal/infra/config"
	"github.com/coachpo/riftpilot/internal/infra/persistence/migrations"
)

type migrateFlags struct {
	driver string
	dsn    string
	dir    string
	quiet  bool
}

func newMigrateCommand(root *rootOptions) *cobra.Command {
	var flags migrateFlags
	cmd := &cobra.Command{
		Use:           "migrate",
		Short:         "Apply account store migrations and exit",
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
			opts, err := migrationOptions(appCfg.Storage, flags)
			if err != nil {
				return err
			}
			logger := newLogger("riftpilot-migrate ")
			if flags.quiet {
				logger = nil
			}
			if err := migrations.Apply(ctx, opts, logger); err != nil {
				return fmt.Errorf("migrate up: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
	cmd.Flags().StringVar(&flags.driver, "driver", "", "Database driver override (sqlite|pgx)")
	cmd.Flags().StringVar(&flags.dsn, "database", "", "Database DSN override")
	cmd.Flags().StringVar(&flags.dir, "path", "", "Directory of SQL migrations replacing the embedded set")
	cmd.Flags().BoolVar(&flags.quiet, "quiet", false, "Suppress informational logs")
	return cmd
}

func migrationOptions(storage config.StorageConfig, flags migrateFlags) (migrations.Options, error) {
	opts := migrations.Options{Driver: storage.Driver, DSN: storage.DSN, Dir: storage.MigrationsDir}
	if v := strings.TrimSpace(flags.driver); v != "" {
		opts.Driver = v
	}
	if v := strings.TrimSpace(flags.dsn); v != "" {
		opts.DSN = v
	}
	if v := strings.TrimSpace(flags.dir); v != "" {
		opts.Dir = v
	}
	if strings.TrimSpace(opts.DSN) == "" {
		return migrations.Options{}, errors.New("database DSN is required")
	}
	return opts, nil
}
