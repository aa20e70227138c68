package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/coachpo/riftpilot/internal/app/accounts"
	"github.com/coachpo/riftpilot/internal/domain/schema"
	"github.com/coachpo/riftpilot/internal/infra/persistence/crypto"
)

// accountCommandService opens the configured store for a one-shot command. The returned close
// func releases the database.
func accountCommandService(ctx context.Context, root *rootOptions) (*accounts.Service, func(), error) {
	logger := newLogger(riftpilotLoggerPrefix)
	appCfg, _, err := loadConfig(ctx, nil, root)
	if err != nil {
		return nil, nil, err
	}
	store, err := openAccountStore(ctx, nil, appCfg.Storage)
	if err != nil {
		return nil, nil, err
	}
	sealer, err := crypto.NewSealer(appCfg.Storage.Secret, appCfg.Storage.Salt)
	if err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("initialise password sealer: %w", err)
	}
	closeFn := func() {
		if err := store.Close(); err != nil {
			logger.Printf("close account store: %v", err)
		}
	}
	return accounts.NewService(store, sealer, nil, nil, logger), closeFn, nil
}

func newAccountsCommand(root *rootOptions) *cobra.Command {
	accountsCmd := &cobra.Command{
		Use:           "accounts",
		Short:         "Manage stored accounts",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	listCmd := &cobra.Command{
		Use:           "list",
		Short:         "List stored accounts",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()
			svc, closeFn, err := accountCommandService(ctx, root)
			if err != nil {
				return err
			}
			defer closeFn()
			list, err := svc.List(ctx)
			if err != nil {
				return err
			}
			return printAccounts(cmd.OutOrStdout(), list)
		},
	}

	var in accounts.Input
	var queueType string
	addCmd := &cobra.Command{
		Use:           "add <username>",
		Short:         "Store a new account",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()
			svc, closeFn, err := accountCommandService(ctx, root)
			if err != nil {
				return err
			}
			defer closeFn()
			in.Username = args[0]
			in.QueueType = schema.QueueType(queueType)
			acc, err := svc.Add(ctx, in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "account %s added\n", acc.Username)
			return nil
		},
	}
	flags := addCmd.Flags()
	flags.StringVar(&in.Password, "password", "", "Account password (sealed at rest)")
	flags.StringVar(&in.Label, "label", "", "Display label")
	flags.StringVar(&in.RiotID, "riot-id", "", "Riot ID (name#tag)")
	flags.StringVar(&in.Region, "region", "", "Server region")
	flags.StringVar(&in.AutoPickChamp, "pick", "", "Champion to lock in automatically")
	flags.StringVar(&in.AutoBanChamp, "ban", "", "Champion to ban automatically")
	flags.BoolVar(&in.AutoQueue, "auto-queue", false, "Create a lobby and start searching after login")
	flags.StringVar(&queueType, "queue-type", string(schema.QueueRankedSolo), "Queue for auto-queue (RANKED_SOLO|RANKED_FLEX|NORMAL_DRAFT|ARAM)")
	flags.StringVar(&in.PrimaryRole, "primary-role", "", "Primary position preference")
	flags.StringVar(&in.SecondaryRole, "secondary-role", "", "Secondary position preference")
	flags.BoolVar(&in.AppearOffline, "appear-offline", false, "Set chat availability to offline after login")
	flags.BoolVar(&in.AutoSkinRandom, "auto-skin", false, "Pick a random owned skin after locking in")
	flags.BoolVar(&in.AutoSpells, "auto-spells", false, "Keep summoner spells managed")
	flags.StringVar(&in.Notes, "notes", "", "Free-form notes")

	removeCmd := &cobra.Command{
		Use:           "remove <username>",
		Aliases:       []string{"rm"},
		Short:         "Delete a stored account",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()
			svc, closeFn, err := accountCommandService(ctx, root)
			if err != nil {
				return err
			}
			defer closeFn()
			if err := svc.Delete(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "account %s removed\n", args[0])
			return nil
		},
	}

	accountsCmd.AddCommand(listCmd, addCmd, removeCmd)
	return accountsCmd
}

func printAccounts(w io.Writer, list []schema.Account) error {
	if len(list) == 0 {
		_, err := fmt.Fprintln(w, "no accounts stored")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "USERNAME\tNAME\tREGION\tQUEUE\tPICK\tBAN")
	for _, acc := range list {
		queue := "-"
		if acc.AutoQueue {
			queue = string(schema.NormalizeQueueType(acc.QueueType))
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			acc.Username, acc.DisplayName(), dash(acc.Region), queue, dash(acc.AutoPickChamp), dash(acc.AutoBanChamp))
	}
	return tw.Flush()
}

func dash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}
