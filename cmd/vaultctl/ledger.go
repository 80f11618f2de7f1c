package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"vaultbot/internal/adapter/repo"
	"vaultbot/internal/domain"
	"vaultbot/internal/infra"
)

func ledgerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect or edit the announced-transaction ledger",
	}
	cmd.AddCommand(ledgerHasCmd())
	cmd.AddCommand(ledgerMarkCmd())
	return cmd
}

func ledgerHasCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "has [transaction-id...]",
		Short: "Report whether transactions were already announced",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(cmd.Context(), func(ctx context.Context, store domain.IdentityStore) error {
				for _, id := range args {
					seen, err := store.Contains(ctx, id)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%t\n", id, seen)
				}
				return nil
			})
		},
	}
}

func ledgerMarkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mark [transaction-id...]",
		Short: "Record transactions as announced so they are never posted",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(cmd.Context(), func(ctx context.Context, store domain.IdentityStore) error {
				for _, id := range args {
					inserted, err := store.MarkAnnounced(ctx, id)
					if err != nil {
						return err
					}
					state := "marked"
					if !inserted {
						state = "already present"
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", id, state)
				}
				return nil
			})
		},
	}
}

func withLedger(parent context.Context, fn func(context.Context, domain.IdentityStore) error) error {
	if parent == nil {
		parent = context.Background()
	}
	cfg, err := infra.LoadConfig()
	if err != nil {
		return err
	}
	if cfg.LedgerBackend == infra.LedgerMemory {
		return fmt.Errorf("ledger backend %q lives inside the bot process; set LEDGER_BACKEND to file, redis or postgres", cfg.LedgerBackend)
	}
	ctx, cancel := context.WithTimeout(parent, 15*time.Second)
	defer cancel()

	store, closeFn, err := repo.OpenLedger(ctx, cfg, *infra.DiscardLogger())
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(ctx, store)
}
