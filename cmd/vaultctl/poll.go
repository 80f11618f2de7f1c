package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"vaultbot/internal/adapter/repo"
	"vaultbot/internal/announce"
	"vaultbot/internal/domain"
	"vaultbot/internal/infra"
	"vaultbot/internal/poller"
	"vaultbot/internal/providers/paypal"
)

// pollCmd fetches what the poller would see without announcing anything.
func pollCmd() *cobra.Command {
	var lookback time.Duration
	cmd := &cobra.Command{
		Use:   "poll",
		Short: "Show the balance and the transactions the next poll would consider",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := infra.LoadConfig()
			if err != nil {
				return err
			}
			if lookback <= 0 {
				lookback = cfg.PollLookback
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.PollTimeout)
			defer cancel()

			client, err := paypal.NewClient(paypal.Options{
				ClientID: cfg.PayPalClientID,
				Secret:   cfg.PayPalSecret,
				Mode:     cfg.PayPalMode,
				BaseURL:  cfg.PayPalBaseURL,
			})
			if err != nil {
				return err
			}
			balance, err := client.Balance(ctx, cfg.PayPalCurrency)
			if err != nil {
				return err
			}
			now := time.Now()
			txs, err := client.ListTransactions(ctx, paypal.TransactionQuery{Start: now.Add(-lookback), End: now})
			if err != nil {
				return err
			}
			candidates, skipped := poller.Candidates(txs, cfg.PayPalCurrency, now)

			var store domain.IdentityStore
			if cfg.LedgerBackend != infra.LedgerMemory {
				s, closeFn, err := repo.OpenLedger(ctx, cfg, *infra.DiscardLogger())
				if err != nil {
					return err
				}
				defer closeFn()
				store = s
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "balance: %s\n", announce.ProgressLine(balance, cfg.VaultGoal))
			fmt.Fprintf(out, "transactions: %d eligible, %d skipped\n", len(candidates), skipped)
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tAMOUNT\tDONOR\tANNOUNCED")
			for _, c := range candidates {
				announced := "unknown"
				if store != nil {
					seen, err := store.Contains(ctx, c.TransactionID)
					if err != nil {
						return err
					}
					announced = fmt.Sprintf("%t", seen)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.TransactionID, announce.USD(c.Amount), c.Label(), announced)
			}
			return w.Flush()
		},
	}
	cmd.Flags().DurationVar(&lookback, "lookback", 0, "search window (defaults to POLL_LOOKBACK_HOURS)")
	return cmd
}
