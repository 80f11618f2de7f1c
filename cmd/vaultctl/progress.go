package main

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"vaultbot/internal/announce"
)

func progressCmd() *cobra.Command {
	var balanceFlag, goalFlag string
	cmd := &cobra.Command{
		Use:   "progress",
		Short: "Render the progress line for a balance and goal",
		RunE: func(cmd *cobra.Command, args []string) error {
			line, err := renderProgress(balanceFlag, goalFlag)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), line)
			return nil
		},
	}
	cmd.Flags().StringVar(&balanceFlag, "balance", "0", "vault balance")
	cmd.Flags().StringVar(&goalFlag, "goal", "1000", "vault goal")
	return cmd
}

func renderProgress(balanceRaw, goalRaw string) (string, error) {
	balance, err := decimal.NewFromString(balanceRaw)
	if err != nil {
		return "", fmt.Errorf("invalid --balance: %w", err)
	}
	goal, err := decimal.NewFromString(goalRaw)
	if err != nil {
		return "", fmt.Errorf("invalid --goal: %w", err)
	}
	return announce.ProgressLine(balance, goal), nil
}
