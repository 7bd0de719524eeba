package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newAccountsCommand(open Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Manage the chart of accounts",
	}
	cmd.AddCommand(newSeedAccountsCommand(open))
	return cmd
}

func newSeedAccountsCommand(open Opener) *cobra.Command {
	var target scope

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert the missing system accounts of a company",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withBackend(cmd, open, func(ctx context.Context, backend Backend) error {
				if err := target.verify(ctx, backend); err != nil {
					return err
				}
				result, err := backend.SeedAccounts(ctx, target.companyID, target.actorID)
				if err != nil {
					return fmt.Errorf("seeding accounts: %w", err)
				}
				return printJSON(cmd.OutOrStdout(), result)
			})
		},
	}
	target.bind(cmd)
	return cmd
}
