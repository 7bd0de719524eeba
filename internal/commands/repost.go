package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/odyssey-ledger/internal/documents"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

func newRepostCommand(open Opener) *cobra.Command {
	var target scope
	var from, to string

	cmd := &cobra.Command{
		Use:   "repost",
		Short: "Rebuild the system journal entries of a date range",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fromDate, err := shared.ParseDate(from)
			if err != nil {
				return fmt.Errorf("--from: %w", err)
			}
			toDate, err := shared.ParseDate(to)
			if err != nil {
				return fmt.Errorf("--to: %w", err)
			}
			return withBackend(cmd, open, func(ctx context.Context, backend Backend) error {
				if err := target.verify(ctx, backend); err != nil {
					return err
				}
				result, err := backend.Repost(ctx, documents.RepostInput{
					CompanyID: target.companyID,
					ActorID:   target.actorID,
					From:      fromDate,
					To:        toDate,
				})
				if err != nil {
					return fmt.Errorf("reposting: %w", err)
				}
				return printJSON(cmd.OutOrStdout(), result)
			})
		},
	}

	target.bind(cmd)
	cmd.Flags().StringVar(&from, "from", "", "first day, YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&to, "to", "", "last day, YYYY-MM-DD (required)")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}
