package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
)

func newPeriodsCommand(open Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "periods",
		Short: "Close or reopen accounting months",
	}
	cmd.AddCommand(
		newPeriodStatusCommand(open, "close", "Close a month for posting", Backend.ClosePeriod),
		newPeriodStatusCommand(open, "reopen", "Reopen a closed month", Backend.ReopenPeriod),
	)
	return cmd
}

type periodAction func(Backend, context.Context, int64, periods.YearMonth, int64) (periods.Period, error)

func newPeriodStatusCommand(open Opener, use, short string, action periodAction) *cobra.Command {
	var target scope
	var ym periods.YearMonth

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !ym.Valid() {
				return fmt.Errorf("invalid month %04d-%02d", ym.Year, ym.Month)
			}
			return withBackend(cmd, open, func(ctx context.Context, backend Backend) error {
				if err := target.verify(ctx, backend); err != nil {
					return err
				}
				period, err := action(backend, ctx, target.companyID, ym, target.actorID)
				if err != nil {
					return fmt.Errorf("%s %04d-%02d: %w", use, ym.Year, ym.Month, err)
				}
				return printJSON(cmd.OutOrStdout(), period)
			})
		},
	}

	target.bind(cmd)
	cmd.Flags().IntVar(&ym.Year, "year", 0, "calendar year (required)")
	cmd.Flags().IntVar(&ym.Month, "month", 0, "month 1-12 (required)")
	_ = cmd.MarkFlagRequired("year")
	_ = cmd.MarkFlagRequired("month")

	return cmd
}
