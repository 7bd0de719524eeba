package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newJobsCommand(open Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Interact with background jobs",
	}
	trigger := &cobra.Command{
		Use:   "trigger",
		Short: "Enqueue a job immediately",
	}
	trigger.AddCommand(newTriggerIntegrityCommand(open))
	cmd.AddCommand(trigger)
	return cmd
}

func newTriggerIntegrityCommand(open Opener) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "integrity",
		Short: "Enqueue a ledger integrity scan",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit <= 0 {
				return fmt.Errorf("--limit must be positive")
			}
			return withBackend(cmd, open, func(ctx context.Context, backend Backend) error {
				id, err := backend.EnqueueIntegrity(ctx, limit)
				if err != nil {
					return fmt.Errorf("enqueueing integrity scan: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s\n", id)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 500, "maximum findings reported")
	return cmd
}
