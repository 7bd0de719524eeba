package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/documents"
)

// Backend is the set of ledger operations the admin commands drive.
type Backend interface {
	Migrate(ctx context.Context) ([]string, error)
	CompanyTenant(ctx context.Context, companyID int64) (int64, error)
	Repost(ctx context.Context, in documents.RepostInput) (documents.RepostResult, error)
	ClosePeriod(ctx context.Context, companyID int64, ym periods.YearMonth, actorID int64) (periods.Period, error)
	ReopenPeriod(ctx context.Context, companyID int64, ym periods.YearMonth, actorID int64) (periods.Period, error)
	SeedAccounts(ctx context.Context, companyID, actorID int64) (accounts.SeedResult, error)
	EnqueueIntegrity(ctx context.Context, limit int) (string, error)
	Close()
}

// Opener connects a Backend. Commands call it only once their flags parsed.
type Opener func(ctx context.Context) (Backend, error)

// NewRootCommand creates the ledgerctl command tree.
func NewRootCommand(open Opener) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ledgerctl",
		Short: "Administrative tasks for the Odyssey ledger",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newMigrateCommand(open),
		newRepostCommand(open),
		newPeriodsCommand(open),
		newAccountsCommand(open),
		newJobsCommand(open),
	)

	return rootCmd
}

// withBackend opens the backend for the duration of fn.
func withBackend(cmd *cobra.Command, open Opener, fn func(context.Context, Backend) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	backend, err := open(ctx)
	if err != nil {
		return fmt.Errorf("connecting: %w", err)
	}
	defer backend.Close()
	return fn(ctx, backend)
}

// scope carries the company addressed by a command.
type scope struct {
	tenantID  int64
	companyID int64
	actorID   int64
}

func (s *scope) bind(cmd *cobra.Command) {
	cmd.Flags().Int64Var(&s.companyID, "company", 0, "company id (required)")
	cmd.Flags().Int64Var(&s.tenantID, "tenant", 0, "tenant owning the company (required)")
	cmd.Flags().Int64Var(&s.actorID, "actor", 0, "user recorded in the audit log")
	_ = cmd.MarkFlagRequired("company")
	_ = cmd.MarkFlagRequired("tenant")
}

// verify rejects a company that belongs to another tenant.
func (s scope) verify(ctx context.Context, backend Backend) error {
	tenantID, err := backend.CompanyTenant(ctx, s.companyID)
	if err != nil {
		return fmt.Errorf("resolving company %d: %w", s.companyID, err)
	}
	if tenantID != s.tenantID {
		return fmt.Errorf("company %d does not belong to tenant %d", s.companyID, s.tenantID)
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
