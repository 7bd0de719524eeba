package commands

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/app"
	"github.com/odyssey-erp/odyssey-ledger/internal/documents"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	"github.com/odyssey-erp/odyssey-ledger/jobs"
)

// serviceBackend runs the commands against the live database and queue.
type serviceBackend struct {
	pool     *pgxpool.Pool
	services *app.Services
	queue    *jobs.Client
	logger   *slog.Logger
}

// OpenServices connects to Postgres and Redis using the application config.
func OpenServices(ctx context.Context) (Backend, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, err
	}
	logger := app.NewLogger(cfg)
	pool, err := db.New(ctx, cfg.PGDSN, cfg.PoolOptions("ledgerctl"))
	if err != nil {
		return nil, err
	}
	return &serviceBackend{
		pool:     pool,
		services: app.NewServices(pool, nil, cfg, logger, nil),
		queue:    jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr}),
		logger:   logger,
	}, nil
}

func (b *serviceBackend) Migrate(ctx context.Context) ([]string, error) {
	return db.Migrate(ctx, b.pool)
}

func (b *serviceBackend) CompanyTenant(ctx context.Context, companyID int64) (int64, error) {
	return b.services.Companies.CompanyTenant(ctx, companyID)
}

func (b *serviceBackend) Repost(ctx context.Context, in documents.RepostInput) (documents.RepostResult, error) {
	return b.services.Documents.Repost(ctx, in)
}

func (b *serviceBackend) ClosePeriod(ctx context.Context, companyID int64, ym periods.YearMonth, actorID int64) (periods.Period, error) {
	return b.services.Periods.Close(ctx, companyID, ym, actorID)
}

func (b *serviceBackend) ReopenPeriod(ctx context.Context, companyID int64, ym periods.YearMonth, actorID int64) (periods.Period, error) {
	return b.services.Periods.Reopen(ctx, companyID, ym, actorID)
}

func (b *serviceBackend) SeedAccounts(ctx context.Context, companyID, actorID int64) (accounts.SeedResult, error) {
	return b.services.Accounts.SeedSystemAccounts(ctx, companyID, actorID)
}

func (b *serviceBackend) EnqueueIntegrity(ctx context.Context, limit int) (string, error) {
	info, err := b.queue.EnqueueLedgerIntegrity(ctx, jobs.LedgerIntegrityPayload{Limit: limit})
	if err != nil {
		return "", err
	}
	return info.ID, nil
}

func (b *serviceBackend) Close() {
	if err := b.queue.Close(); err != nil {
		b.logger.Warn("queue client close", slog.Any("error", err))
	}
	b.pool.Close()
}
