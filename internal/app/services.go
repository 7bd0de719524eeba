package app

import (
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/audit"
	"github.com/odyssey-erp/odyssey-ledger/internal/documents"
	"github.com/odyssey-erp/odyssey-ledger/internal/inventory"
	"github.com/odyssey-erp/odyssey-ledger/internal/observability"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Services holds the ledger services shared by the HTTP server, the worker
// and the admin CLI.
type Services struct {
	Accounts    *accounts.Service
	Journals    *journals.Service
	Periods     *periods.Service
	Stock       *inventory.Service
	Documents   *documents.Service
	Audit       *audit.Service
	Companies   *CompanyDirectory
	Idempotency *shared.IdempotencyStore
}

// NewServices wires every service against pool. redisClient and metrics may be nil.
func NewServices(pool *pgxpool.Pool, redisClient *redis.Client, cfg *Config, logger *slog.Logger, metrics *observability.Metrics) *Services {
	auditLogger := shared.NewAuditLogger(pool)
	stock := inventory.NewService(inventory.NewRepository(pool), inventory.NewReportCache(redisClient, cfg.StockCacheTTL), logger)
	return &Services{
		Accounts:    accounts.NewService(accounts.NewRepository(pool), accounts.NewRegistry(), auditLogger, logger),
		Journals:    journals.NewService(journals.NewRepository(pool), auditLogger, logger),
		Periods:     periods.NewService(periods.NewRepository(pool), auditLogger, logger),
		Stock:       stock,
		Documents:   documents.NewService(documents.NewRepository(pool), stock, auditLogger, metrics, logger, documents.Config{RepostMaxDays: cfg.LedgerRepostMaxDays}),
		Audit:       audit.NewService(audit.NewRepository(pool)),
		Companies:   NewCompanyDirectory(pool),
		Idempotency: shared.NewIdempotencyStore(pool),
	}
}

// Handlers builds the router parameters for the services.
func (s *Services) Handlers(logger *slog.Logger, cfg *Config, metrics *observability.Metrics) RouterParams {
	return RouterParams{
		Logger:           logger,
		Config:           cfg,
		Companies:        s.Companies,
		AccountsHandler:  accounts.NewHandler(logger, s.Accounts),
		JournalsHandler:  journals.NewHandler(logger, s.Journals),
		PeriodsHandler:   periods.NewHandler(logger, s.Periods),
		DocumentsHandler: documents.NewHandler(logger, s.Documents, s.Idempotency),
		InventoryHandler: inventory.NewHandler(logger, s.Stock),
		AuditHandler:     audit.NewHandler(logger, s.Audit),
		Metrics:          metrics,
	}
}
