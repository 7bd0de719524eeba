package inventory

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Service serves stock reports derived from the movement log.
type Service struct {
	repo   Repository
	cache  *ReportCache
	logger *slog.Logger
}

// NewService builds Service. cache may be nil.
func NewService(repo Repository, cache *ReportCache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, logger: logger}
}

// WarehouseReport lists the balances of one warehouse sorted by item code.
func (s *Service) WarehouseReport(ctx context.Context, companyID int64, warehouse string) ([]BalanceRow, error) {
	warehouse = strings.TrimSpace(warehouse)
	if warehouse == "" {
		return nil, shared.ErrInvalidInput.Detailf(nil, "warehouse required")
	}
	return s.cache.Fetch(ctx, companyID, "warehouse:"+warehouse, func(ctx context.Context) ([]BalanceRow, error) {
		rows, err := s.repo.Balances(ctx, companyID, warehouse)
		if err != nil {
			return nil, err
		}
		sortReport(rows)
		return rows, nil
	})
}

// CompanyReport lists balances of every warehouse sorted by item code then warehouse.
func (s *Service) CompanyReport(ctx context.Context, companyID int64) ([]BalanceRow, error) {
	return s.cache.Fetch(ctx, companyID, "company", func(ctx context.Context) ([]BalanceRow, error) {
		rows, err := s.repo.Balances(ctx, companyID, "")
		if err != nil {
			return nil, err
		}
		sortReport(rows)
		return rows, nil
	})
}

// StockCard lists an item's movements with the running balance.
func (s *Service) StockCard(ctx context.Context, companyID int64, warehouse, itemCode string) ([]CardLine, error) {
	warehouse, itemCode = strings.TrimSpace(warehouse), strings.TrimSpace(itemCode)
	if warehouse == "" || itemCode == "" {
		return nil, shared.ErrInvalidInput.Detailf(nil, "warehouse and item required")
	}
	movements, err := s.repo.ItemMovements(ctx, companyID, warehouse, itemCode)
	if err != nil {
		return nil, err
	}
	return BuildCard(movements), nil
}

// Invalidate drops cached reports after committed stock changes. Failures
// are logged; reports then expire through their TTL.
func (s *Service) Invalidate(ctx context.Context, companyID int64) {
	if err := s.cache.Invalidate(ctx, companyID); err != nil {
		s.logger.Warn("invalidate stock cache", slog.Int64("company_id", companyID), slog.Any("error", err))
	}
}

func sortReport(rows []BalanceRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].ItemCode != rows[j].ItemCode {
			return rows[i].ItemCode < rows[j].ItemCode
		}
		return rows[i].WarehouseName < rows[j].WarehouseName
	})
}
