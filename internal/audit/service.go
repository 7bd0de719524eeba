package audit

import (
	"context"
	"fmt"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Repository reads the audit_logs table.
type Repository interface {
	Window(ctx context.Context, filters TimelineFilters, limit, offset int) ([]TimelineRow, int, error)
	All(ctx context.Context, filters TimelineFilters, limit int) ([]TimelineRow, error)
}

// Service pages through the audit trail written by the ledger services.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Timeline returns one page, newest first.
func (s *Service) Timeline(ctx context.Context, filters TimelineFilters) (Result, error) {
	if s.repo == nil {
		return Result{}, fmt.Errorf("audit: repository not configured")
	}
	if err := validate(filters); err != nil {
		return Result{}, err
	}
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	rows, total, err := s.repo.Window(ctx, filters, pageSize, (page-1)*pageSize)
	if err != nil {
		return Result{}, err
	}
	if rows == nil {
		rows = []TimelineRow{}
	}
	return Result{Rows: rows, Paging: shared.NewPagination(page, pageSize, total)}, nil
}

// Export returns every matching row up to a fixed ceiling.
func (s *Service) Export(ctx context.Context, filters TimelineFilters) ([]TimelineRow, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("audit: repository not configured")
	}
	if err := validate(filters); err != nil {
		return nil, err
	}
	return s.repo.All(ctx, filters, maxExportRows)
}

func validate(filters TimelineFilters) error {
	if filters.CompanyID <= 0 {
		return shared.ErrInvalidInput.Detailf(map[string]any{"companyId": filters.CompanyID}, "company required")
	}
	if !filters.From.IsZero() && !filters.To.IsZero() && filters.To.Before(filters.From) {
		return ErrInvalidFilter.WithDetails(map[string]any{
			"from": filters.From.Format(shared.DateLayout),
			"to":   filters.To.Format(shared.DateLayout),
		})
	}
	return nil
}
