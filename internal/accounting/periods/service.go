package periods

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// AssertPeriodOpen fails with ErrPeriodClosed when date falls in a closed month.
// It runs inside the caller's unit of work.
func AssertPeriodOpen(ctx context.Context, tx TxRepository, companyID int64, date time.Time) error {
	ym := Of(date)
	p, found, err := tx.PeriodForShare(ctx, companyID, ym)
	if err != nil {
		return err
	}
	if found && p.IsClosed {
		return ErrPeriodClosed.Detailf(map[string]any{
			"year":  ym.Year,
			"month": ym.Month,
		}, "accounting period %04d-%02d is closed", ym.Year, ym.Month)
	}
	return nil
}

// AssertRangeOpen requires every month overlapping [from, to] to be open.
func AssertRangeOpen(ctx context.Context, tx TxRepository, companyID int64, from, to time.Time) error {
	for _, ym := range Span(from, to) {
		if err := AssertPeriodOpen(ctx, tx, companyID, time.Date(ym.Year, time.Month(ym.Month), 1, 0, 0, 0, 0, time.UTC)); err != nil {
			return err
		}
	}
	return nil
}

// Service manages period close state.
type Service struct {
	repo   Repository
	audit  shared.AuditPort
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds the period service. audit may be nil.
func NewService(repo Repository, audit shared.AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger, now: time.Now}
}

// WithNow overrides the clock.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// List returns the stored periods, newest first.
func (s *Service) List(ctx context.Context, companyID int64) ([]Period, error) {
	return s.repo.List(ctx, companyID)
}

// Close marks a month closed. Closing an already closed month is a no-op.
func (s *Service) Close(ctx context.Context, companyID int64, ym YearMonth, actorID int64) (Period, error) {
	return s.setClosed(ctx, companyID, ym, actorID, true)
}

// Reopen marks a month open again.
func (s *Service) Reopen(ctx context.Context, companyID int64, ym YearMonth, actorID int64) (Period, error) {
	return s.setClosed(ctx, companyID, ym, actorID, false)
}

func (s *Service) setClosed(ctx context.Context, companyID int64, ym YearMonth, actorID int64, closed bool) (Period, error) {
	if !ym.Valid() {
		return Period{}, ErrInvalidPeriod.Detailf(map[string]any{"year": ym.Year, "month": ym.Month},
			"invalid accounting period %d-%d", ym.Year, ym.Month)
	}
	var result Period
	var changed bool
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx ManageTx) error {
		// Exclusive ledger lock waits for in-flight postings holding it shared.
		if err := tx.LockLedgerExclusive(ctx, companyID); err != nil {
			return err
		}
		current, found, err := tx.PeriodForShare(ctx, companyID, ym)
		if err != nil {
			return err
		}
		if found && current.IsClosed == closed {
			result = current
			return nil
		}
		if !found && !closed {
			result = Period{CompanyID: companyID, Year: ym.Year, Month: ym.Month}
			return nil
		}
		result, err = tx.SaveStatus(ctx, companyID, ym, closed, actorID, s.now())
		changed = err == nil
		return err
	})
	if err != nil {
		return Period{}, err
	}
	if changed {
		s.record(ctx, companyID, actorID, ym, closed)
	}
	return result, nil
}

func (s *Service) record(ctx context.Context, companyID, actorID int64, ym YearMonth, closed bool) {
	action := "period.reopen"
	if closed {
		action = "period.close"
	}
	s.logger.Info(action, slog.Int64("company_id", companyID), slog.Int("year", ym.Year), slog.Int("month", ym.Month))
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		CompanyID: companyID,
		ActorID:   actorID,
		Action:    action,
		Entity:    "accounting_period",
		EntityID:  fmt.Sprintf("%04d-%02d", ym.Year, ym.Month),
		At:        s.now(),
	}); err != nil {
		s.logger.Warn("audit period change", slog.Any("error", err))
	}
}
