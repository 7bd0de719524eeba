package periods

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// TxRepository is the period view available inside another unit of work.
type TxRepository interface {
	// PeriodForShare reads the stored row FOR SHARE; found is false for open months without a row.
	PeriodForShare(ctx context.Context, companyID int64, ym YearMonth) (period Period, found bool, err error)
}

// ManageTx is used by close and reopen.
type ManageTx interface {
	TxRepository
	LockLedgerExclusive(ctx context.Context, companyID int64) error
	SaveStatus(ctx context.Context, companyID int64, ym YearMonth, closed bool, actorID int64, at time.Time) (Period, error)
}

// Repository provides period persistence.
type Repository interface {
	List(ctx context.Context, companyID int64) ([]Period, error)
	WithTx(ctx context.Context, fn func(context.Context, ManageTx) error) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns the Postgres repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) List(ctx context.Context, companyID int64) ([]Period, error) {
	rows, err := r.pool.Query(ctx, `SELECT company_id, year, month, is_closed, closed_at, closed_by, updated_at
FROM accounting_periods WHERE company_id=$1 ORDER BY year DESC, month DESC`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Period
	for rows.Next() {
		var p Period
		if err := rows.Scan(&p.CompanyID, &p.Year, &p.Month, &p.IsClosed, &p.ClosedAt, &p.ClosedBy, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, ManageTx) error) error {
	return db.WithTxOptions(ctx, r.pool, db.ReadCommitted, func(tx pgx.Tx) error {
		return fn(ctx, &manageTx{PeriodTx: NewPeriodTx(tx), tx: tx})
	})
}

// PeriodTx implements TxRepository on a pgx transaction. Other packages embed
// it into their own transaction repositories.
type PeriodTx struct {
	tx pgx.Tx
}

// NewPeriodTx wraps tx.
func NewPeriodTx(tx pgx.Tx) *PeriodTx {
	return &PeriodTx{tx: tx}
}

func (r *PeriodTx) PeriodForShare(ctx context.Context, companyID int64, ym YearMonth) (Period, bool, error) {
	var p Period
	err := r.tx.QueryRow(ctx, `SELECT company_id, year, month, is_closed, closed_at, closed_by, updated_at
FROM accounting_periods WHERE company_id=$1 AND year=$2 AND month=$3 FOR SHARE`, companyID, ym.Year, ym.Month).
		Scan(&p.CompanyID, &p.Year, &p.Month, &p.IsClosed, &p.ClosedAt, &p.ClosedBy, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Period{}, false, nil
		}
		return Period{}, false, err
	}
	return p, true, nil
}

type manageTx struct {
	*PeriodTx
	tx pgx.Tx
}

func (r *manageTx) LockLedgerExclusive(ctx context.Context, companyID int64) error {
	return db.LockExclusive(ctx, r.tx, shared.LedgerLockKey(companyID))
}

func (r *manageTx) SaveStatus(ctx context.Context, companyID int64, ym YearMonth, closed bool, actorID int64, at time.Time) (Period, error) {
	var closedAt *time.Time
	var closedBy *int64
	if closed {
		closedAt = &at
		if actorID != 0 {
			closedBy = &actorID
		}
	}
	var p Period
	err := r.tx.QueryRow(ctx, `INSERT INTO accounting_periods (company_id, year, month, is_closed, closed_at, closed_by, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (company_id, year, month) DO UPDATE
SET is_closed=EXCLUDED.is_closed, closed_at=EXCLUDED.closed_at, closed_by=EXCLUDED.closed_by, updated_at=EXCLUDED.updated_at
RETURNING company_id, year, month, is_closed, closed_at, closed_by, updated_at`,
		companyID, ym.Year, ym.Month, closed, closedAt, closedBy, at).
		Scan(&p.CompanyID, &p.Year, &p.Month, &p.IsClosed, &p.ClosedAt, &p.ClosedBy, &p.UpdatedAt)
	if err != nil {
		return Period{}, err
	}
	return p, nil
}
