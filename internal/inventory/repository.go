package inventory

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Repository provides read access to derived stock.
type Repository interface {
	// Balances aggregates movements per (warehouse, item); an empty warehouse means all.
	Balances(ctx context.Context, companyID int64, warehouse string) ([]BalanceRow, error)
	// ItemMovements lists an item's movements in chronological order.
	ItemMovements(ctx context.Context, companyID int64, warehouse, itemCode string) ([]Movement, error)
}

const selectMovement = `SELECT id, company_id, warehouse_name, item_code, item_name, quantity, unit_cost, direction,
document_type, document_id, document_date, series, number, created_at FROM stock_movements`

const signedQuantity = `CASE WHEN direction='IN' THEN quantity ELSE -quantity END`

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns the Postgres repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) Balances(ctx context.Context, companyID int64, warehouse string) ([]BalanceRow, error) {
	rows, err := r.pool.Query(ctx, `SELECT warehouse_name, item_code, MAX(item_name), SUM(`+signedQuantity+`)
FROM stock_movements
WHERE company_id=$1 AND ($2 = '' OR warehouse_name = $2)
GROUP BY warehouse_name, item_code`, companyID, warehouse)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []BalanceRow
	for rows.Next() {
		var row BalanceRow
		if err := rows.Scan(&row.WarehouseName, &row.ItemCode, &row.ItemName, &row.Quantity); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *repository) ItemMovements(ctx context.Context, companyID int64, warehouse, itemCode string) ([]Movement, error) {
	rows, err := r.pool.Query(ctx, selectMovement+`
WHERE company_id=$1 AND warehouse_name=$2 AND item_code=$3
ORDER BY document_date, id`, companyID, warehouse, itemCode)
	if err != nil {
		return nil, err
	}
	return collectMovements(rows)
}

// MovementTx implements TxRepository on a pgx transaction.
type MovementTx struct {
	tx pgx.Tx
}

// NewMovementTx wraps tx.
func NewMovementTx(tx pgx.Tx) *MovementTx {
	return &MovementTx{tx: tx}
}

func (r *MovementTx) LockItem(ctx context.Context, companyID int64, warehouse, itemCode string) error {
	return db.LockExclusive(ctx, r.tx, shared.StockLockKey(companyID, warehouse, itemCode))
}

func (r *MovementTx) ItemBalance(ctx context.Context, companyID int64, warehouse, itemCode string) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := r.tx.QueryRow(ctx, `SELECT COALESCE(SUM(`+signedQuantity+`), 0)
FROM stock_movements WHERE company_id=$1 AND warehouse_name=$2 AND item_code=$3`, companyID, warehouse, itemCode).Scan(&balance)
	return balance, err
}

func (r *MovementTx) InsertMovements(ctx context.Context, movements []Movement) ([]Movement, error) {
	batch := &pgx.Batch{}
	for _, m := range movements {
		batch.Queue(`INSERT INTO stock_movements (company_id, warehouse_name, item_code, item_name, quantity, unit_cost, direction,
document_type, document_id, document_date, series, number)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12) RETURNING id, created_at`,
			m.CompanyID, m.WarehouseName, m.ItemCode, m.ItemName, m.Quantity, m.UnitCost, m.Direction,
			m.DocumentType, m.DocumentID, m.DocumentDate, m.Series, m.Number)
	}
	results := r.tx.SendBatch(ctx, batch)
	out := make([]Movement, 0, len(movements))
	for _, m := range movements {
		if err := results.QueryRow().Scan(&m.ID, &m.CreatedAt); err != nil {
			_ = results.Close()
			return nil, err
		}
		out = append(out, m)
	}
	return out, results.Close()
}

func (r *MovementTx) MovementsByDocument(ctx context.Context, companyID int64, documentID uuid.UUID) ([]Movement, error) {
	rows, err := r.tx.Query(ctx, selectMovement+` WHERE company_id=$1 AND document_id=$2 ORDER BY id`, companyID, documentID)
	if err != nil {
		return nil, err
	}
	return collectMovements(rows)
}

func collectMovements(rows pgx.Rows) ([]Movement, error) {
	defer rows.Close()
	var out []Movement
	for rows.Next() {
		var m Movement
		if err := rows.Scan(&m.ID, &m.CompanyID, &m.WarehouseName, &m.ItemCode, &m.ItemName, &m.Quantity, &m.UnitCost, &m.Direction,
			&m.DocumentType, &m.DocumentID, &m.DocumentDate, &m.Series, &m.Number, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
