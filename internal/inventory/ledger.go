package inventory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BalanceReader derives the balance of one item.
type BalanceReader interface {
	ItemBalance(ctx context.Context, companyID int64, warehouse, itemCode string) (decimal.Decimal, error)
}

// TxRepository exposes the movement log inside a caller's transaction.
type TxRepository interface {
	BalanceReader
	// LockItem serialises availability checks of one item until the transaction ends.
	LockItem(ctx context.Context, companyID int64, warehouse, itemCode string) error
	InsertMovements(ctx context.Context, movements []Movement) ([]Movement, error)
	MovementsByDocument(ctx context.Context, companyID int64, documentID uuid.UUID) ([]Movement, error)
}

// Balance returns Σ(IN ? qty : -qty) over the item's movements.
func Balance(ctx context.Context, q BalanceReader, companyID int64, warehouse, itemCode string) (decimal.Decimal, error) {
	return q.ItemBalance(ctx, companyID, warehouse, itemCode)
}

// AggregateRequirements sums quantities per exact (warehouse, item) key, the
// key balances and movements use, and orders the
// result by warehouse then item so locks are always taken in the same order.
func AggregateRequirements(reqs []Requirement) []Requirement {
	index := make(map[string]int, len(reqs))
	out := make([]Requirement, 0, len(reqs))
	for _, r := range reqs {
		key := r.WarehouseName + "\x00" + r.ItemCode
		if i, ok := index[key]; ok {
			out[i].Quantity = out[i].Quantity.Add(r.Quantity)
			continue
		}
		index[key] = len(out)
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].WarehouseName != out[j].WarehouseName {
			return out[i].WarehouseName < out[j].WarehouseName
		}
		return out[i].ItemCode < out[j].ItemCode
	})
	return out
}

// ReserveAvailability locks every required item and fails with
// ErrInsufficientStock before anything is written when a balance is short.
// The locks are held until the caller's transaction ends.
func ReserveAvailability(ctx context.Context, tx TxRepository, companyID int64, reqs []Requirement) error {
	for _, req := range AggregateRequirements(reqs) {
		if err := tx.LockItem(ctx, companyID, req.WarehouseName, req.ItemCode); err != nil {
			return err
		}
		available, err := Balance(ctx, tx, companyID, req.WarehouseName, req.ItemCode)
		if err != nil {
			return err
		}
		if available.LessThan(req.Quantity) {
			return ErrInsufficientStock.Detailf(map[string]any{
				"item":      req.ItemCode,
				"itemName":  req.ItemName,
				"warehouse": req.WarehouseName,
				"available": available.String(),
				"requested": req.Quantity.String(),
			}, "insufficient stock for %s in %s: available %s, requested %s",
				req.ItemCode, req.WarehouseName, available.String(), req.Quantity.String())
		}
	}
	return nil
}

// AppendMovements validates and appends movements to the log.
func AppendMovements(ctx context.Context, tx TxRepository, movements []Movement) ([]Movement, error) {
	for idx, m := range movements {
		if m.CompanyID == 0 || m.WarehouseName == "" || m.ItemCode == "" || m.DocumentType == "" || m.DocumentID == uuid.Nil {
			return nil, ErrInvalidMovement.Detailf(map[string]any{"index": idx}, "movement %d is missing its item or document reference", idx)
		}
		if !m.Quantity.IsPositive() {
			return nil, ErrInvalidMovement.Detailf(map[string]any{"index": idx, "quantity": m.Quantity.String()}, "movement %d quantity must be positive", idx)
		}
		if m.UnitCost.IsNegative() {
			return nil, ErrInvalidMovement.Detailf(map[string]any{"index": idx}, "movement %d cost must not be negative", idx)
		}
		if m.Direction != DirectionIn && m.Direction != DirectionOut {
			return nil, ErrInvalidMovement.Detailf(map[string]any{"index": idx, "direction": m.Direction}, "movement %d has unknown direction", idx)
		}
	}
	if len(movements) == 0 {
		return []Movement{}, nil
	}
	return tx.InsertMovements(ctx, movements)
}

// CreateReverseMovements appends a mirror of every movement of the document
// (same quantity and cost, flipped direction) under reversalType. Movements
// already carrying reversalType are not mirrored again.
func CreateReverseMovements(ctx context.Context, tx TxRepository, companyID int64, documentID uuid.UUID, reversalType string) ([]Movement, error) {
	existing, err := tx.MovementsByDocument(ctx, companyID, documentID)
	if err != nil {
		return nil, err
	}
	mirrors := make([]Movement, 0, len(existing))
	for _, m := range existing {
		if m.DocumentType == reversalType {
			continue
		}
		mirror := m
		mirror.ID = 0
		mirror.CreatedAt = time.Time{}
		mirror.Direction = m.Direction.Flip()
		mirror.DocumentType = reversalType
		mirrors = append(mirrors, mirror)
	}
	return AppendMovements(ctx, tx, mirrors)
}
