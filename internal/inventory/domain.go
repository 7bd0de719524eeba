package inventory

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Direction of a stock movement.
type Direction string

const (
	DirectionIn  Direction = "IN"
	DirectionOut Direction = "OUT"
)

// Flip returns the opposite direction.
func (d Direction) Flip() Direction {
	if d == DirectionIn {
		return DirectionOut
	}
	return DirectionIn
}

// Movement is one append-only stock log record. Quantities are always
// positive; Direction carries the sign.
type Movement struct {
	ID            int64           `json:"id"`
	CompanyID     int64           `json:"companyId"`
	WarehouseName string          `json:"warehouseName"`
	ItemCode      string          `json:"itemCode"`
	ItemName      string          `json:"itemName"`
	Quantity      decimal.Decimal `json:"quantity"`
	UnitCost      decimal.Decimal `json:"unitCost"`
	Direction     Direction       `json:"direction"`
	DocumentType  string          `json:"documentType"`
	DocumentID    uuid.UUID       `json:"documentId"`
	DocumentDate  time.Time       `json:"documentDate"`
	Series        string          `json:"series"`
	Number        string          `json:"number"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// Signed returns the quantity with the sign of the direction.
func (m Movement) Signed() decimal.Decimal {
	if m.Direction == DirectionOut {
		return m.Quantity.Neg()
	}
	return m.Quantity
}

// Fold derives a balance from movements.
func Fold(movements []Movement) decimal.Decimal {
	total := decimal.Zero
	for _, m := range movements {
		total = total.Add(m.Signed())
	}
	return total
}

// BalanceRow is the derived balance of one item in one warehouse.
type BalanceRow struct {
	WarehouseName string          `json:"warehouseName"`
	ItemCode      string          `json:"itemCode"`
	ItemName      string          `json:"itemName"`
	Quantity      decimal.Decimal `json:"quantity"`
}

// CardLine is a movement with the running balance after it.
type CardLine struct {
	Movement
	Balance decimal.Decimal `json:"balance"`
}

// BuildCard computes running balances over chronologically ordered movements.
func BuildCard(movements []Movement) []CardLine {
	out := make([]CardLine, 0, len(movements))
	running := decimal.Zero
	for _, m := range movements {
		running = running.Add(m.Signed())
		out = append(out, CardLine{Movement: m, Balance: running})
	}
	return out
}

// Requirement is the quantity of an item a sale takes out of a warehouse.
type Requirement struct {
	WarehouseName string
	ItemCode      string
	ItemName      string
	Quantity      decimal.Decimal
}

var (
	ErrInvalidMovement   = shared.NewError(shared.KindValidation, "INVALID_MOVEMENT", "invalid stock movement")
	ErrInsufficientStock = shared.NewError(shared.KindConflict, "INSUFFICIENT_STOCK", "insufficient stock")
)
