package inventory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type memoryTx struct {
	movements []Movement
	locks     []string
	nextID    int64
}

func (m *memoryTx) LockItem(_ context.Context, companyID int64, warehouse, itemCode string) error {
	m.locks = append(m.locks, shared.StockLockKey(companyID, warehouse, itemCode))
	return nil
}

func (m *memoryTx) ItemBalance(_ context.Context, companyID int64, warehouse, itemCode string) (decimal.Decimal, error) {
	var scoped []Movement
	for _, mv := range m.movements {
		if mv.CompanyID == companyID && mv.WarehouseName == warehouse && mv.ItemCode == itemCode {
			scoped = append(scoped, mv)
		}
	}
	return Fold(scoped), nil
}

func (m *memoryTx) InsertMovements(_ context.Context, movements []Movement) ([]Movement, error) {
	out := make([]Movement, 0, len(movements))
	for _, mv := range movements {
		m.nextID++
		mv.ID = m.nextID
		m.movements = append(m.movements, mv)
		out = append(out, mv)
	}
	return out, nil
}

func (m *memoryTx) MovementsByDocument(_ context.Context, companyID int64, documentID uuid.UUID) ([]Movement, error) {
	var out []Movement
	for _, mv := range m.movements {
		if mv.CompanyID == companyID && mv.DocumentID == documentID {
			out = append(out, mv)
		}
	}
	return out, nil
}

func qty(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func movement(doc uuid.UUID, item string, q string, dir Direction) Movement {
	return Movement{
		CompanyID:     1,
		WarehouseName: "Main",
		ItemCode:      item,
		ItemName:      "Item " + item,
		Quantity:      qty(q),
		UnitCost:      qty("100"),
		Direction:     dir,
		DocumentType:  "PURCHASE",
		DocumentID:    doc,
		DocumentDate:  time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		Series:        "ER",
		Number:        "1",
	}
}

func TestFoldAndCard(t *testing.T) {
	doc := uuid.New()
	moves := []Movement{
		movement(doc, "A", "10", DirectionIn),
		movement(doc, "A", "3", DirectionOut),
		movement(doc, "A", "2.5", DirectionIn),
	}
	require.True(t, Fold(moves).Equal(qty("9.5")))
	require.True(t, Fold(nil).IsZero())

	card := BuildCard(moves)
	require.Len(t, card, 3)
	require.True(t, card[0].Balance.Equal(qty("10")))
	require.True(t, card[1].Balance.Equal(qty("7")))
	require.True(t, card[2].Balance.Equal(qty("9.5")))
}

func TestAggregateRequirements(t *testing.T) {
	reqs := AggregateRequirements([]Requirement{
		{WarehouseName: "Main", ItemCode: "B", Quantity: qty("1")},
		{WarehouseName: "Main", ItemCode: "A", Quantity: qty("2")},
		{WarehouseName: "Main", ItemCode: "B", Quantity: qty("4")},
	})
	require.Len(t, reqs, 2)
	require.Equal(t, "A", reqs[0].ItemCode)
	require.Equal(t, "B", reqs[1].ItemCode)
	require.True(t, reqs[1].Quantity.Equal(qty("5")))
}

func TestAggregateRequirementsKeepsCaseDistinctCodes(t *testing.T) {
	reqs := AggregateRequirements([]Requirement{
		{WarehouseName: "Main", ItemCode: "widget", Quantity: qty("1")},
		{WarehouseName: "Main", ItemCode: "WIDGET", Quantity: qty("1")},
	})
	require.Len(t, reqs, 2)
	require.Equal(t, "WIDGET", reqs[0].ItemCode)
	require.Equal(t, "widget", reqs[1].ItemCode)
	require.NotEqual(t, shared.StockLockKey(1, "Main", "widget"), shared.StockLockKey(1, "Main", "WIDGET"))
}

func TestReserveAvailability(t *testing.T) {
	tx := &memoryTx{}
	doc := uuid.New()
	_, err := AppendMovements(context.Background(), tx, []Movement{movement(doc, "A", "5", DirectionIn)})
	require.NoError(t, err)

	err = ReserveAvailability(context.Background(), tx, 1, []Requirement{
		{WarehouseName: "Main", ItemCode: "A", Quantity: qty("3")},
		{WarehouseName: "Main", ItemCode: "A", Quantity: qty("3")},
	})
	require.ErrorIs(t, err, ErrInsufficientStock)
	e, ok := shared.AsError(err)
	require.True(t, ok)
	require.Equal(t, "5", e.Details["available"])
	require.Equal(t, "6", e.Details["requested"])
	require.Equal(t, []string{"stock:1:MAIN:A"}, tx.locks)

	require.NoError(t, ReserveAvailability(context.Background(), tx, 1, []Requirement{
		{WarehouseName: "Main", ItemCode: "A", Quantity: qty("5")},
	}))
}

func TestAppendMovementsValidates(t *testing.T) {
	tx := &memoryTx{}
	bad := movement(uuid.New(), "A", "0", DirectionIn)
	_, err := AppendMovements(context.Background(), tx, []Movement{bad})
	require.ErrorIs(t, err, ErrInvalidMovement)

	bad = movement(uuid.New(), "A", "1", Direction("SIDEWAYS"))
	_, err = AppendMovements(context.Background(), tx, []Movement{bad})
	require.ErrorIs(t, err, ErrInvalidMovement)
	require.Empty(t, tx.movements)
}

func TestCreateReverseMovementsRestoresBalance(t *testing.T) {
	tx := &memoryTx{}
	ctx := context.Background()
	doc := uuid.New()
	other := uuid.New()
	_, err := AppendMovements(ctx, tx, []Movement{
		movement(doc, "A", "10", DirectionIn),
		movement(doc, "B", "4", DirectionIn),
		movement(other, "A", "1", DirectionIn),
	})
	require.NoError(t, err)
	before := append([]Movement(nil), tx.movements...)

	mirrors, err := CreateReverseMovements(ctx, tx, 1, doc, "PURCHASE_REVERSAL")
	require.NoError(t, err)
	require.Len(t, mirrors, 2)
	require.Equal(t, DirectionOut, mirrors[0].Direction)
	require.Equal(t, "PURCHASE_REVERSAL", mirrors[0].DocumentType)
	require.True(t, mirrors[0].Quantity.Equal(qty("10")))
	require.True(t, mirrors[0].UnitCost.Equal(qty("100")))

	// originals untouched
	require.Equal(t, before, tx.movements[:len(before)])

	balA, err := Balance(ctx, tx, 1, "Main", "A")
	require.NoError(t, err)
	require.True(t, balA.Equal(qty("1")))

	again, err := CreateReverseMovements(ctx, tx, 1, doc, "PURCHASE_REVERSAL")
	require.NoError(t, err)
	require.Len(t, again, 2, "only original movements are mirrored")
}
