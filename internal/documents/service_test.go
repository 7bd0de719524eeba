package documents

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/inventory"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

const (
	company     = int64(1)
	inventoryID = int64(10) // 3980
	payablesID  = int64(11) // 1600
	revenueID   = int64(12) // 8400
	receivable  = int64(13) // 1400
	inactiveID  = int64(14)
	foreignID   = int64(20)
)

type memoryAccount struct {
	companyID int64
	active    bool
}

type memoryState struct {
	accounts    map[int64]memoryAccount
	closed      map[periods.YearMonth]bool
	documents   []Document
	entries     []journals.Entry
	movements   []inventory.Movement
	nextEntry   int64
	nextLine    int64
	nextMove    int64
	ledgerLocks []string
	itemLocks   []string
}

func (s *memoryState) clone() *memoryState {
	cp := *s
	cp.closed = make(map[periods.YearMonth]bool, len(s.closed))
	for k, v := range s.closed {
		cp.closed[k] = v
	}
	cp.documents = append([]Document(nil), s.documents...)
	cp.entries = append([]journals.Entry(nil), s.entries...)
	cp.movements = append([]inventory.Movement(nil), s.movements...)
	cp.ledgerLocks = nil
	cp.itemLocks = nil
	return &cp
}

type memoryTx struct {
	state         *memoryState
	failMovements bool
	failJournal   bool
}

func (m *memoryTx) AccountsInCompany(_ context.Context, companyID int64, ids []int64) (map[int64]bool, error) {
	out := make(map[int64]bool)
	for _, id := range ids {
		if acc, ok := m.state.accounts[id]; ok && acc.companyID == companyID {
			out[id] = acc.active
		}
	}
	return out, nil
}

func (m *memoryTx) InsertJournalEntry(_ context.Context, in journals.EntryInput) (journals.Entry, error) {
	m.state.nextEntry++
	e := journals.Entry{ID: m.state.nextEntry, CompanyID: in.CompanyID, Date: in.Date, DocumentType: in.DocumentType,
		DocumentID: in.DocumentID, Source: in.Source, Memo: in.Memo, CreatedBy: in.CreatedBy}
	m.state.entries = append(m.state.entries, e)
	return e, nil
}

func (m *memoryTx) InsertJournalLines(_ context.Context, entryID int64, lines []journals.LineInput) ([]journals.Line, error) {
	if m.failJournal {
		return nil, errors.New("journal_lines unavailable")
	}
	out := make([]journals.Line, 0, len(lines))
	for i, l := range lines {
		m.state.nextLine++
		out = append(out, journals.Line{ID: m.state.nextLine, EntryID: entryID, Position: i + 1, AccountID: l.AccountID, Debit: l.Debit, Credit: l.Credit})
	}
	for i := range m.state.entries {
		if m.state.entries[i].ID == entryID {
			m.state.entries[i].Lines = out
		}
	}
	return out, nil
}

func (m *memoryTx) FindByDocument(_ context.Context, companyID int64, documentType string, documentID uuid.UUID) (journals.Entry, error) {
	for i := len(m.state.entries) - 1; i >= 0; i-- {
		e := m.state.entries[i]
		if e.CompanyID == companyID && e.DocumentType == documentType && e.DocumentID == documentID {
			return e, nil
		}
	}
	return journals.Entry{}, journals.ErrEntryNotFound
}

func (m *memoryTx) DeleteSystemEntries(_ context.Context, companyID int64, from, to time.Time) (int, error) {
	kept := make([]journals.Entry, 0, len(m.state.entries))
	deleted := 0
	for _, e := range m.state.entries {
		if e.CompanyID == companyID && e.Source == journals.SourceSystem && !e.Date.Before(from) && !e.Date.After(to) {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	m.state.entries = kept
	return deleted, nil
}

func (m *memoryTx) PeriodForShare(_ context.Context, companyID int64, ym periods.YearMonth) (periods.Period, bool, error) {
	if closed, ok := m.state.closed[ym]; ok {
		return periods.Period{CompanyID: companyID, Year: ym.Year, Month: ym.Month, IsClosed: closed}, true, nil
	}
	return periods.Period{}, false, nil
}

func (m *memoryTx) LockItem(_ context.Context, companyID int64, warehouse, itemCode string) error {
	m.state.itemLocks = append(m.state.itemLocks, shared.StockLockKey(companyID, warehouse, itemCode))
	return nil
}

func (m *memoryTx) ItemBalance(_ context.Context, companyID int64, warehouse, itemCode string) (decimal.Decimal, error) {
	var scoped []inventory.Movement
	for _, mv := range m.state.movements {
		if mv.CompanyID == companyID && mv.WarehouseName == warehouse && mv.ItemCode == itemCode {
			scoped = append(scoped, mv)
		}
	}
	return inventory.Fold(scoped), nil
}

func (m *memoryTx) InsertMovements(_ context.Context, movements []inventory.Movement) ([]inventory.Movement, error) {
	if m.failMovements {
		return nil, errors.New("stock_movements unavailable")
	}
	out := make([]inventory.Movement, 0, len(movements))
	for _, mv := range movements {
		m.state.nextMove++
		mv.ID = m.state.nextMove
		m.state.movements = append(m.state.movements, mv)
		out = append(out, mv)
	}
	return out, nil
}

func (m *memoryTx) MovementsByDocument(_ context.Context, companyID int64, documentID uuid.UUID) ([]inventory.Movement, error) {
	var out []inventory.Movement
	for _, mv := range m.state.movements {
		if mv.CompanyID == companyID && mv.DocumentID == documentID {
			out = append(out, mv)
		}
	}
	return out, nil
}

func (m *memoryTx) LockLedgerShared(_ context.Context, companyID int64) error {
	m.state.ledgerLocks = append(m.state.ledgerLocks, "shared:"+shared.LedgerLockKey(companyID))
	return nil
}

func (m *memoryTx) LockLedgerExclusive(_ context.Context, companyID int64) error {
	m.state.ledgerLocks = append(m.state.ledgerLocks, "exclusive:"+shared.LedgerLockKey(companyID))
	return nil
}

func (m *memoryTx) InsertDocument(_ context.Context, doc Document) (Document, error) {
	for _, d := range m.state.documents {
		if d.CompanyID == doc.CompanyID && d.Kind == doc.Kind && d.Series == doc.Series && d.Number == doc.Number {
			return Document{}, duplicateDocument(doc)
		}
	}
	doc.CreatedAt = time.Now()
	doc.UpdatedAt = doc.CreatedAt
	m.state.documents = append(m.state.documents, doc)
	return doc, nil
}

func (m *memoryTx) find(companyID int64, id uuid.UUID) int {
	for i, d := range m.state.documents {
		if d.ID == id && d.CompanyID == companyID {
			return i
		}
	}
	return -1
}

func (m *memoryTx) GetForUpdate(_ context.Context, companyID int64, id uuid.UUID) (Document, error) {
	if i := m.find(companyID, id); i >= 0 {
		return m.state.documents[i], nil
	}
	return Document{}, ErrDocumentNotFound
}

func (m *memoryTx) UpdatePosting(_ context.Context, id uuid.UUID, profile PostingProfile, total decimal.Decimal) error {
	for i := range m.state.documents {
		if m.state.documents[i].ID == id {
			m.state.documents[i].Profile = profile
			m.state.documents[i].TotalAmount = total
			return nil
		}
	}
	return ErrDocumentNotFound
}

func (m *memoryTx) UpdateStatus(_ context.Context, id uuid.UUID, status Status, cancelledAt *time.Time) error {
	for i := range m.state.documents {
		if m.state.documents[i].ID == id {
			m.state.documents[i].Status = status
			if cancelledAt != nil {
				m.state.documents[i].CancelledAt = cancelledAt
			}
			return nil
		}
	}
	return ErrDocumentNotFound
}

func (m *memoryTx) ListInRange(_ context.Context, companyID int64, from, to time.Time) ([]Document, error) {
	var out []Document
	for _, d := range m.state.documents {
		if d.CompanyID == companyID && !d.DocumentDate.Before(from) && !d.DocumentDate.After(to) {
			out = append(out, d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DocumentDate.Before(out[j].DocumentDate) })
	return out, nil
}

// memoryRepo commits a cloned state only when fn succeeds.
type memoryRepo struct {
	state         *memoryState
	failMovements bool
	failJournal   bool
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{state: &memoryState{
		accounts: map[int64]memoryAccount{
			inventoryID: {companyID: company, active: true},
			payablesID:  {companyID: company, active: true},
			revenueID:   {companyID: company, active: true},
			receivable:  {companyID: company, active: true},
			inactiveID:  {companyID: company, active: false},
			foreignID:   {companyID: 2, active: true},
		},
		closed: make(map[periods.YearMonth]bool),
	}}
}

func (r *memoryRepo) Get(_ context.Context, companyID int64, id uuid.UUID) (Document, error) {
	tx := &memoryTx{state: r.state}
	if i := tx.find(companyID, id); i >= 0 {
		return r.state.documents[i], nil
	}
	return Document{}, ErrDocumentNotFound
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	working := r.state.clone()
	if err := fn(ctx, &memoryTx{state: working, failMovements: r.failMovements, failJournal: r.failJournal}); err != nil {
		return err
	}
	r.state = working
	return nil
}

type recordingStock struct{ invalidated []int64 }

func (s *recordingStock) Invalidate(_ context.Context, companyID int64) {
	s.invalidated = append(s.invalidated, companyID)
}

type recordingMetrics struct {
	posted, cancelled map[string]int
	reposts, failures int
}

func (m *recordingMetrics) DocumentPosted(kind string)    { m.posted[kind]++ }
func (m *recordingMetrics) DocumentCancelled(kind string) { m.cancelled[kind]++ }
func (m *recordingMetrics) RepostCompleted(int, int)      { m.reposts++ }
func (m *recordingMetrics) RepostFailed()                 { m.failures++ }

type fixture struct {
	repo    *memoryRepo
	stock   *recordingStock
	metrics *recordingMetrics
	svc     *Service
}

func newFixture() *fixture {
	f := &fixture{
		repo:    newMemoryRepo(),
		stock:   &recordingStock{},
		metrics: &recordingMetrics{posted: map[string]int{}, cancelled: map[string]int{}},
	}
	f.svc = NewService(f.repo, f.stock, nil, f.metrics, nil, Config{RepostMaxDays: 366})
	return f
}

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func day(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

func purchase(number string, date time.Time, items ...ItemInput) PostInput {
	return PostInput{
		Kind:             KindPurchase,
		CompanyID:        company,
		ActorID:          7,
		Series:           "ER",
		Number:           number,
		DocumentDate:     date,
		CounterpartyName: "Lieferant GmbH",
		WarehouseName:    "Main",
		CurrencyCode:     "eur",
		Profile:          PostingProfile{DebitAccountID: inventoryID, CreditAccountID: payablesID},
		Items:            items,
	}
}

func sale(number string, date time.Time, items ...ItemInput) PostInput {
	in := purchase(number, date, items...)
	in.Kind = KindSale
	in.Series = "AR"
	in.Profile = PostingProfile{DebitAccountID: receivable, CreditAccountID: revenueID}
	return in
}

func item(code, quantity, price string) ItemInput {
	return ItemInput{ItemName: "Widget " + code, ItemCode: code, Quantity: dec(quantity), PriceWithoutVAT: dec(price)}
}

func balance(t *testing.T, f *fixture, code string) decimal.Decimal {
	t.Helper()
	b, err := inventory.Balance(context.Background(), &memoryTx{state: f.repo.state}, company, "Main", code)
	require.NoError(t, err)
	return b
}

func requireCode(t *testing.T, err error, sentinel *shared.Error) {
	t.Helper()
	require.Error(t, err)
	require.ErrorIs(t, err, sentinel)
}

func TestPurchaseAndCancelScenario(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	vat := dec("19")
	in := purchase("1", day(2025, 3, 14), ItemInput{ItemName: "Widget", ItemCode: "W-1", Quantity: dec("10"), PriceWithoutVAT: dec("100"), VATRate: &vat})

	posted, err := f.svc.Post(ctx, in)
	require.NoError(t, err)
	require.Equal(t, StatusDraft, posted.Document.Status)
	require.Equal(t, "EUR", posted.Document.CurrencyCode)
	require.True(t, posted.Document.TotalAmount.Equal(dec("1000.00")))
	require.Equal(t, PostingProfile{DebitAccountID: inventoryID, CreditAccountID: payablesID}, posted.Document.Profile)
	require.Len(t, posted.JournalEntry.Lines, 2)
	require.Equal(t, inventoryID, posted.JournalEntry.Lines[0].AccountID)
	require.True(t, posted.JournalEntry.Lines[0].Debit.Equal(dec("1000")))
	require.Equal(t, payablesID, posted.JournalEntry.Lines[1].AccountID)
	require.True(t, posted.JournalEntry.Lines[1].Credit.Equal(dec("1000")))
	require.Len(t, posted.Movements, 1)
	require.Equal(t, inventory.DirectionIn, posted.Movements[0].Direction)
	require.True(t, posted.Movements[0].Quantity.Equal(dec("10")))
	require.True(t, balance(t, f, "W-1").Equal(dec("10")))

	stored := f.repo.state.documents[0]
	require.True(t, stored.TotalAmount.Equal(dec("1000")))
	require.Equal(t, inventoryID, stored.Profile.DebitAccountID)

	cancelled, err := f.svc.Cancel(ctx, company, 7, posted.Document.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, cancelled.Document.Status)
	require.NotNil(t, cancelled.Document.CancelledAt)
	require.Equal(t, 2, cancelled.Reversal.LinesCount)
	require.Equal(t, 1, cancelled.MovementsReversed)

	reversal := f.repo.state.entries[1]
	require.Equal(t, "PURCHASE_REVERSAL", reversal.DocumentType)
	require.Equal(t, posted.Document.ID, reversal.DocumentID)
	require.True(t, reversal.Date.Equal(day(2025, 3, 14)))
	net := map[int64]decimal.Decimal{}
	for _, e := range f.repo.state.entries {
		for _, l := range e.Lines {
			net[l.AccountID] = net[l.AccountID].Add(l.Debit).Sub(l.Credit)
		}
	}
	for account, amount := range net {
		require.True(t, amount.IsZero(), "account %d nets to %s", account, amount)
	}
	for _, l := range reversal.Lines {
		if l.AccountID == payablesID {
			require.True(t, l.Debit.Equal(dec("1000")))
		} else {
			require.True(t, l.Credit.Equal(dec("1000")))
		}
	}

	require.Len(t, f.repo.state.movements, 2)
	require.Equal(t, inventory.DirectionIn, f.repo.state.movements[0].Direction)
	require.Equal(t, "PURCHASE", f.repo.state.movements[0].DocumentType)
	require.Equal(t, inventory.DirectionOut, f.repo.state.movements[1].Direction)
	require.Equal(t, "PURCHASE_REVERSAL", f.repo.state.movements[1].DocumentType)
	require.True(t, balance(t, f, "W-1").IsZero())

	require.Equal(t, []int64{company, company}, f.stock.invalidated)
	require.Equal(t, 1, f.metrics.posted["PURCHASE"])
	require.Equal(t, 1, f.metrics.cancelled["PURCHASE"])

	_, err = f.svc.Cancel(ctx, company, 7, posted.Document.ID)
	requireCode(t, err, ErrAlreadyCancelled)
	require.Len(t, f.repo.state.entries, 2)
}

func TestClosedFebruaryRejectsPostCancelAndRepost(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	posted, err := f.svc.Post(ctx, purchase("1", day(2025, 2, 10), item("W-1", "5", "20")))
	require.NoError(t, err)
	f.repo.state.closed[periods.YearMonth{Year: 2025, Month: 2}] = true
	entriesBefore := len(f.repo.state.entries)

	_, err = f.svc.Post(ctx, purchase("2", day(2025, 2, 28), item("W-1", "1", "20")))
	requireCode(t, err, periods.ErrPeriodClosed)
	_, err = f.svc.Post(ctx, sale("1", day(2025, 2, 1), item("W-1", "1", "30")))
	requireCode(t, err, periods.ErrPeriodClosed)

	_, err = f.svc.Cancel(ctx, company, 7, posted.Document.ID)
	requireCode(t, err, periods.ErrPeriodClosed)

	_, err = f.svc.Repost(ctx, RepostInput{CompanyID: company, From: day(2025, 1, 15), To: day(2025, 3, 15)})
	requireCode(t, err, periods.ErrPeriodClosed)
	require.Equal(t, 1, f.metrics.failures)

	require.Len(t, f.repo.state.documents, 1)
	require.Equal(t, StatusDraft, f.repo.state.documents[0].Status)
	require.Len(t, f.repo.state.entries, entriesBefore)

	_, err = f.svc.Post(ctx, purchase("3", day(2025, 3, 1), item("W-1", "1", "20")))
	require.NoError(t, err)
}

func TestSaleRequiresAvailableStock(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.Post(ctx, sale("1", day(2025, 3, 1), item("W-1", "1", "50")))
	requireCode(t, err, inventory.ErrInsufficientStock)
	require.Empty(t, f.repo.state.documents)
	require.Empty(t, f.repo.state.entries)

	_, err = f.svc.Post(ctx, purchase("1", day(2025, 3, 1), item("W-1", "10", "20")))
	require.NoError(t, err)

	_, err = f.svc.Post(ctx, sale("2", day(2025, 3, 2), item("W-1", "6", "50"), item("W-1", "5", "50")))
	requireCode(t, err, inventory.ErrInsufficientStock)
	e, ok := shared.AsError(err)
	require.True(t, ok)
	require.Equal(t, "11", e.Details["requested"])
	require.Equal(t, "10", e.Details["available"])

	res, err := f.svc.Post(ctx, sale("3", day(2025, 3, 2), item("W-1", "6", "50")))
	require.NoError(t, err)
	require.Equal(t, inventory.DirectionOut, res.Movements[0].Direction)
	require.True(t, res.Document.TotalAmount.Equal(dec("300")))
	require.Equal(t, receivable, res.JournalEntry.Lines[0].AccountID)
	require.True(t, balance(t, f, "W-1").Equal(dec("4")))
}

func TestPostIsAtomic(t *testing.T) {
	cases := []struct {
		name string
		fail func(*memoryRepo)
	}{
		{"movement insert fails", func(r *memoryRepo) { r.failMovements = true }},
		{"journal lines fail", func(r *memoryRepo) { r.failJournal = true }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			tc.fail(f.repo)
			_, err := f.svc.Post(context.Background(), purchase("1", day(2025, 3, 1), item("W-1", "10", "20")))
			require.Error(t, err)
			require.Empty(t, f.repo.state.documents)
			require.Empty(t, f.repo.state.entries)
			require.Empty(t, f.repo.state.movements)
			require.Empty(t, f.stock.invalidated)
			require.Zero(t, f.metrics.posted["PURCHASE"])
		})
	}
}

func TestSaleChecksEveryItemCodeExactly(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_, err := f.svc.Post(ctx, purchase("1", day(2025, 3, 1), item("widget", "10", "20")))
	require.NoError(t, err)

	_, err = f.svc.Post(ctx, sale("1", day(2025, 3, 2), item("widget", "1", "50"), item("WIDGET", "1", "50")))
	requireCode(t, err, inventory.ErrInsufficientStock)
	e, ok := shared.AsError(err)
	require.True(t, ok)
	require.Equal(t, "WIDGET", e.Details["item"])
	require.Equal(t, "0", e.Details["available"])
	require.Len(t, f.repo.state.documents, 1)
	require.True(t, balance(t, f, "widget").Equal(dec("10")))
	require.True(t, balance(t, f, "WIDGET").IsZero())

	_, err = f.svc.Post(ctx, sale("2", day(2025, 3, 2), item("widget", "4", "50"), item("widget", "6", "50")))
	require.NoError(t, err)
	require.True(t, balance(t, f, "widget").IsZero())
}

func TestPostValidation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	cases := []struct {
		name   string
		mutate func(*PostInput)
		want   *shared.Error
	}{
		{"no items", func(in *PostInput) { in.Items = nil }, ErrInvalidDocument},
		{"missing series", func(in *PostInput) { in.Series = " " }, ErrInvalidDocument},
		{"zero quantity", func(in *PostInput) { in.Items[0].Quantity = decimal.Zero }, ErrInvalidDocument},
		{"negative price", func(in *PostInput) { in.Items[0].PriceWithoutVAT = dec("-1") }, ErrInvalidDocument},
		{"bad currency", func(in *PostInput) { in.CurrencyCode = "EURO" }, ErrInvalidDocument},
		{"missing profile", func(in *PostInput) { in.Profile.CreditAccountID = 0 }, ErrInvalidProfile},
		{"same accounts", func(in *PostInput) { in.Profile.CreditAccountID = inventoryID }, ErrInvalidProfile},
		{"inactive account", func(in *PostInput) { in.Profile.CreditAccountID = inactiveID }, ErrAccountInactive},
		{"foreign account", func(in *PostInput) { in.Profile.DebitAccountID = foreignID }, accounts.ErrAccountNotFound},
		{"zero total", func(in *PostInput) { in.Items[0].PriceWithoutVAT = decimal.Zero }, ErrNonPositiveTotal},
		{"price beyond column scale", func(in *PostInput) {
			in.Items[0].Quantity = dec("1000")
			in.Items[0].PriceWithoutVAT = dec("0.00005")
		}, ErrInvalidDocument},
		{"quantity beyond column scale", func(in *PostInput) { in.Items[0].Quantity = dec("1.00001") }, ErrInvalidDocument},
		{"quantity too large", func(in *PostInput) { in.Items[0].Quantity = dec("100000000000000") }, ErrInvalidDocument},
		{"vat rate overflow", func(in *PostInput) { v := dec("1000"); in.Items[0].VATRate = &v }, ErrInvalidDocument},
		{"vat rate beyond scale", func(in *PostInput) { v := dec("19.001"); in.Items[0].VATRate = &v }, ErrInvalidDocument},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := purchase("1", day(2025, 3, 1), item("W-1", "2", "10"))
			tc.mutate(&in)
			_, err := f.svc.Post(ctx, in)
			requireCode(t, err, tc.want)
		})
	}
	require.Empty(t, f.repo.state.documents)
}

func TestTotalRoundsToCents(t *testing.T) {
	items := []Item{
		{Quantity: dec("3"), PriceWithoutVAT: dec("0.333")},
		{Quantity: dec("1.5"), PriceWithoutVAT: dec("2.005")},
	}
	require.Equal(t, "4.01", Total(items).StringFixed(2))
}

func TestDuplicateDocumentNumber(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_, err := f.svc.Post(ctx, purchase("42", day(2025, 3, 1), item("W-1", "1", "10")))
	require.NoError(t, err)
	_, err = f.svc.Post(ctx, purchase("42", day(2025, 3, 2), item("W-1", "1", "10")))
	requireCode(t, err, ErrDuplicateDocument)
	require.Len(t, f.repo.state.documents, 1)
	require.Len(t, f.repo.state.entries, 1)
}

func TestItemsWithoutCodeUseName(t *testing.T) {
	f := newFixture()
	res, err := f.svc.Post(context.Background(), purchase("1", day(2025, 3, 1),
		ItemInput{ItemName: "Schrauben", Quantity: dec("100"), PriceWithoutVAT: dec("0.10")}))
	require.NoError(t, err)
	require.Equal(t, "Schrauben", res.Movements[0].ItemCode)
	require.True(t, balance(t, f, "Schrauben").Equal(dec("100")))
}

func TestLockTransitions(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	posted, err := f.svc.Post(ctx, purchase("1", day(2025, 3, 1), item("W-1", "1", "10")))
	require.NoError(t, err)

	locked, err := f.svc.Lock(ctx, company, 7, posted.Document.ID)
	require.NoError(t, err)
	require.Equal(t, StatusLocked, locked.Status)

	_, err = f.svc.Cancel(ctx, company, 7, posted.Document.ID)
	requireCode(t, err, ErrDocumentLocked)
	_, err = f.svc.Lock(ctx, company, 7, posted.Document.ID)
	requireCode(t, err, ErrDocumentLocked)
	require.Len(t, f.repo.state.entries, 1)

	_, err = f.svc.Cancel(ctx, company, 7, uuid.New())
	requireCode(t, err, ErrDocumentNotFound)
	_, err = f.svc.Cancel(ctx, 2, 7, posted.Document.ID)
	requireCode(t, err, ErrDocumentNotFound)
}

func TestCancelRequiresOriginalEntry(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	posted, err := f.svc.Post(ctx, purchase("1", day(2025, 3, 1), item("W-1", "1", "10")))
	require.NoError(t, err)

	f.repo.state.entries[0].Lines = nil
	_, err = f.svc.Cancel(ctx, company, 7, posted.Document.ID)
	requireCode(t, err, journals.ErrLinesEmpty)

	f.repo.state.entries = nil
	_, err = f.svc.Cancel(ctx, company, 7, posted.Document.ID)
	requireCode(t, err, journals.ErrEntryNotFound)
	require.Equal(t, StatusDraft, f.repo.state.documents[0].Status)
}

type ledgerTuple struct {
	account      int64
	debit        string
	credit       string
	date         string
	documentType string
}

func ledgerTuples(entries []journals.Entry) []ledgerTuple {
	var out []ledgerTuple
	for _, e := range entries {
		for _, l := range e.Lines {
			out = append(out, ledgerTuple{l.AccountID, l.Debit.StringFixed(2), l.Credit.StringFixed(2), e.Date.Format(shared.DateLayout), e.DocumentType})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.date != b.date {
			return a.date < b.date
		}
		if a.documentType != b.documentType {
			return a.documentType < b.documentType
		}
		if a.account != b.account {
			return a.account < b.account
		}
		return a.debit < b.debit
	})
	return out
}

func TestRepostRebuildsSystemEntriesIdempotently(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_, err := f.svc.Post(ctx, purchase("1", day(2025, 3, 1), item("W-1", "10", "100")))
	require.NoError(t, err)
	sold, err := f.svc.Post(ctx, sale("1", day(2025, 3, 5), item("W-1", "2", "150")))
	require.NoError(t, err)
	_, err = f.svc.Cancel(ctx, company, 7, sold.Document.ID)
	require.NoError(t, err)
	_, err = f.svc.Post(ctx, purchase("2", day(2025, 4, 2), item("W-1", "1", "100")))
	require.NoError(t, err)

	manual := journals.Entry{ID: 900, CompanyID: company, Date: day(2025, 3, 10), DocumentType: journals.DocumentTypeManual,
		DocumentID: uuid.New(), Source: journals.SourceManual, Lines: []journals.Line{
			{AccountID: inventoryID, Debit: dec("5"), Credit: decimal.Zero},
			{AccountID: payablesID, Debit: decimal.Zero, Credit: dec("5")},
		}}
	f.repo.state.entries = append(f.repo.state.entries, manual)
	before := ledgerTuples(f.repo.state.entries)
	movementsBefore := append([]inventory.Movement(nil), f.repo.state.movements...)

	in := RepostInput{CompanyID: company, ActorID: 7, From: day(2025, 3, 1), To: day(2025, 3, 31)}
	first, err := f.svc.Repost(ctx, in)
	require.NoError(t, err)
	require.Equal(t, 3, first.DeletedEntries)
	require.Equal(t, 3, first.RecreatedEntries)
	require.Equal(t, ProcessedCounts{Sales: 1, Purchases: 1, CancelledSales: 1}, first.DocumentsProcessed)
	require.Equal(t, before, ledgerTuples(f.repo.state.entries))

	second, err := f.svc.Repost(ctx, in)
	require.NoError(t, err)
	require.Equal(t, first.DeletedEntries, second.DeletedEntries)
	require.Equal(t, first.RecreatedEntries, second.RecreatedEntries)
	require.Equal(t, before, ledgerTuples(f.repo.state.entries))
	require.Equal(t, movementsBefore, f.repo.state.movements)
	require.Equal(t, 2, f.metrics.reposts)

	var kept bool
	for _, e := range f.repo.state.entries {
		if e.ID == manual.ID {
			kept = true
		}
	}
	require.True(t, kept, "manual entry must survive repost")
}

func TestRepostAbortsOnMissingProfile(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_, err := f.svc.Post(ctx, purchase("1", day(2025, 3, 1), item("W-1", "1", "10")))
	require.NoError(t, err)
	f.repo.state.documents = append(f.repo.state.documents, Document{
		ID: uuid.New(), CompanyID: company, Kind: KindPurchase, Series: "ER", Number: "legacy",
		DocumentDate: day(2025, 3, 20), WarehouseName: "Main", Status: StatusDraft,
		Items: []Item{{Position: 1, ItemName: "W", ItemCode: "W-1", Quantity: dec("1"), PriceWithoutVAT: dec("1")}},
	})
	entries := len(f.repo.state.entries)

	_, err = f.svc.Repost(ctx, RepostInput{CompanyID: company, From: day(2025, 3, 1), To: day(2025, 3, 31)})
	requireCode(t, err, ErrMissingPostingProfile)
	require.Len(t, f.repo.state.entries, entries)
}

func TestRepostRangeValidation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_, err := f.svc.Repost(ctx, RepostInput{CompanyID: company, From: day(2025, 3, 2), To: day(2025, 3, 1)})
	requireCode(t, err, ErrInvalidRange)
	_, err = f.svc.Repost(ctx, RepostInput{CompanyID: company, From: day(2024, 1, 1), To: day(2025, 3, 1)})
	requireCode(t, err, ErrInvalidRange)
	_, err = f.svc.Repost(ctx, RepostInput{CompanyID: company, To: day(2025, 3, 1)})
	requireCode(t, err, ErrInvalidRange)

	res, err := f.svc.Repost(ctx, RepostInput{CompanyID: company, From: day(2025, 3, 1), To: day(2025, 3, 1)})
	require.NoError(t, err)
	require.Zero(t, res.DeletedEntries)
	require.Equal(t, []string{"exclusive:" + shared.LedgerLockKey(company)}, f.repo.state.ledgerLocks)
}

func TestStatusTransitionTable(t *testing.T) {
	require.True(t, statusTransitions.Allows(StatusDraft, StatusCancelled))
	require.True(t, statusTransitions.Allows(StatusDraft, StatusLocked))
	require.False(t, statusTransitions.Allows(StatusLocked, StatusDraft))
	require.True(t, statusTransitions.Terminal(StatusCancelled))
	require.True(t, statusTransitions.Terminal(StatusLocked))
}
