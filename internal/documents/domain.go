package documents

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/inventory"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Kind discriminates sales from purchases.
type Kind string

const (
	KindSale     Kind = "SALE"
	KindPurchase Kind = "PURCHASE"
)

// Valid reports whether k is known.
func (k Kind) Valid() bool {
	return k == KindSale || k == KindPurchase
}

// DocumentType is the journal and movement document type of the kind.
func (k Kind) DocumentType() string {
	return string(k)
}

// ReversalType is the document type of the kind's STORNO records.
func (k Kind) ReversalType() string {
	return journals.ReversalType(string(k))
}

// Direction is the stock direction the kind books.
func (k Kind) Direction() inventory.Direction {
	if k == KindSale {
		return inventory.DirectionOut
	}
	return inventory.DirectionIn
}

// Status of a posted document.
type Status string

const (
	// StatusDraft is a posted document that can still be cancelled.
	StatusDraft     Status = "DRAFT"
	StatusCancelled Status = "CANCELLED"
	// StatusLocked is a document frozen by Festschreibung.
	StatusLocked Status = "LOCKED"
)

// statusTransitions lists every allowed status change.
var statusTransitions = shared.TransitionTable[Status]{
	StatusDraft: {StatusCancelled, StatusLocked},
}

// PostingProfile names the accounts a document books against. It is chosen
// explicitly by the caller and never inferred.
type PostingProfile struct {
	DebitAccountID  int64 `json:"debitAccountId"`
	CreditAccountID int64 `json:"creditAccountId"`
}

// Complete reports whether both accounts are set.
func (p PostingProfile) Complete() bool {
	return p.DebitAccountID != 0 && p.CreditAccountID != 0
}

// Lines builds the two journal lines booking total on the profile.
func (p PostingProfile) Lines(total decimal.Decimal) []journals.LineInput {
	return []journals.LineInput{
		{AccountID: p.DebitAccountID, Debit: total, Credit: decimal.Zero},
		{AccountID: p.CreditAccountID, Debit: decimal.Zero, Credit: total},
	}
}

// Item is one document line.
type Item struct {
	Position        int                 `json:"position"`
	ItemName        string              `json:"itemName"`
	ItemCode        string              `json:"itemCode,omitempty"`
	Quantity        decimal.Decimal     `json:"quantity"`
	PriceWithoutVAT decimal.Decimal     `json:"priceWithoutVat"`
	VATRate         decimal.NullDecimal `json:"vatRate"`
}

// StockCode is the key the item is tracked under; items without a code use their name.
func (i Item) StockCode() string {
	if code := strings.TrimSpace(i.ItemCode); code != "" {
		return code
	}
	return strings.TrimSpace(i.ItemName)
}

// Amount is quantity times net price.
func (i Item) Amount() decimal.Decimal {
	return i.Quantity.Mul(i.PriceWithoutVAT)
}

// Document is a posted sale or purchase.
type Document struct {
	ID               uuid.UUID       `json:"id"`
	CompanyID        int64           `json:"companyId"`
	Kind             Kind            `json:"kind"`
	Series           string          `json:"series"`
	Number           string          `json:"number"`
	DocumentDate     time.Time       `json:"documentDate"`
	CounterpartyName string          `json:"counterpartyName"`
	WarehouseName    string          `json:"warehouseName"`
	OperationType    string          `json:"operationType,omitempty"`
	CurrencyCode     string          `json:"currencyCode"`
	Status           Status          `json:"status"`
	Profile          PostingProfile  `json:"postingProfile"`
	TotalAmount      decimal.Decimal `json:"totalAmount"`
	CancelledAt      *time.Time      `json:"cancelledAt,omitempty"`
	CreatedBy        int64           `json:"createdBy,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
	Items            []Item          `json:"items"`
}

// Total is round2(Σ quantity × priceWithoutVat). VAT is not part of the posting.
func Total(items []Item) decimal.Decimal {
	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(item.Amount())
	}
	return sum.Round(2)
}

// Requirements lists the stock the document's items take out of its warehouse.
func (d Document) Requirements() []inventory.Requirement {
	out := make([]inventory.Requirement, 0, len(d.Items))
	for _, item := range d.Items {
		out = append(out, inventory.Requirement{
			WarehouseName: d.WarehouseName,
			ItemCode:      item.StockCode(),
			ItemName:      item.ItemName,
			Quantity:      item.Quantity,
		})
	}
	return out
}

// Movements builds one stock movement per item.
func (d Document) Movements() []inventory.Movement {
	out := make([]inventory.Movement, 0, len(d.Items))
	for _, item := range d.Items {
		out = append(out, inventory.Movement{
			CompanyID:     d.CompanyID,
			WarehouseName: d.WarehouseName,
			ItemCode:      item.StockCode(),
			ItemName:      item.ItemName,
			Quantity:      item.Quantity,
			UnitCost:      item.PriceWithoutVAT,
			Direction:     d.Kind.Direction(),
			DocumentType:  d.Kind.DocumentType(),
			DocumentID:    d.ID,
			DocumentDate:  d.DocumentDate,
			Series:        d.Series,
			Number:        d.Number,
		})
	}
	return out
}

// PostInput is the request to post a document.
type PostInput struct {
	Kind             Kind
	CompanyID        int64
	ActorID          int64
	Series           string
	Number           string
	DocumentDate     time.Time
	CounterpartyName string
	WarehouseName    string
	OperationType    string
	CurrencyCode     string
	Profile          PostingProfile
	Items            []ItemInput
}

// ItemInput is one requested document line.
type ItemInput struct {
	ItemName        string
	ItemCode        string
	Quantity        decimal.Decimal
	PriceWithoutVAT decimal.Decimal
	VATRate         *decimal.Decimal
}

func (in *PostInput) normalise() {
	in.Series = strings.TrimSpace(in.Series)
	in.Number = strings.TrimSpace(in.Number)
	in.WarehouseName = strings.TrimSpace(in.WarehouseName)
	in.CounterpartyName = strings.TrimSpace(in.CounterpartyName)
	in.OperationType = strings.TrimSpace(in.OperationType)
	in.CurrencyCode = strings.ToUpper(strings.TrimSpace(in.CurrencyCode))
	in.DocumentDate = shared.DateOnly(in.DocumentDate)
	for i := range in.Items {
		in.Items[i].ItemName = strings.TrimSpace(in.Items[i].ItemName)
		in.Items[i].ItemCode = strings.TrimSpace(in.Items[i].ItemCode)
	}
}

// Item columns are NUMERIC(18,4) and vat_rate is NUMERIC(5,2). Values are
// rejected rather than rounded so that repost computes the same total as Post.
const (
	itemScale = 4
	vatScale  = 2
)

var (
	maxItemValue = decimal.New(1, 14)
	maxVATRate   = decimal.New(1, 3)
)

// fitsColumn reports whether v has at most scale decimals and |v| < limit.
func fitsColumn(v decimal.Decimal, scale int32, limit decimal.Decimal) bool {
	return v.Equal(v.Truncate(scale)) && v.Abs().LessThan(limit)
}

// Validate checks the request before any lock is taken.
func (in PostInput) Validate() error {
	fail := func(field, msg string) error {
		return ErrInvalidDocument.Detailf(map[string]any{"field": field}, "%s", msg)
	}
	switch {
	case !in.Kind.Valid():
		return fail("kind", "document kind must be SALE or PURCHASE")
	case in.CompanyID == 0:
		return fail("companyId", "company required")
	case in.DocumentDate.IsZero():
		return fail("documentDate", "document date required")
	case in.Series == "":
		return fail("series", "series required")
	case in.Number == "":
		return fail("number", "number required")
	case in.WarehouseName == "":
		return fail("warehouseName", "warehouse required")
	case len(in.Items) == 0:
		return fail("items", "at least one item required")
	}
	if _, err := currency.ParseISO(in.CurrencyCode); err != nil || len(in.CurrencyCode) != 3 {
		return fail("currencyCode", "currency must be an ISO-4217 code")
	}
	if !in.Profile.Complete() {
		return ErrInvalidProfile.Detailf(map[string]any{
			"debitAccountId":  in.Profile.DebitAccountID,
			"creditAccountId": in.Profile.CreditAccountID,
		}, "posting profile requires debit and credit accounts")
	}
	if in.Profile.DebitAccountID == in.Profile.CreditAccountID {
		return ErrInvalidProfile.Detailf(map[string]any{"accountId": in.Profile.DebitAccountID},
			"posting profile debit and credit accounts must differ")
	}
	for idx, item := range in.Items {
		details := map[string]any{"item": idx}
		if item.ItemName == "" && item.ItemCode == "" {
			return ErrInvalidDocument.Detailf(details, "item %d requires a name or code", idx)
		}
		if !item.Quantity.IsPositive() {
			return ErrInvalidDocument.Detailf(details, "item %d quantity must be positive", idx)
		}
		if item.PriceWithoutVAT.IsNegative() {
			return ErrInvalidDocument.Detailf(details, "item %d price must not be negative", idx)
		}
		if !fitsColumn(item.Quantity, itemScale, maxItemValue) {
			return ErrInvalidDocument.Detailf(details, "item %d quantity allows at most %d decimals and must stay below %s", idx, itemScale, maxItemValue)
		}
		if !fitsColumn(item.PriceWithoutVAT, itemScale, maxItemValue) {
			return ErrInvalidDocument.Detailf(details, "item %d price allows at most %d decimals and must stay below %s", idx, itemScale, maxItemValue)
		}
		if item.VATRate != nil && item.VATRate.IsNegative() {
			return ErrInvalidDocument.Detailf(details, "item %d VAT rate must not be negative", idx)
		}
		if item.VATRate != nil && !fitsColumn(*item.VATRate, vatScale, maxVATRate) {
			return ErrInvalidDocument.Detailf(details, "item %d VAT rate allows at most %d decimals and must stay below %s", idx, vatScale, maxVATRate)
		}
	}
	return nil
}

// document builds the header and items to insert.
func (in PostInput) document(id uuid.UUID) Document {
	doc := Document{
		ID:               id,
		CompanyID:        in.CompanyID,
		Kind:             in.Kind,
		Series:           in.Series,
		Number:           in.Number,
		DocumentDate:     in.DocumentDate,
		CounterpartyName: in.CounterpartyName,
		WarehouseName:    in.WarehouseName,
		OperationType:    in.OperationType,
		CurrencyCode:     in.CurrencyCode,
		Status:           StatusDraft,
		TotalAmount:      decimal.Zero,
		CreatedBy:        in.ActorID,
		Items:            make([]Item, 0, len(in.Items)),
	}
	for idx, item := range in.Items {
		stored := Item{
			Position:        idx + 1,
			ItemName:        item.ItemName,
			ItemCode:        item.ItemCode,
			Quantity:        item.Quantity,
			PriceWithoutVAT: item.PriceWithoutVAT,
		}
		if stored.ItemName == "" {
			stored.ItemName = item.ItemCode
		}
		if item.VATRate != nil {
			stored.VATRate = decimal.NullDecimal{Decimal: *item.VATRate, Valid: true}
		}
		doc.Items = append(doc.Items, stored)
	}
	return doc
}

// PostResult is returned by Post.
type PostResult struct {
	Document     Document             `json:"document"`
	JournalEntry journals.Entry       `json:"journalEntry"`
	Movements    []inventory.Movement `json:"movements"`
}

// ReversalSummary identifies the STORNO entry of a cancellation.
type ReversalSummary struct {
	ID         int64 `json:"id"`
	LinesCount int   `json:"linesCount"`
}

// CancelResult is returned by Cancel.
type CancelResult struct {
	Document          Document        `json:"document"`
	Reversal          ReversalSummary `json:"reversal"`
	MovementsReversed int             `json:"movementsReversed"`
}

// RepostRange is an inclusive date range.
type RepostRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// ProcessedCounts counts the documents whose entries were recreated.
// Sales and Purchases include cancelled documents.
type ProcessedCounts struct {
	Sales              int `json:"sales"`
	Purchases          int `json:"purchases"`
	CancelledSales     int `json:"cancelledSales"`
	CancelledPurchases int `json:"cancelledPurchases"`
}

// RepostResult is returned by Repost.
type RepostResult struct {
	Range              RepostRange     `json:"range"`
	DeletedEntries     int             `json:"deletedEntries"`
	RecreatedEntries   int             `json:"recreatedEntries"`
	DocumentsProcessed ProcessedCounts `json:"documentsProcessed"`
}

var (
	ErrInvalidDocument       = shared.NewError(shared.KindValidation, "INVALID_DOCUMENT", "invalid document")
	ErrInvalidProfile        = shared.NewError(shared.KindValidation, "INVALID_POSTING_PROFILE", "invalid posting profile")
	ErrAccountInactive       = shared.NewError(shared.KindValidation, "ACCOUNT_INACTIVE", "posting profile account is inactive")
	ErrNonPositiveTotal      = shared.NewError(shared.KindValidation, "NON_POSITIVE_TOTAL", "document total must be positive")
	ErrInvalidRange          = shared.NewError(shared.KindValidation, "INVALID_RANGE", "invalid repost range")
	ErrDocumentNotFound      = shared.NewError(shared.KindNotFound, "DOCUMENT_NOT_FOUND", "document not found")
	ErrAlreadyCancelled      = shared.NewError(shared.KindConflict, "ALREADY_CANCELLED", "document is already cancelled")
	ErrDocumentLocked        = shared.NewError(shared.KindConflict, "LOCKED", "document is locked")
	ErrDuplicateDocument     = shared.NewError(shared.KindConflict, "DUPLICATE_DOCUMENT", "document series and number already exist")
	ErrMissingPostingProfile = shared.NewError(shared.KindIntegrity, "MISSING_POSTING_PROFILE", "document has no posting profile")
)
